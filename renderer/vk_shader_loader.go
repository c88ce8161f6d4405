package renderer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/sbt"

	vk "github.com/goki/vulkan"
)

// ShaderExt is the file extension of compiled programs in a shader directory.
const ShaderExt = ".spv"

// LoadPrograms reads the eight scene programs from dir, one '<name>.spv' file each. With an empty dir every
// program is a header only module, which is all the host backend needs.
func LoadPrograms(dir string) ([]sbt.Program, error) {
	if dir == "" {
		logger.Noticef("no shader directory given, using empty program modules")
		return sbt.NewPrograms(func(string) ([]byte, error) {
			return sbt.EmptyModule(), nil
		})
	}
	return sbt.NewPrograms(func(name string) ([]byte, error) {
		path := filepath.Join(dir, name+ShaderExt)
		code, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingShader, path)
		}
		if err != nil {
			return nil, err
		}
		logger.Debugf("read shader file (%s) of size: %s", path, common.FmtSize(uint64(len(code))))
		return code, nil
	})
}

// CreateShaderModules moves the program code onto the device. On failure the modules created so far are
// destroyed again.
func CreateShaderModules(d vk.Device, programs []sbt.Program) ([]vk.ShaderModule, error) {
	modules := make([]vk.ShaderModule, 0, len(programs))
	for _, p := range programs {
		createInfo := &vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			PNext:    nil,
			Flags:    0,
			CodeSize: uint64(len(p.Code)),
			PCode:    common.AsUint32Arr(p.Code),
		}
		module, err := common.VkCreateShaderModule(d, createInfo, nil)
		if err != nil {
			DestroyShaderModules(d, modules)
			return nil, fmt.Errorf("create shader module %s: %w", p.Name, err)
		}
		logger.Debugf("created %s shader module %s: %v", p.Stage, p.Name, module)
		modules = append(modules, module)
	}
	return modules, nil
}

// ShaderStageInfos pairs each program with its module for pipeline creation. Programs and modules share order.
func ShaderStageInfos(programs []sbt.Program, modules []vk.ShaderModule) []vk.PipelineShaderStageCreateInfo {
	infos := make([]vk.PipelineShaderStageCreateInfo, len(programs))
	for i, p := range programs {
		infos[i] = vk.PipelineShaderStageCreateInfo{
			SType:               vk.StructureTypePipelineShaderStageCreateInfo,
			PNext:               nil,
			Flags:               0,
			Stage:               vk.ShaderStageFlagBits(p.Stage.ShaderStageFlags()),
			Module:              modules[i],
			PName:               common.TerminatedStr(p.Entry),
			PSpecializationInfo: nil,
		}
	}
	return infos
}

// DestroyShaderModules discards shader modules. They are only containers for the code and can go once the
// pipeline exists.
func DestroyShaderModules(d vk.Device, modules []vk.ShaderModule) {
	for _, m := range modules {
		vk.DestroyShaderModule(d, m, nil)
	}
}
