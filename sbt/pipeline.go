package sbt

import (
	"encoding/binary"
	"fmt"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic = 0x07230203

// Pipeline identifies a ray tracing pipeline created by a PipelineDevice.
type Pipeline uint64

// PipelineDesc is everything a ray tracing pipeline is created from.
type PipelineDesc struct {
	Programs          []Program
	Groups            []Group
	MaxRecursionDepth uint32
}

// PipelineDevice creates ray tracing pipelines and hands out their group handles.
type PipelineDevice interface {
	Capabilities() Capabilities
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	GroupHandles(p Pipeline, first uint32, count uint32) ([]byte, error)
	DestroyPipeline(p Pipeline)
}

// ValidateProgram checks that p looks like a SPIR-V module with an entry point.
func ValidateProgram(p Program) error {
	if len(p.Code) < 20 || len(p.Code)%4 != 0 {
		return fmt.Errorf("%w: %s: %d bytes is not a SPIR-V module", ErrInvalidProgram, p.Name, len(p.Code))
	}
	if magic := binary.LittleEndian.Uint32(p.Code); magic != SpirvMagic {
		return fmt.Errorf("%w: %s: bad magic 0x%08x", ErrInvalidProgram, p.Name, magic)
	}
	if p.Entry == "" {
		return fmt.Errorf("%w: %s: no entry point", ErrInvalidProgram, p.Name)
	}
	return nil
}

// ValidateDesc checks the programs, the group table and the recursion depth against the device maximum.
func ValidateDesc(desc PipelineDesc, caps Capabilities) error {
	if len(desc.Programs) != ProgramCount {
		return fmt.Errorf("%w: %d programs registered, want %d", ErrGroupMismatch, len(desc.Programs), ProgramCount)
	}
	for i, p := range desc.Programs {
		if p.Name != ProgramTable[i].Name || p.Stage != ProgramTable[i].Stage {
			return fmt.Errorf("%w: program %d is %s (%s), want %s (%s)", ErrGroupMismatch, i, p.Name, p.Stage, ProgramTable[i].Name, ProgramTable[i].Stage)
		}
		if err := ValidateProgram(p); err != nil {
			return err
		}
	}
	if err := ValidateGroups(desc.Groups, desc.Programs); err != nil {
		return err
	}
	if desc.MaxRecursionDepth == 0 || desc.MaxRecursionDepth > caps.MaxRecursionDepth {
		return fmt.Errorf("%w: %d, device allows %d", ErrRecursionDepth, desc.MaxRecursionDepth, caps.MaxRecursionDepth)
	}
	return nil
}

// BoundHandles reads handles from one pipeline of a device.
type BoundHandles struct {
	Device   PipelineDevice
	Pipeline Pipeline
}

func (b BoundHandles) GroupHandles(first uint32, count uint32) ([]byte, error) {
	return b.Device.GroupHandles(b.Pipeline, first, count)
}

// EmptyModule is a header only SPIR-V module. It stands in for programs when no compiled shaders are
// available, which is enough for the host device and for layout work.
func EmptyModule() []byte {
	words := []uint32{SpirvMagic, 0x00010400, 0, 1, 0}
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// NewPrograms builds the registered programs in order, reading each one's code through load.
func NewPrograms(load func(name string) ([]byte, error)) ([]Program, error) {
	programs := make([]Program, 0, ProgramCount)
	for _, entry := range ProgramTable {
		code, err := load(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("load program %s: %w", entry.Name, err)
		}
		p := Program{Name: entry.Name, Stage: entry.Stage, Entry: "main", Code: code}
		if err = ValidateProgram(p); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}
