package accel

import (
	"context"

	"GPU_procedural_raytracing/common"

	vk "github.com/goki/vulkan"
)

// Device is the ray tracing capability an acceleration structure build needs. It mirrors the extension entry
// points: size queries, structure creation over a storage buffer, device addresses and a command stream that
// records builds and barriers and is submitted once.
type Device interface {
	BottomLevelSizes(g GeometryDescriptor) (BuildSizes, error)
	TopLevelSizes(instanceCount uint32) (BuildSizes, error)

	CreateStructure(level Level, storage *common.Buffer, size uint64) (Handle, error)
	StructureAddress(h Handle) (uint64, error)
	DestroyStructure(h Handle)

	NewCommandStream() (CommandStream, error)
}

// CommandStream records work for a single submission. Recording never fails, errors surface from Submit, which
// blocks until the device finished or ctx is done.
type CommandStream interface {
	BuildBottomLevel(dst Handle, g GeometryDescriptor, scratch *common.Buffer)
	BuildTopLevel(dst Handle, instances *common.Buffer, count uint32, scratch *common.Buffer)
	Barrier(b Barrier)
	Submit(ctx context.Context) error
}

// Barrier is an execution and memory dependency between the commands recorded before and after it.
type Barrier struct {
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
}

var (
	buildStage  = vk.PipelineStageFlags(common.PipelineStageAccelerationStructureBuildBit)
	traceStage  = vk.PipelineStageFlags(common.PipelineStageRayTracingShaderBit)
	writeAccess = vk.AccessFlags(common.AccessAccelerationStructureWriteBit)
	readAccess  = vk.AccessFlags(common.AccessAccelerationStructureReadBit)
)

// BuildToBuild makes the results and scratch use of one build visible to the next.
var BuildToBuild = Barrier{
	SrcStage:  buildStage,
	DstStage:  buildStage,
	SrcAccess: writeAccess,
	DstAccess: readAccess | writeAccess,
}

// BuildToTrace publishes finished structures to the ray tracing stages.
var BuildToTrace = Barrier{
	SrcStage:  buildStage,
	DstStage:  traceStage,
	SrcAccess: writeAccess,
	DstAccess: readAccess,
}

// OrdersBuilds reports whether b makes prior build writes visible to later builds.
func (b Barrier) OrdersBuilds() bool {
	return b.SrcStage&buildStage != 0 && b.SrcAccess&writeAccess != 0 &&
		b.DstStage&buildStage != 0 && b.DstAccess&(readAccess|writeAccess) == readAccess|writeAccess
}

// PublishesToTrace reports whether b makes prior build writes visible to the ray tracing stages.
func (b Barrier) PublishesToTrace() bool {
	return b.SrcStage&buildStage != 0 && b.SrcAccess&writeAccess != 0 &&
		b.DstStage&traceStage != 0 && b.DstAccess&readAccess != 0
}
