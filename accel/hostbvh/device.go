// Package hostbvh implements the ray tracing device capability on the host. Builds run when a command stream is
// submitted and write real hierarchies into the structure storage buffers of a common.HostAllocator, so the same
// scene setup, ordering rules and memory accounting apply as on a GPU.
package hostbvh

import (
	"encoding/binary"
	"errors"
	"fmt"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/log"
	"GPU_procedural_raytracing/model"
	"GPU_procedural_raytracing/sbt"
	"GPU_procedural_raytracing/vector_math"

	vk "github.com/goki/vulkan"
)

var logger = log.New("hostbvh")

var (
	ErrUnknownHandle    = errors.New("hostbvh: unknown structure handle")
	ErrStorageTooSmall  = errors.New("hostbvh: storage buffer smaller than the build requires")
	ErrScratchTooSmall  = errors.New("hostbvh: scratch buffer smaller than the build requires")
	ErrScratchHazard    = errors.New("hostbvh: build started before the previous build was ordered by a barrier")
	ErrUnbuiltReference = errors.New("hostbvh: instance references a structure that has not been built")
	ErrAlreadyBuilt     = errors.New("hostbvh: structure already built")
	ErrBadUsage         = errors.New("hostbvh: buffer lacks the usage the operation needs")
	ErrLevelMismatch    = errors.New("hostbvh: build level does not match the structure level")
)

const (
	headerSize        = 64
	scratchRecordSize = 32
	sizeAlignment     = 256
)

type structure struct {
	level     accel.Level
	storage   *common.Buffer
	size      uint64
	built     bool
	published bool
	bounds    model.AABB
}

// Device is a host side ray tracing device. It is not safe for concurrent use, like a single Vulkan queue.
type Device struct {
	alloc      *common.HostAllocator
	next       accel.Handle
	structures map[accel.Handle]*structure
	byAddress  map[uint64]accel.Handle

	caps         sbt.Capabilities
	nextPipeline sbt.Pipeline
	pipelines    map[sbt.Pipeline]*pipeline
}

// NewDevice returns a device allocating from alloc that reports caps as its ray tracing limits.
func NewDevice(alloc *common.HostAllocator, caps sbt.Capabilities) *Device {
	return &Device{
		alloc:        alloc,
		next:         1,
		structures:   make(map[accel.Handle]*structure),
		byAddress:    make(map[uint64]accel.Handle),
		caps:         caps,
		nextPipeline: 1,
		pipelines:    make(map[sbt.Pipeline]*pipeline),
	}
}

func nodeCount(primitives uint32) uint64 {
	if primitives == 0 {
		return 0
	}
	return 2*uint64(primitives) - 1
}

func (d *Device) BottomLevelSizes(g accel.GeometryDescriptor) (accel.BuildSizes, error) {
	if err := g.Validate(); err != nil {
		return accel.BuildSizes{}, err
	}
	n := g.PrimitiveCount()
	return accel.BuildSizes{
		StructureSize: common.AlignUp(headerSize+nodeCount(n)*NodeSize, sizeAlignment),
		ScratchSize:   common.AlignUp(uint64(n)*scratchRecordSize, sizeAlignment),
	}, nil
}

// TopLevelSizes reserves room for the hierarchy plus a copy of the instances, which the structure keeps so
// traversal does not depend on the instance buffer staying alive.
func (d *Device) TopLevelSizes(instanceCount uint32) (accel.BuildSizes, error) {
	if instanceCount == 0 {
		return accel.BuildSizes{}, fmt.Errorf("%w: no instances", accel.ErrInvalidGeometry)
	}
	return accel.BuildSizes{
		StructureSize: common.AlignUp(headerSize+nodeCount(instanceCount)*NodeSize+uint64(instanceCount)*accel.InstanceStride, sizeAlignment),
		ScratchSize:   common.AlignUp(uint64(instanceCount)*scratchRecordSize, sizeAlignment),
	}, nil
}

func (d *Device) CreateStructure(level accel.Level, storage *common.Buffer, size uint64) (accel.Handle, error) {
	if storage.Usage&vk.BufferUsageFlags(common.BufferUsageAccelerationStructureStorageBit) == 0 {
		return 0, fmt.Errorf("%w: structure storage", ErrBadUsage)
	}
	if uint64(storage.Size) < size {
		return 0, fmt.Errorf("%w: %d < %d", ErrStorageTooSmall, storage.Size, size)
	}
	h := d.next
	d.next++
	d.structures[h] = &structure{level: level, storage: storage, size: size}
	d.byAddress[storage.Address] = h
	logger.Debugf("created %s level structure %d at 0x%x", level, h, storage.Address)
	return h, nil
}

func (d *Device) StructureAddress(h accel.Handle) (uint64, error) {
	s, ok := d.structures[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	return s.storage.Address, nil
}

func (d *Device) DestroyStructure(h accel.Handle) {
	if s, ok := d.structures[h]; ok {
		delete(d.byAddress, s.storage.Address)
		delete(d.structures, h)
	}
}

func (d *Device) NewCommandStream() (accel.CommandStream, error) {
	return &stream{dev: d}, nil
}

func (d *Device) lookup(h accel.Handle) (*structure, error) {
	s, ok := d.structures[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return s, nil
}

// Built reports whether the structure finished building.
func (d *Device) Built(h accel.Handle) bool {
	s, ok := d.structures[h]
	return ok && s.built
}

// Published reports whether a barrier made the structure visible to the tracing stages.
func (d *Device) Published(h accel.Handle) bool {
	s, ok := d.structures[h]
	return ok && s.published
}

// Bounds returns the root bounds stored in the structure header.
func (d *Device) Bounds(h accel.Handle) (model.AABB, error) {
	s, err := d.lookup(h)
	if err != nil {
		return model.AABB{}, err
	}
	if !s.built {
		return model.AABB{}, ErrUnbuiltReference
	}
	return s.bounds, nil
}

// Nodes decodes the hierarchy stored in the structure's buffer.
func (d *Device) Nodes(h accel.Handle) ([]Node, error) {
	s, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	mem, err := d.alloc.Contents(s.storage)
	if err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(mem[4:])
	nodes := make([]Node, count)
	for i := range nodes {
		nodes[i] = DecodeNode(mem[headerSize+i*NodeSize:])
	}
	return nodes, nil
}

// Instances returns the instance copy kept in a top level structure.
func (d *Device) Instances(h accel.Handle) ([]accel.InstanceDescriptor, error) {
	s, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	if s.level != accel.TopLevel {
		return nil, ErrLevelMismatch
	}
	mem, err := d.alloc.Contents(s.storage)
	if err != nil {
		return nil, err
	}
	nodes := binary.LittleEndian.Uint32(mem[4:])
	count := binary.LittleEndian.Uint32(mem[8:])
	off := headerSize + int(nodes)*NodeSize
	out := make([]accel.InstanceDescriptor, count)
	for i := range out {
		out[i] = accel.DecodeInstance(mem[off+i*accel.InstanceStride:])
	}
	return out, nil
}

func writeHeader(level accel.Level, nodes []Node, primitives int) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(level))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(nodes)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(primitives))
	if len(nodes) > 0 {
		putVec3(buf[16:], nodes[0].Min)
		putVec3(buf[32:], nodes[0].Max)
	}
	return buf
}

// instanceBounds returns the world space box of an instance's bottom level structure.
func instanceBounds(inst accel.InstanceDescriptor, blas model.AABB) model.AABB {
	lo, hi := vector_math.TransformBounds(blas.Min, blas.Max, vector_math.FromAffine3x4(inst.Transform))
	return model.AABB{Min: lo, Max: hi}
}
