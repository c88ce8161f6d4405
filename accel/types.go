package accel

import (
	"encoding/binary"
	"fmt"
	"math"

	"GPU_procedural_raytracing/common"

	vk "github.com/goki/vulkan"
)

// Level tells bottom level structures (over geometry) from the top level structure (over instances).
type Level uint8

const (
	BottomLevel Level = iota
	TopLevel
)

func (l Level) String() string {
	if l == TopLevel {
		return "top"
	}
	return "bottom"
}

type GeometryKind uint8

const (
	KindTriangles GeometryKind = iota
	KindAABBs
)

// Triangles describes indexed triangle input. Buffers are read by the build, never written.
type Triangles struct {
	VertexBuffer *common.Buffer
	VertexStride uint32
	VertexFormat vk.Format
	VertexCount  uint32
	IndexBuffer  *common.Buffer
	IndexType    vk.IndexType
	IndexCount   uint32
}

// AABBs describes Count boxes of six float32 each, Stride bytes apart.
type AABBs struct {
	Buffer *common.Buffer
	Stride uint32
	Count  uint32
}

// GeometryDescriptor is the input of one bottom level build. Only the member matching Kind is meaningful.
type GeometryDescriptor struct {
	Kind      GeometryKind
	Opaque    bool
	Triangles Triangles
	AABBs     AABBs
}

func NewTriangles(t Triangles) GeometryDescriptor {
	return GeometryDescriptor{Kind: KindTriangles, Opaque: true, Triangles: t}
}

func NewAABBs(a AABBs) GeometryDescriptor {
	return GeometryDescriptor{Kind: KindAABBs, Opaque: true, AABBs: a}
}

// PrimitiveCount is the number of triangles or boxes the geometry contributes.
func (g GeometryDescriptor) PrimitiveCount() uint32 {
	if g.Kind == KindTriangles {
		return g.Triangles.IndexCount / 3
	}
	return g.AABBs.Count
}

func IndexSize(t vk.IndexType) uint32 {
	if t == vk.IndexTypeUint16 {
		return 2
	}
	return 4
}

// Validate checks that the descriptor is internally consistent and fits its buffers.
func (g GeometryDescriptor) Validate() error {
	switch g.Kind {
	case KindTriangles:
		t := g.Triangles
		if t.VertexBuffer == nil || t.IndexBuffer == nil {
			return fmt.Errorf("%w: triangles without vertex or index buffer", ErrInvalidGeometry)
		}
		if t.IndexCount == 0 || t.IndexCount%3 != 0 {
			return fmt.Errorf("%w: index count %d is not a positive multiple of 3", ErrInvalidGeometry, t.IndexCount)
		}
		if t.IndexType != vk.IndexTypeUint16 && t.IndexType != vk.IndexTypeUint32 {
			return fmt.Errorf("%w: unsupported index type %d", ErrInvalidGeometry, t.IndexType)
		}
		if t.VertexFormat != vk.FormatR32g32b32Sfloat || t.VertexStride < 12 {
			return fmt.Errorf("%w: vertices must be float3 with stride >= 12", ErrInvalidGeometry)
		}
		if uint64(t.VertexStride)*uint64(t.VertexCount) > uint64(t.VertexBuffer.Size) {
			return fmt.Errorf("%w: %d vertices exceed vertex buffer", ErrInvalidGeometry, t.VertexCount)
		}
		if uint64(IndexSize(t.IndexType))*uint64(t.IndexCount) > uint64(t.IndexBuffer.Size) {
			return fmt.Errorf("%w: %d indices exceed index buffer", ErrInvalidGeometry, t.IndexCount)
		}
	case KindAABBs:
		a := g.AABBs
		if a.Buffer == nil || a.Count == 0 {
			return fmt.Errorf("%w: empty AABB geometry", ErrInvalidGeometry)
		}
		if a.Stride < 24 || a.Stride%8 != 0 {
			return fmt.Errorf("%w: AABB stride %d", ErrInvalidGeometry, a.Stride)
		}
		if uint64(a.Stride)*uint64(a.Count-1)+24 > uint64(a.Buffer.Size) {
			return fmt.Errorf("%w: %d boxes exceed buffer", ErrInvalidGeometry, a.Count)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidGeometry, g.Kind)
	}
	return nil
}

// Handle is an opaque structure identity handed out by a Device.
type Handle uint64

// BuildSizes is what a device reports before a build: storage for the finished structure and temporary scratch.
type BuildSizes struct {
	StructureSize uint64
	ScratchSize   uint64
}

// Structure is a created acceleration structure together with the buffer backing it.
type Structure struct {
	Name    string
	Level   Level
	Handle  Handle
	Buffer  *common.Buffer
	Address uint64
	Sizes   BuildSizes
}

// InstanceStride is the size of one packed instance in the top level input buffer.
const InstanceStride = 64

const (
	InstanceFlagTriangleCullDisable uint8 = 0x1
	InstanceFlagForceOpaque         uint8 = 0x4
)

// InstanceDescriptor places a bottom level structure in the scene. RecordOffset selects the hit record used when
// a ray hits it and is stored in 24 bits, as is CustomIndex.
type InstanceDescriptor struct {
	Transform        [12]float32
	CustomIndex      uint32
	Mask             uint8
	RecordOffset     uint32
	Flags            uint8
	StructureAddress uint64
}

// Bytes packs the instance the way ray tracing hardware reads it: a row major 3x4 transform, then custom index
// and mask sharing a word, record offset and flags sharing a word, then the structure reference.
func (i InstanceDescriptor) Bytes() []byte {
	buf := make([]byte, InstanceStride)
	for k, f := range i.Transform {
		binary.LittleEndian.PutUint32(buf[k*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[48:], i.CustomIndex&0xffffff|uint32(i.Mask)<<24)
	binary.LittleEndian.PutUint32(buf[52:], i.RecordOffset&0xffffff|uint32(i.Flags)<<24)
	binary.LittleEndian.PutUint64(buf[56:], i.StructureAddress)
	return buf
}

// DecodeInstance reverses Bytes. b must hold at least InstanceStride bytes.
func DecodeInstance(b []byte) InstanceDescriptor {
	var i InstanceDescriptor
	for k := range i.Transform {
		i.Transform[k] = math.Float32frombits(binary.LittleEndian.Uint32(b[k*4:]))
	}
	w := binary.LittleEndian.Uint32(b[48:])
	i.CustomIndex, i.Mask = w&0xffffff, uint8(w>>24)
	w = binary.LittleEndian.Uint32(b[52:])
	i.RecordOffset, i.Flags = w&0xffffff, uint8(w>>24)
	i.StructureAddress = binary.LittleEndian.Uint64(b[56:])
	return i
}
