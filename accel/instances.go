package accel

import (
	"fmt"

	"GPU_procedural_raytracing/vector_math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaskAll makes an instance visible to every ray.
const MaskAll uint8 = 0xff

// PlaneInstance stretches the unit quad to floorSize and moves it by floorSize scaled per axis by anchor. The
// plane always uses the first hit record.
func PlaneInstance(floorSize mgl32.Vec3, anchor mgl32.Vec3, blas uint64) InstanceDescriptor {
	offset := mgl32.Vec3{floorSize[0] * anchor[0], floorSize[1] * anchor[1], floorSize[2] * anchor[2]}
	m := vector_math.TRS(offset, mgl32.Ident4(), floorSize)
	return InstanceDescriptor{
		Transform:        vector_math.Affine3x4(m),
		Mask:             MaskAll,
		RecordOffset:     0,
		StructureAddress: blas,
	}
}

// ProceduralInstance lifts a primitive by half the primitive width so the grid rests on the plane. Primitive
// index i uses hit record 1+i.
func ProceduralInstance(index uint32, width float32, blas uint64) InstanceDescriptor {
	m := mgl32.Translate3D(0, width/2, 0)
	return InstanceDescriptor{
		Transform:        vector_math.Affine3x4(m),
		Mask:             MaskAll,
		RecordOffset:     1 + index,
		StructureAddress: blas,
	}
}

// SceneInstances places the plane first and then every procedural structure in instance index order.
func SceneInstances(bottom []*Structure, floorSize mgl32.Vec3, anchor mgl32.Vec3, width float32) ([]InstanceDescriptor, error) {
	if len(bottom) < 2 {
		return nil, fmt.Errorf("%w: need the plane and at least one primitive, got %d structures", ErrInstanceCount, len(bottom))
	}
	out := make([]InstanceDescriptor, 0, len(bottom))
	out = append(out, PlaneInstance(floorSize, anchor, bottom[0].Address))
	for i, st := range bottom[1:] {
		out = append(out, ProceduralInstance(uint32(i), width, st.Address))
	}
	return out, nil
}

// ValidateRecordOffsets checks that every instance selects its own hit record and that the record exists.
func ValidateRecordOffsets(instances []InstanceDescriptor, hitRecordCount uint32) error {
	seen := make(map[uint32]int, len(instances))
	for i, inst := range instances {
		if inst.RecordOffset >= hitRecordCount {
			return fmt.Errorf("%w: instance %d uses record %d of %d", ErrRecordOffsetRange, i, inst.RecordOffset, hitRecordCount)
		}
		if prev, ok := seen[inst.RecordOffset]; ok {
			return fmt.Errorf("%w: instances %d and %d use record %d", ErrSharedRecordOffset, prev, i, inst.RecordOffset)
		}
		seen[inst.RecordOffset] = i
	}
	return nil
}
