package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogue(t *testing.T) {
	require.Len(t, Slots, int(TotalPrimitives))
	assert.Equal(t, uint32(10), TotalPrimitives)

	assert.Equal(t, uint32(0), CategoryBase(Analytic))
	assert.Equal(t, uint32(2), CategoryBase(Volumetric))
	assert.Equal(t, uint32(3), CategoryBase(SignedDistance))

	for i, s := range Slots {
		idx, err := InstanceIndex(s.Category, s.Kind)
		require.NoError(t, err, s.Name)
		assert.Equal(t, uint32(i), idx, s.Name)
	}

	_, err := InstanceIndex(Volumetric, 1)
	assert.ErrorIs(t, err, ErrUnknownPrimitive)
	_, err = InstanceIndex(CategoryCount, 0)
	assert.ErrorIs(t, err, ErrUnknownPrimitive)
}

func TestRecordSizes(t *testing.T) {
	assert.Len(t, PlaneMaterial().Bytes(), MaterialRecordSize)
	assert.Len(t, InstanceConstant{}.Bytes(), InstanceConstantSize)
	assert.Len(t, PerFrameTransform{}.Bytes(), PerFrameTransformSize)
	assert.Len(t, SceneConstants{}.Bytes(), SceneConstantsSize)
}

func TestMaterialLayout(t *testing.T) {
	b := PlaneMaterial().Bytes()
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }

	assert.Equal(t, float32(0.9), f(0))
	assert.Equal(t, float32(1), f(12))
	assert.Equal(t, float32(0.25), f(16))
	assert.Equal(t, float32(1), f(20))
	assert.Equal(t, float32(0.4), f(24))
	assert.Equal(t, float32(50), f(28))
	assert.Equal(t, float32(1), f(32))
	assert.Equal(t, make([]byte, 12), b[36:48])
}

func TestPrimitiveConstants(t *testing.T) {
	c := PrimitiveConstants()
	assert.Equal(t, InstanceConstant{InstanceIndex: 2, PrimitiveType: VolumetricMetaballs}, c[2])
	assert.Equal(t, InstanceConstant{InstanceIndex: 9, PrimitiveType: SDFractalPyramid}, c[9])

	b := c[9].Bytes()
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(b[0:]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(b[4:]))
}

func TestAABB(t *testing.T) {
	b := AABB{Min: mgl32.Vec3{-7, -1, -7}, Max: mgl32.Vec3{-4, 2, -4}}
	assert.Equal(t, mgl32.Vec3{-5.5, 0.5, -5.5}, b.Center())
	assert.Equal(t, mgl32.Vec3{3, 3, 3}, b.Extent())

	u := b.Union(AABB{Min: mgl32.Vec3{0, -2, 0}, Max: mgl32.Vec3{1, 1, 1}})
	assert.Equal(t, AABB{Min: mgl32.Vec3{-7, -2, -7}, Max: mgl32.Vec3{1, 2, 1}}, u)
}
