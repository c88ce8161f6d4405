package vector_math

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestAffine3x4RowMajor(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(4, 5, 6))
	got := Affine3x4(m)
	want := [12]float32{
		4, 0, 0, 1,
		0, 5, 0, 2,
		0, 0, 6, 3,
	}
	assert.Equal(t, want, got)
	assert.True(t, FromAffine3x4(got).ApproxEqual(m))
}

func TestTRSOrder(t *testing.T) {
	rot := mgl32.HomogRotate3DY(float32(ToRad(90)))
	m := TRS(mgl32.Vec3{10, 0, 0}, rot, mgl32.Vec3{2, 2, 2})

	// scale first, then rotate, then translate
	p := Apply(mgl32.Vec3{1, 0, 0}, 1, m)
	assert.InDelta(t, 10, p.X(), 1e-5)
	assert.InDelta(t, 0, p.Y(), 1e-5)
	assert.InDelta(t, -2, p.Z(), 1e-5)

	// directions ignore translation
	d := Apply(mgl32.Vec3{0, 1, 0}, 0, m)
	assert.InDelta(t, 2, d.Y(), 1e-5)
	assert.InDelta(t, 0, d.X(), 1e-5)
}

func TestTransformBounds(t *testing.T) {
	lo, hi := TransformBounds(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, mgl32.Translate3D(0, 1, 0))
	assert.Equal(t, mgl32.Vec3{-1, 0, -1}, lo)
	assert.Equal(t, mgl32.Vec3{1, 2, 1}, hi)

	lo, hi = TransformBounds(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 1}, mgl32.HomogRotate3DY(float32(math.Pi/4)))
	assert.InDelta(t, math.Sqrt2, hi.X()-lo.X(), 1e-5)
}

func TestToRad(t *testing.T) {
	assert.InDelta(t, math.Pi, ToRad(180), 1e-12)
	assert.InDelta(t, 90, ToDeg(math.Pi/2), 1e-12)
}

func TestCameraRoundTrip(t *testing.T) {
	cam := Camera{
		Fov:    45,
		Aspect: 1280.0 / 720.0,
		Near:   0.01,
		Far:    125,
		Eye:    mgl32.Vec3{0, 5.3, -17},
		At:     mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
	}

	// The look-at target projects onto the centre of the screen
	clip := cam.Projection().Mul4(cam.View()).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, clip.X()/clip.W(), 1e-5)
	assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-5)
	z := clip.Z() / clip.W()
	assert.True(t, z > 0 && z < 1, "depth %f not in (0, 1)", z)

	back := cam.ProjectionToWorld().Mul4x1(clip)
	world := back.Vec3().Mul(1 / back.W())
	assert.InDelta(t, 0, world.Len(), 1e-2)
}

func TestPutMat4ColumnMajor(t *testing.T) {
	buf := make([]byte, 64)
	PutMat4(buf, mgl32.Translate3D(7, 0, 0))
	// column 3, row 0 holds the translation
	assert.Equal(t, float32(7), math.Float32frombits(binary.LittleEndian.Uint32(buf[48:])))
}
