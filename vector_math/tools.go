package vector_math

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ToRad is a helper function to turn degree to radians
func ToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// ToDeg is a helper function to turn radians to degree
func ToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Apply multiplies v by m using the given homogeneous coordinate w. w = 1 transforms a point, w = 0 a direction.
// The homogeneous divide is not performed.
func Apply(v mgl32.Vec3, w float32, m mgl32.Mat4) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(w)).Vec3()
}

// TRS composes translate(t) * rot * scale(s), the usual order for placing an object into a parent space.
func TRS(t mgl32.Vec3, rot mgl32.Mat4, s mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(t.X(), t.Y(), t.Z()).Mul4(rot).Mul4(mgl32.Scale3D(s.X(), s.Y(), s.Z()))
}

// Affine3x4 drops the last row of m and returns the rest in row-major order. This is the layout acceleration
// structure instances expect for their object-to-world transform.
func Affine3x4(m mgl32.Mat4) [12]float32 {
	var out [12]float32
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = m.At(r, c)
		}
	}
	return out
}

// FromAffine3x4 is the inverse of Affine3x4, restoring the implicit (0, 0, 0, 1) bottom row.
func FromAffine3x4(a [12]float32) mgl32.Mat4 {
	m := mgl32.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, a[r*4+c])
		}
	}
	return m
}

// TransformBounds returns the axis aligned box enclosing the eight corners of [lo, hi] after applying m.
func TransformBounds(lo mgl32.Vec3, hi mgl32.Vec3, m mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(math.Inf(1))
	outLo := mgl32.Vec3{inf, inf, inf}
	outHi := mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < 8; i++ {
		corner := lo
		if i&1 != 0 {
			corner[0] = hi[0]
		}
		if i&2 != 0 {
			corner[1] = hi[1]
		}
		if i&4 != 0 {
			corner[2] = hi[2]
		}
		p := Apply(corner, 1, m)
		for a := 0; a < 3; a++ {
			outLo[a] = float32(math.Min(float64(outLo[a]), float64(p[a])))
			outHi[a] = float32(math.Max(float64(outHi[a]), float64(p[a])))
		}
	}
	return outLo, outHi
}
