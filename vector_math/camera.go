package vector_math

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera describes a left-handed perspective camera. Depth maps into Vulkan's [0, 1] range and +Z points into
// the screen.
type Camera struct {
	// Projection matrix precursors
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32

	Eye mgl32.Vec3
	At  mgl32.Vec3
	Up  mgl32.Vec3
}

func (c *Camera) Projection() mgl32.Mat4 {
	focalLen := float32(1 / math.Tan(ToRad(float64(c.Fov))/2))
	var m mgl32.Mat4
	m.Set(0, 0, focalLen/c.Aspect)
	m.Set(1, 1, focalLen)
	m.Set(2, 2, c.Far/(c.Far-c.Near))
	m.Set(2, 3, -(c.Far*c.Near)/(c.Far-c.Near))
	m.Set(3, 2, 1)
	return m
}

// View builds the world to camera transform from Eye, At and Up. A degenerate direction (Eye == At) falls back
// to looking down +Z.
func (c *Camera) View() mgl32.Mat4 {
	w := c.At.Sub(c.Eye)
	if w.Len() == 0 {
		w = mgl32.Vec3{0, 0, 1}
	}
	w = w.Normalize()
	u := c.Up.Cross(w).Normalize()
	v := w.Cross(u)

	m := mgl32.Ident4()
	for i := 0; i < 3; i++ {
		m.Set(0, i, u[i])
		m.Set(1, i, v[i])
		m.Set(2, i, w[i])
	}
	m.Set(0, 3, -u.Dot(c.Eye))
	m.Set(1, 3, -v.Dot(c.Eye))
	m.Set(2, 3, -w.Dot(c.Eye))
	return m
}

// ProjectionToWorld maps clip space back into world space. Ray generation uses it to turn a pixel into a ray.
func (c *Camera) ProjectionToWorld() mgl32.Mat4 {
	return c.Projection().Mul4(c.View()).Inv()
}
