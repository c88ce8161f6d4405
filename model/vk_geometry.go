package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the position only vertex format of the triangle geometry, three tightly packed float32.
type Vertex struct {
	Position mgl32.Vec3
}

const VertexStride = 12

// Face is one triangle's index triple, widened to uint32 and padded to 16 bytes for storage buffer access.
type Face [4]uint32

// AABB is an axis aligned box as the acceleration structure build reads it: min xyz followed by max xyz.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

const AABBStride = 24

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Extent() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Union returns the smallest box enclosing both boxes.
func (b AABB) Union(o AABB) AABB {
	out := b
	for a := 0; a < 3; a++ {
		if o.Min[a] < out.Min[a] {
			out.Min[a] = o.Min[a]
		}
		if o.Max[a] > out.Max[a] {
			out.Max[a] = o.Max[a]
		}
	}
	return out
}
