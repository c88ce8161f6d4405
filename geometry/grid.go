package geometry

import (
	"GPU_procedural_raytracing/model"

	"github.com/go-gl/mathgl/mgl32"
)

// GridLayout places primitives on a regular lattice centred on the origin. Shape counts cells along x, y and z.
type GridLayout struct {
	Shape          [3]uint32
	PrimitiveWidth float32
	Spacing        float32
}

// Span is the length covered by n cells and the n-1 gaps between them along each axis.
func (g GridLayout) Span(n [3]uint32) mgl32.Vec3 {
	var s mgl32.Vec3
	for a := 0; a < 3; a++ {
		s[a] = float32(n[a])*g.PrimitiveWidth + float32(n[a]-1)*g.Spacing
	}
	return s
}

// Base is the minimum corner of the lattice.
func (g GridLayout) Base() mgl32.Vec3 {
	return g.Span(g.Shape).Mul(-0.5)
}

// Stride is the distance between two neighbouring cells.
func (g GridLayout) Stride() float32 {
	return g.PrimitiveWidth + g.Spacing
}

// AABBAt returns the box starting at the given (possibly fractional) cell with the given extent.
func (g GridLayout) AABBAt(cell mgl32.Vec3, extent mgl32.Vec3) model.AABB {
	lo := g.Base().Add(cell.Mul(g.Stride()))
	return model.AABB{Min: lo, Max: lo.Add(extent)}
}

// Placement positions one primitive on the grid.
type Placement struct {
	Cell   mgl32.Vec3
	Extent mgl32.Vec3
}

// DefaultPlacements returns the scene's placement per instance index.
func DefaultPlacements() [model.TotalPrimitives]Placement {
	return [model.TotalPrimitives]Placement{
		{Cell: mgl32.Vec3{3, 0, 0}, Extent: mgl32.Vec3{2, 3, 2}},
		{Cell: mgl32.Vec3{2.25, 0, 0.75}, Extent: mgl32.Vec3{3, 3, 3}},
		{Cell: mgl32.Vec3{0, 0, 0}, Extent: mgl32.Vec3{3, 3, 3}},
		{Cell: mgl32.Vec3{2, 0, 0}, Extent: mgl32.Vec3{2, 2, 2}},
		{Cell: mgl32.Vec3{0, 0, 2}, Extent: mgl32.Vec3{2, 2, 2}},
		{Cell: mgl32.Vec3{0.75, -0.1, 2.25}, Extent: mgl32.Vec3{3, 3, 3}},
		{Cell: mgl32.Vec3{0, 0, 1}, Extent: mgl32.Vec3{2, 2, 2}},
		{Cell: mgl32.Vec3{1, 0, 0}, Extent: mgl32.Vec3{2, 2, 2}},
		{Cell: mgl32.Vec3{0, 0, 3}, Extent: mgl32.Vec3{2, 3, 2}},
		{Cell: mgl32.Vec3{2, 0, 2}, Extent: mgl32.Vec3{6, 6, 6}},
	}
}

// ProceduralAABBs computes the box of every primitive, indexed by instance index.
func ProceduralAABBs(g GridLayout, placements [model.TotalPrimitives]Placement) []model.AABB {
	out := make([]model.AABB, len(placements))
	for i, p := range placements {
		out[i] = g.AABBAt(p.Cell, p.Extent)
	}
	return out
}
