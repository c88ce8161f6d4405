package geometry

import (
	"GPU_procedural_raytracing/model"

	"github.com/go-gl/mathgl/mgl32"
)

// PlaneVertices is a unit quad in the XZ plane. The plane instance transform scales and moves it.
func PlaneVertices() []model.Vertex {
	return []model.Vertex{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{1, 0, 1}},
		{Position: mgl32.Vec3{0, 0, 1}},
	}
}

func PlaneIndices() []uint16 {
	return []uint16{
		3, 1, 0,
		2, 1, 3,
	}
}

// PlaneFaces widens each index triple to uint32 and pads it to a Face.
func PlaneFaces(indices []uint16) []model.Face {
	faces := make([]model.Face, len(indices)/3)
	for i := range faces {
		faces[i] = model.Face{uint32(indices[3*i]), uint32(indices[3*i+1]), uint32(indices[3*i+2]), 0}
	}
	return faces
}

// PlaneNormals gives every vertex the up vector.
func PlaneNormals(vertexCount int) []mgl32.Vec4 {
	normals := make([]mgl32.Vec4, vertexCount)
	for i := range normals {
		normals[i] = mgl32.Vec4{0, 1, 0, 0}
	}
	return normals
}
