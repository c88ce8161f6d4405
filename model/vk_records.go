package model

import (
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/vector_math"

	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the records as the shaders read them.
const (
	MaterialRecordSize    = 48
	InstanceConstantSize  = 16
	PerFrameTransformSize = 128
	SceneConstantsSize    = 144
)

// MaterialRecord is the per instance shading payload stored in every hit record, right after the group handle.
type MaterialRecord struct {
	Albedo          mgl32.Vec4
	ReflectanceCoef float32
	DiffuseCoef     float32
	SpecularCoef    float32
	SpecularPower   float32
	StepScale       float32
	Padding         [3]float32
}

func (m MaterialRecord) Bytes() []byte {
	return common.RawBytes(m)
}

// InstanceConstant follows the MaterialRecord in a hit record. InstanceIndex addresses the per frame transform
// array, PrimitiveType selects the shape inside the intersection program of the category.
type InstanceConstant struct {
	InstanceIndex uint32
	PrimitiveType uint32
	Padding       [2]uint32
}

func (c InstanceConstant) Bytes() []byte {
	return common.RawBytes(c)
}

// PerFrameTransform moves rays between the structure (world) space and a primitive's local space.
type PerFrameTransform struct {
	LocalToStructure mgl32.Mat4
	StructureToLocal mgl32.Mat4
}

func (p PerFrameTransform) Bytes() []byte {
	buf := make([]byte, PerFrameTransformSize)
	vector_math.PutMat4(buf[0:64], p.LocalToStructure)
	vector_math.PutMat4(buf[64:128], p.StructureToLocal)
	return buf
}

// SceneConstants is the uniform block shared by every ray tracing stage.
type SceneConstants struct {
	ProjectionToWorld mgl32.Mat4
	CameraPosition    mgl32.Vec4
	LightPosition     mgl32.Vec4
	LightAmbientColor mgl32.Vec4
	LightDiffuseColor mgl32.Vec4
	Reflectance       float32
	ElapsedTime       float32
}

// Bytes encodes the block with std140 rules, rounding the size up to a multiple of 16.
func (s SceneConstants) Bytes() []byte {
	buf := make([]byte, SceneConstantsSize)
	vector_math.PutMat4(buf[0:], s.ProjectionToWorld)
	vector_math.PutVec4(buf[64:], s.CameraPosition)
	vector_math.PutVec4(buf[80:], s.LightPosition)
	vector_math.PutVec4(buf[96:], s.LightAmbientColor)
	vector_math.PutVec4(buf[112:], s.LightDiffuseColor)
	copy(buf[128:], common.RawBytes([2]float32{s.Reflectance, s.ElapsedTime}))
	return buf
}
