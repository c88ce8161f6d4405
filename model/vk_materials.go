package model

import "github.com/go-gl/mathgl/mgl32"

var (
	ColorGreen    = mgl32.Vec4{0.1, 1.0, 0.5, 1.0}
	ColorRed      = mgl32.Vec4{1.0, 0.5, 0.5, 1.0}
	ColorYellow   = mgl32.Vec4{1.0, 1.0, 0.5, 1.0}
	ColorChromium = mgl32.Vec4{0.549, 0.556, 0.554, 1.0}
)

// NewMaterial returns a record with the default lighting coefficients for the given albedo.
func NewMaterial(albedo mgl32.Vec4) MaterialRecord {
	return MaterialRecord{
		Albedo:        albedo,
		DiffuseCoef:   0.9,
		SpecularCoef:  0.7,
		SpecularPower: 50,
		StepScale:     1,
	}
}

func (m MaterialRecord) WithReflectance(r float32) MaterialRecord {
	m.ReflectanceCoef = r
	return m
}

func (m MaterialRecord) WithLighting(diffuse float32, specular float32, power float32) MaterialRecord {
	m.DiffuseCoef = diffuse
	m.SpecularCoef = specular
	m.SpecularPower = power
	return m
}

func (m MaterialRecord) WithStepScale(s float32) MaterialRecord {
	m.StepScale = s
	return m
}

// PlaneMaterial is the material of the ground plane hit record.
func PlaneMaterial() MaterialRecord {
	return NewMaterial(mgl32.Vec4{0.9, 0.9, 0.9, 1.0}).
		WithReflectance(0.25).
		WithLighting(1, 0.4, 50)
}

// PrimitiveMaterials returns one material per procedural primitive, indexed by instance index.
func PrimitiveMaterials() [TotalPrimitives]MaterialRecord {
	var m [TotalPrimitives]MaterialRecord
	m[0] = NewMaterial(ColorRed)
	m[1] = NewMaterial(ColorChromium).WithReflectance(1)
	m[2] = NewMaterial(ColorChromium).WithReflectance(1)
	m[3] = NewMaterial(ColorGreen)
	m[4] = NewMaterial(ColorGreen)
	m[5] = NewMaterial(ColorChromium).WithReflectance(1)
	m[6] = NewMaterial(ColorYellow).WithLighting(1, 0.7, 50).WithStepScale(0.5)
	m[7] = NewMaterial(ColorYellow).WithLighting(1, 0.1, 2)
	m[8] = NewMaterial(ColorRed)
	m[9] = NewMaterial(ColorGreen).WithLighting(1, 0.1, 4).WithStepScale(0.8)
	return m
}

// PrimitiveConstants returns the InstanceConstant of every procedural primitive, indexed by instance index.
func PrimitiveConstants() [TotalPrimitives]InstanceConstant {
	var c [TotalPrimitives]InstanceConstant
	for i, s := range Slots {
		c[i] = InstanceConstant{InstanceIndex: uint32(i), PrimitiveType: s.Kind}
	}
	return c
}
