package model

import (
	"errors"
	"fmt"
)

// PrimitiveCategory selects the intersection program family evaluating a procedural primitive.
type PrimitiveCategory uint32

const (
	Analytic PrimitiveCategory = iota
	Volumetric
	SignedDistance
	CategoryCount
)

func (c PrimitiveCategory) String() string {
	switch c {
	case Analytic:
		return "analytic"
	case Volumetric:
		return "volumetric"
	case SignedDistance:
		return "signed-distance"
	default:
		return fmt.Sprintf("category(%d)", uint32(c))
	}
}

// Kinds within the analytic category
const (
	AnalyticAABB uint32 = iota
	AnalyticSpheres
	AnalyticCount
)

// Kinds within the volumetric category
const (
	VolumetricMetaballs uint32 = iota
	VolumetricCount
)

// Kinds within the signed distance category
const (
	SDMiniSpheres uint32 = iota
	SDIntersectedRoundCube
	SDSquareTorus
	SDTwistedTorus
	SDCog
	SDCylinder
	SDFractalPyramid
	SDCount
)

// TotalPrimitives is the number of procedural instances in the scene.
const TotalPrimitives = AnalyticCount + VolumetricCount + SDCount

var ErrUnknownPrimitive = errors.New("model: unknown primitive")

// Slot identifies one procedural primitive. Its position in Slots is its instance index.
type Slot struct {
	Category PrimitiveCategory
	Kind     uint32
	Name     string
}

// Slots lists every procedural primitive ordered by instance index: categories in declaration order and kinds
// in declaration order inside each category.
var Slots = []Slot{
	{Analytic, AnalyticAABB, "AABB"},
	{Analytic, AnalyticSpheres, "Spheres"},
	{Volumetric, VolumetricMetaballs, "Metaballs"},
	{SignedDistance, SDMiniSpheres, "MiniSpheres"},
	{SignedDistance, SDIntersectedRoundCube, "IntersectedRoundCube"},
	{SignedDistance, SDSquareTorus, "SquareTorus"},
	{SignedDistance, SDTwistedTorus, "TwistedTorus"},
	{SignedDistance, SDCog, "Cog"},
	{SignedDistance, SDCylinder, "Cylinder"},
	{SignedDistance, SDFractalPyramid, "FractalPyramid"},
}

// CategorySize returns how many kinds a category holds.
func CategorySize(c PrimitiveCategory) uint32 {
	switch c {
	case Analytic:
		return AnalyticCount
	case Volumetric:
		return VolumetricCount
	case SignedDistance:
		return SDCount
	default:
		return 0
	}
}

// CategoryBase returns the instance index of the first kind of c.
func CategoryBase(c PrimitiveCategory) uint32 {
	base := uint32(0)
	for i := PrimitiveCategory(0); i < c && i < CategoryCount; i++ {
		base += CategorySize(i)
	}
	return base
}

// InstanceIndex maps (category, kind) to the flat index used for AABBs, instances, transforms and hit records.
func InstanceIndex(c PrimitiveCategory, kind uint32) (uint32, error) {
	if c >= CategoryCount || kind >= CategorySize(c) {
		return 0, fmt.Errorf("%w: %s kind %d", ErrUnknownPrimitive, c, kind)
	}
	return CategoryBase(c) + kind, nil
}
