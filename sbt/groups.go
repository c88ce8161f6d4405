// Package sbt lays out and packs the shader binding table: the ray generation, miss and hit group records a
// trace dispatch indexes into. It also owns the shader program registry and the group table built over it.
package sbt

import (
	"fmt"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/log"
	"GPU_procedural_raytracing/model"

	vk "github.com/goki/vulkan"
)

var logger = log.New("sbt")

// Stage is the pipeline stage a program runs in.
type Stage uint8

const (
	StageRayGen Stage = iota
	StageClosestHit
	StageMiss
	StageIntersection
)

var stageNames = [...]string{"raygen", "closest-hit", "miss", "intersection"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", s)
}

// ShaderStageFlags maps the stage to its Vulkan stage bit.
func (s Stage) ShaderStageFlags() vk.ShaderStageFlags {
	switch s {
	case StageRayGen:
		return vk.ShaderStageFlags(common.ShaderStageRaygenBit)
	case StageClosestHit:
		return vk.ShaderStageFlags(common.ShaderStageClosestHitBit)
	case StageMiss:
		return vk.ShaderStageFlags(common.ShaderStageMissBit)
	default:
		return vk.ShaderStageFlags(common.ShaderStageIntersectionBit)
	}
}

// Program is one compiled shader. Code is SPIR-V and Entry its entry point.
type Program struct {
	Name  string
	Stage Stage
	Entry string
	Code  []byte
}

// Program indices in registration order.
const (
	ProgramRayGen = iota
	ProgramClosestHitTriangle
	ProgramClosestHitAABB
	ProgramMiss
	ProgramMissShadow
	ProgramIntersectionAnalytic
	ProgramIntersectionVolumetric
	ProgramIntersectionSignedDistance
	ProgramCount
)

// ProgramTable lists the programs the pipeline registers, in order. Names double as file names in the shader
// directory.
var ProgramTable = [ProgramCount]struct {
	Name  string
	Stage Stage
}{
	{"raygen", StageRayGen},
	{"closest_hit_triangle", StageClosestHit},
	{"closest_hit_aabb", StageClosestHit},
	{"miss", StageMiss},
	{"miss_shadowray", StageMiss},
	{"intersection_analytic", StageIntersection},
	{"intersection_volumetric", StageIntersection},
	{"intersection_signeddistance", StageIntersection},
}

// GroupKind tells general groups (raygen, miss) from the two kinds of hit group.
type GroupKind uint8

const (
	GroupGeneral GroupKind = iota
	GroupTriangles
	GroupProcedural
)

// GroupKey names a shader group. Its value is the group's index in the pipeline.
type GroupKey uint32

const (
	RayGenPrimary GroupKey = iota
	MissPrimary
	MissShadow
	HitTriangle
	HitAnalytic
	HitVolumetric
	HitSignedDistance
	GroupCount
)

var groupNames = [...]string{
	"raygen", "miss", "miss-shadow", "hit-triangle", "hit-analytic", "hit-volumetric", "hit-signed-distance",
}

func (k GroupKey) String() string {
	if int(k) < len(groupNames) {
		return groupNames[k]
	}
	return fmt.Sprintf("group(%d)", k)
}

// Unused marks a group slot without a program.
const Unused = -1

// Group references programs by registration index.
type Group struct {
	Key          GroupKey
	Kind         GroupKind
	General      int
	ClosestHit   int
	AnyHit       int
	Intersection int
}

func general(k GroupKey, program int) Group {
	return Group{Key: k, Kind: GroupGeneral, General: program, ClosestHit: Unused, AnyHit: Unused, Intersection: Unused}
}

func hit(k GroupKey, kind GroupKind, closest int, intersection int) Group {
	return Group{Key: k, Kind: kind, General: Unused, ClosestHit: closest, AnyHit: Unused, Intersection: intersection}
}

// DefaultGroups is the scene's group table in pipeline order.
func DefaultGroups() []Group {
	return []Group{
		general(RayGenPrimary, ProgramRayGen),
		general(MissPrimary, ProgramMiss),
		general(MissShadow, ProgramMissShadow),
		hit(HitTriangle, GroupTriangles, ProgramClosestHitTriangle, Unused),
		hit(HitAnalytic, GroupProcedural, ProgramClosestHitAABB, ProgramIntersectionAnalytic),
		hit(HitVolumetric, GroupProcedural, ProgramClosestHitAABB, ProgramIntersectionVolumetric),
		hit(HitSignedDistance, GroupProcedural, ProgramClosestHitAABB, ProgramIntersectionSignedDistance),
	}
}

// HitGroupFor returns the procedural hit group that intersects primitives of category c.
func HitGroupFor(c model.PrimitiveCategory) (GroupKey, error) {
	switch c {
	case model.Analytic:
		return HitAnalytic, nil
	case model.Volumetric:
		return HitVolumetric, nil
	case model.SignedDistance:
		return HitSignedDistance, nil
	}
	return 0, fmt.Errorf("%w: category %d", model.ErrUnknownPrimitive, c)
}

// IsHit reports whether k is a hit group.
func (k GroupKey) IsHit() bool {
	return k >= HitTriangle && k < GroupCount
}

// ValidateGroups checks that every key sits at its own index, that the keys cover the whole enum and that every
// referenced program exists with the stage its slot requires.
func ValidateGroups(groups []Group, programs []Program) error {
	if len(groups) != int(GroupCount) {
		return fmt.Errorf("%w: %d groups, want %d", ErrGroupMismatch, len(groups), GroupCount)
	}
	check := func(g Group, slot string, index int, stage Stage, required bool) error {
		if index == Unused {
			if required {
				return fmt.Errorf("%w: group %s has no %s program", ErrGroupMismatch, g.Key, slot)
			}
			return nil
		}
		if index < 0 || index >= len(programs) {
			return fmt.Errorf("%w: group %s %s program %d not registered", ErrGroupMismatch, g.Key, slot, index)
		}
		if programs[index].Stage != stage {
			return fmt.Errorf("%w: group %s %s program %q is a %s program", ErrGroupMismatch, g.Key, slot, programs[index].Name, programs[index].Stage)
		}
		return nil
	}
	for i, g := range groups {
		if g.Key != GroupKey(i) {
			return fmt.Errorf("%w: group %s registered at index %d", ErrGroupMismatch, g.Key, i)
		}
		var err error
		switch g.Kind {
		case GroupGeneral:
			if g.Key.IsHit() {
				return fmt.Errorf("%w: hit group %s declared general", ErrGroupMismatch, g.Key)
			}
			want := StageMiss
			if g.Key == RayGenPrimary {
				want = StageRayGen
			}
			err = check(g, "general", g.General, want, true)
		case GroupTriangles, GroupProcedural:
			if !g.Key.IsHit() {
				return fmt.Errorf("%w: general group %s declared as hit group", ErrGroupMismatch, g.Key)
			}
			if err = check(g, "closest hit", g.ClosestHit, StageClosestHit, true); err == nil {
				err = check(g, "intersection", g.Intersection, StageIntersection, g.Kind == GroupProcedural)
			}
			if err == nil && g.Kind == GroupTriangles && g.Intersection != Unused {
				err = fmt.Errorf("%w: triangle group %s has an intersection program", ErrGroupMismatch, g.Key)
			}
		default:
			err = fmt.Errorf("%w: group %s has kind %d", ErrGroupMismatch, g.Key, g.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Counts returns how many raygen, miss and hit groups the table holds.
func Counts(groups []Group) (raygen uint32, miss uint32, hitGroups uint32) {
	for _, g := range groups {
		switch {
		case g.Key == RayGenPrimary:
			raygen++
		case g.Key.IsHit():
			hitGroups++
		default:
			miss++
		}
	}
	return raygen, miss, hitGroups
}
