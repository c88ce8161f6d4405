// Package animation keeps the per frame uniform data current: the local space transforms of the procedural
// primitives and the scene constants with camera and light.
package animation

import (
	"fmt"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/log"
	"GPU_procedural_raytracing/model"
	"GPU_procedural_raytracing/vector_math"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

var logger = log.New("animation")

// Clock is the animation time. It only moves when Advance is called.
type Clock struct {
	Elapsed float32
}

func (c *Clock) Advance(dt float32) float32 {
	c.Elapsed += dt
	return c.Elapsed
}

// Policy is how one primitive is shaped and moved inside its box.
type Policy struct {
	Scale   mgl32.Vec3
	Rotates bool
}

var (
	unit     = mgl32.Vec3{1, 1, 1}
	stretchY = mgl32.Vec3{1, 1.5, 1}
	grow15   = mgl32.Vec3{1.5, 1.5, 1.5}
	grow3    = mgl32.Vec3{3, 3, 3}
)

// Policies is indexed by instance index.
var Policies = [model.TotalPrimitives]Policy{
	{Scale: stretchY},
	{Scale: grow15, Rotates: true},
	{Scale: grow15, Rotates: true},
	{Scale: unit},
	{Scale: unit},
	{Scale: grow15},
	{Scale: unit, Rotates: true},
	{Scale: unit, Rotates: true},
	{Scale: stretchY},
	{Scale: grow3},
}

// SpinRate is the rotation speed of rotating primitives in radians per second, clockwise seen from above.
const SpinRate = -2

// Transform places a primitive in the centre of its box at time t.
func Transform(box model.AABB, p Policy, t float32) model.PerFrameTransform {
	rot := mgl32.Ident4()
	if p.Rotates {
		rot = mgl32.HomogRotate3DY(SpinRate * t)
	}
	m := vector_math.TRS(box.Center(), rot, p.Scale)
	return model.PerFrameTransform{LocalToStructure: m, StructureToLocal: m.Inv()}
}

// Updater rewrites the per primitive transform buffer every frame. The buffer is allocated once and never
// resized.
type Updater struct {
	alloc   common.Allocator
	buf     *common.Buffer
	boxes   []model.AABB
	clock   Clock
	animate bool

	transforms []model.PerFrameTransform
	payload    []byte
}

// NewUpdater allocates the transform buffer for boxes and writes the transforms at time zero. When animate is
// false the clock never moves.
func NewUpdater(alloc common.Allocator, boxes []model.AABB, animate bool) (*Updater, error) {
	if len(boxes) != len(Policies) {
		return nil, fmt.Errorf("%w: %d boxes for %d primitives", model.ErrUnknownPrimitive, len(boxes), len(Policies))
	}
	size := vk.DeviceSize(len(boxes) * model.PerFrameTransformSize)
	buf, err := alloc.Allocate(common.UsageUniform, size, common.HostVisibleCoherent)
	if err != nil {
		return nil, fmt.Errorf("allocate primitive attributes: %w", err)
	}
	u := &Updater{
		alloc:      alloc,
		buf:        buf,
		boxes:      boxes,
		animate:    animate,
		transforms: make([]model.PerFrameTransform, len(boxes)),
		payload:    make([]byte, size),
	}
	if err = u.write(); err != nil {
		alloc.Free(buf)
		return nil, err
	}
	return u, nil
}

// Update advances the clock by dt and rewrites every transform.
func (u *Updater) Update(dt float32) error {
	if u.animate {
		u.clock.Advance(dt)
	}
	return u.write()
}

func (u *Updater) write() error {
	t := u.clock.Elapsed
	for i, box := range u.boxes {
		u.transforms[i] = Transform(box, Policies[i], t)
		copy(u.payload[i*model.PerFrameTransformSize:], u.transforms[i].Bytes())
	}
	if err := u.alloc.CopyInto(u.buf, u.payload); err != nil {
		return fmt.Errorf("upload primitive attributes: %w", err)
	}
	return nil
}

func (u *Updater) Elapsed() float32 {
	return u.clock.Elapsed
}

func (u *Updater) Buffer() *common.Buffer {
	return u.buf
}

// Transforms returns the transforms written last, indexed by instance index.
func (u *Updater) Transforms() []model.PerFrameTransform {
	return u.transforms
}

func (u *Updater) Release() {
	u.alloc.Free(u.buf)
	u.buf = nil
}
