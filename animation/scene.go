package animation

import (
	"fmt"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/model"
	"GPU_procedural_raytracing/vector_math"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

// Orbit periods in seconds for a full turn around the Y axis.
const (
	CameraOrbitPeriod = 48
	LightOrbitPeriod  = 8
)

// DefaultCamera looks at the origin from above the front of the grid, turned 45 degrees around Y.
func DefaultCamera(aspect float32) vector_math.Camera {
	eye := mgl32.Vec3{0, 5.3, -17}
	at := mgl32.Vec3{}
	right := mgl32.Vec3{1, 0, 0}
	up := at.Sub(eye).Normalize().Cross(right).Normalize()

	turn := mgl32.HomogRotate3DY(mgl32.DegToRad(45))
	return vector_math.Camera{
		Fov:    45,
		Aspect: aspect,
		Near:   0.01,
		Far:    125,
		Eye:    vector_math.Apply(eye, 1, turn),
		At:     at,
		Up:     vector_math.Apply(up, 0, turn),
	}
}

// DefaultLight returns the initial scene lighting.
func DefaultLight() (position mgl32.Vec4, ambient mgl32.Vec4, diffuse mgl32.Vec4) {
	return mgl32.Vec4{0, 18, -20, 0}, mgl32.Vec4{0.25, 0.25, 0.25, 1}, mgl32.Vec4{0.6, 0.6, 0.6, 1}
}

// SceneUpdater owns the scene constants buffer. It orbits the camera and optionally the light and keeps the
// elapsed time in step with the primitive animation.
type SceneUpdater struct {
	alloc common.Allocator
	buf   *common.Buffer

	Camera        vector_math.Camera
	AnimateCamera bool
	AnimateLight  bool

	constants model.SceneConstants
}

func NewSceneUpdater(alloc common.Allocator, camera vector_math.Camera, animateCamera bool, animateLight bool) (*SceneUpdater, error) {
	buf, err := alloc.Allocate(common.UsageUniform, vk.DeviceSize(model.SceneConstantsSize), common.HostVisibleCoherent)
	if err != nil {
		return nil, fmt.Errorf("allocate scene constants: %w", err)
	}
	s := &SceneUpdater{alloc: alloc, buf: buf, Camera: camera, AnimateCamera: animateCamera, AnimateLight: animateLight}
	s.constants.LightPosition, s.constants.LightAmbientColor, s.constants.LightDiffuseColor = DefaultLight()
	if err = s.write(0); err != nil {
		alloc.Free(buf)
		return nil, err
	}
	return s, nil
}

// Update turns camera and light by their share of a full orbit for dt and writes the constants with elapsed as
// the animation time.
func (s *SceneUpdater) Update(dt float32, elapsed float32) error {
	if s.AnimateCamera {
		turn := mgl32.HomogRotate3DY(mgl32.DegToRad(360 * dt / CameraOrbitPeriod))
		s.Camera.Eye = vector_math.Apply(s.Camera.Eye, 1, turn)
		s.Camera.At = vector_math.Apply(s.Camera.At, 1, turn)
		s.Camera.Up = vector_math.Apply(s.Camera.Up, 0, turn)
	}
	if s.AnimateLight {
		turn := mgl32.HomogRotate3DY(mgl32.DegToRad(-360 * dt / LightOrbitPeriod))
		s.constants.LightPosition = turn.Mul4x1(s.constants.LightPosition)
	}
	return s.write(elapsed)
}

func (s *SceneUpdater) write(elapsed float32) error {
	s.constants.ProjectionToWorld = s.Camera.ProjectionToWorld()
	s.constants.CameraPosition = s.Camera.Eye.Vec4(1)
	s.constants.ElapsedTime = elapsed
	if err := s.alloc.CopyInto(s.buf, s.constants.Bytes()); err != nil {
		return fmt.Errorf("upload scene constants: %w", err)
	}
	return nil
}

func (s *SceneUpdater) Constants() model.SceneConstants {
	return s.constants
}

func (s *SceneUpdater) Buffer() *common.Buffer {
	return s.buf
}

func (s *SceneUpdater) Release() {
	s.alloc.Free(s.buf)
	s.buf = nil
}
