package accel

import (
	"context"
	"fmt"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/log"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
)

var logger = log.New("accel")

// BottomLevelInput names one geometry that gets its own bottom level structure.
type BottomLevelInput struct {
	Name     string
	Geometry GeometryDescriptor
}

// InstanceFactory places the built bottom level structures. It runs once the structures have addresses and
// before anything is recorded, and must return exactly the number of instances the request declared.
type InstanceFactory func(bottom []*Structure) ([]InstanceDescriptor, error)

type BuildRequest struct {
	Bottom        []BottomLevelInput
	InstanceCount uint32
	Instances     InstanceFactory
}

// Result holds everything a finished build session publishes. Scratch memory is not part of it, it is released
// when the session ends.
type Result struct {
	SessionID      uuid.UUID
	Bottom         []*Structure
	Top            *Structure
	Instances      []InstanceDescriptor
	InstanceBuffer *common.Buffer
	ScratchSize    uint64
	Trace          Trace
}

// Builder turns geometry into a two level acceleration structure on a Device.
type Builder struct {
	dev   Device
	alloc common.Allocator
}

func NewBuilder(dev Device, alloc common.Allocator) *Builder {
	return &Builder{dev: dev, alloc: alloc}
}

type sessionState uint8

const (
	stateIdle sessionState = iota
	stateSized
	stateAllocated
	stateInstanced
	stateRecorded
	statePublished
	stateFailed
)

var stateNames = [...]string{"idle", "sized", "allocated", "instanced", "recorded", "published", "failed"}

func (s sessionState) String() string {
	if int(s) >= len(stateNames) {
		return fmt.Sprintf("sessionState(%d)", int(s))
	}
	return stateNames[s]
}

// session walks one build through its steps. Each step checks the state it starts from, any error moves the
// session to stateFailed and releases what it allocated.
type session struct {
	b     *Builder
	req   BuildRequest
	state sessionState
	id    uuid.UUID

	bottomSizes []BuildSizes
	topSizes    BuildSizes
	scratchSize uint64

	bottom    []*Structure
	top       *Structure
	scratch   *common.Buffer
	instBuf   *common.Buffer
	instances []InstanceDescriptor

	stream *RecordingStream
}

// Build runs a complete session: query sizes, allocate storage and scratch, place instances, record every build
// into one command stream, submit it, wait, and publish the structures. Any failure aborts the whole session.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*Result, error) {
	s := &session{b: b, req: req, id: uuid.New()}
	logger.Infof("build session %s: %d bottom level structures, %d instances", s.id, len(req.Bottom), req.InstanceCount)

	steps := []func(context.Context) error{
		s.querySizes,
		s.allocate,
		s.writeInstances,
		s.record,
		s.submit,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			s.fail()
			return nil, fmt.Errorf("build session %s: %w", s.id, err)
		}
	}
	return &Result{
		SessionID:      s.id,
		Bottom:         s.bottom,
		Top:            s.top,
		Instances:      s.instances,
		InstanceBuffer: s.instBuf,
		ScratchSize:    s.scratchSize,
		Trace:          s.stream.Trace,
	}, nil
}

func (s *session) expect(state sessionState) error {
	if s.state != state {
		return fmt.Errorf("%w: in state %s, expected %s", ErrOutOfOrder, s.state, state)
	}
	return nil
}

func (s *session) querySizes(context.Context) error {
	if err := s.expect(stateIdle); err != nil {
		return err
	}
	if len(s.req.Bottom) == 0 || s.req.InstanceCount == 0 || s.req.Instances == nil {
		return fmt.Errorf("%w: nothing to build", ErrBuildFailed)
	}
	s.bottomSizes = make([]BuildSizes, len(s.req.Bottom))
	for i, in := range s.req.Bottom {
		if err := in.Geometry.Validate(); err != nil {
			return fmt.Errorf("%s: %w", in.Name, err)
		}
		sizes, err := s.b.dev.BottomLevelSizes(in.Geometry)
		if err != nil {
			return fmt.Errorf("%s: query build sizes: %w", in.Name, err)
		}
		s.bottomSizes[i] = sizes
		s.scratchSize = max(s.scratchSize, sizes.ScratchSize)
	}
	sizes, err := s.b.dev.TopLevelSizes(s.req.InstanceCount)
	if err != nil {
		return fmt.Errorf("top level: query build sizes: %w", err)
	}
	s.topSizes = sizes
	s.scratchSize = max(s.scratchSize, sizes.ScratchSize)
	logger.Debugf("build session %s: scratch %s", s.id, common.FmtSize(s.scratchSize))
	s.state = stateSized
	return nil
}

func (s *session) createStructure(name string, level Level, sizes BuildSizes) (*Structure, error) {
	buf, err := s.b.alloc.Allocate(common.UsageStructure, vk.DeviceSize(sizes.StructureSize), common.DeviceLocal)
	if err != nil {
		return nil, fmt.Errorf("%s: allocate storage: %w", name, err)
	}
	h, err := s.b.dev.CreateStructure(level, buf, sizes.StructureSize)
	if err != nil {
		s.b.alloc.Free(buf)
		return nil, fmt.Errorf("%s: create structure: %w", name, err)
	}
	st := &Structure{Name: name, Level: level, Handle: h, Buffer: buf, Sizes: sizes}
	if st.Address, err = s.b.dev.StructureAddress(h); err != nil {
		s.b.dev.DestroyStructure(h)
		s.b.alloc.Free(buf)
		return nil, fmt.Errorf("%s: structure address: %w", name, err)
	}
	return st, nil
}

func (s *session) allocate(context.Context) error {
	if err := s.expect(stateSized); err != nil {
		return err
	}
	for i, in := range s.req.Bottom {
		st, err := s.createStructure(in.Name, BottomLevel, s.bottomSizes[i])
		if err != nil {
			return err
		}
		s.bottom = append(s.bottom, st)
	}
	top, err := s.createStructure("scene", TopLevel, s.topSizes)
	if err != nil {
		return err
	}
	s.top = top

	if s.scratch, err = s.b.alloc.Allocate(common.UsageScratch, vk.DeviceSize(s.scratchSize), common.DeviceLocal); err != nil {
		return fmt.Errorf("allocate scratch: %w", err)
	}
	instSize := vk.DeviceSize(s.req.InstanceCount) * InstanceStride
	if s.instBuf, err = s.b.alloc.Allocate(common.UsageBuildInput, instSize, common.HostVisibleCoherent); err != nil {
		return fmt.Errorf("allocate instance buffer: %w", err)
	}
	s.state = stateAllocated
	return nil
}

func (s *session) writeInstances(context.Context) error {
	if err := s.expect(stateAllocated); err != nil {
		return err
	}
	instances, err := s.req.Instances(s.bottom)
	if err != nil {
		return fmt.Errorf("place instances: %w", err)
	}
	if uint32(len(instances)) != s.req.InstanceCount {
		return fmt.Errorf("%w: got %d, declared %d", ErrInstanceCount, len(instances), s.req.InstanceCount)
	}
	known := make(map[uint64]bool, len(s.bottom))
	for _, st := range s.bottom {
		known[st.Address] = true
	}
	payload := make([]byte, 0, len(instances)*InstanceStride)
	for i, inst := range instances {
		if !known[inst.StructureAddress] {
			return fmt.Errorf("%w: instance %d -> 0x%x", ErrUnknownReference, i, inst.StructureAddress)
		}
		if inst.RecordOffset > 0xffffff {
			return fmt.Errorf("%w: instance %d offset %d", ErrRecordOffsetRange, i, inst.RecordOffset)
		}
		payload = append(payload, inst.Bytes()...)
	}
	if err = s.b.alloc.CopyInto(s.instBuf, payload); err != nil {
		return fmt.Errorf("upload instances: %w", err)
	}
	s.instances = instances
	s.state = stateInstanced
	return nil
}

func (s *session) record(context.Context) error {
	if err := s.expect(stateInstanced); err != nil {
		return err
	}
	inner, err := s.b.dev.NewCommandStream()
	if err != nil {
		return fmt.Errorf("command stream: %w", err)
	}
	s.stream = &RecordingStream{Inner: inner}
	for i, st := range s.bottom {
		s.stream.BuildBottomLevel(st.Handle, s.req.Bottom[i].Geometry, s.scratch)
		s.stream.Barrier(BuildToBuild)
	}
	s.stream.BuildTopLevel(s.top.Handle, s.instBuf, s.req.InstanceCount, s.scratch)
	s.stream.Barrier(BuildToTrace)

	if err = ValidateOrder(s.stream.Trace); err != nil {
		return err
	}
	s.state = stateRecorded
	return nil
}

func (s *session) submit(ctx context.Context) error {
	if err := s.expect(stateRecorded); err != nil {
		return err
	}
	if err := s.stream.Submit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	s.b.alloc.Free(s.scratch)
	s.scratch = nil
	logger.Noticef("build session %s: published top level structure at 0x%x", s.id, s.top.Address)
	s.state = statePublished
	return nil
}

func (s *session) fail() {
	logger.Errorf("build session %s failed in state %s", s.id, s.state)
	s.state = stateFailed
	s.b.alloc.Free(s.scratch)
	s.b.alloc.Free(s.instBuf)
	for _, st := range append(s.bottom, s.top) {
		if st == nil {
			continue
		}
		s.b.dev.DestroyStructure(st.Handle)
		s.b.alloc.Free(st.Buffer)
	}
	s.bottom, s.top, s.scratch, s.instBuf = nil, nil, nil, nil
}

// Release destroys the published structures and frees their buffers.
func (r *Result) Release(dev Device, alloc common.Allocator) {
	for _, st := range append(r.Bottom, r.Top) {
		dev.DestroyStructure(st.Handle)
		alloc.Free(st.Buffer)
	}
	alloc.Free(r.InstanceBuffer)
}
