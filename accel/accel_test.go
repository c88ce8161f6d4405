package accel

import (
	"context"
	"errors"
	"testing"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/vector_math"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice hands out fixed sizes and records what its streams were asked to do.
type fakeDevice struct {
	next      Handle
	live      map[Handle]*common.Buffer
	submitted Trace
	submitErr error
	failLevel *Level
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{next: 1, live: make(map[Handle]*common.Buffer)}
}

func (d *fakeDevice) BottomLevelSizes(g GeometryDescriptor) (BuildSizes, error) {
	return BuildSizes{StructureSize: 512, ScratchSize: 256 * uint64(g.PrimitiveCount())}, nil
}

func (d *fakeDevice) TopLevelSizes(n uint32) (BuildSizes, error) {
	return BuildSizes{StructureSize: 1024, ScratchSize: 128}, nil
}

func (d *fakeDevice) CreateStructure(level Level, storage *common.Buffer, size uint64) (Handle, error) {
	if d.failLevel != nil && *d.failLevel == level {
		return 0, errors.New("no structure for you")
	}
	h := d.next
	d.next++
	d.live[h] = storage
	return h, nil
}

func (d *fakeDevice) StructureAddress(h Handle) (uint64, error) {
	return d.live[h].Address, nil
}

func (d *fakeDevice) DestroyStructure(h Handle) {
	delete(d.live, h)
}

func (d *fakeDevice) NewCommandStream() (CommandStream, error) {
	return &fakeStream{dev: d}, nil
}

type fakeStream struct {
	dev   *fakeDevice
	trace Trace
}

func (s *fakeStream) BuildBottomLevel(dst Handle, g GeometryDescriptor, scratch *common.Buffer) {
	s.trace = append(s.trace, Op{Kind: OpBuildBottom, Target: dst})
}

func (s *fakeStream) BuildTopLevel(dst Handle, instances *common.Buffer, count uint32, scratch *common.Buffer) {
	s.trace = append(s.trace, Op{Kind: OpBuildTop, Target: dst})
}

func (s *fakeStream) Barrier(b Barrier) {
	s.trace = append(s.trace, Op{Kind: OpBarrier, Barrier: b})
}

func (s *fakeStream) Submit(ctx context.Context) error {
	s.dev.submitted = s.trace
	return s.dev.submitErr
}

func boxGeometry(t *testing.T, alloc common.Allocator, count uint32) GeometryDescriptor {
	buf, err := alloc.Allocate(common.UsageBuildInput, vk.DeviceSize(24*count), common.HostVisibleCoherent)
	require.NoError(t, err)
	return NewAABBs(AABBs{Buffer: buf, Stride: 24, Count: count})
}

func placeAll(bottom []*Structure) ([]InstanceDescriptor, error) {
	out := make([]InstanceDescriptor, len(bottom))
	for i, st := range bottom {
		out[i] = ProceduralInstance(uint32(i), 2, st.Address)
	}
	return out, nil
}

func request(t *testing.T, alloc common.Allocator) BuildRequest {
	return BuildRequest{
		Bottom: []BottomLevelInput{
			{Name: "a", Geometry: boxGeometry(t, alloc, 1)},
			{Name: "b", Geometry: boxGeometry(t, alloc, 3)},
		},
		InstanceCount: 2,
		Instances:     placeAll,
	}
}

func TestBuilderRecordsOrderedSession(t *testing.T) {
	alloc := common.NewHostAllocator(common.DiscreteMemoryProperties())
	dev := newFakeDevice()
	req := request(t, alloc)
	before := alloc.Live()

	res, err := NewBuilder(dev, alloc).Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, uint64(768), res.ScratchSize)
	require.Len(t, dev.submitted, 6)
	assert.Equal(t, []OpKind{OpBuildBottom, OpBarrier, OpBuildBottom, OpBarrier, OpBuildTop, OpBarrier},
		[]OpKind{dev.submitted[0].Kind, dev.submitted[1].Kind, dev.submitted[2].Kind, dev.submitted[3].Kind, dev.submitted[4].Kind, dev.submitted[5].Kind})
	assert.Equal(t, BuildToTrace, dev.submitted[5].Barrier)
	assert.Equal(t, res.Trace, dev.submitted)
	require.NoError(t, ValidateOrder(res.Trace))

	// two bottom, one top, the instance buffer; scratch released
	assert.Equal(t, before+4, alloc.Live())

	mem, err := alloc.Contents(res.InstanceBuffer)
	require.NoError(t, err)
	assert.Equal(t, res.Bottom[1].Address, DecodeInstance(mem[InstanceStride:]).StructureAddress)

	res.Release(dev, alloc)
	assert.Equal(t, before, alloc.Live())
	assert.Empty(t, dev.live)
}

func TestBuilderFailureReleasesEverything(t *testing.T) {
	top := TopLevel
	specs := []struct {
		descr   string
		prepare func(*fakeDevice, *BuildRequest)
		expErr  error
	}{
		{"submit fails", func(d *fakeDevice, r *BuildRequest) { d.submitErr = errors.New("device lost") }, ErrBuildFailed},
		{"top level creation fails", func(d *fakeDevice, r *BuildRequest) { d.failLevel = &top }, nil},
		{"too few instances", func(d *fakeDevice, r *BuildRequest) { r.InstanceCount = 3 }, ErrInstanceCount},
		{"foreign structure", func(d *fakeDevice, r *BuildRequest) {
			r.Instances = func(bottom []*Structure) ([]InstanceDescriptor, error) {
				out, _ := placeAll(bottom)
				out[1].StructureAddress = 0xdead
				return out, nil
			}
		}, ErrUnknownReference},
		{"record offset overflows 24 bits", func(d *fakeDevice, r *BuildRequest) {
			r.Instances = func(bottom []*Structure) ([]InstanceDescriptor, error) {
				out, _ := placeAll(bottom)
				out[0].RecordOffset = 1 << 24
				return out, nil
			}
		}, ErrRecordOffsetRange},
		{"invalid geometry", func(d *fakeDevice, r *BuildRequest) { r.Bottom[1].Geometry.AABBs.Stride = 20 }, ErrInvalidGeometry},
		{"nothing to build", func(d *fakeDevice, r *BuildRequest) { r.Bottom = nil }, ErrBuildFailed},
	}

	for specIndex, spec := range specs {
		alloc := common.NewHostAllocator(common.DiscreteMemoryProperties())
		dev := newFakeDevice()
		req := request(t, alloc)
		before := alloc.Live()
		spec.prepare(dev, &req)

		_, err := NewBuilder(dev, alloc).Build(context.Background(), req)
		require.Error(t, err, "[spec %d] %s", specIndex, spec.descr)
		if spec.expErr != nil {
			assert.ErrorIs(t, err, spec.expErr, "[spec %d] %s", specIndex, spec.descr)
		}
		assert.Equal(t, before, alloc.Live(), "[spec %d] %s: leaked buffers", specIndex, spec.descr)
		assert.Empty(t, dev.live, "[spec %d] %s: leaked structures", specIndex, spec.descr)
	}
}

func TestValidateOrder(t *testing.T) {
	build := func(k OpKind, h Handle) Op { return Op{Kind: k, Target: h} }
	barrier := func(b Barrier) Op { return Op{Kind: OpBarrier, Barrier: b} }

	specs := []struct {
		descr  string
		trace  Trace
		expErr error
	}{
		{
			"ordered session",
			Trace{build(OpBuildBottom, 1), barrier(BuildToBuild), build(OpBuildBottom, 2), barrier(BuildToBuild), build(OpBuildTop, 3), barrier(BuildToTrace)},
			nil,
		},
		{
			"missing barrier between bottom builds",
			Trace{build(OpBuildBottom, 1), build(OpBuildBottom, 2), barrier(BuildToBuild), build(OpBuildTop, 3), barrier(BuildToTrace)},
			ErrMissingBarrier,
		},
		{
			"publish barrier does not order builds",
			Trace{build(OpBuildBottom, 1), barrier(BuildToTrace), build(OpBuildTop, 3), barrier(BuildToTrace)},
			ErrMissingBarrier,
		},
		{
			"bottom after top",
			Trace{build(OpBuildTop, 3), barrier(BuildToBuild), build(OpBuildBottom, 1), barrier(BuildToTrace)},
			ErrTopLevelBeforeBottom,
		},
		{
			"structure built twice",
			Trace{build(OpBuildBottom, 1), barrier(BuildToBuild), build(OpBuildBottom, 1), barrier(BuildToBuild), build(OpBuildTop, 3), barrier(BuildToTrace)},
			ErrDuplicateBuild,
		},
		{
			"no top level",
			Trace{build(OpBuildBottom, 1), barrier(BuildToBuild)},
			ErrNoTopLevel,
		},
		{
			"top level never published",
			Trace{build(OpBuildBottom, 1), barrier(BuildToBuild), build(OpBuildTop, 3), barrier(BuildToBuild)},
			ErrUnpublishedTopLevel,
		},
	}

	for specIndex, spec := range specs {
		err := ValidateOrder(spec.trace)
		if spec.expErr == nil {
			assert.NoError(t, err, "[spec %d] %s", specIndex, spec.descr)
			continue
		}
		assert.ErrorIs(t, err, spec.expErr, "[spec %d] %s", specIndex, spec.descr)
	}
}

func TestSessionStateNames(t *testing.T) {
	assert.Equal(t, "idle", stateIdle.String())
	assert.Equal(t, "failed", stateFailed.String())
	assert.Equal(t, "sessionState(7)", sessionState(7).String())
	assert.Equal(t, "sessionState(255)", sessionState(255).String())
}

func TestBarrierPredicates(t *testing.T) {
	assert.True(t, BuildToBuild.OrdersBuilds())
	assert.False(t, BuildToBuild.PublishesToTrace())
	assert.True(t, BuildToTrace.PublishesToTrace())
	assert.False(t, BuildToTrace.OrdersBuilds())
	assert.False(t, Barrier{}.OrdersBuilds())
}

func TestInstanceEncoding(t *testing.T) {
	inst := InstanceDescriptor{
		Transform:        vector_math.Affine3x4(mgl32.Translate3D(1, 2, 3)),
		CustomIndex:      7,
		Mask:             MaskAll,
		RecordOffset:     5,
		Flags:            InstanceFlagForceOpaque,
		StructureAddress: 0x1000_0100,
	}
	b := inst.Bytes()
	require.Len(t, b, InstanceStride)
	assert.Equal(t, inst, DecodeInstance(b))
	assert.Equal(t, byte(0xff), b[51])
}

func TestSceneInstances(t *testing.T) {
	bottom := make([]*Structure, 11)
	for i := range bottom {
		bottom[i] = &Structure{Address: uint64(0x1000 * (i + 1))}
	}
	floor := mgl32.Vec3{2798, 2, 2798}
	instances, err := SceneInstances(bottom, floor, mgl32.Vec3{-0.5, 0, -0.5}, 2)
	require.NoError(t, err)
	require.Len(t, instances, 11)
	require.NoError(t, ValidateRecordOffsets(instances, 11))

	plane := vector_math.FromAffine3x4(instances[0].Transform)
	assert.Equal(t, mgl32.Vec3{-1399, 0, -1399}, vector_math.Apply(mgl32.Vec3{0, 0, 0}, 1, plane))
	assert.Equal(t, mgl32.Vec3{1399, 0, 1399}, vector_math.Apply(mgl32.Vec3{1, 0, 1}, 1, plane))
	assert.Equal(t, uint32(0), instances[0].RecordOffset)

	for i, inst := range instances[1:] {
		assert.Equal(t, uint32(1+i), inst.RecordOffset)
		assert.Equal(t, bottom[1+i].Address, inst.StructureAddress)
		assert.Equal(t, float32(1), inst.Transform[7])
	}

	assert.ErrorIs(t, ValidateRecordOffsets(instances, 10), ErrRecordOffsetRange)
	instances[4].RecordOffset = 3
	assert.ErrorIs(t, ValidateRecordOffsets(instances, 11), ErrSharedRecordOffset)

	_, err = SceneInstances(bottom[:1], floor, mgl32.Vec3{}, 2)
	assert.ErrorIs(t, err, ErrInstanceCount)
}
