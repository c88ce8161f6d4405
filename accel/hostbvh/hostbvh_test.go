package hostbvh

import (
	"context"
	"testing"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/geometry"
	"GPU_procedural_raytracing/model"
	"GPU_procedural_raytracing/sbt"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCaps = sbt.Capabilities{HandleSize: 32, BaseAlignment: 64, MaxRecursionDepth: 31}

var sceneGrid = geometry.GridLayout{Shape: [3]uint32{4, 1, 4}, PrimitiveWidth: 2, Spacing: 2}

func TestBuildTree(t *testing.T) {
	boxes := geometry.ProceduralAABBs(sceneGrid, geometry.DefaultPlacements())
	nodes := buildTree(boxes)
	require.Len(t, nodes, 2*len(boxes)-1)

	// the square torus sits 0.1 cells below the grid
	root := nodes[0].Bounds()
	assert.Equal(t, float32(-7), root.Min.X())
	assert.InDelta(t, -1.4, root.Min.Y(), 1e-5)
	assert.Equal(t, float32(-7), root.Min.Z())
	assert.Equal(t, mgl32.Vec3{7, 5, 7}, root.Max)

	seen := make(map[int32]bool)
	for _, n := range nodes {
		if n.IsLeaf() {
			assert.Equal(t, boxes[n.LeafFirst], n.Bounds())
			seen[n.LeafFirst] = true
			continue
		}
		for _, child := range []int32{n.Left, n.Right} {
			c := nodes[child].Bounds()
			assert.Equal(t, n.Bounds(), n.Bounds().Union(c), "child escapes its parent")
		}
	}
	assert.Len(t, seen, len(boxes))
}

func TestNodeEncoding(t *testing.T) {
	n := Node{Min: mgl32.Vec3{-1, -2, -3}, Max: mgl32.Vec3{1, 2, 3}, Left: 1, Right: 2, LeafFirst: -1}
	b := n.Bytes()
	assert.Len(t, b, NodeSize)
	assert.Equal(t, n, DecodeNode(b))
}

type scene struct {
	alloc    *common.HostAllocator
	dev      *Device
	geometry *geometry.SceneGeometry
}

func newScene(t *testing.T) *scene {
	alloc := common.NewHostAllocator(common.DiscreteMemoryProperties())
	g, err := geometry.NewBuilder(alloc).Build(sceneGrid, geometry.DefaultPlacements())
	require.NoError(t, err)
	return &scene{alloc: alloc, dev: NewDevice(alloc, testCaps), geometry: g}
}

func (s *scene) request() accel.BuildRequest {
	floor := sceneGrid
	floor.Shape = [3]uint32{700, 1, 700}
	return accel.BuildRequest{
		Bottom:        s.geometry.BottomLevelInputs(),
		InstanceCount: 1 + model.TotalPrimitives,
		Instances: func(bottom []*accel.Structure) ([]accel.InstanceDescriptor, error) {
			return accel.SceneInstances(bottom, floor.Span(floor.Shape), mgl32.Vec3{-0.5, 0, -0.5}, sceneGrid.PrimitiveWidth)
		},
	}
}

func TestSceneBuild(t *testing.T) {
	s := newScene(t)
	before := s.alloc.Live()

	res, err := accel.NewBuilder(s.dev, s.alloc).Build(context.Background(), s.request())
	require.NoError(t, err)

	// storage for 11 + 1 structures and the instance buffer, scratch is gone
	assert.Equal(t, before+len(res.Bottom)+2, s.alloc.Live())
	require.Len(t, res.Bottom, 11)
	for _, st := range append(res.Bottom, res.Top) {
		assert.True(t, s.dev.Built(st.Handle), st.Name)
		assert.True(t, s.dev.Published(st.Handle), st.Name)
	}

	metaballs, err := s.dev.Bounds(res.Bottom[3].Handle)
	require.NoError(t, err)
	assert.Equal(t, model.AABB{Min: mgl32.Vec3{-7, -1, -7}, Max: mgl32.Vec3{-4, 2, -4}}, metaballs)

	top, err := s.dev.Bounds(res.Top.Handle)
	require.NoError(t, err)
	assert.Equal(t, float32(-1399), top.Min.X())
	assert.InDelta(t, -0.4, top.Min.Y(), 1e-5)
	assert.Equal(t, float32(-1399), top.Min.Z())
	assert.Equal(t, mgl32.Vec3{1399, 6, 1399}, top.Max)

	nodes, err := s.dev.Nodes(res.Top.Handle)
	require.NoError(t, err)
	assert.Len(t, nodes, 21)

	instances, err := s.dev.Instances(res.Top.Handle)
	require.NoError(t, err)
	assert.Equal(t, res.Instances, instances)
	require.NoError(t, accel.ValidateRecordOffsets(instances, 11))

	res.Release(s.dev, s.alloc)
	s.geometry.Release(s.alloc)
	assert.Zero(t, s.alloc.Live())
}

func (s *scene) structure(t *testing.T, level accel.Level, sizes accel.BuildSizes) (accel.Handle, *common.Buffer) {
	buf, err := s.alloc.Allocate(common.UsageStructure, vk.DeviceSize(sizes.StructureSize), common.DeviceLocal)
	require.NoError(t, err)
	h, err := s.dev.CreateStructure(level, buf, sizes.StructureSize)
	require.NoError(t, err)
	return h, buf
}

func (s *scene) scratch(t *testing.T, size uint64) *common.Buffer {
	buf, err := s.alloc.Allocate(common.UsageScratch, vk.DeviceSize(size), common.DeviceLocal)
	require.NoError(t, err)
	return buf
}

func TestBuildsWithoutBarrierRace(t *testing.T) {
	s := newScene(t)
	g := s.geometry.Procedurals

	sizes, err := s.dev.BottomLevelSizes(g[0])
	require.NoError(t, err)
	a, _ := s.structure(t, accel.BottomLevel, sizes)
	b, _ := s.structure(t, accel.BottomLevel, sizes)
	scratch := s.scratch(t, sizes.ScratchSize)

	stream, err := s.dev.NewCommandStream()
	require.NoError(t, err)
	stream.BuildBottomLevel(a, g[0], scratch)
	stream.Barrier(accel.BuildToTrace)
	stream.BuildBottomLevel(b, g[1], scratch)
	assert.ErrorIs(t, stream.Submit(context.Background()), ErrScratchHazard)
	assert.True(t, s.dev.Built(a))
	assert.False(t, s.dev.Built(b))
}

func TestTopLevelNeedsBuiltBottomLevel(t *testing.T) {
	s := newScene(t)
	g := s.geometry.Procedurals[0]

	sizes, err := s.dev.BottomLevelSizes(g)
	require.NoError(t, err)
	blas, _ := s.structure(t, accel.BottomLevel, sizes)
	addr, err := s.dev.StructureAddress(blas)
	require.NoError(t, err)

	topSizes, err := s.dev.TopLevelSizes(1)
	require.NoError(t, err)
	tlas, _ := s.structure(t, accel.TopLevel, topSizes)

	instBuf, err := s.alloc.Allocate(common.UsageBuildInput, accel.InstanceStride, common.HostVisibleCoherent)
	require.NoError(t, err)
	require.NoError(t, s.alloc.CopyInto(instBuf, accel.ProceduralInstance(0, 2, addr).Bytes()))

	stream, err := s.dev.NewCommandStream()
	require.NoError(t, err)
	stream.BuildTopLevel(tlas, instBuf, 1, s.scratch(t, topSizes.ScratchSize))
	assert.ErrorIs(t, stream.Submit(context.Background()), ErrUnbuiltReference)
}

func TestSubmitHonoursCancellation(t *testing.T) {
	s := newScene(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := accel.NewBuilder(s.dev, s.alloc).Build(ctx, s.request())
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, accel.ErrBuildFailed)
}

func TestCreateStructureChecksStorage(t *testing.T) {
	s := newScene(t)
	buf, err := s.alloc.Allocate(common.UsageBuildInput, 256, common.DeviceLocal)
	require.NoError(t, err)
	_, err = s.dev.CreateStructure(accel.BottomLevel, buf, 256)
	assert.ErrorIs(t, err, ErrBadUsage)

	buf, err = s.alloc.Allocate(common.UsageStructure, 256, common.DeviceLocal)
	require.NoError(t, err)
	_, err = s.dev.CreateStructure(accel.BottomLevel, buf, 512)
	assert.ErrorIs(t, err, ErrStorageTooSmall)
}

func testPrograms(t *testing.T) []sbt.Program {
	programs, err := sbt.NewPrograms(func(string) ([]byte, error) { return sbt.EmptyModule(), nil })
	require.NoError(t, err)
	return programs
}

func TestPipelineHandles(t *testing.T) {
	dev := NewDevice(common.NewHostAllocator(common.DiscreteMemoryProperties()), testCaps)
	desc := sbt.PipelineDesc{Programs: testPrograms(t), Groups: sbt.DefaultGroups(), MaxRecursionDepth: 3}

	p1, err := dev.CreatePipeline(desc)
	require.NoError(t, err)
	p2, err := dev.CreatePipeline(desc)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	h1, err := dev.GroupHandles(p1, 0, uint32(sbt.GroupCount))
	require.NoError(t, err)
	h2, err := dev.GroupHandles(p2, 0, uint32(sbt.GroupCount))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	require.Len(t, h1, int(sbt.GroupCount)*32)

	distinct := make(map[string]bool)
	for i := 0; i < int(sbt.GroupCount); i++ {
		distinct[string(h1[i*32:(i+1)*32])] = true
	}
	assert.Len(t, distinct, int(sbt.GroupCount))

	one, err := dev.GroupHandles(p1, uint32(sbt.HitVolumetric), 1)
	require.NoError(t, err)
	assert.Equal(t, h1[5*32:6*32], one)

	_, err = dev.GroupHandles(p1, 6, 2)
	assert.ErrorIs(t, err, sbt.ErrGroupMismatch)

	dev.DestroyPipeline(p1)
	_, err = dev.GroupHandles(p1, 0, 1)
	assert.ErrorIs(t, err, ErrUnknownPipeline)
}

func TestCreatePipelineValidates(t *testing.T) {
	dev := NewDevice(common.NewHostAllocator(common.DiscreteMemoryProperties()), testCaps)

	_, err := dev.CreatePipeline(sbt.PipelineDesc{Programs: testPrograms(t), Groups: sbt.DefaultGroups(), MaxRecursionDepth: 32})
	assert.ErrorIs(t, err, sbt.ErrRecursionDepth)

	programs := testPrograms(t)
	programs[3].Code = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	_, err = dev.CreatePipeline(sbt.PipelineDesc{Programs: programs, Groups: sbt.DefaultGroups(), MaxRecursionDepth: 3})
	assert.ErrorIs(t, err, sbt.ErrInvalidProgram)
}
