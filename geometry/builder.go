// Package geometry creates the scene's input buffers: the plane's triangle data with the face and normal buffers
// the closest hit program reads, and one AABB buffer per procedural primitive.
package geometry

import (
	"fmt"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/log"
	"GPU_procedural_raytracing/model"

	vk "github.com/goki/vulkan"
)

var logger = log.New("geometry")

// SceneGeometry owns every buffer the geometry builder created.
type SceneGeometry struct {
	Vertices *common.Buffer
	Indices  *common.Buffer
	Faces    *common.Buffer
	Normals  *common.Buffer

	Boxes       []model.AABB
	BoxBuffers  []*common.Buffer
	Plane       accel.GeometryDescriptor
	Procedurals []accel.GeometryDescriptor
}

// BottomLevelInputs lists one structure per geometry, the plane first and then the primitives in instance index
// order, matching the instance layout of accel.SceneInstances.
func (g *SceneGeometry) BottomLevelInputs() []accel.BottomLevelInput {
	in := make([]accel.BottomLevelInput, 0, 1+len(g.Procedurals))
	in = append(in, accel.BottomLevelInput{Name: "plane", Geometry: g.Plane})
	for i, p := range g.Procedurals {
		name := fmt.Sprintf("primitive-%d", i)
		if i < len(model.Slots) {
			name = model.Slots[i].Name
		}
		in = append(in, accel.BottomLevelInput{Name: name, Geometry: p})
	}
	return in
}

// Buffers returns every buffer with a display name, for diagnostics.
func (g *SceneGeometry) Buffers() ([]string, []*common.Buffer) {
	names := []string{"plane vertices", "plane indices", "plane faces", "plane normals"}
	bufs := []*common.Buffer{g.Vertices, g.Indices, g.Faces, g.Normals}
	for i, b := range g.BoxBuffers {
		names = append(names, fmt.Sprintf("aabb %d", i))
		bufs = append(bufs, b)
	}
	return names, bufs
}

// Release frees every buffer. Nil buffers, left by a failed build, are skipped.
func (g *SceneGeometry) Release(alloc common.Allocator) {
	for _, b := range append([]*common.Buffer{g.Vertices, g.Indices, g.Faces, g.Normals}, g.BoxBuffers...) {
		if b != nil {
			alloc.Free(b)
		}
	}
	g.BoxBuffers = nil
	g.Vertices, g.Indices, g.Faces, g.Normals = nil, nil, nil, nil
}

// Builder uploads geometry through an allocator.
type Builder struct {
	alloc common.Allocator
}

func NewBuilder(alloc common.Allocator) *Builder {
	return &Builder{alloc: alloc}
}

// Build creates the plane buffers and one AABB buffer per placement. On error nothing stays allocated.
func (b *Builder) Build(grid GridLayout, placements [model.TotalPrimitives]Placement) (*SceneGeometry, error) {
	g := &SceneGeometry{}
	if err := b.buildPlane(g); err != nil {
		g.Release(b.alloc)
		return nil, err
	}
	if err := b.buildProcedurals(g, grid, placements); err != nil {
		g.Release(b.alloc)
		return nil, err
	}
	logger.Infof("scene geometry: %d triangles, %d procedural boxes", g.Plane.PrimitiveCount(), len(g.Boxes))
	return g, nil
}

func (b *Builder) upload(name string, usage vk.BufferUsageFlags, data []byte) (*common.Buffer, error) {
	buf, err := b.alloc.Allocate(usage, vk.DeviceSize(len(data)), common.HostVisibleCoherent)
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", name, err)
	}
	if err = b.alloc.CopyInto(buf, data); err != nil {
		b.alloc.Free(buf)
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return buf, nil
}

func (b *Builder) buildPlane(g *SceneGeometry) error {
	vertices := PlaneVertices()
	indices := PlaneIndices()
	var err error
	if g.Vertices, err = b.upload("plane vertices", common.UsageBuildInput, common.RawBytes(vertices)); err != nil {
		return err
	}
	if g.Indices, err = b.upload("plane indices", common.UsageBuildInput, common.RawBytes(indices)); err != nil {
		return err
	}
	if g.Faces, err = b.upload("plane faces", common.UsageStorage, common.RawBytes(PlaneFaces(indices))); err != nil {
		return err
	}
	if g.Normals, err = b.upload("plane normals", common.UsageStorage, common.RawBytes(PlaneNormals(len(vertices)))); err != nil {
		return err
	}
	g.Plane = accel.NewTriangles(accel.Triangles{
		VertexBuffer: g.Vertices,
		VertexStride: model.VertexStride,
		VertexFormat: vk.FormatR32g32b32Sfloat,
		VertexCount:  uint32(len(vertices)),
		IndexBuffer:  g.Indices,
		IndexType:    vk.IndexTypeUint16,
		IndexCount:   uint32(len(indices)),
	})
	return g.Plane.Validate()
}

func (b *Builder) buildProcedurals(g *SceneGeometry, grid GridLayout, placements [model.TotalPrimitives]Placement) error {
	g.Boxes = ProceduralAABBs(grid, placements)
	for i, box := range g.Boxes {
		buf, err := b.upload(fmt.Sprintf("aabb %d", i), common.UsageBuildInput, common.RawBytes(box))
		if err != nil {
			return err
		}
		g.BoxBuffers = append(g.BoxBuffers, buf)
		desc := accel.NewAABBs(accel.AABBs{Buffer: buf, Stride: model.AABBStride, Count: 1})
		if err = desc.Validate(); err != nil {
			return err
		}
		g.Procedurals = append(g.Procedurals, desc)
		logger.Debugf("%s: min %v max %v", model.Slots[i].Name, box.Min, box.Max)
	}
	return nil
}
