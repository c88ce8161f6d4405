package hostbvh

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/model"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

type command struct {
	op        accel.OpKind
	dst       accel.Handle
	geometry  accel.GeometryDescriptor
	instances *common.Buffer
	count     uint32
	scratch   *common.Buffer
	barrier   accel.Barrier
}

// stream records commands and replays them in order on Submit. It tracks whether the last build has been ordered
// by a barrier, since every build reuses the same scratch memory.
type stream struct {
	dev      *Device
	commands []command

	unordered bool
	touched   []*structure
}

func (s *stream) BuildBottomLevel(dst accel.Handle, g accel.GeometryDescriptor, scratch *common.Buffer) {
	s.commands = append(s.commands, command{op: accel.OpBuildBottom, dst: dst, geometry: g, scratch: scratch})
}

func (s *stream) BuildTopLevel(dst accel.Handle, instances *common.Buffer, count uint32, scratch *common.Buffer) {
	s.commands = append(s.commands, command{op: accel.OpBuildTop, dst: dst, instances: instances, count: count, scratch: scratch})
}

func (s *stream) Barrier(b accel.Barrier) {
	s.commands = append(s.commands, command{op: accel.OpBarrier, barrier: b})
}

// Submit executes the recorded commands and returns once all of them completed, the first one failed, or ctx
// was cancelled between two commands.
func (s *stream) Submit(ctx context.Context) error {
	for i, c := range s.commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch c.op {
		case accel.OpBarrier:
			s.barrier(c.barrier)
		case accel.OpBuildBottom:
			err = s.buildBottom(c)
		case accel.OpBuildTop:
			err = s.buildTop(c)
		}
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.op, err)
		}
	}
	logger.Debugf("executed %d commands", len(s.commands))
	return nil
}

func (s *stream) barrier(b accel.Barrier) {
	if b.OrdersBuilds() {
		s.unordered = false
	}
	if b.PublishesToTrace() {
		for _, st := range s.touched {
			st.published = true
		}
	}
}

func (s *stream) begin(c command, level accel.Level, primitives uint32) (*structure, error) {
	if s.unordered {
		return nil, ErrScratchHazard
	}
	st, err := s.dev.lookup(c.dst)
	if err != nil {
		return nil, err
	}
	if st.level != level {
		return nil, fmt.Errorf("%w: structure is %s level", ErrLevelMismatch, st.level)
	}
	if st.built {
		return nil, ErrAlreadyBuilt
	}
	if c.scratch == nil || c.scratch.Usage&vk.BufferUsageFlags(common.BufferUsageShaderDeviceAddressBit) == 0 {
		return nil, fmt.Errorf("%w: scratch", ErrBadUsage)
	}
	if need := uint64(primitives) * scratchRecordSize; uint64(c.scratch.Size) < need {
		return nil, fmt.Errorf("%w: %d < %d", ErrScratchTooSmall, c.scratch.Size, need)
	}
	return st, nil
}

// stage writes the primitive boxes to scratch and reads them back, which is where a racing build would clobber
// them.
func (s *stream) stage(scratch *common.Buffer, boxes []model.AABB) ([]model.AABB, error) {
	for i, b := range boxes {
		rec := make([]byte, scratchRecordSize)
		putVec3(rec[0:], b.Min)
		putVec3(rec[16:], b.Max)
		if err := s.dev.alloc.DeviceWrite(scratch, uint64(i*scratchRecordSize), rec); err != nil {
			return nil, err
		}
	}
	mem, err := s.dev.alloc.Contents(scratch)
	if err != nil {
		return nil, err
	}
	out := make([]model.AABB, len(boxes))
	for i := range out {
		rec := mem[i*scratchRecordSize:]
		out[i] = model.AABB{Min: getVec3(rec[0:]), Max: getVec3(rec[16:])}
	}
	return out, nil
}

func (s *stream) finish(st *structure, payload []byte, nodes []Node) error {
	if uint64(len(payload)) > st.size {
		return fmt.Errorf("%w: %d > %d", ErrStorageTooSmall, len(payload), st.size)
	}
	if err := s.dev.alloc.DeviceWrite(st.storage, 0, payload); err != nil {
		return err
	}
	st.built = true
	st.published = false
	st.bounds = nodes[0].Bounds()
	s.unordered = true
	s.touched = append(s.touched, st)
	return nil
}

func (s *stream) buildBottom(c command) error {
	st, err := s.begin(c, accel.BottomLevel, c.geometry.PrimitiveCount())
	if err != nil {
		return err
	}
	boxes, err := s.primitiveBounds(c.geometry)
	if err != nil {
		return err
	}
	if boxes, err = s.stage(c.scratch, boxes); err != nil {
		return err
	}
	nodes := buildTree(boxes)
	payload := writeHeader(accel.BottomLevel, nodes, len(boxes))
	for i := range nodes {
		payload = append(payload, nodes[i].Bytes()...)
	}
	return s.finish(st, payload, nodes)
}

func (s *stream) buildTop(c command) error {
	st, err := s.begin(c, accel.TopLevel, c.count)
	if err != nil {
		return err
	}
	mem, err := s.dev.alloc.Contents(c.instances)
	if err != nil {
		return err
	}
	if uint64(len(mem)) < uint64(c.count)*accel.InstanceStride {
		return fmt.Errorf("%w: instance buffer holds fewer than %d instances", accel.ErrInvalidGeometry, c.count)
	}
	instances := make([]accel.InstanceDescriptor, c.count)
	boxes := make([]model.AABB, c.count)
	for i := range instances {
		raw := mem[i*accel.InstanceStride : (i+1)*accel.InstanceStride]
		instances[i] = accel.DecodeInstance(raw)
		h, ok := s.dev.byAddress[instances[i].StructureAddress]
		if !ok {
			return fmt.Errorf("%w: instance %d -> 0x%x", ErrUnbuiltReference, i, instances[i].StructureAddress)
		}
		blas := s.dev.structures[h]
		if blas.level != accel.BottomLevel || !blas.built {
			return fmt.Errorf("%w: instance %d -> structure %d", ErrUnbuiltReference, i, h)
		}
		boxes[i] = instanceBounds(instances[i], blas.bounds)
	}
	if boxes, err = s.stage(c.scratch, boxes); err != nil {
		return err
	}
	nodes := buildTree(boxes)
	payload := writeHeader(accel.TopLevel, nodes, len(instances))
	for i := range nodes {
		payload = append(payload, nodes[i].Bytes()...)
	}
	for i := range instances {
		payload = append(payload, instances[i].Bytes()...)
	}
	return s.finish(st, payload, nodes)
}

func (s *stream) primitiveBounds(g accel.GeometryDescriptor) ([]model.AABB, error) {
	switch g.Kind {
	case accel.KindAABBs:
		mem, err := s.dev.alloc.Contents(g.AABBs.Buffer)
		if err != nil {
			return nil, err
		}
		out := make([]model.AABB, g.AABBs.Count)
		for i := range out {
			rec := mem[i*int(g.AABBs.Stride):]
			out[i] = model.AABB{Min: readFloat3(rec[0:]), Max: readFloat3(rec[12:])}
		}
		return out, nil
	default:
		t := g.Triangles
		vertices, err := s.dev.alloc.Contents(t.VertexBuffer)
		if err != nil {
			return nil, err
		}
		indices, err := s.dev.alloc.Contents(t.IndexBuffer)
		if err != nil {
			return nil, err
		}
		index := func(i uint32) uint32 {
			if t.IndexType == vk.IndexTypeUint16 {
				return uint32(binary.LittleEndian.Uint16(indices[i*2:]))
			}
			return binary.LittleEndian.Uint32(indices[i*4:])
		}
		out := make([]model.AABB, t.IndexCount/3)
		for tri := range out {
			for k := uint32(0); k < 3; k++ {
				vi := index(uint32(tri)*3 + k)
				if vi >= t.VertexCount {
					return nil, fmt.Errorf("%w: index %d out of %d vertices", accel.ErrInvalidGeometry, vi, t.VertexCount)
				}
				p := readFloat3(vertices[vi*t.VertexStride:])
				if k == 0 {
					out[tri] = model.AABB{Min: p, Max: p}
				} else {
					out[tri] = out[tri].Union(model.AABB{Min: p, Max: p})
				}
			}
		}
		return out, nil
	}
}

func readFloat3(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}
