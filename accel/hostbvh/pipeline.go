package hostbvh

import (
	"errors"
	"fmt"
	"strings"

	"GPU_procedural_raytracing/sbt"

	"github.com/google/uuid"
)

var ErrUnknownPipeline = errors.New("hostbvh: unknown pipeline")

// handleNamespace scopes the name based UUIDs group handles are derived from.
var handleNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("GPU_procedural_raytracing/shader-group"))

type pipeline struct {
	desc    sbt.PipelineDesc
	handles []byte
}

func (d *Device) Capabilities() sbt.Capabilities {
	return d.caps
}

// CreatePipeline validates the description and derives one handle per group. Handles depend only on the group
// and the programs it references, so two pipelines over the same programs report the same handles.
func (d *Device) CreatePipeline(desc sbt.PipelineDesc) (sbt.Pipeline, error) {
	if err := sbt.ValidateDesc(desc, d.caps); err != nil {
		return 0, err
	}
	hs := int(d.caps.HandleSize)
	p := &pipeline{desc: desc, handles: make([]byte, 0, hs*len(desc.Groups))}
	for i, g := range desc.Groups {
		p.handles = append(p.handles, groupHandle(i, g, desc.Programs, hs)...)
	}
	id := d.nextPipeline
	d.nextPipeline++
	d.pipelines[id] = p
	logger.Debugf("created pipeline %d: %d programs, %d groups, recursion %d", id, len(desc.Programs), len(desc.Groups), desc.MaxRecursionDepth)
	return id, nil
}

func (d *Device) GroupHandles(id sbt.Pipeline, first uint32, count uint32) ([]byte, error) {
	p, ok := d.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPipeline, id)
	}
	if uint64(first)+uint64(count) > uint64(len(p.desc.Groups)) {
		return nil, fmt.Errorf("%w: groups %d+%d of %d", sbt.ErrGroupMismatch, first, count, len(p.desc.Groups))
	}
	hs := d.caps.HandleSize
	out := make([]byte, count*hs)
	copy(out, p.handles[first*hs:(first+count)*hs])
	return out, nil
}

func (d *Device) DestroyPipeline(id sbt.Pipeline) {
	delete(d.pipelines, id)
}

func groupHandle(index int, g sbt.Group, programs []sbt.Program, size int) []byte {
	name := func(i int) string {
		if i == sbt.Unused {
			return "-"
		}
		return programs[i].Name
	}
	key := strings.Join([]string{
		fmt.Sprint(index), fmt.Sprint(g.Kind),
		name(g.General), name(g.ClosestHit), name(g.AnyHit), name(g.Intersection),
	}, "/")
	id := uuid.NewSHA1(handleNamespace, []byte(key))
	out := make([]byte, size)
	for off := 0; off < size; off += len(id) {
		copy(out[off:], id[:])
	}
	return out
}
