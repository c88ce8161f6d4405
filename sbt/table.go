package sbt

import (
	"fmt"

	"GPU_procedural_raytracing/common"

	vk "github.com/goki/vulkan"
)

// DispatchRegion is what a trace dispatch reads for one segment.
type DispatchRegion struct {
	Address uint64
	Stride  uint64
	Size    uint64
}

// Table is a packed shader binding table uploaded into a single buffer.
type Table struct {
	Layout Layout
	Buffer *common.Buffer
}

// Build checks the groups of pipeline p against its programs, computes the layout for the scene records, packs
// the handles of p and uploads the result into a new host visible buffer.
func Build(alloc common.Allocator, dev PipelineDevice, p Pipeline, programs []Program, groups []Group, records []HitRecord) (*Table, error) {
	if err := ValidateGroups(groups, programs); err != nil {
		return nil, err
	}
	raygen, miss, _ := Counts(groups)
	layout, err := ComputeLayout(dev.Capabilities(), raygen, miss, uint32(len(records)))
	if err != nil {
		return nil, err
	}
	data, err := Pack(layout, BoundHandles{Device: dev, Pipeline: p}, records)
	if err != nil {
		return nil, err
	}
	buf, err := alloc.Allocate(common.UsageSBT, vk.DeviceSize(layout.Size()), common.HostVisibleCoherent)
	if err != nil {
		return nil, fmt.Errorf("allocate shader binding table: %w", err)
	}
	if err = alloc.CopyInto(buf, data); err != nil {
		alloc.Free(buf)
		return nil, fmt.Errorf("upload shader binding table: %w", err)
	}
	logger.Infof("shader binding table: %s, %d hit records", common.FmtSize(layout.Size()), layout.HitRecordCount)
	logger.Debugf("shader binding table layout:\n%s", layout)
	return &Table{Layout: layout, Buffer: buf}, nil
}

// Regions returns the raygen, miss and hit regions for a dispatch. The callable region is always empty.
func (t *Table) Regions() (raygen DispatchRegion, miss DispatchRegion, hit DispatchRegion) {
	base := t.Buffer.Address
	region := func(r Region) DispatchRegion {
		return DispatchRegion{Address: base + r.Offset, Stride: r.Stride, Size: r.Size}
	}
	// a dispatch reads one raygen record whose stride equals its size
	raygen = DispatchRegion{Address: base + t.Layout.RayGen.Offset, Stride: t.Layout.RayGen.Size, Size: t.Layout.RayGen.Size}
	return raygen, region(t.Layout.Miss), region(t.Layout.Hit)
}

func (t *Table) Release(alloc common.Allocator) {
	alloc.Free(t.Buffer)
}
