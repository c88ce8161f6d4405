package sbt

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/model"

	"github.com/olekukonko/tablewriter"
)

// Capabilities are the device limits the table layout depends on.
type Capabilities struct {
	HandleSize        uint32 `json:"handleSize"`
	BaseAlignment     uint32 `json:"baseAlignment"`
	MaxRecursionDepth uint32 `json:"maxRecursionDepth"`
}

func (c Capabilities) Validate() error {
	switch {
	case c.HandleSize == 0:
		return fmt.Errorf("%w: zero group handle size", ErrInvalidCapabilities)
	case c.BaseAlignment == 0 || bits.OnesCount32(c.BaseAlignment) != 1:
		return fmt.Errorf("%w: base alignment %d is not a power of two", ErrInvalidCapabilities, c.BaseAlignment)
	case c.MaxRecursionDepth == 0:
		return fmt.Errorf("%w: zero max recursion depth", ErrInvalidCapabilities)
	}
	return nil
}

// HitRecordSize is the stride of one hit record: the group handle followed by the material and the instance
// constant of the primitive it shades.
func HitRecordSize(handleSize uint32) uint64 {
	return uint64(handleSize) + model.MaterialRecordSize + model.InstanceConstantSize
}

// Region is one segment of the table.
type Region struct {
	Offset uint64
	Stride uint64
	Size   uint64
}

// Layout is the byte layout of a table. Segments follow each other in raygen, miss, hit order and every segment
// starts on a base aligned offset.
type Layout struct {
	Caps Capabilities

	RayGenCount    uint32
	MissCount      uint32
	HitRecordCount uint32

	RayGen Region
	Miss   Region
	Hit    Region
}

// ComputeLayout sizes the three segments. Empty segments are rejected since a dispatch needs all three.
func ComputeLayout(caps Capabilities, raygenCount uint32, missCount uint32, hitRecordCount uint32) (Layout, error) {
	if err := caps.Validate(); err != nil {
		return Layout{}, err
	}
	if raygenCount == 0 || missCount == 0 || hitRecordCount == 0 {
		return Layout{}, fmt.Errorf("%w: raygen %d, miss %d, hit %d", ErrEmptyTable, raygenCount, missCount, hitRecordCount)
	}
	handle := uint64(caps.HandleSize)
	align := uint64(caps.BaseAlignment)

	l := Layout{Caps: caps, RayGenCount: raygenCount, MissCount: missCount, HitRecordCount: hitRecordCount}
	l.RayGen = Region{Offset: 0, Stride: handle, Size: common.AlignUp(handle*uint64(raygenCount), align)}
	l.Miss = Region{Offset: l.RayGen.Size, Stride: handle, Size: common.AlignUp(handle*uint64(missCount), align)}
	stride := HitRecordSize(caps.HandleSize)
	l.Hit = Region{Offset: l.Miss.Offset + l.Miss.Size, Stride: stride, Size: stride * uint64(hitRecordCount)}
	return l, nil
}

// Size is the total byte size of the table.
func (l Layout) Size() uint64 {
	return l.RayGen.Size + l.Miss.Size + l.Hit.Size
}

// HitRecordOffset is the byte offset of hit record i in the table.
func (l Layout) HitRecordOffset(i uint32) uint64 {
	return l.Hit.Offset + uint64(i)*l.Hit.Stride
}

// String renders the layout as a table for diagnostics.
func (l Layout) String() string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"Segment", "Records", "Offset", "Stride", "Size"})
	table.SetAutoWrapText(false)
	row := func(name string, count uint32, r Region) {
		table.Append([]string{
			name,
			strconv.FormatUint(uint64(count), 10),
			strconv.FormatUint(r.Offset, 10),
			strconv.FormatUint(r.Stride, 10),
			strconv.FormatUint(r.Size, 10),
		})
	}
	row("raygen", l.RayGenCount, l.RayGen)
	row("miss", l.MissCount, l.Miss)
	row("hit", l.HitRecordCount, l.Hit)
	table.SetFooter([]string{"", "", "", "total", strconv.FormatUint(l.Size(), 10)})
	table.Render()
	return sb.String()
}
