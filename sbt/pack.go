package sbt

import (
	"fmt"

	"GPU_procedural_raytracing/model"
)

// HandleSource returns the opaque handles of count consecutive groups starting at first, tightly packed.
type HandleSource interface {
	GroupHandles(first uint32, count uint32) ([]byte, error)
}

// HitRecord is the content of one hit segment entry.
type HitRecord struct {
	Group    GroupKey
	Material model.MaterialRecord
	Constant model.InstanceConstant
}

// SceneHitRecords returns the hit records of the scene: the plane first, then every procedural primitive in
// instance index order. The record index of a primitive is therefore 1 + its instance index.
func SceneHitRecords() ([]HitRecord, error) {
	records := make([]HitRecord, 0, 1+model.TotalPrimitives)
	records = append(records, HitRecord{Group: HitTriangle, Material: model.PlaneMaterial()})
	materials := model.PrimitiveMaterials()
	constants := model.PrimitiveConstants()
	for i, s := range model.Slots {
		g, err := HitGroupFor(s.Category)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		records = append(records, HitRecord{Group: g, Material: materials[i], Constant: constants[i]})
	}
	return records, nil
}

// Pack writes the table bytes for layout l. The raygen and miss segments hold the handles of the general groups
// in group order, the hit segment one record per entry of records. Bytes not covered by a record stay zero, so
// equal inputs always pack to equal bytes.
func Pack(l Layout, handles HandleSource, records []HitRecord) ([]byte, error) {
	if uint32(len(records)) != l.HitRecordCount {
		return nil, fmt.Errorf("%w: %d records for %d slots", ErrRecordCount, len(records), l.HitRecordCount)
	}
	hs := uint64(l.Caps.HandleSize)
	out := make([]byte, l.Size())

	general, err := fetch(handles, uint32(RayGenPrimary), l.RayGenCount+l.MissCount, hs)
	if err != nil {
		return nil, err
	}
	copy(out[l.RayGen.Offset:], general[:hs*uint64(l.RayGenCount)])
	copy(out[l.Miss.Offset:], general[hs*uint64(l.RayGenCount):])

	cache := make(map[GroupKey][]byte)
	for i, r := range records {
		if !r.Group.IsHit() {
			return nil, fmt.Errorf("%w: hit record %d uses %s", ErrGroupMismatch, i, r.Group)
		}
		h, ok := cache[r.Group]
		if !ok {
			if h, err = fetch(handles, uint32(r.Group), 1, hs); err != nil {
				return nil, err
			}
			cache[r.Group] = h
		}
		off := l.HitRecordOffset(uint32(i))
		copy(out[off:], h)
		copy(out[off+hs:], r.Material.Bytes())
		copy(out[off+hs+model.MaterialRecordSize:], r.Constant.Bytes())
	}
	logger.Debugf("packed %d bytes: %d hit records over %d handle bytes each", len(out), len(records), hs)
	return out, nil
}

func fetch(handles HandleSource, first uint32, count uint32, handleSize uint64) ([]byte, error) {
	h, err := handles.GroupHandles(first, count)
	if err != nil {
		return nil, fmt.Errorf("group handles %d..%d: %w", first, first+count-1, err)
	}
	if uint64(len(h)) != handleSize*uint64(count) {
		return nil, fmt.Errorf("%w: %d bytes for %d handles of %d", ErrHandleSize, len(h), count, handleSize)
	}
	return h, nil
}
