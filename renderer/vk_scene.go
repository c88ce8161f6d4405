package renderer

import (
	"bytes"
	"fmt"

	"GPU_procedural_raytracing/accel"
	"GPU_procedural_raytracing/common"
	"GPU_procedural_raytracing/model"
	"GPU_procedural_raytracing/sbt"
	"GPU_procedural_raytracing/vector_math"

	"github.com/olekukonko/tablewriter"
)

// These functions are part of the raytracer but split into their own file as they only look at the scene that
// Initialize produced: descriptor resources, diagnostics and the current animation state.

// Resources lists what the scene descriptor set binds.
func (r *Raytracer) Resources() (Resources, error) {
	if !r.initialized {
		return Resources{}, ErrNotInitialized
	}
	return Resources{
		SceneAddress:        r.structures.Top.Address,
		Output:              r.output,
		SceneConstants:      r.scene.Buffer(),
		Faces:               r.geometry.Faces,
		Normals:             r.geometry.Normals,
		PrimitiveAttributes: r.primitives.Buffer(),
	}, nil
}

func (r *Raytracer) Stats() BuildStats {
	return r.stats
}

func (r *Raytracer) Structures() *accel.Result {
	return r.structures
}

func (r *Raytracer) Layout() sbt.Layout {
	if r.table == nil {
		return sbt.Layout{}
	}
	return r.table.Layout
}

// Elapsed is the animation time of the procedural primitives.
func (r *Raytracer) Elapsed() float32 {
	if r.primitives == nil {
		return 0
	}
	return r.primitives.Elapsed()
}

func (r *Raytracer) Camera() vector_math.Camera {
	return r.scene.Camera
}

func (r *Raytracer) SceneConstants() model.SceneConstants {
	return r.scene.Constants()
}

func (r *Raytracer) PrimitiveTransforms() []model.PerFrameTransform {
	return r.primitives.Transforms()
}

// StructureTable lists the built acceleration structures.
func (r *Raytracer) StructureTable() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Structure", "Level", "Storage", "Scratch", "Address"})
	if r.structures == nil {
		table.Render()
		return buf.String()
	}
	var total uint64
	for _, st := range append(r.structures.Bottom, r.structures.Top) {
		total += st.Sizes.StructureSize
		table.Append([]string{
			st.Name,
			st.Level.String(),
			common.FmtSize(st.Sizes.StructureSize),
			common.FmtSize(st.Sizes.ScratchSize),
			fmt.Sprintf("0x%x", st.Address),
		})
	}
	table.SetFooter([]string{"", "", common.FmtSize(total), common.FmtSize(r.structures.ScratchSize), ""})
	table.Render()
	return buf.String()
}

// BufferTable lists the scene geometry buffers.
func (r *Raytracer) BufferTable() string {
	if r.geometry == nil {
		return ""
	}
	names, bufs := r.geometry.Buffers()
	if r.structures != nil {
		names = append(names, "instances")
		bufs = append(bufs, r.structures.InstanceBuffer)
	}
	if r.table != nil {
		names = append(names, "shader binding table")
		bufs = append(bufs, r.table.Buffer)
	}
	return common.BufferTable(names, bufs)
}
