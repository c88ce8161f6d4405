package hostbvh

import (
	"encoding/binary"
	"math"
	"sort"

	"GPU_procedural_raytracing/model"

	"github.com/go-gl/mathgl/mgl32"
)

// Node layout, 64 bytes:
//
//	min       vec4 (16)
//	max       vec4 (16)
//	left      i32  (4)
//	right     i32  (4)
//	leafFirst i32  (4)
//	leafCount i32  (4)
//	padding   i32[4]
type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

const NodeSize = 64

func (n *Node) IsLeaf() bool {
	return n.LeafCount > 0
}

func (n *Node) Bounds() model.AABB {
	return model.AABB{Min: n.Min, Max: n.Max}
}

func (n *Node) Bytes() []byte {
	buf := make([]byte, NodeSize)
	putVec3(buf[0:], n.Min)
	putVec3(buf[16:], n.Max)
	binary.LittleEndian.PutUint32(buf[32:], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:], uint32(n.LeafCount))
	return buf
}

func DecodeNode(b []byte) Node {
	return Node{
		Min:       getVec3(b[0:]),
		Max:       getVec3(b[16:]),
		Left:      int32(binary.LittleEndian.Uint32(b[32:])),
		Right:     int32(binary.LittleEndian.Uint32(b[36:])),
		LeafFirst: int32(binary.LittleEndian.Uint32(b[40:])),
		LeafCount: int32(binary.LittleEndian.Uint32(b[44:])),
	}
}

func putVec3(dst []byte, v mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v[i]))
	}
}

func getVec3(b []byte) mgl32.Vec3 {
	var v mgl32.Vec3
	for i := 0; i < 3; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

type item struct {
	bounds   model.AABB
	centroid mgl32.Vec3
	index    int
}

// buildTree builds a binary hierarchy over the boxes by recursive median split along the widest axis. Every leaf
// holds exactly one box and LeafFirst is the box's index in the input. n boxes give 2n-1 nodes, root first.
func buildTree(boxes []model.AABB) []Node {
	if len(boxes) == 0 {
		return nil
	}
	items := make([]item, len(boxes))
	for i, b := range boxes {
		items[i] = item{bounds: b, centroid: b.Center(), index: i}
	}
	nodes := make([]Node, 0, 2*len(boxes)-1)
	recursiveBuild(items, &nodes)
	return nodes
}

func recursiveBuild(items []item, nodes *[]Node) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, Node{Left: -1, Right: -1, LeafFirst: -1})

	bounds := items[0].bounds
	for _, it := range items[1:] {
		bounds = bounds.Union(it.bounds)
	}
	(*nodes)[idx].Min = bounds.Min
	(*nodes)[idx].Max = bounds.Max

	if len(items) == 1 {
		(*nodes)[idx].LeafFirst = int32(items[0].index)
		(*nodes)[idx].LeafCount = 1
		return idx
	}

	extent := bounds.Extent()
	axis := 0
	if extent[1] > extent[axis] {
		axis = 1
	}
	if extent[2] > extent[axis] {
		axis = 2
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	left := recursiveBuild(items[:mid], nodes)
	right := recursiveBuild(items[mid:], nodes)
	(*nodes)[idx].Left = left
	(*nodes)[idx].Right = right
	return idx
}
