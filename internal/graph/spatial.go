package graph

import (
	"sort"

	"github.com/dhconnelly/rtreego"
)

// systemEntry wraps a system index for R-tree storage.
type systemEntry struct {
	idx int32
	loc rtreego.Point
}

// Bounds implements rtreego.Spatial.
func (e *systemEntry) Bounds() rtreego.Rect {
	return e.loc.ToRect(0)
}

// spatialIndex answers "which systems lie within r metres of system i".
// The tree is built once and only read afterwards.
type spatialIndex struct {
	tree    *rtreego.Rtree
	systems []System
}

func newSpatialIndex(systems []System) *spatialIndex {
	tree := rtreego.NewTree(3, 25, 50) // 3D, min 25, max 50 entries per node
	for i, s := range systems {
		tree.Insert(&systemEntry{idx: int32(i), loc: rtreego.Point{s.X, s.Y, s.Z}})
	}
	return &spatialIndex{tree: tree, systems: systems}
}

// within calls fn for every other system whose distance to system i is at
// most r, in ascending index order. The box query is widened by a margin so
// that systems exactly on the boundary survive the strict rectangle test;
// the squared-distance filter that follows is authoritative.
func (si *spatialIndex) within(i int32, r float64, fn func(j int32, distSq float64)) {
	if r <= 0 || len(si.systems) == 0 {
		return
	}
	c := si.systems[i]
	margin := max(1e3, r*1e-6)
	span := 2 * (r + margin)
	bbox, err := rtreego.NewRect(
		rtreego.Point{c.X - r - margin, c.Y - r - margin, c.Z - r - margin},
		[]float64{span, span, span},
	)
	if err != nil {
		return
	}

	limit := r * r
	results := si.tree.SearchIntersect(bbox)
	hits := make([]int32, 0, len(results))
	for _, item := range results {
		j := item.(*systemEntry).idx
		if j != i {
			hits = append(hits, j)
		}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a] < hits[b] })

	for _, j := range hits {
		s := &si.systems[j]
		dx, dy, dz := c.X-s.X, c.Y-s.Y, c.Z-s.Z
		if d2 := dx*dx + dy*dy + dz*dz; d2 <= limit {
			fn(j, d2)
		}
	}
}
