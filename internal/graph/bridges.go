package graph

import (
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

// BridgeKind distinguishes static point-to-point bridges from dynamic
// range-around-anchor bridges.
type BridgeKind uint8

const (
	StaticBridge BridgeKind = iota
	DynamicBridge
)

func (k BridgeKind) String() string {
	if k == DynamicBridge {
		return "dynamic"
	}
	return "static"
}

// Bridge describes one registered bridge. For static bridges A and B are the
// two systems; for dynamic bridges A is the anchor and Range its reach in LY.
type Bridge struct {
	Kind  BridgeKind
	A, B  int32
	Range float64
}

// BridgeEdge is one traversable edge derived from the registry.
type BridgeEdge struct {
	From, To int32    // system ids
	Kind     EdgeKind // EdgeStaticBridge or EdgeDynamicBridge
	Distance float64  // metres
	Range    float64  // LY, dynamic bridges only
}

// bridgeState is an immutable snapshot of the registry.
type bridgeState struct {
	revision uint64
	static   map[int32][]int32 // system index -> partner system indexes
	anchors  map[int32]float64 // anchor system index -> range in LY
	order    []Bridge          // insertion order, for listing
}

var emptyBridgeState = &bridgeState{
	static:  map[int32][]int32{},
	anchors: map[int32]float64{},
}

// BridgeRegistry holds bridges added after the base map is loaded. Writers
// serialise on a mutex and publish a fresh snapshot; readers load the current
// snapshot once per query and never observe a partial insertion.
type BridgeRegistry struct {
	topo  *Topology
	mu    sync.Mutex
	state atomic.Pointer[bridgeState]
}

// NewBridgeRegistry creates an empty registry over the given topology.
func NewBridgeRegistry(topo *Topology) *BridgeRegistry {
	r := &BridgeRegistry{topo: topo}
	r.state.Store(emptyBridgeState)
	return r
}

func (r *BridgeRegistry) snapshot() *bridgeState {
	return r.state.Load()
}

// Revision increases with every change; identical revisions mean identical bridges.
func (r *BridgeRegistry) Revision() uint64 {
	return r.snapshot().revision
}

// AddStatic inserts a bidirectional bridge between two systems. Adding an
// existing bridge again is a no-op.
func (r *BridgeRegistry) AddStatic(a, b int32) error {
	ai, ok := r.topo.index[a]
	if !ok {
		return notFound("system", int64(a))
	}
	bi, ok := r.topo.index[b]
	if !ok {
		return notFound("system", int64(b))
	}
	if ai == bi {
		return invalidf("static bridge from system %d to itself", a)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	if slices.Contains(cur.static[ai], bi) {
		return nil
	}
	next := cur.clone()
	next.static[ai] = append(slices.Clip(next.static[ai]), bi)
	next.static[bi] = append(slices.Clip(next.static[bi]), ai)
	next.order = append(next.order, Bridge{Kind: StaticBridge, A: a, B: b})
	r.state.Store(next)
	return nil
}

// AddDynamic registers an anchor with a jump range in light years. Registering
// an anchor again keeps the larger of the two ranges.
func (r *BridgeRegistry) AddDynamic(anchor int32, rangeLY float64) error {
	ai, ok := r.topo.index[anchor]
	if !ok {
		return notFound("anchor", int64(anchor))
	}
	if !(rangeLY > 0) || math.IsInf(rangeLY, 0) {
		return invalidf("dynamic bridge range %v must be positive", rangeLY)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	if old, ok := cur.anchors[ai]; ok && old >= rangeLY {
		return nil
	}
	next := cur.clone()
	next.anchors[ai] = rangeLY
	next.order = append(next.order, Bridge{Kind: DynamicBridge, A: anchor, Range: rangeLY})
	r.state.Store(next)
	return nil
}

// List returns the registered bridges in insertion order.
func (r *BridgeRegistry) List() []Bridge {
	return slices.Clone(r.snapshot().order)
}

// EdgesFrom returns every bridge edge leaving a system: its static bridges,
// the virtual edges of its own dynamic range if it is an anchor, and the
// reverse edges to every anchor whose range covers it.
func (r *BridgeRegistry) EdgesFrom(systemID int32) ([]BridgeEdge, error) {
	i, ok := r.topo.index[systemID]
	if !ok {
		return nil, notFound("system", int64(systemID))
	}
	edges := r.snapshot().edgesFrom(r.topo, i)
	out := make([]BridgeEdge, len(edges))
	for k, e := range edges {
		out[k] = BridgeEdge{
			From:     systemID,
			To:       r.topo.systems[e.to].ID,
			Kind:     e.edge.Kind,
			Distance: e.edge.Distance,
			Range:    e.edge.Range,
		}
	}
	return out, nil
}

func (s *bridgeState) clone() *bridgeState {
	next := &bridgeState{
		revision: s.revision + 1,
		static:   maps.Clone(s.static),
		anchors:  maps.Clone(s.anchors),
		order:    slices.Clip(s.order),
	}
	return next
}

// indexedEdge is an edge to a system index, priced later by the cost model.
type indexedEdge struct {
	to   int32
	edge Edge
}

func (s *bridgeState) edgesFrom(t *Topology, i int32) []indexedEdge {
	var out []indexedEdge
	security := func(j int32) float64 { return t.systems[j].Security }

	for _, j := range s.static[i] {
		out = append(out, indexedEdge{to: j, edge: Edge{
			Kind:     EdgeStaticBridge,
			Distance: math.Sqrt(t.distanceSq(i, j)),
			Security: security(j),
		}})
	}

	if rangeLY, ok := s.anchors[i]; ok {
		t.spatial.within(i, rangeLY*LightYear, func(j int32, d2 float64) {
			out = append(out, indexedEdge{to: j, edge: Edge{
				Kind:     EdgeDynamicBridge,
				Distance: math.Sqrt(d2),
				Range:    rangeLY,
				Security: security(j),
			}})
		})
	}

	if len(s.anchors) > 0 {
		anchors := make([]int32, 0, len(s.anchors))
		for a := range s.anchors {
			if a != i {
				anchors = append(anchors, a)
			}
		}
		sort.Slice(anchors, func(x, y int) bool { return anchors[x] < anchors[y] })
		for _, a := range anchors {
			rangeLY := s.anchors[a]
			limit := rangeLY * LightYear
			if d2 := t.distanceSq(i, a); d2 <= limit*limit {
				out = append(out, indexedEdge{to: a, edge: Edge{
					Kind:     EdgeDynamicBridge,
					Distance: math.Sqrt(d2),
					Range:    rangeLY,
					Security: security(a),
				}})
			}
		}
	}
	return out
}
