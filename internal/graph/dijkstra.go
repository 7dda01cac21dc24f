package graph

import (
	"container/heap"
	"math"
)

// hop records how a node was reached.
type hop struct {
	from int32
	kind EdgeKind
	cost float64
}

// search is the state of one uniform-cost query over the composite graph
// (warps inside systems, stargates, direct jumps and bridges). Route and
// distance queries share it; only the stopping rule differs.
type search struct {
	topo    *Topology
	bridges *bridgeState
	model   CostModel
	profile Profile

	origin       int32
	target       int32 // structure node target, -1 if none
	targetSystem int32 // system index target, -1 if none

	// extra holds non-stargate structures (query endpoints) that join the
	// warp set of their system for this query only.
	extra map[int32][]int32

	dist  map[int32]float64
	prev  map[int32]hop
	done  map[int32]bool
	pq    priorityQueue
	jumps map[int32][]indexedEdge // system index -> jump and bridge edges
	loops int
}

func newSearch(topo *Topology, bridges *bridgeState, model CostModel, profile Profile, origin int32) *search {
	s := &search{
		topo:         topo,
		bridges:      bridges,
		model:        model,
		profile:      profile,
		origin:       origin,
		target:       -1,
		targetSystem: -1,
		extra:        make(map[int32][]int32),
		dist:         make(map[int32]float64),
		prev:         make(map[int32]hop),
		done:         make(map[int32]bool),
		jumps:        make(map[int32][]indexedEdge),
	}
	s.addEndpoint(origin)
	return s
}

// toSystem stops the search at the first node inside system index sys.
func (s *search) toSystem(sys int32) {
	s.targetSystem = sys
}

// toNode stops the search when node is settled.
func (s *search) toNode(node int32) {
	s.target = node
	s.addEndpoint(node)
}

func (s *search) addEndpoint(node int32) {
	if !s.topo.isStructureNode(node) {
		return
	}
	st := s.topo.structures[node-int32(len(s.topo.systems))]
	if st.Kind == KindStargate {
		return
	}
	sys := s.topo.nodeSystem(node)
	for _, n := range s.extra[sys] {
		if n == node {
			return
		}
	}
	s.extra[sys] = append(s.extra[sys], node)
}

// run settles nodes in cost order until the target is reached or the
// frontier is exhausted. It returns the settled target node, if any.
func (s *search) run() (int32, bool) {
	s.dist[s.origin] = 0
	heap.Push(&s.pq, pqItem{node: s.origin, cost: 0})

	for s.pq.Len() > 0 {
		item := heap.Pop(&s.pq).(pqItem)
		if s.done[item.node] {
			continue
		}
		if d, ok := s.dist[item.node]; ok && item.cost > d {
			continue
		}
		s.done[item.node] = true
		s.loops++

		if s.isTarget(item.node) {
			return item.node, true
		}
		s.expand(item.node)
	}
	return -1, false
}

func (s *search) isTarget(node int32) bool {
	switch {
	case s.targetSystem >= 0:
		return s.topo.nodeSystem(node) == s.targetSystem
	case s.target >= 0:
		return node == s.target
	}
	return false
}

func (s *search) expand(n int32) {
	sys := s.topo.nodeSystem(n)
	base := s.dist[n]

	for _, m := range s.topo.warpNodes[sys] {
		if m != n {
			s.relax(n, m, base, Edge{Kind: EdgeWarp, Distance: s.topo.warpDistance(n, m)})
		}
	}
	for _, m := range s.extra[sys] {
		if m != n {
			s.relax(n, m, base, Edge{Kind: EdgeWarp, Distance: s.topo.warpDistance(n, m)})
		}
	}

	for _, m := range s.topo.gateTargets(n) {
		s.relax(n, m, base, Edge{Kind: EdgeGate})
	}

	if s.profile.CanJump() {
		for _, e := range s.jumpEdges(sys) {
			s.relax(n, e.to, base, e.edge)
		}
	}
}

// jumpEdges returns the direct jumps of the profile and the bridge edges
// leaving system index sys. Both land on the destination's system node.
func (s *search) jumpEdges(sys int32) []indexedEdge {
	if edges, ok := s.jumps[sys]; ok {
		return edges
	}
	var edges []indexedEdge
	s.topo.spatial.within(sys, s.profile.JumpRange*LightYear, func(j int32, d2 float64) {
		edges = append(edges, indexedEdge{to: j, edge: Edge{
			Kind:     EdgeJump,
			Distance: math.Sqrt(d2),
			Security: s.topo.systems[j].Security,
		}})
	})
	edges = append(edges, s.bridges.edgesFrom(s.topo, sys)...)
	s.jumps[sys] = edges
	return edges
}

func (s *search) relax(from, to int32, base float64, e Edge) {
	if s.done[to] {
		return
	}
	c, ok := s.model.Cost(e, s.profile)
	if !ok {
		return
	}
	next := base + c
	if cur, seen := s.dist[to]; seen && next >= cur {
		return
	}
	s.dist[to] = next
	s.prev[to] = hop{from: from, kind: e.Kind, cost: c}
	heap.Push(&s.pq, pqItem{node: to, cost: next})
}

// route rebuilds the path to a settled node.
func (s *search) route(end int32) *Route {
	var rev []RoutePoint
	for n := end; n != s.origin; {
		h := s.prev[n]
		rev = append(rev, RoutePoint{
			Type:   h.kind.Movement(),
			Edge:   h.kind,
			Entity: s.topo.nodeEntity(n),
			Cost:   h.cost,
		})
		n = h.from
	}

	points := make([]RoutePoint, 0, len(rev)+1)
	points = append(points, RoutePoint{Type: Start, Edge: EdgeNone, Entity: s.topo.nodeEntity(s.origin)})
	for i := len(rev) - 1; i >= 0; i-- {
		points = append(points, rev[i])
	}
	return &Route{Points: points, Cost: s.dist[end], Loops: s.loops}
}

// distances converts the settled search tree into a DistanceMap.
func (s *search) distances() *DistanceMap {
	costs := make(map[Entity]float64, len(s.dist))
	for n, c := range s.dist {
		costs[s.topo.nodeEntity(n)] = c
	}
	return newDistanceMap(s.topo.nodeEntity(s.origin), costs)
}

// Priority queue for Dijkstra, ordered by cost then node index so that
// equal-cost ties resolve the same way on every run.
type pqItem struct {
	node int32
	cost float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
