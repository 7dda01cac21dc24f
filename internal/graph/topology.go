package graph

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Distance units used throughout the package. Positions are in metres.
const (
	LightYear = 9460730472580800.0 // metres
	AU        = 149597870700.0     // metres
)

// System is a solar system (graph node) with a position in the galactic frame.
type System struct {
	ID       int32
	Name     string
	X, Y, Z  float64 // metres
	RegionID int32
	Security float64 // 0.0 (null) to 1.0 (highsec); highsec >= 0.45
}

// StructureKind classifies in-system entities.
type StructureKind uint8

const (
	KindCelestial StructureKind = iota
	KindStation
	KindStargate
)

func (k StructureKind) String() string {
	switch k {
	case KindStation:
		return "station"
	case KindStargate:
		return "stargate"
	default:
		return "celestial"
	}
}

// Structure is an entity inside a system: a stargate, station or celestial.
// Its position is local to the system, whose sun sits at the origin.
type Structure struct {
	ID       int64
	SystemID int32
	Name     string
	Kind     StructureKind
	X, Y, Z  float64 // metres, system frame
}

// Link is a bidirectional stargate connection between two systems.
// FromGate and ToGate optionally name the stargate structures at each end;
// when both are zero the link joins the systems themselves.
type Link struct {
	From, To         int32
	FromGate, ToGate int64
}

func (l Link) reversed() Link {
	return Link{From: l.To, To: l.From, FromGate: l.ToGate, ToGate: l.FromGate}
}

// Topology is the immutable base map: systems, structures and stargate links.
// It is safe for concurrent use once built.
type Topology struct {
	systems []System         // sorted by ID; position is the system index
	index   map[int32]int32  // systemID -> system index
	byName  map[string]int32 // lowercase name -> systemID
	links   [][]Link         // system index -> incident links, From = that system

	structures  []Structure       // sorted by ID
	structIndex map[int64]int32   // structureID -> structure index
	bySystem    [][]int32         // system index -> structure indexes
	sysGates    [][]int32         // system index -> gate destination system indexes
	structGates map[int32][]int32 // structure index -> gate destination structure indexes
	warpNodes   [][]int32         // system index -> search nodes taking part in warps

	spatial *spatialIndex
}

// NewTopology validates the records and builds the indexed map. Duplicate ids,
// self links and references to unknown systems or gates fail fast.
func NewTopology(systems []System, links []Link, structures []Structure) (*Topology, error) {
	t := &Topology{
		systems:     make([]System, len(systems)),
		index:       make(map[int32]int32, len(systems)),
		byName:      make(map[string]int32, len(systems)),
		structures:  make([]Structure, len(structures)),
		structIndex: make(map[int64]int32, len(structures)),
		structGates: make(map[int32][]int32),
	}

	copy(t.systems, systems)
	sort.Slice(t.systems, func(i, j int) bool { return t.systems[i].ID < t.systems[j].ID })
	for i, s := range t.systems {
		if _, dup := t.index[s.ID]; dup {
			return nil, invalidf("duplicate system id %d", s.ID)
		}
		if !finite(s.X) || !finite(s.Y) || !finite(s.Z) {
			return nil, invalidf("system %d has a non-finite position", s.ID)
		}
		t.index[s.ID] = int32(i)
		if s.Name != "" {
			t.byName[strings.ToLower(s.Name)] = s.ID
		}
	}

	n := len(t.systems)
	t.links = make([][]Link, n)
	t.bySystem = make([][]int32, n)
	t.sysGates = make([][]int32, n)
	t.warpNodes = make([][]int32, n)

	copy(t.structures, structures)
	sort.Slice(t.structures, func(i, j int) bool { return t.structures[i].ID < t.structures[j].ID })
	for i, st := range t.structures {
		if st.ID == 0 {
			return nil, invalidf("structure in system %d has id 0", st.SystemID)
		}
		if _, dup := t.structIndex[st.ID]; dup {
			return nil, invalidf("duplicate structure id %d", st.ID)
		}
		sys, ok := t.index[st.SystemID]
		if !ok {
			return nil, invalidf("structure %d references unknown system %d", st.ID, st.SystemID)
		}
		t.structIndex[st.ID] = int32(i)
		t.bySystem[sys] = append(t.bySystem[sys], int32(i))
	}

	for _, l := range links {
		if err := t.addLink(l); err != nil {
			return nil, err
		}
	}

	for sys := range n {
		nodes := []int32{int32(sys)}
		for _, si := range t.bySystem[sys] {
			if t.structures[si].Kind == KindStargate {
				nodes = append(nodes, t.structureNode(si))
			}
		}
		t.warpNodes[sys] = nodes
	}

	t.spatial = newSpatialIndex(t.systems)
	return t, nil
}

func (t *Topology) addLink(l Link) error {
	from, ok := t.index[l.From]
	if !ok {
		return invalidf("link references unknown system %d", l.From)
	}
	to, ok := t.index[l.To]
	if !ok {
		return invalidf("link references unknown system %d", l.To)
	}
	if from == to {
		return invalidf("self link on system %d", l.From)
	}
	if (l.FromGate == 0) != (l.ToGate == 0) {
		return invalidf("link %d-%d names only one stargate", l.From, l.To)
	}

	if l.FromGate == 0 {
		t.sysGates[from] = append(t.sysGates[from], to)
		t.sysGates[to] = append(t.sysGates[to], from)
	} else {
		fg, err := t.gateOf(l.FromGate, l.From)
		if err != nil {
			return err
		}
		tg, err := t.gateOf(l.ToGate, l.To)
		if err != nil {
			return err
		}
		t.structGates[fg] = append(t.structGates[fg], tg)
		t.structGates[tg] = append(t.structGates[tg], fg)
	}

	t.links[from] = append(t.links[from], l)
	t.links[to] = append(t.links[to], l.reversed())
	return nil
}

func (t *Topology) gateOf(id int64, systemID int32) (int32, error) {
	si, ok := t.structIndex[id]
	if !ok {
		return 0, invalidf("link references unknown stargate %d", id)
	}
	st := t.structures[si]
	if st.Kind != KindStargate || st.SystemID != systemID {
		return 0, invalidf("structure %d is not a stargate of system %d", id, systemID)
	}
	return si, nil
}

// Len returns the number of systems.
func (t *Topology) Len() int { return len(t.systems) }

// System returns the system with the given id.
func (t *Topology) System(id int32) (System, error) {
	i, ok := t.index[id]
	if !ok {
		return System{}, notFound("system", int64(id))
	}
	return t.systems[i], nil
}

// SystemByName looks a system up by case-insensitive name.
func (t *Topology) SystemByName(name string) (System, error) {
	id, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return System{}, fmt.Errorf("%w: system %q", ErrNotFound, name)
	}
	return t.System(id)
}

// Systems returns all systems ordered by id.
func (t *Topology) Systems() []System {
	out := make([]System, len(t.systems))
	copy(out, t.systems)
	return out
}

// Structure returns the structure with the given id.
func (t *Topology) Structure(id int64) (Structure, error) {
	i, ok := t.structIndex[id]
	if !ok {
		return Structure{}, notFound("structure", id)
	}
	return t.structures[i], nil
}

// Structures returns the structures of a system ordered by id.
func (t *Topology) Structures(systemID int32) ([]Structure, error) {
	i, ok := t.index[systemID]
	if !ok {
		return nil, notFound("system", int64(systemID))
	}
	out := make([]Structure, 0, len(t.bySystem[i]))
	for _, si := range t.bySystem[i] {
		out = append(out, t.structures[si])
	}
	return out, nil
}

// Neighbors returns every stargate link incident to a system, oriented so
// that From is the queried system.
func (t *Topology) Neighbors(id int32) ([]Link, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, notFound("system", int64(id))
	}
	return slices.Clone(t.links[i]), nil
}

// Distance returns the straight-line distance between two systems in metres.
func (t *Topology) Distance(a, b int32) (float64, error) {
	ai, ok := t.index[a]
	if !ok {
		return 0, notFound("system", int64(a))
	}
	bi, ok := t.index[b]
	if !ok {
		return 0, notFound("system", int64(b))
	}
	return math.Sqrt(t.distanceSq(ai, bi)), nil
}

// SystemsWithinRange returns the ids of all other systems within rangeLY
// light years of the given system, ordered by id. The boundary is inclusive.
func (t *Topology) SystemsWithinRange(id int32, rangeLY float64) ([]int32, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, notFound("system", int64(id))
	}
	if !(rangeLY > 0) || !finite(rangeLY) {
		return nil, invalidf("range %v must be positive", rangeLY)
	}
	var out []int32
	t.spatial.within(i, rangeLY*LightYear, func(j int32, _ float64) {
		out = append(out, t.systems[j].ID)
	})
	return out, nil
}

// SystemsWithinGates returns all systems reachable from origin within maxJumps
// stargate jumps, mapped to their jump count. When minSecurity > 0 every
// system on the path must have security >= minSecurity.
func (t *Topology) SystemsWithinGates(origin int32, maxJumps int, minSecurity float64) map[int32]int {
	result := make(map[int32]int)
	start, ok := t.index[origin]
	if !ok {
		return result
	}
	result[origin] = 0

	queue := []int32{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		dist := result[t.systems[current].ID]
		if dist >= maxJumps {
			continue
		}
		for _, l := range t.links[current] {
			next := t.index[l.To]
			if minSecurity > 0 && t.systems[next].Security < minSecurity {
				continue
			}
			if _, visited := result[l.To]; !visited {
				result[l.To] = dist + 1
				queue = append(queue, next)
			}
		}
	}
	return result
}

// GateJumps returns the minimum number of stargate jumps between two systems,
// or -1 if no gate path exists.
func (t *Topology) GateJumps(origin, dest int32) int {
	if _, ok := t.index[origin]; !ok {
		return -1
	}
	if _, ok := t.index[dest]; !ok {
		return -1
	}
	if origin == dest {
		return 0
	}
	reached := t.SystemsWithinGates(origin, math.MaxInt32, 0)
	if d, ok := reached[dest]; ok {
		return d
	}
	return -1
}

// Search nodes: indexes [0, len(systems)) are system nodes, the rest are
// structure nodes offset by len(systems).

func (t *Topology) nodeCount() int { return len(t.systems) + len(t.structures) }

func (t *Topology) structureNode(structIdx int32) int32 {
	return int32(len(t.systems)) + structIdx
}

func (t *Topology) isStructureNode(node int32) bool {
	return int(node) >= len(t.systems)
}

// nodeSystem returns the system index a node belongs to.
func (t *Topology) nodeSystem(node int32) int32 {
	if !t.isStructureNode(node) {
		return node
	}
	st := t.structures[node-int32(len(t.systems))]
	return t.index[st.SystemID]
}

// nodeLocal returns the node's position in its system's frame.
func (t *Topology) nodeLocal(node int32) (x, y, z float64) {
	if !t.isStructureNode(node) {
		return 0, 0, 0
	}
	st := t.structures[node-int32(len(t.systems))]
	return st.X, st.Y, st.Z
}

func (t *Topology) nodeEntity(node int32) Entity {
	if !t.isStructureNode(node) {
		return Entity{SystemID: t.systems[node].ID}
	}
	st := t.structures[node-int32(len(t.systems))]
	return Entity{SystemID: st.SystemID, StructureID: st.ID}
}

// gateTargets returns the nodes reachable from node through a stargate.
func (t *Topology) gateTargets(node int32) []int32 {
	if !t.isStructureNode(node) {
		return t.sysGates[node]
	}
	partners := t.structGates[node-int32(len(t.systems))]
	if len(partners) == 0 {
		return nil
	}
	out := make([]int32, len(partners))
	for i, p := range partners {
		out[i] = t.structureNode(p)
	}
	return out
}

// warpDistance returns the in-system distance between two nodes of the same system.
func (t *Topology) warpDistance(a, b int32) float64 {
	ax, ay, az := t.nodeLocal(a)
	bx, by, bz := t.nodeLocal(b)
	dx, dy, dz := ax-bx, ay-by, az-bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (t *Topology) distanceSq(a, b int32) float64 {
	sa, sb := &t.systems[a], &t.systems[b]
	dx, dy, dz := sa.X-sb.X, sa.Y-sb.Y, sa.Z-sb.Z
	return dx*dx + dy*dy + dz*dz
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
