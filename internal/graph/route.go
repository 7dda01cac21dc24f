package graph

import (
	"sort"
)

// MovementType tags a route step.
type MovementType uint8

const (
	Start MovementType = iota
	Gate
	Warp
	Jump
)

var movementNames = [...]string{Start: "START", Gate: "GATE", Warp: "WARP", Jump: "JUMP"}

func (m MovementType) String() string {
	if int(m) < len(movementNames) {
		return movementNames[m]
	}
	return "UNKNOWN"
}

// Entity references a point of the map: a system (StructureID 0) or a
// structure inside SystemID.
type Entity struct {
	SystemID    int32
	StructureID int64
}

// IsSystem reports whether the entity is a system rather than a structure.
func (e Entity) IsSystem() bool { return e.StructureID == 0 }

// RoutePoint is one step of a route. Cost is the time spent on this step
// alone; Edge is the cost-model classification of the edge taken to get here.
type RoutePoint struct {
	Type   MovementType
	Edge   EdgeKind
	Entity Entity
	Cost   float64
}

// Route is the result of a single-target query. Points[0] is always the
// START point at the origin; Cost is the sum of all step costs in seconds.
type Route struct {
	Points []RoutePoint
	Cost   float64
	Loops  int // nodes expanded by the search
}

// Origin returns the entity the route starts at.
func (r *Route) Origin() Entity { return r.Points[0].Entity }

// Destination returns the entity the route ends at.
func (r *Route) Destination() Entity { return r.Points[len(r.Points)-1].Entity }

// Count returns how many steps of the given type the route contains.
func (r *Route) Count(t MovementType) int {
	n := 0
	for _, p := range r.Points {
		if p.Type == t {
			n++
		}
	}
	return n
}

// Systems returns the distinct systems visited, in order.
func (r *Route) Systems() []int32 {
	var out []int32
	for _, p := range r.Points {
		if len(out) == 0 || out[len(out)-1] != p.Entity.SystemID {
			out = append(out, p.Entity.SystemID)
		}
	}
	return out
}

// DistanceEntry is one reachable entity with its minimum cost.
type DistanceEntry struct {
	Entity Entity
	Cost   float64
}

// DistanceMap maps every entity reachable from Origin to its minimum travel
// time in seconds. Unreachable entities are absent.
type DistanceMap struct {
	Origin  Entity
	costs   map[Entity]float64
	systems map[int32]float64
}

func newDistanceMap(origin Entity, costs map[Entity]float64) *DistanceMap {
	systems := make(map[int32]float64)
	for e, c := range costs {
		if cur, ok := systems[e.SystemID]; !ok || c < cur {
			systems[e.SystemID] = c
		}
	}
	return &DistanceMap{Origin: origin, costs: costs, systems: systems}
}

// Cost returns the minimum time to reach e.
func (m *DistanceMap) Cost(e Entity) (float64, bool) {
	c, ok := m.costs[e]
	return c, ok
}

// System returns the minimum time to reach any point of a system.
func (m *DistanceMap) System(id int32) (float64, bool) {
	c, ok := m.systems[id]
	return c, ok
}

// Len returns the number of reachable entities.
func (m *DistanceMap) Len() int { return len(m.costs) }

// Systems returns a copy of the per-system minimum costs.
func (m *DistanceMap) Systems() map[int32]float64 {
	out := make(map[int32]float64, len(m.systems))
	for id, c := range m.systems {
		out[id] = c
	}
	return out
}

// Entries returns all reachable entities ordered by cost, then system id,
// then structure id.
func (m *DistanceMap) Entries() []DistanceEntry {
	out := make([]DistanceEntry, 0, len(m.costs))
	for e, c := range m.costs {
		out = append(out, DistanceEntry{Entity: e, Cost: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		if out[i].Entity.SystemID != out[j].Entity.SystemID {
			return out[i].Entity.SystemID < out[j].Entity.SystemID
		}
		return out[i].Entity.StructureID < out[j].Entity.StructureID
	})
	return out
}
