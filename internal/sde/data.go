package sde

import (
	"fmt"
	"sort"
	"strings"

	"eve-nerd/internal/graph"
	"eve-nerd/internal/logger"
)

// Data holds the parsed map, ready to build a graph.Universe from.
type Data struct {
	Systems      []graph.System
	Links        []graph.Link
	Structures   []graph.Structure
	SystemByName map[string]int32 // lowercase name -> systemID
	Regions      map[int32]string // regionID -> name

	systemSet map[int32]string // systemID -> name, while loading
}

func newData() *Data {
	return &Data{
		SystemByName: make(map[string]int32),
		Regions:      make(map[int32]string),
		systemSet:    make(map[int32]string),
	}
}

func (d *Data) addSystem(s graph.System) {
	if _, dup := d.systemSet[s.ID]; dup {
		return
	}
	d.Systems = append(d.Systems, s)
	d.systemSet[s.ID] = s.Name
	if s.Name != "" {
		d.SystemByName[strings.ToLower(s.Name)] = s.ID
	}
}

// sort orders records by id so that identical inputs give identical output.
func (d *Data) sort() {
	sort.Slice(d.Systems, func(i, j int) bool { return d.Systems[i].ID < d.Systems[j].ID })
	sort.Slice(d.Structures, func(i, j int) bool { return d.Structures[i].ID < d.Structures[j].ID })
	sort.Slice(d.Links, func(i, j int) bool {
		a, b := d.Links[i], d.Links[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.FromGate < b.FromGate
	})
}

// Universe builds a routing universe from the loaded map. Extra options
// (typically graph.WithCostModel) are applied after the structures.
func (d *Data) Universe(opts ...graph.Option) (*graph.Universe, error) {
	all := append([]graph.Option{graph.WithStructures(d.Structures)}, opts...)
	u, err := graph.NewUniverse(d.Systems, d.Links, all...)
	if err != nil {
		return nil, fmt.Errorf("build universe: %w", err)
	}
	return u, nil
}

func (d *Data) countKind(k graph.StructureKind) int {
	n := 0
	for _, s := range d.Structures {
		if s.Kind == k {
			n++
		}
	}
	return n
}

func (d *Data) logStats(tag string) {
	logger.Section(tag + " Statistics")
	logger.Stats("Regions", len(d.Regions))
	logger.Stats("Systems", len(d.Systems))
	logger.Stats("Stargate links", len(d.Links))
	logger.Stats("Stargates", d.countKind(graph.KindStargate))
	logger.Stats("Stations", d.countKind(graph.KindStation))
}

// gateRecord is one end of a stargate pair as read from either source.
type gateRecord struct {
	id         int64
	systemID   int32
	name       string
	destGate   int64 // 0 if unknown
	destSystem int32 // 0 if unknown
	pos        position
}

// gateBuilder pairs stargate records into links. Every pair is seen from
// both ends; each becomes a single Link.
type gateBuilder struct {
	gates []gateRecord
	byID  map[int64]int
}

func (b *gateBuilder) add(g gateRecord) {
	if b.byID == nil {
		b.byID = make(map[int64]int)
	}
	if _, dup := b.byID[g.id]; dup {
		return
	}
	b.byID[g.id] = len(b.gates)
	b.gates = append(b.gates, g)
}

// setDestination records that gate id leads to gate dest.
func (b *gateBuilder) setDestination(id, dest int64) bool {
	i, ok := b.byID[id]
	if !ok {
		return false
	}
	b.gates[i].destGate = dest
	return true
}

// links appends stargate structures to d and returns the paired links.
// Gates whose partner gate is unknown still join the two systems directly.
func (b *gateBuilder) links(d *Data) []graph.Link {
	type pair struct{ a, b int32 }
	key := func(x, y int32) pair {
		if x > y {
			x, y = y, x
		}
		return pair{x, y}
	}

	var out []graph.Link
	paired := make(map[pair]bool)
	known := make(map[int64]bool)

	for _, g := range b.gates {
		if _, ok := d.systemSet[g.systemID]; !ok {
			continue
		}
		known[g.id] = true
		name := g.name
		if name == "" {
			name = fmt.Sprintf("Stargate in %s", d.systemSet[g.systemID])
		}
		d.Structures = append(d.Structures, graph.Structure{
			ID:       g.id,
			SystemID: g.systemID,
			Name:     name,
			Kind:     graph.KindStargate,
			X:        g.pos.X,
			Y:        g.pos.Y,
			Z:        g.pos.Z,
		})
	}

	type gatePair struct{ a, b int64 }
	emitted := make(map[gatePair]bool)
	for _, g := range b.gates {
		if !known[g.id] || g.destGate == 0 || !known[g.destGate] {
			continue
		}
		gp := gatePair{min(g.id, g.destGate), max(g.id, g.destGate)}
		if emitted[gp] {
			continue
		}
		emitted[gp] = true
		dest := b.gates[b.byID[g.destGate]]
		if dest.systemID == g.systemID {
			continue
		}
		out = append(out, graph.Link{From: g.systemID, To: dest.systemID, FromGate: g.id, ToGate: dest.id})
		paired[key(g.systemID, dest.systemID)] = true
	}

	for _, g := range b.gates {
		if !known[g.id] || known[g.destGate] {
			continue
		}
		to := g.destSystem
		if _, ok := d.systemSet[to]; !ok || to == g.systemID || paired[key(g.systemID, to)] {
			continue
		}
		out = append(out, graph.Link{From: g.systemID, To: to})
		paired[key(g.systemID, to)] = true
	}
	return out
}
