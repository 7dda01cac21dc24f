package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Universe owns a base map and its bridge registry and answers route and
// distance queries. Independent universes share no state; a Universe is safe
// for concurrent queries, and bridge additions never block them.
type Universe struct {
	topo    *Topology
	bridges *BridgeRegistry
	model   CostModel

	// distances coalesces identical concurrent AllDistances calls.
	distances singleflight.Group
}

type options struct {
	structures []Structure
	model      CostModel
}

// Option configures NewUniverse.
type Option func(*options)

// WithStructures adds in-system structures (stargates, stations, celestials).
func WithStructures(structures []Structure) Option {
	return func(o *options) {
		o.structures = structures
	}
}

// WithCostModel replaces DefaultCostModel.
func WithCostModel(m CostModel) Option {
	return func(o *options) {
		o.model = m
	}
}

// NewUniverse builds a universe from system and gate-link records.
func NewUniverse(systems []System, links []Link, opts ...Option) (*Universe, error) {
	o := options{model: DefaultCostModel()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.model.Validate(); err != nil {
		return nil, err
	}
	topo, err := NewTopology(systems, links, o.structures)
	if err != nil {
		return nil, err
	}
	return &Universe{
		topo:    topo,
		bridges: NewBridgeRegistry(topo),
		model:   o.model,
	}, nil
}

// Topology returns the base map.
func (u *Universe) Topology() *Topology { return u.topo }

// CostModel returns the pricing parameters in use.
func (u *Universe) CostModel() CostModel { return u.model }

// Cost prices a single edge for a profile with the universe's cost model.
func (u *Universe) Cost(e Edge, p Profile) (float64, bool) { return u.model.Cost(e, p) }

// AddStaticBridge connects two systems with a bridge usable by jump-capable profiles.
func (u *Universe) AddStaticBridge(a, b int32) error {
	return u.bridges.AddStatic(a, b)
}

// AddDynamicBridge anchors a bridge of the given range (LY) at a system.
func (u *Universe) AddDynamicBridge(anchor int32, rangeLY float64) error {
	return u.bridges.AddDynamic(anchor, rangeLY)
}

// Bridges lists the registered bridges in insertion order.
func (u *Universe) Bridges() []Bridge { return u.bridges.List() }

// BridgeEdges returns the bridge edges leaving a system.
func (u *Universe) BridgeEdges(systemID int32) ([]BridgeEdge, error) {
	return u.bridges.EdgesFrom(systemID)
}

// Route finds the fastest path between two systems.
func (u *Universe) Route(origin, destination int32, p Profile) (*Route, error) {
	return u.RouteBetween(Entity{SystemID: origin}, Entity{SystemID: destination}, p)
}

// RouteBetween finds the fastest path between two entities. A system
// destination is reached on arrival anywhere in that system.
func (u *Universe) RouteBetween(origin, destination Entity, p Profile) (*Route, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	from, err := u.resolve(origin, "origin")
	if err != nil {
		return nil, err
	}
	to, err := u.resolve(destination, "destination")
	if err != nil {
		return nil, err
	}

	s := newSearch(u.topo, u.bridges.snapshot(), u.model, p, from)
	if destination.IsSystem() {
		s.toSystem(to)
	} else {
		s.toNode(to)
	}
	end, ok := s.run()
	if !ok {
		return nil, fmt.Errorf("%w: %d to %d for %s", ErrUnreachable, origin.SystemID, destination.SystemID, p.Name)
	}
	return s.route(end), nil
}

// AllDistances returns the minimum time from a system to every entity the
// profile can reach.
func (u *Universe) AllDistances(origin int32, p Profile) (*DistanceMap, error) {
	return u.AllDistancesFrom(Entity{SystemID: origin}, p)
}

// AllDistancesFrom is AllDistances for an arbitrary origin entity.
func (u *Universe) AllDistancesFrom(origin Entity, p Profile) (*DistanceMap, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	from, err := u.resolve(origin, "origin")
	if err != nil {
		return nil, err
	}

	snap := u.bridges.snapshot()
	key := fmt.Sprintf("%d:%d:%s:%d", origin.SystemID, origin.StructureID, p.key(), snap.revision)
	v, err, _ := u.distances.Do(key, func() (interface{}, error) {
		s := newSearch(u.topo, snap, u.model, p, from)
		s.run()
		return s.distances(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DistanceMap), nil
}

// RouteQuery is one entry of a batch.
type RouteQuery struct {
	Origin, Destination int32
	Profile             Profile
}

// RouteResult pairs a query with its outcome. Err carries per-query failures
// such as ErrUnreachable; it does not abort the batch.
type RouteResult struct {
	Query RouteQuery
	Route *Route
	Err   error
}

// RouteBatch runs independent route queries on at most workers goroutines
// (unbounded if workers <= 0). Results keep the order of queries. Only a
// cancelled context fails the whole batch.
func (u *Universe) RouteBatch(ctx context.Context, queries []RouteQuery, workers int) ([]RouteResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	results := make([]RouteResult, len(queries))
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := u.Route(q.Origin, q.Destination, q.Profile)
			results[i] = RouteResult{Query: q, Route: r, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolve maps an entity onto its search node.
func (u *Universe) resolve(e Entity, role string) (int32, error) {
	if e.StructureID != 0 {
		si, ok := u.topo.structIndex[e.StructureID]
		if !ok {
			return 0, notFound(role, e.StructureID)
		}
		if e.SystemID != 0 && u.topo.structures[si].SystemID != e.SystemID {
			return 0, notFound(role, e.StructureID)
		}
		return u.topo.structureNode(si), nil
	}
	i, ok := u.topo.index[e.SystemID]
	if !ok {
		return 0, notFound(role, int64(e.SystemID))
	}
	return i, nil
}
