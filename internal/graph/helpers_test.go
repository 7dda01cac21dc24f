package graph

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// lineSystems returns n systems 10 LY apart along the x axis with ids 1..n.
func lineSystems(n int) []System {
	out := make([]System, n)
	for i := range out {
		out[i] = System{ID: int32(i + 1), Name: string(rune('A' + i)), X: float64(i) * 10 * LightYear}
	}
	return out
}

// chainLinks links consecutive ids 1-2, 2-3, ..., (n-1)-n.
func chainLinks(n int) []Link {
	var out []Link
	for i := 1; i < n; i++ {
		out = append(out, Link{From: int32(i), To: int32(i + 1)})
	}
	return out
}

func newTestUniverse(t *testing.T, systems []System, links []Link, opts ...Option) *Universe {
	t.Helper()
	u, err := NewUniverse(systems, links, opts...)
	require.NoError(t, err)
	return u
}

func mustProfile(t *testing.T, jump, warp, align float64) Profile {
	t.Helper()
	p, err := NewProfile(jump, warp, align)
	require.NoError(t, err)
	return p
}

// randomMap builds a reproducible map of n systems scattered over a
// 20x20 LY plane with roughly extra random gates on top of a spanning chain.
func randomMap(seed int64, n, extra int) ([]System, []Link) {
	r := rand.New(rand.NewSource(seed))
	systems := make([]System, n)
	for i := range systems {
		systems[i] = System{
			ID: int32(100 + i),
			X:  r.Float64() * 20 * LightYear,
			Y:  r.Float64() * 20 * LightYear,
		}
	}
	var links []Link
	for i := 1; i < n; i++ {
		if r.Intn(3) > 0 {
			links = append(links, Link{From: int32(100 + i - 1), To: int32(100 + i)})
		}
	}
	for i := 0; i < extra; {
		a, b := r.Intn(n), r.Intn(n)
		if a == b {
			continue
		}
		links = append(links, Link{From: int32(100 + a), To: int32(100 + b)})
		i++
	}
	return systems, links
}

// bruteForceDistances runs Bellman-Ford over an explicit system-level edge
// list: gates plus every pair within the profile's jump range.
func bruteForceDistances(systems []System, links []Link, m CostModel, p Profile, origin int32) map[int32]float64 {
	type edge struct {
		from, to int32
		cost     float64
	}
	var edges []edge
	if !p.NoGates {
		for _, l := range links {
			edges = append(edges, edge{l.From, l.To, m.GateCost}, edge{l.To, l.From, m.GateCost})
		}
	}
	if p.CanJump() {
		for _, a := range systems {
			for _, b := range systems {
				if a.ID == b.ID {
					continue
				}
				dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
				d := math.Sqrt(dx*dx + dy*dy + dz*dz)
				if d <= p.JumpRange*LightYear {
					edges = append(edges, edge{a.ID, b.ID, p.AlignTime + m.Jump.Seconds(d/LightYear)})
				}
			}
		}
	}

	dist := map[int32]float64{origin: 0}
	for range systems {
		for _, e := range edges {
			d, ok := dist[e.from]
			if !ok {
				continue
			}
			if cur, seen := dist[e.to]; !seen || d+e.cost < cur {
				dist[e.to] = d + e.cost
			}
		}
	}
	return dist
}
