package inspect

import "github.com/rawblock/mev-inspect-engine/pkg/models"

// ActorGraph is a weighted union-find over the identity space
// {EOA} ∪ {contract address}. No inspector calls it at present: the
// sandwich and JIT discovery passes merge their duplicate-sender and
// duplicate-contract results by tx-position signature instead.
//
// Path compression keeps Find amortized O(α(n)); union by rank keeps the
// tree shallow.
type ActorGraph struct {
	parent map[models.Address]models.Address
	rank   map[models.Address]int
}

// NewActorGraph creates an empty actor graph.
func NewActorGraph() *ActorGraph {
	return &ActorGraph{
		parent: make(map[models.Address]models.Address),
		rank:   make(map[models.Address]int),
	}
}

// Find returns the representative identity for addr, registering it on
// first sight.
func (g *ActorGraph) Find(addr models.Address) models.Address {
	if _, ok := g.parent[addr]; !ok {
		g.parent[addr] = addr
		g.rank[addr] = 0
	}
	if g.parent[addr] != addr {
		g.parent[addr] = g.Find(g.parent[addr])
	}
	return g.parent[addr]
}

// Union merges the clusters containing a and b; returns true if they were
// previously distinct.
func (g *ActorGraph) Union(a, b models.Address) bool {
	ra, rb := g.Find(a), g.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case g.rank[ra] < g.rank[rb]:
		g.parent[ra] = rb
	case g.rank[ra] > g.rank[rb]:
		g.parent[rb] = ra
	default:
		g.parent[rb] = ra
		g.rank[ra]++
	}
	return true
}

// SameActor reports whether a and b have been merged into the same
// cluster (e.g. shared eoa OR shared mev contract, per the "unique-actor
// check" in §4.6).
func (g *ActorGraph) SameActor(a, b models.Address) bool {
	return g.Find(a) == g.Find(b)
}
