// Package graph holds an immutable snapshot of the family roster with derived
// parent, child and spouse adjacency.
//
// A FamilyGraph is built once per roster snapshot and is read-only afterwards, so
// it is safe for concurrent readers. Build rejects dangling references but not
// cycles: a parent cycle is data corruption that only fails the queries touching it.
package graph

import (
	"fmt"
	"iter"
	"slices"

	dErrors "heritage/pkg/domain-errors"
)

// FamilyGraph is the roster plus derived adjacency.
type FamilyGraph struct {
	nodes       map[int64]*MemberNode
	order       []int64
	children    map[int64][]int64
	cyclic      map[int64]bool
	generation  map[int64]int
	diagnostics []Diagnostic
}

// Build validates the roster and derives adjacency. Asymmetric spouse links are
// mirrored and reported through Diagnostics rather than rejected.
func Build(roster []MemberNode) (*FamilyGraph, error) {
	g := &FamilyGraph{
		nodes:      make(map[int64]*MemberNode, len(roster)),
		order:      make([]int64, 0, len(roster)),
		children:   make(map[int64][]int64),
		cyclic:     make(map[int64]bool),
		generation: make(map[int64]int, len(roster)),
	}

	for _, n := range roster {
		if n.ID <= 0 {
			return nil, validationErr("member %q has a non-positive id %d", n.Slug, n.ID)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, validationErr("duplicate member id %d", n.ID)
		}
		if len(n.ParentIDs) > 2 {
			return nil, validationErr("member %d lists %d parents, at most 2 are allowed", n.ID, len(n.ParentIDs))
		}
		c := n.clone()
		g.nodes[n.ID] = &c
		g.order = append(g.order, n.ID)
	}
	slices.Sort(g.order)

	for _, id := range g.order {
		n := g.nodes[id]
		for i, p := range n.ParentIDs {
			if _, ok := g.nodes[p]; !ok {
				return nil, validationErr("member %d references unknown parent %d", id, p)
			}
			if slices.Contains(n.ParentIDs[:i], p) {
				return nil, validationErr("member %d lists parent %d twice", id, p)
			}
			g.children[p] = append(g.children[p], id)
		}
		if n.SpouseID != nil {
			if *n.SpouseID == id {
				return nil, validationErr("member %d cannot be its own spouse", id)
			}
			if _, ok := g.nodes[*n.SpouseID]; !ok {
				return nil, validationErr("member %d references unknown spouse %d", id, *n.SpouseID)
			}
		}
	}

	g.repairSpouses()
	g.markCycles()
	g.assignGenerations()
	return g, nil
}

// repairSpouses mirrors one-sided spouse links. A link pointing at someone already
// married to a third member stays directed.
func (g *FamilyGraph) repairSpouses() {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.SpouseID == nil {
			continue
		}
		other := g.nodes[*n.SpouseID]
		switch {
		case other.SpouseID == nil:
			mirrored := id
			other.SpouseID = &mirrored
			g.diagnostics = append(g.diagnostics, Diagnostic{
				Kind:      DiagnosticAsymmetricSpouse,
				MemberID:  id,
				RelatedID: other.ID,
				Message:   fmt.Sprintf("member %d names %d as spouse without a reciprocal link; link mirrored", id, other.ID),
			})
		case *other.SpouseID != id:
			g.diagnostics = append(g.diagnostics, Diagnostic{
				Kind:      DiagnosticConflictingSpouse,
				MemberID:  id,
				RelatedID: other.ID,
				Message:   fmt.Sprintf("member %d names %d as spouse but %d is married to %d", id, other.ID, other.ID, *other.SpouseID),
			})
		}
	}
}

// markCycles flags every node whose ancestry contains a parent cycle.
func (g *FamilyGraph) markCycles() {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[int64]int, len(g.nodes))

	var visit func(id int64) bool
	visit = func(id int64) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return g.cyclic[id]
		}
		state[id] = visiting
		tainted := false
		for _, p := range g.nodes[id].ParentIDs {
			if visit(p) {
				tainted = true
			}
		}
		state[id] = done
		if tainted {
			g.cyclic[id] = true
		}
		return tainted
	}

	for _, id := range g.order {
		visit(id)
	}
}

// assignGenerations derives depth from the oldest known ancestors. Roots keep a
// supplied generation when it is positive; everyone else is 1 + max(parents).
func (g *FamilyGraph) assignGenerations() {
	var gen func(id int64) int
	gen = func(id int64) int {
		if v, ok := g.generation[id]; ok {
			return v
		}
		n := g.nodes[id]
		derived := 1
		if len(n.ParentIDs) == 0 {
			if n.Generation >= 1 {
				derived = n.Generation
			}
		} else {
			deepest := 0
			for _, p := range n.ParentIDs {
				deepest = max(deepest, gen(p))
			}
			derived = deepest + 1
		}
		if n.Generation != 0 && n.Generation != derived {
			g.diagnostics = append(g.diagnostics, Diagnostic{
				Kind:     DiagnosticGenerationMismatch,
				MemberID: id,
				Message:  fmt.Sprintf("member %d supplied generation %d, parents imply %d", id, n.Generation, derived),
			})
		}
		g.generation[id] = derived
		return derived
	}

	for _, id := range g.order {
		if g.cyclic[id] {
			continue
		}
		g.nodes[id].Generation = gen(id)
	}
}

// Len returns the number of members in the snapshot.
func (g *FamilyGraph) Len() int {
	return len(g.order)
}

// Has reports whether id is part of the snapshot.
func (g *FamilyGraph) Has(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the member with repaired spouse link and derived generation.
func (g *FamilyGraph) Node(id int64) (MemberNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return MemberNode{}, unknownMemberErr(id)
	}
	return n.clone(), nil
}

// Nodes returns every member ordered by ascending id.
func (g *FamilyGraph) Nodes() []MemberNode {
	out := make([]MemberNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Diagnostics returns the non-fatal inconsistencies found while building.
func (g *FamilyGraph) Diagnostics() []Diagnostic {
	return slices.Clone(g.diagnostics)
}

// ChildrenOf returns the members listing id as a parent, ascending by id.
func (g *FamilyGraph) ChildrenOf(id int64) []MemberNode {
	ids := g.children[id]
	out := make([]MemberNode, 0, len(ids))
	for _, c := range ids {
		out = append(out, g.nodes[c].clone())
	}
	return out
}

// SpouseOf returns the member's spouse after link repair.
func (g *FamilyGraph) SpouseOf(id int64) (MemberNode, bool) {
	n, ok := g.nodes[id]
	if !ok || n.SpouseID == nil {
		return MemberNode{}, false
	}
	return g.nodes[*n.SpouseID].clone(), true
}

// Generation returns the derived generation of id.
func (g *FamilyGraph) Generation(id int64) (int, error) {
	if _, ok := g.nodes[id]; !ok {
		return 0, unknownMemberErr(id)
	}
	if g.cyclic[id] {
		return 0, cyclicErr(id)
	}
	return g.generation[id], nil
}

// AncestorsOf lazily walks ParentIDs breadth-first, nearest generation first, never
// yielding a member twice. If the ancestry of id contains a cycle the sequence
// yields a single cyclic_graph error and stops.
func (g *FamilyGraph) AncestorsOf(id int64) iter.Seq2[MemberNode, error] {
	return func(yield func(MemberNode, error) bool) {
		start, ok := g.nodes[id]
		if !ok {
			yield(MemberNode{}, unknownMemberErr(id))
			return
		}
		if g.cyclic[id] {
			yield(MemberNode{}, cyclicErr(id))
			return
		}

		seen := map[int64]struct{}{id: {}}
		queue := make([]int64, 0, len(start.ParentIDs))
		for _, p := range start.ParentIDs {
			seen[p] = struct{}{}
			queue = append(queue, p)
		}
		for len(queue) > 0 {
			cur := g.nodes[queue[0]]
			queue = queue[1:]
			if !yield(cur.clone(), nil) {
				return
			}
			for _, p := range cur.ParentIDs {
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
}

func validationErr(format string, args ...any) error {
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf(format, args...))
}

func unknownMemberErr(id int64) error {
	return dErrors.New(dErrors.CodeUnknownMember, fmt.Sprintf("member %d is not in the family graph", id))
}

func cyclicErr(id int64) error {
	return dErrors.New(dErrors.CodeCyclicGraph, fmt.Sprintf("ancestry of member %d contains a parent cycle", id))
}
