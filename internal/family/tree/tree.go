// Package tree derives render-ready structures from a family graph: generation
// rows, parent to children adjacency, a birth-ordered timeline and a
// deterministic grid layout.
package tree

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"heritage/internal/family/graph"
	dErrors "heritage/pkg/domain-errors"
)

// Position is the centre of a node in layout coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tree bundles every view renderers need from one roster snapshot.
type Tree struct {
	Generations map[int][]graph.MemberNode `json:"generations"`
	Positions   map[int64]Position         `json:"positions"`
	Children    map[int64][]int64          `json:"children"`
	Timeline    []graph.MemberNode         `json:"timeline"`
	Diagnostics []graph.Diagnostic         `json:"diagnostics,omitempty"`
}

// Build derives all views. It fails with cyclic_graph when any member's ancestry
// contains a cycle, since such a member has no generation.
func Build(g *graph.FamilyGraph, nodeWidth, nodeHeight float64) (*Tree, error) {
	gens, err := ByGeneration(g)
	if err != nil {
		return nil, err
	}
	pos, err := layout(gens, nodeWidth, nodeHeight)
	if err != nil {
		return nil, err
	}
	return &Tree{
		Generations: gens,
		Positions:   pos,
		Children:    ChildrenIndex(g),
		Timeline:    Timeline(g),
		Diagnostics: g.Diagnostics(),
	}, nil
}

// ByGeneration groups members by derived generation, ascending id within a row.
func ByGeneration(g *graph.FamilyGraph) (map[int][]graph.MemberNode, error) {
	out := make(map[int][]graph.MemberNode)
	for _, n := range g.Nodes() {
		gen, err := g.Generation(n.ID)
		if err != nil {
			return nil, err
		}
		out[gen] = append(out[gen], n)
	}
	return out, nil
}

// LayoutPositions places every member on a grid. Row y is generation × rowHeight,
// where rowHeight is twice the node height. Each row's members are spread evenly
// across the width of the widest row, so the result depends only on the graph and
// the node size.
func LayoutPositions(g *graph.FamilyGraph, nodeWidth, nodeHeight float64) (map[int64]Position, error) {
	gens, err := ByGeneration(g)
	if err != nil {
		return nil, err
	}
	return layout(gens, nodeWidth, nodeHeight)
}

func layout(gens map[int][]graph.MemberNode, nodeWidth, nodeHeight float64) (map[int64]Position, error) {
	if !positiveFinite(nodeWidth) || !positiveFinite(nodeHeight) {
		return nil, dErrors.New(dErrors.CodeValidation, "node width and height must be positive finite numbers")
	}

	widest, deepest := 0, 0
	for gen, row := range gens {
		widest = max(widest, len(row))
		deepest = max(deepest, gen)
	}
	// One node width of gap between neighbours in the widest row.
	rowWidth := float64(widest) * 2 * nodeWidth
	rowHeight := 2 * nodeHeight
	if math.IsInf(rowWidth, 0) || math.IsInf(float64(deepest)*rowHeight, 0) {
		return nil, dErrors.New(dErrors.CodeValidation, "node size is too large to lay out")
	}

	out := make(map[int64]Position)
	for _, gen := range slices.Sorted(maps.Keys(gens)) {
		row := gens[gen]
		step := rowWidth / float64(len(row))
		for i, n := range row {
			out[n.ID] = Position{
				X: step * (float64(i) + 0.5),
				Y: float64(gen) * rowHeight,
			}
		}
	}
	return out, nil
}

// ChildrenIndex returns parent id -> child ids (ascending) for every member with
// at least one child.
func ChildrenIndex(g *graph.FamilyGraph) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, n := range g.Nodes() {
		for _, c := range g.ChildrenOf(n.ID) {
			out[n.ID] = append(out[n.ID], c.ID)
		}
	}
	return out
}

// Timeline orders members by birth date, undated members last, ties by id.
func Timeline(g *graph.FamilyGraph) []graph.MemberNode {
	nodes := g.Nodes()
	slices.SortStableFunc(nodes, func(a, b graph.MemberNode) int {
		switch {
		case a.BirthDate == nil && b.BirthDate == nil:
			return cmp.Compare(a.ID, b.ID)
		case a.BirthDate == nil:
			return 1
		case b.BirthDate == nil:
			return -1
		}
		if c := a.BirthDate.Compare(*b.BirthDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return nodes
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
