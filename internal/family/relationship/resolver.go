// Package relationship labels the kinship between two members of a family graph.
//
// The resolver finds the nearest common ancestor of both members from their
// minimal up-distances and classifies the pair of distances. When the members
// share no ancestor it falls back to the spouse link and to blood relations
// reached across one marriage (in-laws).
package relationship

import (
	"fmt"

	"heritage/internal/family/graph"
	dErrors "heritage/pkg/domain-errors"
)

// Resolve returns what id1 is to id2.
//
// Errors: unknown_member when either id is absent, validation_error when both ids
// are the same, cyclic_graph when either ancestry contains a parent cycle.
func Resolve(g *graph.FamilyGraph, id1, id2 int64) (Label, error) {
	for _, id := range []int64{id1, id2} {
		if !g.Has(id) {
			return Label{}, dErrors.New(dErrors.CodeUnknownMember, fmt.Sprintf("member %d is not in the family graph", id))
		}
	}
	if id1 == id2 {
		return Label{}, dErrors.New(dErrors.CodeValidation, "cannot compare identical person")
	}

	label, found, err := blood(g, id1, id2)
	if err != nil {
		return Label{}, err
	}
	if !found {
		label, err = byMarriage(g, id1, id2)
		if err != nil {
			return Label{}, err
		}
	}

	subject, err := g.Node(id1)
	if err != nil {
		return Label{}, err
	}
	label.Text = describe(label, subject.Gender)
	return label, nil
}

// byMarriage handles pairs without a common ancestor.
func byMarriage(g *graph.FamilyGraph, id1, id2 int64) (Label, error) {
	s1, married1 := g.SpouseOf(id1)
	s2, married2 := g.SpouseOf(id2)
	if (married1 && s1.ID == id2) || (married2 && s2.ID == id1) {
		return Label{Kind: KindSpouse}, nil
	}

	// id1 is married to a blood relative of id2: sibling-in-law, child-in-law...
	if married1 && s1.ID != id2 {
		l, found, err := blood(g, s1.ID, id2)
		if err != nil {
			return Label{}, err
		}
		if found {
			markMarriage(&l, KindParent)
			return l, nil
		}
	}
	// id1 is a blood relative of id2's spouse: parent-in-law, sibling-in-law...
	if married2 && s2.ID != id1 {
		l, found, err := blood(g, id1, s2.ID)
		if err != nil {
			return Label{}, err
		}
		if found {
			markMarriage(&l, KindChild)
			// The side of a relation to the spouse says nothing about id2.
			l.Side = ""
			return l, nil
		}
	}
	return Label{Kind: KindNone}, nil
}

// markMarriage flags a blood label that crosses one marriage. The spouse of a
// parent is a step-parent, and a spouse's child a stepchild; anything else is an in-law.
func markMarriage(l *Label, step Kind) {
	if l.Kind == step {
		l.Step = true
		return
	}
	l.InLaw = true
}

// blood classifies the nearest common ancestry of a and b. found is false when
// they share no ancestor.
func blood(g *graph.FamilyGraph, a, b int64) (Label, bool, error) {
	up1, err := climb(g, a)
	if err != nil {
		return Label{}, false, err
	}
	up2, err := climb(g, b)
	if err != nil {
		return Label{}, false, err
	}

	best := -1
	var d1, d2 int
	var routes []int64
	for anc, p1 := range up1 {
		p2, ok := up2[anc]
		if !ok {
			continue
		}
		x, y := p1.dist, p2.dist
		switch {
		case best < 0 || x+y < best || (x+y == best && x < d1):
			best, d1, d2 = x+y, x, y
			routes = append(routes[:0], anc)
		case x+y == best && x == d1:
			routes = append(routes, anc)
		}
	}
	if best < 0 {
		return Label{}, false, nil
	}

	l := classify(d1, d2)
	if d2 >= 2 {
		l.Side = side(g, up2, routes)
	}
	return l, true, nil
}

// path records how far an ancestor is from the starting member and which of the
// starting member's parents the shortest routes leave through.
type path struct {
	dist int
	// via is the starting member's parent on every shortest route, 0 when the
	// routes disagree or the ancestor is the member itself.
	via int64
}

// climb returns the minimal up-distance from id to itself and each of its ancestors.
// AncestorsOf yields breadth-first, so every ancestor's nearest child is already
// recorded when the ancestor arrives.
func climb(g *graph.FamilyGraph, id int64) (map[int64]path, error) {
	out := map[int64]path{id: {dist: 0}}
	for anc, err := range g.AncestorsOf(id) {
		if err != nil {
			return nil, err
		}
		best := path{dist: -1}
		for _, child := range g.ChildrenOf(anc.ID) {
			cp, ok := out[child.ID]
			if !ok {
				continue
			}
			via := cp.via
			if child.ID == id {
				via = anc.ID
			}
			switch {
			case best.dist < 0 || cp.dist+1 < best.dist:
				best = path{dist: cp.dist + 1, via: via}
			case cp.dist+1 == best.dist && best.via != via:
				best.via = 0
			}
		}
		out[anc.ID] = best
	}
	return out, nil
}

// side resolves the parent of the starting member that every nearest route
// leaves through and turns its gender into a side.
func side(g *graph.FamilyGraph, up map[int64]path, routes []int64) Side {
	var via int64
	for _, r := range routes {
		p := up[r]
		if p.via == 0 || (via != 0 && via != p.via) {
			return ""
		}
		via = p.via
	}
	parent, err := g.Node(via)
	if err != nil {
		return ""
	}
	switch parent.Gender {
	case graph.GenderFemale:
		return SideMaternal
	case graph.GenderMale:
		return SidePaternal
	default:
		return ""
	}
}
