package relationship

import (
	"fmt"
	"strings"

	"heritage/internal/family/graph"
)

// Kind is the direction-sensitive kinship class, always read as "id1 is the <kind> of id2".
type Kind string

const (
	KindParent      Kind = "parent"
	KindChild       Kind = "child"
	KindSibling     Kind = "sibling"
	KindGrandparent Kind = "grandparent"
	KindGrandchild  Kind = "grandchild"
	KindAuntUncle   Kind = "aunt_uncle"
	KindNieceNephew Kind = "niece_nephew"
	KindCousin      Kind = "cousin"
	KindSpouse      Kind = "spouse"
	KindNone        Kind = "none"
)

// Side tells which of id2's parents the kinship runs through.
type Side string

const (
	SideMaternal Side = "maternal"
	SidePaternal Side = "paternal"
)

// Label describes the kinship of id1 to id2.
//
// Up1 and Up2 are the distances from id1 and id2 to their nearest common
// ancestor. For in-law labels they describe the blood relation that crosses the
// marriage. Degree and Removed are only set for cousins. Step marks a parent or
// child reached through the spouse of the actual parent.
type Label struct {
	Kind    Kind   `json:"kind"`
	Up1     int    `json:"up1"`
	Up2     int    `json:"up2"`
	Degree  int    `json:"degree,omitempty"`
	Removed int    `json:"removed,omitempty"`
	Side    Side   `json:"side,omitempty"`
	InLaw   bool   `json:"in_law,omitempty"`
	Step    bool   `json:"step,omitempty"`
	Text    string `json:"text"`
}

// Related reports whether any kinship was found.
func (l Label) Related() bool {
	return l.Kind != KindNone
}

// classify maps the up distances to a kind. The caller guarantees (up1, up2) != (0, 0).
func classify(up1, up2 int) Label {
	l := Label{Up1: up1, Up2: up2}
	switch {
	case up1 == 0 && up2 == 1:
		l.Kind = KindParent
	case up1 == 1 && up2 == 0:
		l.Kind = KindChild
	case up1 == 0:
		l.Kind = KindGrandparent
	case up2 == 0:
		l.Kind = KindGrandchild
	case up1 == 1 && up2 == 1:
		l.Kind = KindSibling
	case up1 == 1:
		l.Kind = KindAuntUncle
	case up2 == 1:
		l.Kind = KindNieceNephew
	default:
		l.Kind = KindCousin
		l.Degree = min(up1, up2) - 1
		l.Removed = abs(up1 - up2)
	}
	return l
}

// describe renders the label text for a person of the given gender.
func describe(l Label, gender string) string {
	var base string
	switch l.Kind {
	case KindParent:
		base = gendered(gender, "father", "mother", "parent")
	case KindChild:
		base = gendered(gender, "son", "daughter", "child")
	case KindSibling:
		base = gendered(gender, "brother", "sister", "sibling")
	case KindSpouse:
		base = gendered(gender, "husband", "wife", "spouse")
	case KindGrandparent:
		base = greats(l.Up2-2) + gendered(gender, "grandfather", "grandmother", "grandparent")
	case KindGrandchild:
		base = greats(l.Up1-2) + gendered(gender, "grandson", "granddaughter", "grandchild")
	case KindAuntUncle:
		base = greats(l.Up2-2) + gendered(gender, "uncle", "aunt", "aunt/uncle")
	case KindNieceNephew:
		base = greats(l.Up1-2) + gendered(gender, "nephew", "niece", "niece/nephew")
	case KindCousin:
		base = ordinal(l.Degree) + " cousin"
		if l.Removed > 0 {
			base += " " + removal(l.Removed)
		}
	default:
		return "no known relationship"
	}
	switch {
	case l.Step:
		base = "step" + base
	case l.InLaw:
		base += "-in-law"
	}
	if l.Side != "" {
		base = string(l.Side) + " " + base
	}
	return base
}

func gendered(gender, male, female, neutral string) string {
	switch gender {
	case graph.GenderMale:
		return male
	case graph.GenderFemale:
		return female
	default:
		return neutral
	}
}

func greats(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("great-", n)
}

var ordinals = []string{"", "first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth"}

func ordinal(n int) string {
	if n > 0 && n < len(ordinals) {
		return ordinals[n]
	}
	return fmt.Sprintf("%dth", n)
}

func removal(n int) string {
	switch n {
	case 1:
		return "once removed"
	case 2:
		return "twice removed"
	default:
		return fmt.Sprintf("%d times removed", n)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
