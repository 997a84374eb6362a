package graph

import (
	"slices"
	"time"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// MemberNode is a family member as known to the graph.
//
// Invariants (checked by Build):
//   - ID is positive and unique within a roster
//   - ParentIDs holds at most two distinct ids of roster members
//   - SpouseID, when set, names another member of the roster
type MemberNode struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	Gender     string     `json:"gender,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	DeathDate  *time.Time `json:"death_date,omitempty"`
	ParentIDs  []int64    `json:"parent_ids,omitempty"`
	SpouseID   *int64     `json:"spouse_id,omitempty"`
	Generation int        `json:"generation,omitempty"`
}

// IsLiving reports whether no death date is recorded.
func (n MemberNode) IsLiving() bool {
	return n.DeathDate == nil
}

func (n MemberNode) clone() MemberNode {
	out := n
	out.ParentIDs = slices.Clone(n.ParentIDs)
	if n.SpouseID != nil {
		v := *n.SpouseID
		out.SpouseID = &v
	}
	if n.BirthDate != nil {
		v := *n.BirthDate
		out.BirthDate = &v
	}
	if n.DeathDate != nil {
		v := *n.DeathDate
		out.DeathDate = &v
	}
	return out
}

// DiagnosticKind names a non-fatal roster inconsistency found while building.
type DiagnosticKind string

const (
	// DiagnosticAsymmetricSpouse: A names B as spouse, B names nobody; the graph mirrors the link.
	DiagnosticAsymmetricSpouse DiagnosticKind = "asymmetric_spouse"
	// DiagnosticConflictingSpouse: A names B as spouse but B is married to someone else.
	DiagnosticConflictingSpouse DiagnosticKind = "conflicting_spouse"
	// DiagnosticGenerationMismatch: a supplied generation disagrees with the parent-derived one.
	DiagnosticGenerationMismatch DiagnosticKind = "generation_mismatch"
)

// Diagnostic reports an inconsistency the builder repaired or overrode.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	MemberID  int64          `json:"member_id"`
	RelatedID int64          `json:"related_id,omitempty"`
	Message   string         `json:"message"`
}
