package models

import (
	"slices"
	"time"

	"heritage/internal/family/graph"
)

// Entry is one education or achievement line.
type Entry struct {
	Title string `json:"title" yaml:"title"`
	Year  string `json:"year,omitempty" yaml:"year,omitempty"`
}

// Member is the canonical profile behind a member page.
//
// Invariants:
//   - Slug is unique across the persistent store
//   - Education and Achievements never hold an entry with an empty title
//   - a Member returned by a store or service is never shared with the store
type Member struct {
	ID         int64      `json:"id" yaml:"id"`
	Slug       string     `json:"slug" yaml:"slug"`
	Name       string     `json:"name" yaml:"name"`
	Gender     string     `json:"gender,omitempty" yaml:"gender,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty" yaml:"birth_date,omitempty"`
	DeathDate  *time.Time `json:"death_date,omitempty" yaml:"death_date,omitempty"`
	ParentIDs  []int64    `json:"parent_ids,omitempty" yaml:"parent_ids,omitempty"`
	SpouseID   *int64     `json:"spouse_id,omitempty" yaml:"spouse_id,omitempty"`
	Generation int        `json:"generation,omitempty" yaml:"generation,omitempty"`

	Bio        string `json:"bio,omitempty" yaml:"bio,omitempty"`
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone      string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Location   string `json:"location,omitempty" yaml:"location,omitempty"`
	Profession string `json:"profession,omitempty" yaml:"profession,omitempty"`
	ImageURL   string `json:"image_url,omitempty" yaml:"image_url,omitempty"`

	Education    []Entry  `json:"education" yaml:"education,omitempty"`
	Achievements []Entry  `json:"achievements" yaml:"achievements,omitempty"`
	Skills       []string `json:"skills" yaml:"skills,omitempty"`
	Languages    []string `json:"languages" yaml:"languages,omitempty"`
	Hobbies      []string `json:"hobbies" yaml:"hobbies,omitempty"`
	Personality  []string `json:"personality" yaml:"personality,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// IsLiving reports whether no death date is recorded.
func (m *Member) IsLiving() bool {
	return m.DeathDate == nil
}

// DropUntitledEntries removes education and achievement entries with a blank
// title and trims the rest. Nil collections stay nil.
func (m *Member) DropUntitledEntries() {
	if m.Education != nil {
		m.Education = titled(m.Education)
	}
	if m.Achievements != nil {
		m.Achievements = titled(m.Achievements)
	}
}

// Clone returns a deep copy. Nested collections never alias the receiver.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	out := *m
	out.BirthDate = cloneTime(m.BirthDate)
	out.DeathDate = cloneTime(m.DeathDate)
	out.ParentIDs = slices.Clone(m.ParentIDs)
	if m.SpouseID != nil {
		v := *m.SpouseID
		out.SpouseID = &v
	}
	out.Education = slices.Clone(m.Education)
	out.Achievements = slices.Clone(m.Achievements)
	out.Skills = slices.Clone(m.Skills)
	out.Languages = slices.Clone(m.Languages)
	out.Hobbies = slices.Clone(m.Hobbies)
	out.Personality = slices.Clone(m.Personality)
	return &out
}

// Materialize returns the persistent copy of a seed record stamped with now.
func (m *Member) Materialize(now time.Time) *Member {
	out := m.Clone()
	out.CreatedAt = now
	out.UpdatedAt = now
	return out
}

// Node projects the member onto the family graph.
func (m *Member) Node() graph.MemberNode {
	c := m.Clone()
	return graph.MemberNode{
		ID:         c.ID,
		Name:       c.Name,
		Slug:       c.Slug,
		Gender:     c.Gender,
		BirthDate:  c.BirthDate,
		DeathDate:  c.DeathDate,
		ParentIDs:  c.ParentIDs,
		SpouseID:   c.SpouseID,
		Generation: c.Generation,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
