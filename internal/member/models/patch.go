package models

import (
	"slices"
	"strings"
	"time"
)

// Patch is a sparse update of a member profile.
//
// A blank scalar or nil date is absent and keeps the stored value. A nil
// collection is absent; a non-nil collection, even an empty one, replaces the
// stored collection wholesale.
type Patch struct {
	Name       string
	Gender     string
	Bio        string
	Email      string
	Phone      string
	Location   string
	Profession string
	ImageURL   string
	BirthDate  *time.Time
	DeathDate  *time.Time

	Education    []Entry
	Achievements []Entry
	Skills       []string
	Languages    []string
	Hobbies      []string
	Personality  []string
}

// IsEmpty reports whether applying the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields names the fields present in the patch, in declaration order.
func (p Patch) Fields() []string {
	var out []string
	for _, s := range []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"gender", p.Gender},
		{"bio", p.Bio},
		{"email", p.Email},
		{"phone", p.Phone},
		{"location", p.Location},
		{"profession", p.Profession},
		{"image_url", p.ImageURL},
	} {
		if present(s.value) {
			out = append(out, s.name)
		}
	}
	if p.BirthDate != nil {
		out = append(out, "birth_date")
	}
	if p.DeathDate != nil {
		out = append(out, "death_date")
	}
	if p.Education != nil {
		out = append(out, "education")
	}
	if p.Achievements != nil {
		out = append(out, "achievements")
	}
	if p.Skills != nil {
		out = append(out, "skills")
	}
	if p.Languages != nil {
		out = append(out, "languages")
	}
	if p.Hobbies != nil {
		out = append(out, "hobbies")
	}
	if p.Personality != nil {
		out = append(out, "personality")
	}
	return out
}

// ApplyTo merges the patch into m and stamps UpdatedAt. Collection entries
// without a title are dropped instead of failing the update.
func (p Patch) ApplyTo(m *Member, now time.Time) {
	setString(&m.Name, p.Name)
	setString(&m.Gender, p.Gender)
	setString(&m.Bio, p.Bio)
	setString(&m.Email, p.Email)
	setString(&m.Phone, p.Phone)
	setString(&m.Location, p.Location)
	setString(&m.Profession, p.Profession)
	setString(&m.ImageURL, p.ImageURL)
	if p.BirthDate != nil {
		m.BirthDate = cloneTime(p.BirthDate)
	}
	if p.DeathDate != nil {
		m.DeathDate = cloneTime(p.DeathDate)
	}

	if p.Education != nil {
		m.Education = titled(p.Education)
	}
	if p.Achievements != nil {
		m.Achievements = titled(p.Achievements)
	}
	if p.Skills != nil {
		m.Skills = slices.Clone(p.Skills)
	}
	if p.Languages != nil {
		m.Languages = slices.Clone(p.Languages)
	}
	if p.Hobbies != nil {
		m.Hobbies = slices.Clone(p.Hobbies)
	}
	if p.Personality != nil {
		m.Personality = slices.Clone(p.Personality)
	}
	m.UpdatedAt = now
}

func present(v string) bool {
	return strings.TrimSpace(v) != ""
}

func setString(dst *string, v string) {
	if present(v) {
		*dst = strings.TrimSpace(v)
	}
}

// titled copies entries, dropping those with a blank title. The result is
// non-nil so an all-blank replacement still clears the collection.
func titled(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		out = append(out, Entry{Title: title, Year: strings.TrimSpace(e.Year)})
	}
	return out
}
