package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"heritage/internal/family/graph"
	dErrors "heritage/pkg/domain-errors"
	strutil "heritage/pkg/platform/strings"
)

// RawPatch is an update body as sent by clients. Collection elements may be a
// plain string or an object with a title and a year given as string or number.
type RawPatch struct {
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Bio        string `json:"bio"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Location   string `json:"location"`
	Profession string `json:"profession"`
	ImageURL   string `json:"image_url"`
	BirthDate  string `json:"birth_date"`
	DeathDate  string `json:"death_date"`

	Education    json.RawMessage `json:"education"`
	Achievements json.RawMessage `json:"achievements"`
	Skills       json.RawMessage `json:"skills"`
	Languages    json.RawMessage `json:"languages"`
	Hobbies      json.RawMessage `json:"hobbies"`
	Personality  json.RawMessage `json:"personality"`
}

// Normalize converts the body into a Patch. Malformed elements and unparsable
// values are validation errors; entries with a blank title are dropped.
func (r RawPatch) Normalize() (Patch, error) {
	p := Patch{
		Name:       strings.TrimSpace(r.Name),
		Bio:        strings.TrimSpace(r.Bio),
		Phone:      strings.TrimSpace(r.Phone),
		Location:   strings.TrimSpace(r.Location),
		Profession: strings.TrimSpace(r.Profession),
		ImageURL:   strings.TrimSpace(r.ImageURL),
	}

	switch g := strings.ToLower(strings.TrimSpace(r.Gender)); g {
	case "", graph.GenderMale, graph.GenderFemale:
		p.Gender = g
	default:
		return Patch{}, invalid("gender must be %q or %q", graph.GenderMale, graph.GenderFemale)
	}

	if e := strings.TrimSpace(r.Email); e != "" {
		addr, err := mail.ParseAddress(e)
		if err != nil {
			return Patch{}, invalid("email is not a valid address")
		}
		p.Email = addr.Address
	}

	var err error
	if p.BirthDate, err = parseDate("birth_date", r.BirthDate); err != nil {
		return Patch{}, err
	}
	if p.DeathDate, err = parseDate("death_date", r.DeathDate); err != nil {
		return Patch{}, err
	}
	if p.BirthDate != nil && p.DeathDate != nil && p.DeathDate.Before(*p.BirthDate) {
		return Patch{}, invalid("death_date is before birth_date")
	}

	if p.Education, err = decodeEntries("education", r.Education); err != nil {
		return Patch{}, err
	}
	if p.Achievements, err = decodeEntries("achievements", r.Achievements); err != nil {
		return Patch{}, err
	}
	for _, list := range []struct {
		field string
		raw   json.RawMessage
		dst   *[]string
	}{
		{"skills", r.Skills, &p.Skills},
		{"languages", r.Languages, &p.Languages},
		{"hobbies", r.Hobbies, &p.Hobbies},
		{"personality", r.Personality, &p.Personality},
	} {
		if *list.dst, err = decodeStrings(list.field, list.raw); err != nil {
			return Patch{}, err
		}
	}
	return p, nil
}

var dateLayouts = []string{time.DateOnly, time.RFC3339}

func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid("%s must be a date (YYYY-MM-DD)", field)
}

// elements splits a JSON array. Absent and null collections yield ok=false.
func elements(field string, raw json.RawMessage) (items []json.RawMessage, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, invalid("%s must be a list", field)
	}
	return items, true, nil
}

type rawEntry struct {
	Title json.RawMessage `json:"title"`
	Year  json.RawMessage `json:"year"`
}

func decodeEntry(field string, i int, raw json.RawMessage) (Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Entry{}, invalid("%s[%d] is empty", field, i)
	}
	switch raw[0] {
	case '"':
		var title string
		if err := json.Unmarshal(raw, &title); err != nil {
			return Entry{}, invalid("%s[%d] is not a valid string", field, i)
		}
		return Entry{Title: strings.TrimSpace(title)}, nil
	case '{':
		var re rawEntry
		if err := json.Unmarshal(raw, &re); err != nil {
			return Entry{}, invalid("%s[%d] is not a valid object", field, i)
		}
		title, err := optionalString(re.Title)
		if err != nil {
			return Entry{}, invalid("%s[%d].title must be a string", field, i)
		}
		year, err := yearString(re.Year)
		if err != nil {
			return Entry{}, invalid("%s[%d].year must be a string or number", field, i)
		}
		return Entry{Title: strings.TrimSpace(title), Year: year}, nil
	default:
		return Entry{}, invalid("%s[%d] must be a string or an object with a title", field, i)
	}
}

func decodeEntries(field string, raw json.RawMessage) ([]Entry, error) {
	items, ok, err := elements(field, raw)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for i, item := range items {
		e, err := decodeEntry(field, i, item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return titled(out), nil
}

func decodeStrings(field string, raw json.RawMessage) ([]string, error) {
	items, ok, err := elements(field, raw)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		e, err := decodeEntry(field, i, item)
		if err != nil {
			return nil, err
		}
		out = append(out, e.Title)
	}
	return strutil.DedupeFold(out), nil
}

func optionalString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func yearString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func invalid(format string, args ...any) error {
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf(format, args...))
}
