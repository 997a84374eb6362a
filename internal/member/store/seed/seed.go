// Package seed serves the read-only family roster that ships with the binary.
//
// The dataset is decoded once; every lookup returns a deep copy so callers can
// never mutate the shared roster.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"heritage/internal/family/graph"
	"heritage/internal/member/models"
	"heritage/pkg/platform/sentinel"
	strutil "heritage/pkg/platform/strings"
)

//go:embed seed.yaml
var defaultRoster []byte

type document struct {
	Members []*models.Member `yaml:"members"`
}

// Store is the immutable seed roster keyed by slug.
type Store struct {
	bySlug  map[string]*models.Member
	ordered []*models.Member
}

// Default returns the embedded roster.
func Default() (*Store, error) {
	return Load(bytes.NewReader(defaultRoster))
}

// LoadFile reads a roster from a YAML file.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML roster. Slugs and ids must be unique and slugs URL-safe.
func Load(r io.Reader) (*Store, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed roster: %w", err)
	}
	return New(doc.Members)
}

// New builds a store from members, copying them.
func New(members []*models.Member) (*Store, error) {
	s := &Store{bySlug: make(map[string]*models.Member, len(members))}
	ids := make(map[int64]string, len(members))
	for _, m := range members {
		if !strutil.IsSlug(m.Slug) {
			return nil, fmt.Errorf("seed member %d: invalid slug %q", m.ID, m.Slug)
		}
		if _, dup := s.bySlug[m.Slug]; dup {
			return nil, fmt.Errorf("seed member %q: duplicate slug", m.Slug)
		}
		if other, dup := ids[m.ID]; dup {
			return nil, fmt.Errorf("seed member %q: id %d already used by %q", m.Slug, m.ID, other)
		}
		ids[m.ID] = m.Slug
		c := m.Clone()
		c.DropUntitledEntries()
		s.bySlug[c.Slug] = c
		s.ordered = append(s.ordered, c)
	}
	return s, nil
}

// Graph builds the family graph of the seed roster alone.
func (s *Store) Graph() (*graph.FamilyGraph, error) {
	nodes := make([]graph.MemberNode, 0, len(s.ordered))
	for _, m := range s.ordered {
		nodes = append(nodes, m.Node())
	}
	return graph.Build(nodes)
}

func (s *Store) FindBySlug(_ context.Context, slug string) (*models.Member, error) {
	m, ok := s.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("seed member %q: %w", slug, sentinel.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*models.Member, error) {
	for _, m := range s.ordered {
		if m.Email != "" && strings.EqualFold(m.Email, email) {
			return m.Clone(), nil
		}
	}
	return nil, fmt.Errorf("seed member with email: %w", sentinel.ErrNotFound)
}

// List returns the roster in file order.
func (s *Store) List(_ context.Context) ([]*models.Member, error) {
	out := make([]*models.Member, 0, len(s.ordered))
	for _, m := range s.ordered {
		out = append(out, m.Clone())
	}
	return out, nil
}

// Len returns the number of seed members.
func (s *Store) Len() int {
	return len(s.ordered)
}
