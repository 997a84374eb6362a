// Package persistent holds the authoritative member stores keyed by slug.
//
// Error contract for every implementation:
//   - ErrNotFound when no record exists for the slug
//   - ErrConflict when Create meets an existing slug
//   - wrapped errors with context for infrastructure failures
package persistent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"heritage/internal/member/models"
	"heritage/pkg/platform/sentinel"
)

// InMemory stores members in a map for tests and single-instance deployments.
type InMemory struct {
	mu      sync.RWMutex
	members map[string]*models.Member
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{members: make(map[string]*models.Member)}
}

// Create inserts m unless its slug is taken.
func (s *InMemory) Create(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.Slug]; ok {
		return fmt.Errorf("member %q: %w", m.Slug, sentinel.ErrConflict)
	}
	s.members[m.Slug] = m.Clone()
	return nil
}

func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[slug]
	if !ok {
		return nil, fmt.Errorf("member %q: %w", slug, sentinel.ErrNotFound)
	}
	return m.Clone(), nil
}

// FindByEmail matches case-insensitively. Ties resolve to the lowest id.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Member
	for _, m := range s.members {
		if m.Email == "" || !strings.EqualFold(m.Email, email) {
			continue
		}
		if found == nil || m.ID < found.ID {
			found = m
		}
	}
	if found == nil {
		return nil, fmt.Errorf("member with email: %w", sentinel.ErrNotFound)
	}
	return found.Clone(), nil
}

// List returns every stored member ordered by id.
func (s *InMemory) List(_ context.Context) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.Clone())
	}
	slices.SortFunc(out, byID)
	return out, nil
}

// Execute atomically validates and mutates the member stored under slug.
// The lock is held across validate and mutate; a validate error leaves the
// record untouched.
func (s *InMemory) Execute(_ context.Context, slug string, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.members[slug]
	if !ok {
		return nil, fmt.Errorf("member %q: %w", slug, sentinel.ErrNotFound)
	}
	working := current.Clone()
	if validate != nil {
		if err := validate(working); err != nil {
			return nil, err
		}
	}
	mutate(working)
	// The slug is the key; a mutation cannot move the record.
	working.Slug = slug
	s.members[slug] = working
	return working.Clone(), nil
}

func byID(a, b *models.Member) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return strings.Compare(a.Slug, b.Slug)
	}
}
