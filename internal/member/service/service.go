// Package service reconciles seed and persistent member records.
//
// The seed roster is read-only. The first read of a seed-only member copies it into
// the persistent store (read-through materialization); every later read and write
// goes to that copy. Updates to one slug are serialized through a Locker and merged
// inside the store's Execute so concurrent writers never lose each other's fields.
package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"heritage/internal/family/graph"
	"heritage/internal/member/events"
	"heritage/internal/member/lock"
	membermetrics "heritage/internal/member/metrics"
	"heritage/internal/member/models"
	dErrors "heritage/pkg/domain-errors"
	"heritage/pkg/platform/sentinel"
	strutil "heritage/pkg/platform/strings"
	"heritage/pkg/requestcontext"
)

// MeSlug addresses the caller's own profile.
const MeSlug = "me"

var tracer = otel.Tracer("heritage/member/service")

// PersistentStore is the authoritative, writable member store.
type PersistentStore interface {
	Create(ctx context.Context, m *models.Member) error
	FindBySlug(ctx context.Context, slug string) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	List(ctx context.Context) ([]*models.Member, error)
	Execute(ctx context.Context, slug string, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error)
}

// SeedStore is the read-only roster shipped with the service.
type SeedStore interface {
	FindBySlug(ctx context.Context, slug string) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	List(ctx context.Context) ([]*models.Member, error)
}

// Service resolves, materializes and updates members.
type Service struct {
	persistent PersistentStore
	seed       SeedStore
	locker     lock.Locker
	publisher  events.Publisher
	logger     *slog.Logger
	metrics    *membermetrics.Metrics
	timeout    time.Duration

	materializing singleflight.Group
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *membermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLocker replaces the in-process per-slug lock, e.g. with a RedisLocker when
// several instances share one store.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithOperationTimeout bounds every service call. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// New constructs a Service.
func New(persistent PersistentStore, seed SeedStore, opts ...Option) *Service {
	s := &Service{
		persistent: persistent,
		seed:       seed,
		locker:     lock.NewKeyedMutex(),
		publisher:  events.Noop{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the canonical record for slug. A seed-only member is
// materialized on first read. "me" resolves to the caller's own profile.
func (s *Service) Resolve(ctx context.Context, slug string) (*models.Member, error) {
	start := time.Now()
	defer s.observeResolve(start)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "member.Resolve", trace.WithAttributes(attribute.String("member.slug", slug)))
	defer span.End()

	m, err := s.resolve(ctx, slug)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return m, nil
}

func (s *Service) resolve(ctx context.Context, slug string) (*models.Member, error) {
	slug, err := s.targetSlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	m, err := s.persistent.FindBySlug(ctx, slug)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return s.materialize(ctx, slug)
}

// ApplyUpdate merges patch into the canonical record for slug and returns the full
// record. Scalars are sparse, collections are replaced wholesale.
func (s *Service) ApplyUpdate(ctx context.Context, slug string, patch models.Patch) (*models.Member, error) {
	start := time.Now()
	defer s.observeUpdate(start)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "member.ApplyUpdate", trace.WithAttributes(
		attribute.String("member.slug", slug),
		attribute.StringSlice("member.fields", patch.Fields()),
	))
	defer span.End()

	m, err := s.applyUpdate(ctx, slug, patch)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return m, nil
}

func (s *Service) applyUpdate(ctx context.Context, slug string, patch models.Patch) (*models.Member, error) {
	slug, err := s.targetSlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, slug)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "member is being updated by another request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock member")
	}
	defer release()

	current, err := s.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	now := requestcontext.Now(ctx)
	merge := func(m *models.Member) { patch.ApplyTo(m, now) }

	// The row exists now; one that vanishes before the merge is materialized again
	// once, then reported as a conflict.
	for attempt := range 2 {
		updated, err := s.persistent.Execute(ctx, slug, nil, merge)
		if err == nil {
			s.incrementUpdated()
			s.logger.InfoContext(ctx, "member updated",
				"slug", slug,
				"fields", patch.Fields(),
				"request_id", requestcontext.RequestID(ctx),
			)
			s.publish(ctx, events.TypeUpdated, updated, patch.Fields())
			return updated, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update member")
		}
		if attempt > 0 {
			break
		}
		s.incrementConflictRetries()
		if _, err := s.materialize(ctx, slug); err != nil {
			return nil, err
		}
	}
	return nil, dErrors.New(dErrors.CodeConflict, "member changed during update, retry")
}

// materialize copies the seed record for slug into the persistent store. Concurrent
// callers for one slug in this process share a single attempt; a slug created
// elsewhere in the meantime is re-read instead. The shared attempt is detached from
// the caller that started it, so cancelling one request never fails the others.
func (s *Service) materialize(ctx context.Context, slug string) (*models.Member, error) {
	ch := s.materializing.DoChan(slug, func() (any, error) {
		shared, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		return s.createFromSeed(shared, slug)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Member).Clone(), nil
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeConflict, "member materialization interrupted")
	}
}

func (s *Service) createFromSeed(ctx context.Context, slug string) (*models.Member, error) {
	ctx, span := tracer.Start(ctx, "member.materialize", trace.WithAttributes(attribute.String("member.slug", slug)))
	defer span.End()

	seeded, err := s.seed.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load seed member")
	}

	m := seeded.Materialize(requestcontext.Now(ctx))
	err = s.persistent.Create(ctx, m)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("member.created", true))
		s.incrementMaterialized()
		s.logger.InfoContext(ctx, "member materialized",
			"slug", slug,
			"member_id", m.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.publish(ctx, events.TypeMaterialized, m, nil)
		return m, nil
	case errors.Is(err, sentinel.ErrConflict):
		winner, err := s.persistent.FindBySlug(ctx, slug)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload member")
		}
		return winner, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to materialize member")
	}
}

// List returns every member: seed records overlaid by their persistent copies,
// plus persistent-only records, ordered by id.
func (s *Service) List(ctx context.Context) ([]*models.Member, error) {
	start := time.Now()
	defer s.observeRoster(start)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "member.List")
	defer span.End()

	seeded, err := s.seed.List(ctx)
	if err != nil {
		fail(span, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list seed members")
	}
	stored, err := s.persistent.List(ctx)
	if err != nil {
		fail(span, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}

	bySlug := make(map[string]*models.Member, len(seeded)+len(stored))
	for _, m := range seeded {
		bySlug[m.Slug] = m
	}
	for _, m := range stored {
		bySlug[m.Slug] = m
	}
	out := make([]*models.Member, 0, len(bySlug))
	for _, m := range bySlug {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *models.Member) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), strings.Compare(a.Slug, b.Slug))
	})
	span.SetAttributes(attribute.Int("member.count", len(out)))
	return out, nil
}

// Roster projects List onto family graph nodes.
func (s *Service) Roster(ctx context.Context) ([]graph.MemberNode, error) {
	members, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]graph.MemberNode, len(members))
	for i, m := range members {
		nodes[i] = m.Node()
	}
	return nodes, nil
}

// OwnSlug returns the slug of the caller's member profile: the principal's slug
// claim, else the first persistent then seed member sharing the principal's email.
func (s *Service) OwnSlug(ctx context.Context) (string, error) {
	p, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		return "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if p.Slug != "" {
		return p.Slug, nil
	}
	if p.Email == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "no member profile is linked to this account")
	}

	m, err := s.persistent.FindByEmail(ctx, p.Email)
	if err == nil {
		return m.Slug, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up member by email")
	}
	m, err = s.seed.FindByEmail(ctx, p.Email)
	if err == nil {
		return m.Slug, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up seed member by email")
	}
	return "", dErrors.New(dErrors.CodeNotFound, "no member profile is linked to this account")
}

func (s *Service) targetSlug(ctx context.Context, slug string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == MeSlug {
		return s.OwnSlug(ctx)
	}
	if !strutil.IsSlug(slug) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid member slug")
	}
	return slug, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
