// Package service runs the family engine over the current member roster.
//
// Each call snapshots the roster, builds an immutable graph and answers from it,
// so a tree or relationship never mixes two roster versions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"heritage/internal/family/graph"
	familymetrics "heritage/internal/family/metrics"
	"heritage/internal/family/relationship"
	"heritage/internal/family/tree"
	dErrors "heritage/pkg/domain-errors"
	"heritage/pkg/requestcontext"
)

var tracer = otel.Tracer("heritage/family/service")

// RosterSource provides the graph input: every member, seed overlaid by persistent.
type RosterSource interface {
	Roster(ctx context.Context) ([]graph.MemberNode, error)
}

// Service answers tree and kinship queries.
type Service struct {
	roster  RosterSource
	logger  *slog.Logger
	metrics *familymetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *familymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(roster RosterSource, opts ...Option) *Service {
	s := &Service{
		roster: roster,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph builds the family graph from the current roster. Repaired inconsistencies
// are logged and counted; they never fail the build.
func (s *Service) Graph(ctx context.Context) (*graph.FamilyGraph, error) {
	ctx, span := tracer.Start(ctx, "family.Graph")
	defer span.End()

	nodes, err := s.roster.Roster(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	g, err := graph.Build(nodes)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "family roster is inconsistent")
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("family.members", g.Len()))

	for _, d := range g.Diagnostics() {
		if s.metrics != nil {
			s.metrics.IncrementDiagnostic(string(d.Kind))
		}
		s.logger.DebugContext(ctx, "family graph diagnostic",
			"kind", string(d.Kind),
			"member_id", d.MemberID,
			"related_id", d.RelatedID,
			"message", d.Message,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return g, nil
}

// BuildTree returns generations, layout, adjacency and timeline for the roster.
func (s *Service) BuildTree(ctx context.Context, nodeWidth, nodeHeight float64) (*tree.Tree, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveTree(start)
		}
	}()
	ctx, span := tracer.Start(ctx, "family.BuildTree", trace.WithAttributes(
		attribute.Float64("tree.node_width", nodeWidth),
		attribute.Float64("tree.node_height", nodeHeight),
	))
	defer span.End()

	g, err := s.Graph(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	t, err := tree.Build(g, nodeWidth, nodeHeight)
	if err != nil {
		s.noteCycle(ctx, err)
		fail(span, err)
		return nil, err
	}
	return t, nil
}

// FindRelationship labels what id1 is to id2.
func (s *Service) FindRelationship(ctx context.Context, id1, id2 int64) (relationship.Label, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveRelationship(start)
		}
	}()
	ctx, span := tracer.Start(ctx, "family.FindRelationship", trace.WithAttributes(
		attribute.Int64("family.from", id1),
		attribute.Int64("family.to", id2),
	))
	defer span.End()

	g, err := s.Graph(ctx)
	if err != nil {
		fail(span, err)
		return relationship.Label{}, err
	}
	l, err := s.resolve(ctx, g, id1, id2)
	if err != nil {
		fail(span, err)
		return relationship.Label{}, err
	}
	span.SetAttributes(attribute.String("family.kind", string(l.Kind)))
	return l, nil
}

// FindRelationshipByRef is FindRelationship for references that are either numeric
// ids or member slugs.
func (s *Service) FindRelationshipByRef(ctx context.Context, from, to string) (relationship.Label, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return relationship.Label{}, err
	}
	id1, err := lookup(g, from)
	if err != nil {
		return relationship.Label{}, err
	}
	id2, err := lookup(g, to)
	if err != nil {
		return relationship.Label{}, err
	}
	return s.resolve(ctx, g, id1, id2)
}

func (s *Service) resolve(ctx context.Context, g *graph.FamilyGraph, id1, id2 int64) (relationship.Label, error) {
	l, err := relationship.Resolve(g, id1, id2)
	if err != nil {
		s.noteCycle(ctx, err)
		return relationship.Label{}, err
	}
	return l, nil
}

func (s *Service) noteCycle(ctx context.Context, err error) {
	if !dErrors.HasCode(err, dErrors.CodeCyclicGraph) {
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementCyclicQueries()
	}
	s.logger.ErrorContext(ctx, "family roster contains a parent cycle",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// lookup resolves a numeric id or a slug to a member id of g.
func lookup(g *graph.FamilyGraph, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "member reference is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	for _, n := range g.Nodes() {
		if n.Slug == ref {
			return n.ID, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeUnknownMember, fmt.Sprintf("member %q is not in the family graph", ref))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
