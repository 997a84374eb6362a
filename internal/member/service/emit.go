package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"heritage/internal/member/events"
	"heritage/internal/member/models"
	"heritage/pkg/requestcontext"
)

// publish sends a change event. The write it describes is already committed, so a
// failure is only logged and counted.
func (s *Service) publish(ctx context.Context, typ events.Type, m *models.Member, fields []string) {
	e := events.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Slug:       m.Slug,
		MemberID:   m.ID,
		Fields:     fields,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
	if p, ok := requestcontext.PrincipalFrom(ctx); ok {
		e.ActorID = p.ID
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.incrementPublishFailures()
		s.logger.WarnContext(ctx, "failed to publish member event",
			"error", err,
			"event_type", string(typ),
			"slug", m.Slug,
			"request_id", e.RequestID,
		)
	}
}

func (s *Service) incrementMaterialized() {
	if s.metrics != nil {
		s.metrics.IncrementMaterialized()
	}
}

func (s *Service) incrementUpdated() {
	if s.metrics != nil {
		s.metrics.IncrementUpdated()
	}
}

func (s *Service) incrementConflictRetries() {
	if s.metrics != nil {
		s.metrics.IncrementConflictRetries()
	}
}

func (s *Service) incrementPublishFailures() {
	if s.metrics != nil {
		s.metrics.IncrementPublishFailures()
	}
}

func (s *Service) observeResolve(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveResolve(start)
	}
}

func (s *Service) observeUpdate(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveUpdate(start)
	}
}

func (s *Service) observeRoster(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRoster(start)
	}
}
