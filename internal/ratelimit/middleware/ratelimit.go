package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"heritage/internal/ratelimit/models"
	dErrors "heritage/pkg/domain-errors"
	"heritage/pkg/platform/circuit"
	"heritage/pkg/platform/httputil"
	"heritage/pkg/platform/middleware/metadata"
	"heritage/pkg/requestcontext"
)

const headerStatus = "X-RateLimit-Status"

// Limiter admits or denies one request against a bucket.
type Limiter interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

// Middleware enforces a request budget per principal, or per client IP for
// anonymous callers.
type Middleware struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	limit    models.Limit
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithFallback sets the limiter used while the primary is failing.
func WithFallback(l Limiter) Option {
	return func(m *Middleware) {
		m.fallback = l
	}
}

// WithBreaker replaces the default breaker guarding the primary.
func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		if b != nil {
			m.breaker = b
		}
	}
}

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(primary Limiter, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		limit:   limit,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.disabled {
		m.logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns middleware that counts requests for action. Place it after the
// auth middleware so authenticated callers are keyed by principal.
func (m *Middleware) Limit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := bucketKey(ctx, action)

			result, degraded, err := m.check(ctx, key)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
					"error", err,
					"action", action,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if degraded {
				w.Header().Set(headerStatus, "degraded")
			}
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"action", action,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check asks the primary first. Failures count toward opening the breaker;
// while it is open the fallback answers even if the primary recovered, until
// enough consecutive primary successes close it.
func (m *Middleware) check(ctx context.Context, key string) (*models.Result, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit)
	if err != nil {
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, switching to fallback", "breaker", m.breaker.Name())
		}
		if m.fallback == nil {
			return nil, true, err
		}
		result, err = m.fallback.Allow(ctx, key, m.limit)
		return result, true, err
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
	}
	if !usePrimary && m.fallback != nil {
		result, err = m.fallback.Allow(ctx, key, m.limit)
		return result, true, err
	}
	return result, false, nil
}

func bucketKey(ctx context.Context, action string) string {
	if p, ok := requestcontext.PrincipalFrom(ctx); ok && p.ID != "" {
		return models.NewKey(action, models.ScopeUser, p.ID)
	}
	return models.NewKey(action, models.ScopeIP, metadata.GetClientIP(ctx))
}

func addHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
