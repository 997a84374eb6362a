package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritage/internal/ratelimit/models"
	"heritage/internal/ratelimit/store/bucket"
	"heritage/pkg/platform/circuit"
	"heritage/pkg/platform/middleware/metadata"
	"heritage/pkg/testutil"
)

var writeLimit = models.Limit{Requests: 2, Window: time.Minute}

// flakyLimiter fails while down is set and otherwise delegates.
type flakyLimiter struct {
	down  atomic.Bool
	inner Limiter
}

func (f *flakyLimiter) Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	if f.down.Load() {
		return nil, errors.New("connection refused")
	}
	return f.inner.Allow(ctx, key, limit)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func newRequest(t *testing.T, ip string) *http.Request {
	req := testutil.NewRequest(t, http.MethodPatch, "/members/anil-sharma")
	return req.WithContext(metadata.WithClientMetadata(req.Context(), ip, "test"))
}

func TestLimit_PerPrincipal(t *testing.T) {
	m := New(bucket.New(), writeLimit, nil)
	h := m.Limit("member_write")(okHandler())

	for range 2 {
		rr := serve(h, testutil.WithMember(newRequest(t, "10.0.0.1"), "u-anil", "anil-sharma"))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := serve(h, testutil.WithMember(newRequest(t, "10.0.0.1"), "u-anil", "anil-sharma"))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = serve(h, testutil.WithMember(newRequest(t, "10.0.0.1"), "u-asha", "asha-sharma"))
	assert.Equal(t, http.StatusOK, rr.Code, "another principal on the same IP has its own budget")

	rr = serve(h, testutil.WithAdmin(newRequest(t, "10.0.0.1"), "u-admin"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestLimit_AnonymousByIP(t *testing.T) {
	m := New(bucket.New(), writeLimit, nil)
	h := m.Limit("member_write")(okHandler())

	serve(h, newRequest(t, "10.0.0.1"))
	serve(h, newRequest(t, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, newRequest(t, "10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, serve(h, newRequest(t, "10.0.0.2")).Code)
}

func TestLimit_Disabled(t *testing.T) {
	m := New(bucket.New(), models.Limit{Requests: 0, Window: time.Minute}, nil, WithDisabled(true))
	h := m.Limit("member_write")(okHandler())

	rr := serve(h, newRequest(t, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestLimit_FailsOpenWithoutFallback(t *testing.T) {
	primary := &flakyLimiter{inner: bucket.New()}
	primary.down.Store(true)
	h := New(primary, writeLimit, nil).Limit("member_write")(okHandler())

	for range 5 {
		assert.Equal(t, http.StatusOK, serve(h, newRequest(t, "10.0.0.1")).Code)
	}
}

func TestLimit_FallbackWhilePrimaryIsDown(t *testing.T) {
	primary := &flakyLimiter{inner: bucket.New()}
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
	m := New(primary, writeLimit, nil, WithFallback(bucket.New()), WithBreaker(breaker))
	h := m.Limit("member_write")(okHandler())

	primary.down.Store(true)
	rr := serve(h, newRequest(t, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", rr.Header().Get(headerStatus))
	assert.True(t, breaker.IsOpen())

	serve(h, newRequest(t, "10.0.0.1"))
	rr = serve(h, newRequest(t, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "fallback still enforces the budget")

	primary.down.Store(false)
	rr = serve(h, newRequest(t, "10.0.0.9"))
	assert.Equal(t, "degraded", rr.Header().Get(headerStatus), "one success does not close the breaker")
	rr = serve(h, newRequest(t, "10.0.0.9"))
	assert.False(t, breaker.IsOpen())
	assert.Empty(t, rr.Header().Get(headerStatus))
}
