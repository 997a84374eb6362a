package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type outcome bool

const (
	fail outcome = false
	ok   outcome = true
)

func record(b *Breaker, outcomes ...outcome) (last bool, change StateChange) {
	for _, o := range outcomes {
		if o == ok {
			last, change = b.RecordSuccess()
		} else {
			last, change = b.RecordFailure()
		}
	}
	return last, change
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("redis-buckets")
	assert.Equal(t, "redis-buckets", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())

	record(b, fail, fail, fail, fail)
	assert.False(t, b.IsOpen(), "four failures stay under the default threshold")
	_, change := record(b, fail)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	record(b, ok, ok)
	assert.True(t, b.IsOpen())
	_, change = record(b, ok)
	assert.True(t, change.Closed)
}

func TestBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []outcome
		wantOpen bool
	}{
		{"failures below threshold", []outcome{fail, fail}, false},
		{"threshold reached", []outcome{fail, fail, fail}, true},
		{"success resets the failure run", []outcome{fail, fail, ok, fail, fail}, false},
		{"open until enough successes", []outcome{fail, fail, fail, ok}, true},
		{"closes after the success run", []outcome{fail, fail, fail, ok, ok}, false},
		{"failure while open restarts the success run", []outcome{fail, fail, fail, ok, fail, ok}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", WithFailureThreshold(3), WithSuccessThreshold(2))
			record(b, tt.outcomes...)
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreaker_ReportedDecisions(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(2))

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.Equal(t, StateChange{Opened: true}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback, "an open breaker keeps the fallback")
	assert.Equal(t, StateChange{}, change, "no transition while already open")

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.Equal(t, StateChange{}, change)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.Equal(t, StateChange{Closed: true}, change)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary, "a closed breaker always uses the primary")
	assert.Equal(t, StateChange{}, change)
}

func TestBreaker_IgnoresNonPositiveThresholds(t *testing.T) {
	b := New("test", WithFailureThreshold(0), WithSuccessThreshold(-1))
	record(b, fail, fail, fail, fail)
	assert.False(t, b.IsOpen())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))
	record(b, fail)
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	record(b, ok)
	assert.False(t, b.IsOpen())
}
