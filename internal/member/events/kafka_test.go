package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func TestKafkaPublisher(t *testing.T) {
	event := Event{
		ID:         "evt-1",
		Type:       TypeUpdated,
		Slug:       "asha-sharma",
		MemberID:   8,
		Fields:     []string{"bio"},
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("record is keyed by slug with a JSON body", func(t *testing.T) {
		fp := &fakeProducer{}
		require.NoError(t, NewKafkaPublisher(fp, "member-events").Publish(context.Background(), event))

		require.Len(t, fp.records, 1)
		rec := fp.records[0]
		assert.Equal(t, "member-events", rec.Topic)
		assert.Equal(t, "asha-sharma", string(rec.Key))
		assert.Contains(t, rec.Headers, kgo.RecordHeader{Key: "event_type", Value: []byte("member_updated")})

		var decoded Event
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, event, decoded)
	})

	t.Run("broker failure surfaces", func(t *testing.T) {
		fp := &fakeProducer{err: errors.New("not leader")}
		err := NewKafkaPublisher(fp, "member-events").Publish(context.Background(), event)
		assert.ErrorContains(t, err, "not leader")
	})
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: TypeMaterialized, Slug: "a"}))
	require.NoError(t, r.Publish(ctx, Event{Type: TypeUpdated, Slug: "a"}))

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(TypeUpdated), 1)
	assert.NoError(t, Noop{}.Publish(ctx, Event{}))
}
