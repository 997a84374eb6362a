//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"heritage/internal/member/events"
	"heritage/internal/platform/config"
	"heritage/internal/platform/kafka"
	"heritage/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *KafkaPublisherSuite) TestPublishedEventIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "member-events-" + uuid.NewString()[:8]
	client, err := kafka.New(ctx, config.KafkaConfig{
		Brokers:  s.brokers,
		Topic:    topic,
		ClientID: "heritage-test",
	})
	s.Require().NoError(err)
	defer client.Close()

	s.Require().NoError(client.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(client.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	pub := events.NewKafkaPublisher(client, client.Topic())
	sent := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeUpdated,
		Slug:       "asha-sharma",
		MemberID:   8,
		Fields:     []string{"bio"},
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(pub.Publish(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)

	rec := records[0]
	s.Equal("asha-sharma", string(rec.Key))
	var got events.Event
	s.Require().NoError(json.Unmarshal(rec.Value, &got))
	s.Equal(sent.ID, got.ID)
	s.Equal(sent.Fields, got.Fields)
	s.True(sent.OccurredAt.Equal(got.OccurredAt))

	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal(string(events.TypeUpdated), headers["event_type"])
}
