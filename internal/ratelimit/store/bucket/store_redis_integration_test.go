//go:build integration

package bucket_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heritage/internal/ratelimit/models"
	"heritage/internal/ratelimit/store/bucket"
	"heritage/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = bucket.NewRedis(s.redis.Client)
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisBucketStoreSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	limit := models.Limit{Requests: 3, Window: time.Minute}

	for i := range 3 {
		result, err := s.store.Allow(ctx, "rl:test:user:a", limit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "rl:test:user:a", limit)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)
	s.LessOrEqual(result.RetryAfter, time.Minute)

	s.Require().NoError(s.store.Reset(ctx, "rl:test:user:a"))
	result, err = s.store.Allow(ctx, "rl:test:user:a", limit)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketStoreSuite) TestWindowExpires() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: 200 * time.Millisecond}

	result, err := s.store.Allow(ctx, "rl:test:user:b", limit)
	s.Require().NoError(err)
	s.True(result.Allowed)

	s.Eventually(func() bool {
		result, err := s.store.Allow(ctx, "rl:test:user:b", limit)
		return err == nil && result.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}

// TestSharedAcrossInstances uses two stores to stand in for two processes.
func (s *RedisBucketStoreSuite) TestSharedAcrossInstances() {
	ctx := context.Background()
	stores := []*bucket.RedisBucketStore{bucket.NewRedis(s.redis.Client), bucket.NewRedis(s.redis.Client)}
	limit := models.Limit{Requests: 10, Window: time.Minute}

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := stores[i%2].Allow(ctx, "rl:test:user:c", limit)
			if s.NoError(err) && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(10), allowed.Load())
}
