package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritage/internal/member/events"
	"heritage/internal/member/models"
	"heritage/internal/member/store/persistent"
	"heritage/internal/member/store/seed"
	dErrors "heritage/pkg/domain-errors"
	"heritage/pkg/requestcontext"
)

func spouse(id int64) *int64 { return &id }

func testSeed(t *testing.T) *seed.Store {
	t.Helper()
	born := time.Date(1952, 2, 14, 0, 0, 0, 0, time.UTC)
	st, err := seed.New([]*models.Member{
		{ID: 1, Slug: "ram-sharma", Name: "Ram Sharma", Gender: "male", SpouseID: spouse(2)},
		{ID: 2, Slug: "sita-sharma", Name: "Sita Sharma", Gender: "female", SpouseID: spouse(1)},
		{
			ID: 3, Slug: "anil-sharma", Name: "Anil Sharma", Gender: "male", BirthDate: &born,
			ParentIDs: []int64{1, 2}, Email: "anil@sharma.family",
			Education: []models.Entry{{Title: "BSc Forestry", Year: "1974"}},
			Skills:    []string{"Carpentry", "Chess"},
		},
	})
	require.NoError(t, err)
	return st
}

func TestReconcile_ReadThroughMaterialization(t *testing.T) {
	store := persistent.NewInMemory()
	rec := events.NewRecorder()
	svc := New(store, testSeed(t), WithPublisher(rec))
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "anil-sharma")
	require.NoError(t, err)
	second, err := svc.Resolve(ctx, "anil-sharma")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []models.Entry{{Title: "BSc Forestry", Year: "1974"}}, first.Education)
	assert.Len(t, rec.OfType(events.TypeMaterialized), 1, "only the first read copies the seed record")

	stored, err := store.FindBySlug(ctx, "anil-sharma")
	require.NoError(t, err)
	assert.Equal(t, first.Skills, stored.Skills)
}

func TestReconcile_UpdateSeedOnlyMember(t *testing.T) {
	store := persistent.NewInMemory()
	svc := New(store, testSeed(t))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	got, err := svc.ApplyUpdate(ctx, "anil-sharma", models.Patch{
		Bio:    "Carpenter and chess coach",
		Skills: []string{"Woodturning"},
		Achievements: []models.Entry{
			{Title: "District chess champion", Year: "1990"},
			{Title: "", Year: "1991"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Anil Sharma", got.Name, "absent scalars keep the seed value")
	assert.Equal(t, "Carpenter and chess coach", got.Bio)
	assert.Equal(t, []string{"Woodturning"}, got.Skills, "collections are replaced wholesale")
	assert.Equal(t, []models.Entry{{Title: "District chess champion", Year: "1990"}}, got.Achievements)
	assert.Equal(t, []models.Entry{{Title: "BSc Forestry", Year: "1974"}}, got.Education)
	assert.Equal(t, []int64{1, 2}, got.ParentIDs)
	assert.True(t, got.UpdatedAt.Equal(now))

	again, err := svc.Resolve(ctx, "anil-sharma")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestReconcile_UnknownSlug(t *testing.T) {
	svc := New(persistent.NewInMemory(), testSeed(t))

	_, err := svc.Resolve(context.Background(), "nobody-here")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.ApplyUpdate(context.Background(), "nobody-here", models.Patch{Bio: "x"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestReconcile_MeByEmail(t *testing.T) {
	svc := New(persistent.NewInMemory(), testSeed(t))
	ctx := requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{ID: "u3", Email: "ANIL@sharma.family"})

	got, err := svc.ApplyUpdate(ctx, MeSlug, models.Patch{Location: "Pokhara"})
	require.NoError(t, err)
	assert.Equal(t, "anil-sharma", got.Slug)
	assert.Equal(t, "Pokhara", got.Location)
}

// Concurrent first writes to a seed-only member must land on one row with both
// fields present, whether the writers share a process or not.
func TestReconcile_ConcurrentFirstWrites(t *testing.T) {
	tests := []struct {
		name      string
		instances func(store *persistent.InMemory, seeds *seed.Store) (*Service, *Service)
	}{
		{"one instance", func(store *persistent.InMemory, seeds *seed.Store) (*Service, *Service) {
			svc := New(store, seeds)
			return svc, svc
		}},
		{"two instances sharing a store", func(store *persistent.InMemory, seeds *seed.Store) (*Service, *Service) {
			return New(store, seeds), New(store, seeds)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 20 {
				store := persistent.NewInMemory()
				a, b := tt.instances(store, testSeed(t))

				var wg sync.WaitGroup
				errs := make(chan error, 2)
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, err := a.ApplyUpdate(context.Background(), "anil-sharma", models.Patch{Bio: "from A"})
					errs <- err
				}()
				go func() {
					defer wg.Done()
					_, err := b.ApplyUpdate(context.Background(), "anil-sharma", models.Patch{Phone: "+977-98000"})
					errs <- err
				}()
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}

				all, err := store.List(context.Background())
				require.NoError(t, err)
				require.Len(t, all, 1)
				assert.Equal(t, "from A", all[0].Bio)
				assert.Equal(t, "+977-98000", all[0].Phone)
			}
		})
	}
}

func TestReconcile_ConcurrentReadsMaterializeOnce(t *testing.T) {
	store := persistent.NewInMemory()
	rec := events.NewRecorder()
	svc := New(store, testSeed(t), WithPublisher(rec))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := svc.Resolve(context.Background(), "anil-sharma")
			if assert.NoError(t, err) {
				assert.Equal(t, int64(3), m.ID)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, rec.OfType(events.TypeMaterialized), 1)
}

func TestReconcile_Roster(t *testing.T) {
	svc := New(persistent.NewInMemory(), testSeed(t))
	ctx := context.Background()

	_, err := svc.ApplyUpdate(ctx, "sita-sharma", models.Patch{Name: "Sita Devi Sharma"})
	require.NoError(t, err)

	nodes, err := svc.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{nodes[0].ID, nodes[1].ID, nodes[2].ID})
	assert.Equal(t, "Sita Devi Sharma", nodes[1].Name)
	assert.Equal(t, []int64{1, 2}, nodes[2].ParentIDs)
}

func TestReconcile_OperationTimeout(t *testing.T) {
	svc := New(persistent.NewInMemory(), testSeed(t), WithLocker(blockingLocker{}), WithOperationTimeout(20*time.Millisecond))

	_, err := svc.ApplyUpdate(context.Background(), "anil-sharma", models.Patch{Bio: "x"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

// blockingLocker never grants the lock.
type blockingLocker struct{}

func (blockingLocker) Lock(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReconcile_CancelledCallerDoesNotFailSharedMaterialization(t *testing.T) {
	store := &gatedStore{
		InMemory: persistent.NewInMemory(),
		entered:  make(chan struct{}, 4),
		release:  make(chan struct{}),
	}
	svc := New(store, testSeed(t))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(leaderCtx, "anil-sharma")
		leaderErr <- err
	}()
	<-store.entered

	type result struct {
		m   *models.Member
		err error
	}
	follower := make(chan result, 1)
	go func() {
		m, err := svc.ApplyUpdate(context.Background(), "anil-sharma", models.Patch{Bio: "joined late"})
		follower <- result{m, err}
	}()
	require.Eventually(t, func() bool { return store.lookups.Load() >= 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	err := <-leaderErr
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)

	close(store.release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "joined late", res.m.Bio)
	assert.Equal(t, "Anil Sharma", res.m.Name)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// gatedStore holds Create until release is closed or the caller's context ends.
type gatedStore struct {
	*persistent.InMemory
	entered chan struct{}
	release chan struct{}
	lookups atomic.Int32
}

func (g *gatedStore) FindBySlug(ctx context.Context, slug string) (*models.Member, error) {
	g.lookups.Add(1)
	return g.InMemory.FindBySlug(ctx, slug)
}

func (g *gatedStore) Create(ctx context.Context, m *models.Member) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.InMemory.Create(ctx, m)
}
