package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/core/statestore"
	"github.com/minhnq-dev/jobmatch-be/internal/platform"
)

type fakeProfiles struct {
	profile *domain.ProfileRecord
	err     error
}

func (f *fakeProfiles) Get(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakePlatform struct {
	name     string
	listings []domain.RawListing
	err      error

	// When set, Search signals entered once and blocks until release closes.
	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once

	mu    sync.Mutex
	calls int
}

func (f *fakePlatform) Name() string { return f.name }

func (f *fakePlatform) Search(ctx context.Context, profile *domain.ProfileRecord) ([]domain.RawListing, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.entered != nil {
		f.enterOnce.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		<-f.release
	}

	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func (f *fakePlatform) SubmitBid(ctx context.Context, req *platform.BidRequest) (*platform.BidResult, error) {
	return &platform.BidResult{Outcome: platform.BidAccepted}, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeQueue) Enqueue(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
}

func (f *fakeQueue) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testStore() *statestore.Store {
	return statestore.New(&statestore.Config{Logger: testLogger()})
}

func testProfile() *domain.ProfileRecord {
	return &domain.ProfileRecord{
		UserID:         "u1",
		Skills:         []string{"python"},
		Platforms:      []string{"freelancer"},
		BudgetMin:      50,
		BudgetMax:      500,
		MaxTrackedJobs: 3,
	}
}

func newTestScheduler(t *testing.T, store *statestore.Store, profiles ProfileSource, platforms []*fakePlatform, queue Enqueuer) *Scheduler {
	t.Helper()

	registry := platform.NewRegistry()
	for _, p := range platforms {
		require.NoError(t, registry.Register(p))
	}

	return New(&Config{
		Logger:        testLogger(),
		Store:         store,
		Profiles:      profiles,
		Registry:      registry,
		Queue:         queue,
		PollInterval:  time.Hour, // ticks driven manually in tests
		SearchTimeout: time.Second,
	})
}

func TestScheduler_TickTracksAndEnqueuesMatches(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{
		name: "freelancer",
		listings: []domain.RawListing{
			{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
			{ExternalID: "2", Skills: []string{"java"}, BudgetMin: 100, BudgetMax: 200},
		},
	}
	s := newTestScheduler(t, store, &fakeProfiles{profile: testProfile()}, []*fakePlatform{fp}, queue)

	s.tick(context.Background(), "u1")

	assert.True(t, store.Has("freelancer-1"))
	assert.False(t, store.Has("freelancer-2"))
	assert.Equal(t, []string{"freelancer-1"}, queue.snapshot())
}

func TestScheduler_TickDedupsAcrossTicks(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{
		name: "freelancer",
		listings: []domain.RawListing{
			{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
		},
	}
	s := newTestScheduler(t, store, &fakeProfiles{profile: testProfile()}, []*fakePlatform{fp}, queue)

	s.tick(context.Background(), "u1")
	s.tick(context.Background(), "u1")

	assert.Len(t, queue.snapshot(), 1)
}

func TestScheduler_TickHonorsTrackingCap(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{
		name: "freelancer",
		listings: []domain.RawListing{
			{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
			{ExternalID: "2", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
			{ExternalID: "3", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
			{ExternalID: "4", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
		},
	}
	s := newTestScheduler(t, store, &fakeProfiles{profile: testProfile()}, []*fakePlatform{fp}, queue)

	s.tick(context.Background(), "u1")

	// Cap is 3, the fourth candidate waits for a future tick
	assert.Len(t, queue.snapshot(), 3)

	// At the cap nothing is searched into the store
	s.tick(context.Background(), "u1")
	assert.Len(t, queue.snapshot(), 3)
}

func TestScheduler_TickSkipsOnSearchFailure(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{name: "freelancer", err: domain.ErrSearchUnavailable}
	s := newTestScheduler(t, store, &fakeProfiles{profile: testProfile()}, []*fakePlatform{fp}, queue)

	s.tick(context.Background(), "u1")

	assert.Empty(t, queue.snapshot())
	assert.Equal(t, 1, fp.calls)
}

func TestScheduler_TickSkipsWithoutProfile(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{name: "freelancer"}
	s := newTestScheduler(t, store, &fakeProfiles{err: domain.ErrProfileNotFound}, []*fakePlatform{fp}, queue)

	s.tick(context.Background(), "u1")

	assert.Empty(t, queue.snapshot())
	assert.Equal(t, 0, fp.calls)
}

func TestScheduler_FailedPlatformDoesNotBlockOthers(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	broken := &fakePlatform{name: "freelancer", err: domain.ErrSearchUnavailable}
	healthy := &fakePlatform{
		name: "upwork",
		listings: []domain.RawListing{
			{ExternalID: "9", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
		},
	}

	profile := testProfile()
	profile.Platforms = []string{"freelancer", "upwork"}

	s := newTestScheduler(t, store, &fakeProfiles{profile: profile}, []*fakePlatform{broken, healthy}, queue)

	s.tick(context.Background(), "u1")

	assert.Equal(t, []string{"upwork-9"}, queue.snapshot())
}

func TestScheduler_StopDiscardsInFlightTick(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{
		name:    "freelancer",
		entered: make(chan struct{}),
		release: make(chan struct{}),
		listings: []domain.RawListing{
			{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
		},
	}

	registry := platform.NewRegistry()
	require.NoError(t, registry.Register(fp))

	s := New(&Config{
		Logger:        testLogger(),
		Store:         store,
		Profiles:      &fakeProfiles{profile: testProfile()},
		Registry:      registry,
		Queue:         queue,
		PollInterval:  time.Hour,
		SearchTimeout: time.Minute,
	})

	s.Start("u1")
	<-fp.entered // first tick is inside the search

	s.Stop("u1")
	close(fp.release)
	s.StopAll() // waits for the loop goroutine to finish the tick

	// The search returned a match, but the stop landed first: nothing tracked
	assert.False(t, store.Has("freelancer-1"))
	assert.Empty(t, queue.snapshot())
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{name: "freelancer"}
	s := newTestScheduler(t, store, &fakeProfiles{profile: testProfile()}, []*fakePlatform{fp}, queue)

	s.Start("u1")
	s.Start("u1")
	assert.True(t, s.IsRunning("u1"))

	s.Stop("u1")
	s.Stop("u1")
	assert.False(t, s.IsRunning("u1"))

	s.StopAll()
}

func TestScheduler_StopAllWaitsForLoops(t *testing.T) {
	store := testStore()
	queue := &fakeQueue{}
	fp := &fakePlatform{name: "freelancer"}
	s := newTestScheduler(t, store, &fakeProfiles{profile: testProfile()}, []*fakePlatform{fp}, queue)

	s.Start("u1")
	s.Start("u2")

	done := make(chan struct{})
	go func() {
		s.StopAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopAll did not return")
	}

	assert.False(t, s.IsRunning("u1"))
	assert.False(t, s.IsRunning("u2"))
}
