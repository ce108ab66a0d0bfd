// Package scheduler runs the per-user polling loops that discover new jobs.
// Each started user gets an independent ticker; a tick searches every enabled
// platform, filters the results against the profile, and hands fresh records
// to the dispatcher.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/core/matching"
	"github.com/minhnq-dev/jobmatch-be/internal/core/statestore"
	"github.com/minhnq-dev/jobmatch-be/internal/platform"
)

// ProfileSource resolves the profile to poll with. The profile is re-read on
// every tick so edits take effect without restarting the loop.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*domain.ProfileRecord, error)
}

// Enqueuer receives keys of freshly inserted records for presentation.
type Enqueuer interface {
	Enqueue(key string)
}

// Config holds scheduler configuration
type Config struct {
	Logger        *slog.Logger
	Store         *statestore.Store
	Profiles      ProfileSource
	Registry      *platform.Registry
	Queue         Enqueuer
	PollInterval  time.Duration
	SearchTimeout time.Duration
}

// Scheduler owns one polling goroutine per started user. Start and Stop are
// idempotent; StopAll waits for every loop to drain.
type Scheduler struct {
	logger        *slog.Logger
	store         *statestore.Store
	profiles      ProfileSource
	registry      *platform.Registry
	queue         Enqueuer
	pollInterval  time.Duration
	searchTimeout time.Duration

	mu    sync.Mutex
	loops map[string]*userLoop
	wg    sync.WaitGroup
	now   func() time.Time
}

type userLoop struct {
	cancel context.CancelFunc
}

// New creates a scheduler.
func New(cfg *Config) *Scheduler {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	searchTimeout := cfg.SearchTimeout
	if searchTimeout <= 0 {
		searchTimeout = 30 * time.Second
	}

	return &Scheduler{
		logger:        cfg.Logger,
		store:         cfg.Store,
		profiles:      cfg.Profiles,
		registry:      cfg.Registry,
		queue:         cfg.Queue,
		pollInterval:  pollInterval,
		searchTimeout: searchTimeout,
		loops:         make(map[string]*userLoop),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start begins polling for the user. A second Start for the same user is a
// no-op; exactly one loop runs per user. The loop lives until Stop or
// StopAll.
func (s *Scheduler) Start(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.loops[userID]; running {
		s.logger.Debug("Matching already running",
			slog.String("user_id", userID),
		)
		return
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.loops[userID] = &userLoop{cancel: cancel}

	s.wg.Add(1)
	go s.run(loopCtx, userID)

	s.logger.Info("Matching started",
		slog.String("user_id", userID),
		slog.Duration("poll_interval", s.pollInterval),
	)
}

// Stop cancels the user's polling loop. Stopping a user that is not running
// is a no-op. Already tracked jobs keep their lifecycle; only discovery halts.
func (s *Scheduler) Stop(userID string) {
	s.mu.Lock()
	loop, running := s.loops[userID]
	if running {
		delete(s.loops, userID)
	}
	s.mu.Unlock()

	if !running {
		return
	}

	loop.cancel()
	s.logger.Info("Matching stopped",
		slog.String("user_id", userID),
	)
}

// IsRunning reports whether the user has an active polling loop.
func (s *Scheduler) IsRunning(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, running := s.loops[userID]
	return running
}

// StopAll cancels every loop and waits for them to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for userID, loop := range s.loops {
		loop.cancel()
		delete(s.loops, userID)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("All matching loops stopped")
}

// run ticks immediately and then at every poll interval until canceled.
func (s *Scheduler) run(ctx context.Context, userID string) {
	defer s.wg.Done()

	s.tick(ctx, userID)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, userID)
		}
	}
}

// tick performs one discovery pass for the user. Platform failures skip the
// platform for this tick only; nothing is written after the loop is canceled.
func (s *Scheduler) tick(ctx context.Context, userID string) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			s.logger.Warn("Tick skipped, user has no profile",
				slog.String("user_id", userID),
			)
			return
		}
		s.logger.Error("Tick skipped, failed to load profile",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}

	active := s.store.ListByUserAndStates(ctx, userID, domain.ActiveStates...)
	remaining := profile.MaxTrackedJobs - len(active)
	if remaining <= 0 {
		s.logger.Debug("Tick skipped, tracking cap reached",
			slog.String("user_id", userID),
			slog.Int("active", len(active)),
			slog.Int("cap", profile.MaxTrackedJobs),
		)
		return
	}

	candidates := s.discover(ctx, profile)
	if len(candidates) == 0 {
		return
	}

	// Cap check happened before the searches; stop at the remaining budget so
	// a burst of matches cannot blow far past the cap.
	if len(candidates) > remaining {
		candidates = candidates[:remaining]
	}

	inserted := 0
	for i := range candidates {
		if ctx.Err() != nil {
			return
		}

		c := &candidates[i]
		rec := domain.NewJobRecord(c.platform, userID, &c.listing, s.now())
		ok, err := s.store.PutIfAbsent(ctx, rec)
		if err != nil {
			s.logger.Error("Failed to track discovered job",
				slog.String("job_key", rec.Key()),
				slog.Any("error", err),
			)
			continue
		}
		if !ok {
			// Another loop or a concurrent tick got there first.
			continue
		}

		inserted++
		s.queue.Enqueue(rec.Key())
	}

	if inserted > 0 {
		s.logger.Info("Discovered new jobs",
			slog.String("user_id", userID),
			slog.Int("count", inserted),
		)
	}
}

type candidate struct {
	platform string
	listing  domain.RawListing
}

// discover fans out across the profile's platforms, one search each, and
// returns matched listings in platform order. A platform whose search fails
// contributes nothing this tick.
func (s *Scheduler) discover(ctx context.Context, profile *domain.ProfileRecord) []candidate {
	results := make([][]domain.RawListing, len(profile.Platforms))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range profile.Platforms {
		p, ok := s.registry.Lookup(name)
		if !ok {
			s.logger.Warn("Profile references unknown platform",
				slog.String("user_id", profile.UserID),
				slog.String("platform", name),
			)
			continue
		}

		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(gctx, s.searchTimeout)
			defer cancel()

			listings, err := p.Search(searchCtx, profile)
			if err != nil {
				// Search failures never abort the tick for other platforms.
				s.logger.Warn("Platform search failed, skipping this tick",
					slog.String("user_id", profile.UserID),
					slog.String("platform", name),
					slog.Any("error", err),
				)
				return nil
			}
			results[i] = listings
			return nil
		})
	}
	_ = g.Wait()

	var out []candidate
	for i, name := range profile.Platforms {
		if len(results[i]) == 0 {
			continue
		}
		matched := matching.Match(profile, name, results[i], s.store.Has)
		for _, l := range matched {
			out = append(out, candidate{platform: name, listing: l})
		}
	}

	return out
}
