// Package statestore implements the dedup-aware store of tracked jobs with
// atomic lifecycle transitions. The in-memory table is the source of truth
// for the running process; durable storage is synced best-effort through a
// Persister and replayed at startup.
package statestore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

// Persister is the durable substrate behind the store. Save upserts a single
// record keyed by its composite job key; LoadAll returns every persisted
// record for startup replay.
type Persister interface {
	Save(ctx context.Context, rec *domain.JobRecord) error
	LoadAll(ctx context.Context) ([]*domain.JobRecord, error)
}

// Config holds store tuning.
type Config struct {
	Logger        *slog.Logger
	Persister     Persister
	SaveRetries   int           // attempts after the first failure
	SaveRetryBase time.Duration // first backoff delay, doubled per attempt
}

// Store is the shared mutable resource of the engine. All state mutation
// goes through PutIfAbsent and Transition, both compare-and-swap.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.JobRecord

	persister     Persister
	saveRetries   int
	saveRetryBase time.Duration
	logger        *slog.Logger
}

// New creates a Store. Persister may be nil for a purely in-memory store.
func New(cfg *Config) *Store {
	retries := cfg.SaveRetries
	if retries <= 0 {
		retries = 2
	}
	base := cfg.SaveRetryBase
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	return &Store{
		records:       make(map[string]*domain.JobRecord),
		persister:     cfg.Persister,
		saveRetries:   retries,
		saveRetryBase: base,
		logger:        cfg.Logger,
	}
}

// Load hydrates the in-memory table from the persister. Called once at
// startup; a crash between mutation and sync may replay a discovered record
// here, which is harmless because the key dedups re-discovery.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	records, err := s.persister.LoadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.Key()] = rec.Clone()
	}

	s.logger.Info("State store loaded",
		slog.Int("records", len(records)),
	)

	return nil
}

// PutIfAbsent inserts a new discovered record. If the key already exists the
// existing record is left untouched and false is returned (dedup contract).
func (s *Store) PutIfAbsent(ctx context.Context, rec *domain.JobRecord) (bool, error) {
	key := rec.Key()

	s.mu.Lock()
	if _, ok := s.records[key]; ok {
		s.mu.Unlock()
		return false, nil
	}
	stored := rec.Clone()
	s.records[key] = stored
	snapshot := stored.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return true, nil
}

// Transition performs a compare-and-swap on the record's state. It returns
// the updated record, a *domain.ConflictError on a lost race, a
// *domain.InvalidTransitionError for a non-edge, or domain.ErrJobNotFound.
// note is recorded on the record (failure reason for bid_failed); pass ""
// to leave it unchanged.
func (s *Store) Transition(ctx context.Context, key string, from, to domain.State, note string) (*domain.JobRecord, error) {
	s.mu.Lock()
	rec, ok := s.records[key]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrJobNotFound
	}
	if !domain.CanTransition(from, to) {
		s.mu.Unlock()
		return nil, &domain.InvalidTransitionError{Key: key, From: from, To: to}
	}
	if rec.State != from {
		actual := rec.State
		s.mu.Unlock()
		return nil, &domain.ConflictError{Key: key, Expected: from, Actual: actual}
	}
	rec.State = to
	if note != "" {
		rec.StateNote = note
	}
	rec.UpdatedAt = time.Now().UTC()
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return snapshot.Clone(), nil
}

// Get returns the record for key, or domain.ErrJobNotFound.
func (s *Store) Get(ctx context.Context, key string) (*domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return rec.Clone(), nil
}

// Has reports whether the key is already tracked.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[key]
	return ok
}

// ListByUserAndStates returns the user's records in any of the given states,
// ordered by discovery time, oldest first. Used to enforce the tracking cap
// and to re-render pending cards after a restart.
func (s *Store) ListByUserAndStates(ctx context.Context, userID string, states ...domain.State) []*domain.JobRecord {
	s.mu.RLock()
	out := make([]*domain.JobRecord, 0)
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		if stateIn(rec.State, states) {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sortByDiscovery(out)
	return out
}

// ListByStates returns records in any of the given states across all users,
// ordered by discovery time. Used for startup replay of undelivered records.
func (s *Store) ListByStates(ctx context.Context, states ...domain.State) []*domain.JobRecord {
	s.mu.RLock()
	out := make([]*domain.JobRecord, 0)
	for _, rec := range s.records {
		if stateIn(rec.State, states) {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sortByDiscovery(out)
	return out
}

// persist syncs a record snapshot to durable storage with bounded backoff.
// Failure is logged, never propagated: the in-memory view stays the source
// of truth and the engine keeps operating.
func (s *Store) persist(ctx context.Context, rec *domain.JobRecord) {
	if s.persister == nil {
		return
	}

	var err error
	delay := s.saveRetryBase
	for attempt := 0; attempt <= s.saveRetries; attempt++ {
		if err = s.persister.Save(ctx, rec); err == nil {
			if attempt > 0 {
				s.logger.Info("Persisted job state after retry",
					slog.String("job_key", rec.Key()),
					slog.Int("attempt", attempt+1),
				)
			}
			return
		}

		if attempt < s.saveRetries {
			s.logger.Warn("Failed to persist job state, retrying",
				slog.String("job_key", rec.Key()),
				slog.Int("attempt", attempt+1),
				slog.Duration("retry_after", delay),
				slog.Any("error", err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay *= 2
		}
	}

	s.logger.Error("Failed to persist job state, continuing from memory",
		slog.String("job_key", rec.Key()),
		slog.String("state", string(rec.State)),
		slog.Any("error", err),
	)
}

func stateIn(s domain.State, states []domain.State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func sortByDiscovery(records []*domain.JobRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DiscoveredAt.Before(records[j].DiscoveredAt)
	})
}
