// Package dispatcher moves tracked jobs through the bid lifecycle: it
// presents discovered jobs to the user one at a time, applies user decisions,
// and executes the bid pipeline for accepted jobs.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/core/scheduler"
	"github.com/minhnq-dev/jobmatch-be/internal/core/statestore"
	"github.com/minhnq-dev/jobmatch-be/internal/coverletter"
	"github.com/minhnq-dev/jobmatch-be/internal/notify"
	"github.com/minhnq-dev/jobmatch-be/internal/platform"
)

// defaultBidAmount applies when neither the profile nor the listing gives a
// usable price signal.
const defaultBidAmount = 100

// defaultBidPeriodDays applies when the listing has no stated duration.
const defaultBidPeriodDays = 7

// Config holds dispatcher configuration
type Config struct {
	Logger            *slog.Logger
	Store             *statestore.Store
	Queue             *Queue
	Profiles          scheduler.ProfileSource
	Registry          *platform.Registry
	Presenter         notify.Presenter
	Generator         coverletter.Generator
	DispatchInterval  time.Duration
	GenerationTimeout time.Duration
	BidTimeout        time.Duration
}

// Dispatcher is the single consumer of the presentation queue and the entry
// point for user decisions and bid requests. Bids are serialized per job key;
// a second request for a key in flight waits and then fails its CAS.
type Dispatcher struct {
	logger            *slog.Logger
	store             *statestore.Store
	queue             *Queue
	profiles          scheduler.ProfileSource
	registry          *platform.Registry
	presenter         notify.Presenter
	generator         coverletter.Generator
	dispatchInterval  time.Duration
	generationTimeout time.Duration
	bidTimeout        time.Duration

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a dispatcher.
func New(cfg *Config) *Dispatcher {
	dispatchInterval := cfg.DispatchInterval
	if dispatchInterval <= 0 {
		dispatchInterval = time.Second
	}
	generationTimeout := cfg.GenerationTimeout
	if generationTimeout <= 0 {
		generationTimeout = time.Minute
	}
	bidTimeout := cfg.BidTimeout
	if bidTimeout <= 0 {
		bidTimeout = 30 * time.Second
	}

	return &Dispatcher{
		logger:            cfg.Logger,
		store:             cfg.Store,
		queue:             cfg.Queue,
		profiles:          cfg.Profiles,
		registry:          cfg.Registry,
		presenter:         cfg.Presenter,
		generator:         cfg.Generator,
		dispatchInterval:  dispatchInterval,
		generationTimeout: generationTimeout,
		bidTimeout:        bidTimeout,
		keyLocks:          make(map[string]*sync.Mutex),
		stopChan:          make(chan struct{}),
	}
}

// Recover re-enqueues records stuck in discovered from a previous run. Call
// once after the store is loaded, before Start.
func (d *Dispatcher) Recover(ctx context.Context) {
	pending := d.store.ListByStates(ctx, domain.StateDiscovered)
	for _, rec := range pending {
		d.queue.Enqueue(rec.Key())
	}

	if len(pending) > 0 {
		d.logger.Info("Recovered undelivered jobs",
			slog.Int("count", len(pending)),
		)
	}
}

// Start launches the presentation loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)

	d.logger.Info("Dispatcher started",
		slog.Duration("dispatch_interval", d.dispatchInterval),
	)
}

// Stop halts the presentation loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			key, ok := d.queue.Dequeue()
			if !ok {
				continue
			}
			d.present(ctx, key)
		}
	}
}

// present moves one discovered job to presented and notifies the user. The
// transition commits before the notification goes out; a duplicate enqueue
// loses its CAS and is dropped without a second notification.
func (d *Dispatcher) present(ctx context.Context, key string) {
	rec, err := d.store.Transition(ctx, key, domain.StateDiscovered, domain.StatePresented, "")
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			d.logger.Debug("Skipping presentation, job already moved on",
				slog.String("job_key", key),
				slog.String("state", string(conflict.Actual)),
			)
			return
		}
		d.logger.Error("Failed to present job",
			slog.String("job_key", key),
			slog.Any("error", err),
		)
		return
	}

	if err := d.presenter.NotifyNewJob(ctx, rec); err != nil {
		// The record stays presented; the user can still list it through the
		// API even though the push notification was lost.
		d.logger.Error("Failed to notify user of new job",
			slog.String("job_key", key),
			slog.String("user_id", rec.UserID),
			slog.Any("error", err),
		)
		return
	}

	d.logger.Info("Job presented",
		slog.String("job_key", key),
		slog.String("user_id", rec.UserID),
	)
}

// Accept marks a presented job as accepted by the user.
func (d *Dispatcher) Accept(ctx context.Context, key string) (*domain.JobRecord, error) {
	return d.decide(ctx, key, domain.StateAccepted)
}

// Reject marks a presented or accepted job as rejected by the user.
func (d *Dispatcher) Reject(ctx context.Context, key string) (*domain.JobRecord, error) {
	return d.decide(ctx, key, domain.StateRejected)
}

func (d *Dispatcher) decide(ctx context.Context, key string, to domain.State) (*domain.JobRecord, error) {
	current, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	rec, err := d.store.Transition(ctx, key, current.State, to, "")
	if err != nil {
		return nil, err
	}

	d.logger.Info("User decision recorded",
		slog.String("job_key", key),
		slog.String("state", string(to)),
	)

	return rec, nil
}

// SubmitBid runs the bid pipeline for an accepted job: claim it as
// bid_pending, generate a cover letter, pick an amount, and submit to the
// platform. Every outcome lands the record in bid_confirmed or bid_failed
// and notifies the user. The returned record carries the final state.
func (d *Dispatcher) SubmitBid(ctx context.Context, key string) (*domain.JobRecord, error) {
	lock := d.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	rec, err := d.store.Transition(ctx, key, domain.StateAccepted, domain.StateBidPending, "")
	if err != nil {
		return nil, err
	}

	p, ok := d.registry.Lookup(rec.Platform)
	if !ok {
		return d.failBid(ctx, key, fmt.Sprintf("platform %q is not registered", rec.Platform))
	}

	profile, err := d.profiles.Get(ctx, rec.UserID)
	if err != nil {
		return d.failBid(ctx, key, fmt.Sprintf("failed to load profile: %v", err))
	}

	letter, err := d.generateLetter(ctx, rec, profile)
	if err != nil {
		d.logger.Error("Cover letter generation failed",
			slog.String("job_key", key),
			slog.Any("error", err),
		)
		return d.failBid(ctx, key, fmt.Sprintf("cover letter generation failed: %v", err))
	}

	amount := SuggestBidAmount(rec, profile)
	period := rec.DurationDays
	if period <= 0 {
		period = defaultBidPeriodDays
	}

	bidCtx, cancel := context.WithTimeout(ctx, d.bidTimeout)
	result, err := p.SubmitBid(bidCtx, &platform.BidRequest{
		Job:         rec,
		CoverLetter: letter,
		Amount:      amount,
		PeriodDays:  period,
	})
	cancel()
	if err != nil {
		d.logger.Error("Bid submission failed",
			slog.String("job_key", key),
			slog.Any("error", err),
		)
		return d.failBid(ctx, key, fmt.Sprintf("bid submission failed: %v", err))
	}

	if result.Outcome == platform.BidRejectedByPlatform {
		return d.failBid(ctx, key, "rejected by platform: "+result.Message)
	}

	confirmed, err := d.store.Transition(ctx, key, domain.StateBidPending, domain.StateBidConfirmed, "")
	if err != nil {
		return nil, err
	}

	d.notifyBidResult(ctx, confirmed)

	d.logger.Info("Bid confirmed",
		slog.String("job_key", key),
		slog.Float64("amount", amount),
	)

	return confirmed, nil
}

// failBid records a terminal bid failure with its reason and notifies the
// user. The record never leaves bid_failed afterwards.
func (d *Dispatcher) failBid(ctx context.Context, key, reason string) (*domain.JobRecord, error) {
	rec, err := d.store.Transition(ctx, key, domain.StateBidPending, domain.StateBidFailed, reason)
	if err != nil {
		return nil, err
	}

	d.notifyBidResult(ctx, rec)
	return rec, nil
}

func (d *Dispatcher) notifyBidResult(ctx context.Context, rec *domain.JobRecord) {
	if err := d.presenter.NotifyBidResult(ctx, rec); err != nil {
		d.logger.Error("Failed to notify user of bid result",
			slog.String("job_key", rec.Key()),
			slog.String("state", string(rec.State)),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher) generateLetter(ctx context.Context, rec *domain.JobRecord, profile *domain.ProfileRecord) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, d.generationTimeout)
	defer cancel()

	return d.generator.Generate(genCtx, &coverletter.Request{
		JobTitle:          rec.Title,
		JobDescription:    rec.Description,
		ExperienceSummary: profile.Experience,
		SampleLinks:       profile.SampleLinks,
	})
}

// lockFor returns the per-key mutex, creating it on first use. Locks are
// never removed; the key space is bounded by tracked jobs.
func (d *Dispatcher) lockFor(key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.keyLocks[key] = lock
	}
	return lock
}

// SuggestBidAmount picks a bid price: the profile's hourly rate for hourly
// jobs, otherwise the midpoint of the listing's budget, otherwise a flat
// default.
func SuggestBidAmount(rec *domain.JobRecord, profile *domain.ProfileRecord) float64 {
	if rec.JobType == "hourly" && profile.HourlyRate > 0 {
		return profile.HourlyRate
	}

	if rec.BudgetMin > 0 && rec.BudgetMax > 0 {
		return (rec.BudgetMin + rec.BudgetMax) / 2
	}
	if rec.BudgetMax > 0 {
		return rec.BudgetMax
	}
	if rec.BudgetMin > 0 {
		return rec.BudgetMin
	}

	return defaultBidAmount
}
