package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/core/dispatcher"
	"github.com/minhnq-dev/jobmatch-be/internal/core/scheduler"
	"github.com/minhnq-dev/jobmatch-be/internal/core/statestore"
)

// ProfileStore is the profile persistence surface the API needs.
type ProfileStore interface {
	Upsert(ctx context.Context, profile *domain.ProfileRecord) error
	Get(ctx context.Context, userID string) (*domain.ProfileRecord, error)
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Store      *statestore.Store
	Profiles   ProfileStore
	Scheduler  *scheduler.Scheduler
	Dispatcher *dispatcher.Dispatcher
	Health     HealthChecker
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
