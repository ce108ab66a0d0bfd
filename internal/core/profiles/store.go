// Package profiles stores user matching preferences. Profiles are written
// through the HTTP API only; the engine reads them at tick time.
package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/shared/postgresql"
)

// DefaultMaxTrackedJobs applies when a profile does not set its own cap.
const DefaultMaxTrackedJobs = 5

// Store persists profiles as JSON documents keyed by user ID.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a profile store backed by the given client.
func NewStore(pg *postgresql.Client) *Store {
	return &Store{db: pg.GetDB()}
}

// Upsert validates, normalises and saves a profile.
func (s *Store) Upsert(ctx context.Context, profile *domain.ProfileRecord) error {
	if err := Validate(profile); err != nil {
		return err
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, payload, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			payload    = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, profile.UserID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// Get returns the profile for userID, or domain.ErrProfileNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	var payload []byte
	query := `SELECT payload FROM user_profiles WHERE user_id = $1`

	err := s.db.QueryRowContext(ctx, query, userID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile domain.ProfileRecord
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

// Validate checks required fields and applies defaults in place.
func Validate(profile *domain.ProfileRecord) error {
	if profile.UserID == "" {
		return errors.New("profile user_id is required")
	}
	if len(profile.Platforms) == 0 {
		return errors.New("profile must enable at least one platform")
	}
	if profile.BudgetMin < 0 || profile.BudgetMax < 0 {
		return errors.New("profile budget bounds must not be negative")
	}
	if profile.BudgetMax > 0 && profile.BudgetMin > profile.BudgetMax {
		return errors.New("profile budget_min must not exceed budget_max")
	}
	if profile.MaxTrackedJobs < 0 {
		return errors.New("profile max_tracked_jobs must not be negative")
	}
	if profile.MaxTrackedJobs == 0 {
		profile.MaxTrackedJobs = DefaultMaxTrackedJobs
	}
	return nil
}
