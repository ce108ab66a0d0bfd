package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/shared/postgresql"
)

// PostgresPersister stores serialized job records in the tracked_jobs table,
// keyed by the composite "<platform>-<externalID>" string.
type PostgresPersister struct {
	db *sqlx.DB
}

// NewPostgresPersister creates a persister backed by the given client.
func NewPostgresPersister(pg *postgresql.Client) *PostgresPersister {
	return &PostgresPersister{db: pg.GetDB()}
}

type trackedJobRow struct {
	JobKey       string    `db:"job_key"`
	Platform     string    `db:"platform"`
	ExternalID   string    `db:"external_id"`
	UserID       string    `db:"user_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	BudgetMin    float64   `db:"budget_min"`
	BudgetMax    float64   `db:"budget_max"`
	Currency     string    `db:"currency"`
	JobType      string    `db:"job_type"`
	DurationDays int       `db:"duration_days"`
	PostedAt     time.Time `db:"posted_at"`
	RawPayload   []byte    `db:"raw_payload"`
	State        string    `db:"state"`
	StateNote    string    `db:"state_note"`
	DiscoveredAt time.Time `db:"discovered_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Save upserts a record snapshot. The upsert keeps re-discovery replays
// idempotent at the durable layer as well.
func (p *PostgresPersister) Save(ctx context.Context, rec *domain.JobRecord) error {
	query := `
		INSERT INTO tracked_jobs (
			job_key, platform, external_id, user_id, title, description,
			budget_min, budget_max, currency, job_type, duration_days,
			posted_at, raw_payload, state, state_note, discovered_at, updated_at
		) VALUES (
			:job_key, :platform, :external_id, :user_id, :title, :description,
			:budget_min, :budget_max, :currency, :job_type, :duration_days,
			:posted_at, :raw_payload, :state, :state_note, :discovered_at, :updated_at
		)
		ON CONFLICT (job_key) DO UPDATE SET
			state      = EXCLUDED.state,
			state_note = EXCLUDED.state_note,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.NamedExecContext(ctx, query, toRow(rec))
	if err != nil {
		return fmt.Errorf("failed to save tracked job: %w", err)
	}

	return nil
}

// LoadAll returns every persisted record in discovery order.
func (p *PostgresPersister) LoadAll(ctx context.Context) ([]*domain.JobRecord, error) {
	query := `
		SELECT job_key, platform, external_id, user_id, title, description,
		       budget_min, budget_max, currency, job_type, duration_days,
		       posted_at, raw_payload, state, state_note, discovered_at, updated_at
		FROM tracked_jobs
		ORDER BY discovered_at ASC
	`

	var rows []trackedJobRow
	if err := p.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load tracked jobs: %w", err)
	}

	records := make([]*domain.JobRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func toRow(rec *domain.JobRecord) *trackedJobRow {
	return &trackedJobRow{
		JobKey:       rec.Key(),
		Platform:     rec.Platform,
		ExternalID:   rec.ExternalID,
		UserID:       rec.UserID,
		Title:        rec.Title,
		Description:  rec.Description,
		BudgetMin:    rec.BudgetMin,
		BudgetMax:    rec.BudgetMax,
		Currency:     rec.Currency,
		JobType:      rec.JobType,
		DurationDays: rec.DurationDays,
		PostedAt:     rec.PostedAt,
		RawPayload:   rec.RawPayload,
		State:        string(rec.State),
		StateNote:    rec.StateNote,
		DiscoveredAt: rec.DiscoveredAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromRow(row *trackedJobRow) (*domain.JobRecord, error) {
	state, err := domain.ParseState(row.State)
	if err != nil {
		return nil, fmt.Errorf("tracked job %s: %w", row.JobKey, err)
	}

	return &domain.JobRecord{
		Platform:     row.Platform,
		ExternalID:   row.ExternalID,
		UserID:       row.UserID,
		Title:        row.Title,
		Description:  row.Description,
		BudgetMin:    row.BudgetMin,
		BudgetMax:    row.BudgetMax,
		Currency:     row.Currency,
		JobType:      row.JobType,
		DurationDays: row.DurationDays,
		PostedAt:     row.PostedAt,
		RawPayload:   json.RawMessage(row.RawPayload),
		State:        state,
		StateNote:    row.StateNote,
		DiscoveredAt: row.DiscoveredAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}
