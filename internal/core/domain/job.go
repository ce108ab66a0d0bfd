// Package domain defines the data model shared by the matching engine:
// tracked jobs, user profiles, raw listings, and the bid lifecycle.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the bid-lifecycle state of a tracked job.
type State string

const (
	StateDiscovered   State = "discovered"
	StatePresented    State = "presented"
	StateAccepted     State = "accepted"
	StateRejected     State = "rejected"
	StateBidPending   State = "bid_pending"
	StateBidConfirmed State = "bid_confirmed"
	StateBidFailed    State = "bid_failed"
)

// validTransitions lists every allowed (from -> to) edge.
//
//	discovered -> presented -> accepted -> bid_pending -> bid_confirmed
//	                        \           \            \-> bid_failed
//	                         \-> rejected (from presented or accepted)
//
// rejected, bid_confirmed and bid_failed are terminal.
var validTransitions = map[State][]State{
	StateDiscovered: {StatePresented},
	StatePresented:  {StateAccepted, StateRejected},
	StateAccepted:   {StateBidPending, StateRejected},
	StateBidPending: {StateBidConfirmed, StateBidFailed},
}

// ActiveStates are the non-terminal states counted against a user's
// concurrent tracking cap.
var ActiveStates = []State{StateDiscovered, StatePresented, StateAccepted, StateBidPending}

// ParseState converts a raw string to a State, returning an error for
// unknown values.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateDiscovered, StatePresented, StateAccepted, StateRejected,
		StateBidPending, StateBidConfirmed, StateBidFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job state %q", s)
}

// CanTransition reports whether moving from -> to is permitted by the
// lifecycle graph.
func CanTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s State) bool {
	_, ok := validTransitions[s]
	return !ok
}

// JobKey builds the composite key identifying a tracked job. The format is
// preserved in durable storage for interoperability with audit views.
func JobKey(platform, externalID string) string {
	return platform + "-" + externalID
}

// JobRecord is a job listing tracked through the bid lifecycle. The composite
// (Platform, ExternalID) key is globally unique and immutable once created.
// State is mutated only through statestore transitions; records are never
// deleted, only superseded in state.
type JobRecord struct {
	Platform     string          `json:"platform"`
	ExternalID   string          `json:"external_id"`
	UserID       string          `json:"user_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	BudgetMin    float64         `json:"budget_min"`
	BudgetMax    float64         `json:"budget_max"`
	Currency     string          `json:"currency"`
	JobType      string          `json:"job_type"` // hourly or fixed
	DurationDays int             `json:"duration_days,omitempty"`
	PostedAt     time.Time       `json:"posted_at"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"` // opaque source payload, kept for cover-letter generation
	State        State           `json:"state"`
	StateNote    string          `json:"state_note,omitempty"` // failure reason on bid_failed
	DiscoveredAt time.Time       `json:"discovered_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Key returns the composite store key for the record.
func (r *JobRecord) Key() string {
	return JobKey(r.Platform, r.ExternalID)
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (r *JobRecord) Clone() *JobRecord {
	c := *r
	if r.RawPayload != nil {
		c.RawPayload = append(json.RawMessage(nil), r.RawPayload...)
	}
	return &c
}

// RawListing is a normalised job offer fetched from an external platform,
// before matching. Raw holds the source payload verbatim.
type RawListing struct {
	ExternalID   string          `json:"external_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	BudgetMin    float64         `json:"budget_min"`
	BudgetMax    float64         `json:"budget_max"`
	Currency     string          `json:"currency"`
	JobType      string          `json:"job_type"`
	DurationDays int             `json:"duration_days,omitempty"`
	Skills       []string        `json:"skills,omitempty"`
	Categories   []string        `json:"categories,omitempty"`
	PostedAt     time.Time       `json:"posted_at"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// NewJobRecord builds a discovered JobRecord for a user from a raw listing.
func NewJobRecord(platform, userID string, l *RawListing, now time.Time) *JobRecord {
	return &JobRecord{
		Platform:     platform,
		ExternalID:   l.ExternalID,
		UserID:       userID,
		Title:        l.Title,
		Description:  l.Description,
		BudgetMin:    l.BudgetMin,
		BudgetMax:    l.BudgetMax,
		Currency:     l.Currency,
		JobType:      l.JobType,
		DurationDays: l.DurationDays,
		PostedAt:     l.PostedAt,
		RawPayload:   l.Raw,
		State:        StateDiscovered,
		DiscoveredAt: now,
		UpdatedAt:    now,
	}
}

// ProfileRecord holds a user's matching preferences. It is written through
// the profile API only and read-only to the engine.
type ProfileRecord struct {
	UserID         string   `json:"user_id"`
	Skills         []string `json:"skills"`
	Categories     []string `json:"categories"`
	Platforms      []string `json:"platforms"`
	BudgetMin      float64  `json:"budget_min"`
	BudgetMax      float64  `json:"budget_max"`
	HourlyRate     float64  `json:"hourly_rate,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Experience     string   `json:"experience,omitempty"`
	SampleLinks    []string `json:"sample_links,omitempty"`
	MaxTrackedJobs int      `json:"max_tracked_jobs"`
}
