// Package platform defines the contracts a freelancing platform integration
// must implement, and the registry resolving them by name at startup.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

// BidOutcome is the result of a bid submission.
type BidOutcome string

const (
	BidAccepted           BidOutcome = "accepted"
	BidRejectedByPlatform BidOutcome = "rejected_by_platform"
)

// BidRequest carries everything a platform needs to place a bid.
type BidRequest struct {
	Job         *domain.JobRecord
	CoverLetter string
	Amount      float64
	PeriodDays  int
}

// BidResult is the platform's answer to a submitted bid. Message carries the
// rejection reason when Outcome is BidRejectedByPlatform.
type BidResult struct {
	Outcome BidOutcome
	Message string
}

// Searcher fetches raw listings matching a profile's criteria. A transport
// or auth failure is reported as domain.ErrSearchUnavailable (wrapped).
type Searcher interface {
	Search(ctx context.Context, profile *domain.ProfileRecord) ([]domain.RawListing, error)
}

// BidSubmitter places a bid on a job. Transport errors are returned as
// errors; an explicit platform rejection is a BidResult with
// BidRejectedByPlatform and a nil error.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, req *BidRequest) (*BidResult, error)
}

// Platform is a named search + bid integration.
type Platform interface {
	Name() string
	Searcher
	BidSubmitter
}

// Registry maps platform names to integrations. Populated once at startup;
// new platforms register an implementation instead of being special-cased.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]Platform
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{platforms: make(map[string]Platform)}
}

// Register adds a platform. Duplicate names are an error.
func (r *Registry) Register(p Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, ok := r.platforms[name]; ok {
		return fmt.Errorf("platform %q already registered", name)
	}
	r.platforms[name] = p
	return nil
}

// Lookup resolves a platform by name.
func (r *Registry) Lookup(name string) (Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.platforms[name]
	return p, ok
}

// Names returns the registered platform names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
