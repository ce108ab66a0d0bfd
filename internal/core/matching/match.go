// Package matching implements the pure listing filter: profile preferences
// against a batch of raw listings from one platform.
package matching

import (
	"strings"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

// KnownFunc reports whether a job key is already tracked for the user.
type KnownFunc func(key string) bool

// Match filters listings down to candidates the user has not seen yet:
// skill/category intersection, budget bounds, and dedup against the known
// set and within the batch itself. Output preserves input order; no listing
// is mutated. Deterministic given the same inputs.
func Match(profile *domain.ProfileRecord, platform string, listings []domain.RawListing, known KnownFunc) []domain.RawListing {
	out := make([]domain.RawListing, 0, len(listings))
	seen := make(map[string]struct{}, len(listings))

	for _, l := range listings {
		if l.ExternalID == "" {
			continue
		}
		if _, dup := seen[l.ExternalID]; dup {
			continue
		}
		seen[l.ExternalID] = struct{}{}

		if known != nil && known(domain.JobKey(platform, l.ExternalID)) {
			continue
		}
		if !matchesSkills(profile, &l) {
			continue
		}
		if !matchesBudget(profile, &l) {
			continue
		}

		out = append(out, l)
	}

	return out
}

// matchesSkills requires an intersection between the profile's skill or
// category sets and the listing's. A profile with neither configured
// matches everything.
func matchesSkills(profile *domain.ProfileRecord, l *domain.RawListing) bool {
	if len(profile.Skills) == 0 && len(profile.Categories) == 0 {
		return true
	}
	if intersects(profile.Skills, l.Skills) {
		return true
	}
	return intersects(profile.Categories, l.Categories)
}

// matchesBudget accepts listings whose budget range overlaps the profile's
// bounds. Listings without a stated budget are let through; the user decides.
func matchesBudget(profile *domain.ProfileRecord, l *domain.RawListing) bool {
	if l.BudgetMin == 0 && l.BudgetMax == 0 {
		return true
	}

	high := l.BudgetMax
	if high == 0 {
		high = l.BudgetMin
	}
	low := l.BudgetMin
	if low == 0 {
		low = l.BudgetMax
	}

	if profile.BudgetMin > 0 && high < profile.BudgetMin {
		return false
	}
	if profile.BudgetMax > 0 && low > profile.BudgetMax {
		return false
	}
	return true
}

// intersects reports whether the two sets share an element,
// case-insensitively.
func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[strings.ToLower(strings.TrimSpace(s))]; ok {
			return true
		}
	}
	return false
}
