package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

func pythonProfile() *domain.ProfileRecord {
	return &domain.ProfileRecord{
		UserID:    "u1",
		Skills:    []string{"python"},
		Platforms: []string{"freelancer"},
		BudgetMin: 50,
		BudgetMax: 500,
	}
}

func TestMatch_FiltersAndDedups(t *testing.T) {
	profile := pythonProfile()

	listings := []domain.RawListing{
		{ExternalID: "1", Title: "Python scraper", Skills: []string{"Python"}, BudgetMin: 100, BudgetMax: 200},
		{ExternalID: "1", Title: "Python scraper duplicate", Skills: []string{"Python"}, BudgetMin: 100, BudgetMax: 200},
		{ExternalID: "2", Title: "Java backend", Skills: []string{"Java"}, BudgetMin: 100, BudgetMax: 200},
	}

	out := Match(profile, "freelancer", listings, nil)

	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ExternalID)
	assert.Equal(t, "Python scraper", out[0].Title)
}

func TestMatch_SkipsKnownKeys(t *testing.T) {
	profile := pythonProfile()

	listings := []domain.RawListing{
		{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
		{ExternalID: "2", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
	}

	known := func(key string) bool { return key == "freelancer-1" }

	out := Match(profile, "freelancer", listings, known)

	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ExternalID)
}

func TestMatch_BudgetOverlap(t *testing.T) {
	tests := []struct {
		name    string
		listing domain.RawListing
		want    bool
	}{
		{
			name:    "inside profile range",
			listing: domain.RawListing{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 100, BudgetMax: 200},
			want:    true,
		},
		{
			name:    "partial overlap at the top",
			listing: domain.RawListing{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 400, BudgetMax: 900},
			want:    true,
		},
		{
			name:    "entirely above profile budget",
			listing: domain.RawListing{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 600, BudgetMax: 900},
			want:    false,
		},
		{
			name:    "entirely below profile budget",
			listing: domain.RawListing{ExternalID: "1", Skills: []string{"python"}, BudgetMin: 10, BudgetMax: 20},
			want:    false,
		},
		{
			name:    "no stated budget passes through",
			listing: domain.RawListing{ExternalID: "1", Skills: []string{"python"}},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Match(pythonProfile(), "freelancer", []domain.RawListing{tt.listing}, nil)
			assert.Equal(t, tt.want, len(out) == 1)
		})
	}
}

func TestMatch_SkillIntersectionIsCaseInsensitive(t *testing.T) {
	profile := &domain.ProfileRecord{
		UserID:    "u1",
		Skills:    []string{"Python", "  go "},
		Platforms: []string{"freelancer"},
	}

	listings := []domain.RawListing{
		{ExternalID: "1", Skills: []string{"PYTHON"}},
		{ExternalID: "2", Skills: []string{"Go"}},
		{ExternalID: "3", Skills: []string{"rust"}},
	}

	out := Match(profile, "freelancer", listings, nil)

	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ExternalID)
	assert.Equal(t, "2", out[1].ExternalID)
}

func TestMatch_CategoriesAlsoMatch(t *testing.T) {
	profile := &domain.ProfileRecord{
		UserID:     "u1",
		Categories: []string{"web scraping"},
		Platforms:  []string{"freelancer"},
	}

	listings := []domain.RawListing{
		{ExternalID: "1", Categories: []string{"Web Scraping"}},
		{ExternalID: "2", Categories: []string{"design"}},
	}

	out := Match(profile, "freelancer", listings, nil)

	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ExternalID)
}

func TestMatch_EmptyProfileMatchesEverything(t *testing.T) {
	profile := &domain.ProfileRecord{UserID: "u1", Platforms: []string{"freelancer"}}

	listings := []domain.RawListing{
		{ExternalID: "1", Skills: []string{"anything"}},
		{ExternalID: "2"},
	}

	out := Match(profile, "freelancer", listings, nil)
	assert.Len(t, out, 2)
}

func TestMatch_SkipsListingsWithoutExternalID(t *testing.T) {
	out := Match(pythonProfile(), "freelancer", []domain.RawListing{
		{Title: "no id", Skills: []string{"python"}},
	}, nil)

	assert.Empty(t, out)
}
