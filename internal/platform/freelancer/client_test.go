package freelancer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/platform"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		APIBase:     srv.URL,
		Token:       "test-token",
		SearchLimit: 10,
	}, slog.New(slog.DiscardHandler))
}

func searchProfile() *domain.ProfileRecord {
	return &domain.ProfileRecord{
		UserID:     "u1",
		Skills:     []string{"python"},
		Categories: []string{"web scraping"},
		Platforms:  []string{"freelancer"},
		BudgetMin:  50,
		BudgetMax:  500,
		Currency:   "USD",
	}
}

func TestClient_Search(t *testing.T) {
	var gotQuery atomic.Value

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/0.1/projects/active/", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		gotQuery.Store(r.URL.Query())

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"projects": []map[string]any{
					{
						"id":          101,
						"title":       "Scrape product listings",
						"description": "Build a scraper",
						"submitdate":  1735689600,
						"period":      14,
						"budget": map[string]any{
							"minimum": 100.0,
							"maximum": 250.0,
							"currency": map[string]any{
								"code": "USD",
							},
						},
						"jobs": []map[string]any{
							{"name": "Python"},
							{"name": "Web Scraping"},
						},
					},
					{
						"id":       102,
						"title":    "Secret NDA project",
						"upgrades": map[string]bool{"NDA": true},
					},
					{
						"id":       103,
						"title":    "Full time role",
						"upgrades": map[string]bool{"fulltime": true},
					},
				},
			},
		})
	}))

	listings, err := c.Search(context.Background(), searchProfile())
	require.NoError(t, err)

	require.Len(t, listings, 1)
	l := listings[0]
	assert.Equal(t, "101", l.ExternalID)
	assert.Equal(t, "Scrape product listings", l.Title)
	assert.Equal(t, 100.0, l.BudgetMin)
	assert.Equal(t, 250.0, l.BudgetMax)
	assert.Equal(t, "USD", l.Currency)
	assert.Equal(t, "fixed", l.JobType)
	assert.Equal(t, 14, l.DurationDays)
	assert.Equal(t, []string{"Python", "Web Scraping"}, l.Skills)
	assert.NotEmpty(t, l.Raw)

	params := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"web scraping"}, params["query"])
	assert.Equal(t, []string{"python"}, params["jobs[]"])
	assert.Equal(t, []string{"50"}, params["min_price"])
	assert.Equal(t, []string{"500"}, params["max_price"])
	assert.Equal(t, []string{"true"}, params["full_description"])
}

func TestClient_SearchFlatEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"projects": []map[string]any{
				{"id": 7, "title": "Flat shape"},
			},
		})
	}))

	listings, err := c.Search(context.Background(), searchProfile())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "7", listings[0].ExternalID)
}

func TestClient_SearchServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))

	_, err := c.Search(context.Background(), searchProfile())
	require.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

func TestClient_SearchTruncatesToLimit(t *testing.T) {
	projects := make([]map[string]any, 30)
	for i := range projects {
		projects[i] = map[string]any{"id": i + 1, "title": "p"}
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"projects": projects})
	}))
	c.searchLimit = 5

	listings, err := c.Search(context.Background(), searchProfile())
	require.NoError(t, err)
	assert.Len(t, listings, 5)
}

func bidRequest() *platform.BidRequest {
	return &platform.BidRequest{
		Job: &domain.JobRecord{
			Platform:   PlatformName,
			ExternalID: "101",
			UserID:     "u1",
			Title:      "Scrape product listings",
		},
		CoverLetter: "Dear client",
		Amount:      175,
		PeriodDays:  14,
	}
}

func TestClient_SubmitBid(t *testing.T) {
	var selfCalls, bidCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/0.1/self/":
			selfCalls.Add(1)
			require.Equal(t, "test-token", r.Header.Get("freelancer-oauth-v1"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"id": 555},
			})

		case "/projects/0.1/bids/":
			bidCalls.Add(1)
			require.Equal(t, "test-token", r.Header.Get("freelancer-oauth-v1"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, float64(101), payload["project_id"])
			assert.Equal(t, float64(555), payload["bidder_id"])
			assert.Equal(t, float64(175), payload["amount"])
			assert.Equal(t, float64(14), payload["period"])
			assert.Equal(t, float64(100), payload["milestone_percentage"])
			assert.Equal(t, "Dear client", payload["description"])

			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})

		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	c := newTestClient(t, handler)

	result, err := c.SubmitBid(context.Background(), bidRequest())
	require.NoError(t, err)
	assert.Equal(t, platform.BidAccepted, result.Outcome)

	// Bidder id is cached across bids
	_, err = c.SubmitBid(context.Background(), bidRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), selfCalls.Load())
	assert.Equal(t, int32(2), bidCalls.Load())
}

func TestClient_SubmitBidRejection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/0.1/self/":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"id": 555},
			})
		case "/projects/0.1/bids/":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":  "error",
				"message": "You have already bid on this project",
			})
		}
	}))

	result, err := c.SubmitBid(context.Background(), bidRequest())
	require.NoError(t, err)
	assert.Equal(t, platform.BidRejectedByPlatform, result.Outcome)
	assert.Equal(t, "You have already bid on this project", result.Message)
}

func TestClient_SubmitBidSelfFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := c.SubmitBid(context.Background(), bidRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve bidder id")
}
