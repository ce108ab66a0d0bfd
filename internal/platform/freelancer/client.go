// Package freelancer integrates the Freelancer.com REST API as a platform:
// active-project search and bid placement.
package freelancer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/platform"
)

// PlatformName is the registry key for this integration.
const PlatformName = "freelancer"

const (
	defaultSearchLimit  = 10
	httpTimeout         = 30 * time.Second
	oauthHeader         = "freelancer-oauth-v1"
	milestonePercentage = 100
)

// Config holds Freelancer.com API settings.
type Config struct {
	APIBase     string
	Token       string
	SearchLimit int
}

// Client implements platform.Platform against the Freelancer.com API.
type Client struct {
	apiBase     string
	token       string
	searchLimit int
	httpClient  *http.Client
	logger      *slog.Logger

	mu       sync.Mutex
	bidderID int64 // resolved once from /users/0.1/self/
}

// NewClient creates a Freelancer.com client with a shared HTTP client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	return &Client{
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		token:       cfg.Token,
		searchLimit: limit,
		httpClient:  &http.Client{Timeout: httpTimeout},
		logger:      logger,
	}
}

// Name returns the registry key.
func (c *Client) Name() string { return PlatformName }

// freelancerProject mirrors a single project in the search response.
type freelancerProject struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	PreviewDescription string `json:"preview_description"`
	Description        string `json:"description"`
	SubmitDate         int64  `json:"submitdate"`
	Period             int    `json:"period"`
	Budget             struct {
		Minimum  float64 `json:"minimum"`
		Maximum  float64 `json:"maximum"`
		Currency struct {
			Code string `json:"code"`
			Sign string `json:"sign"`
		} `json:"currency"`
	} `json:"budget"`
	Jobs []struct {
		Name string `json:"name"`
	} `json:"jobs"`
	Upgrades map[string]bool `json:"upgrades"`
}

// Search fetches active projects matching the profile's criteria. Transport
// and auth failures are wrapped in domain.ErrSearchUnavailable so the caller
// treats them as a skipped tick.
func (c *Client) Search(ctx context.Context, profile *domain.ProfileRecord) ([]domain.RawListing, error) {
	params := url.Values{}
	params.Set("query", searchQuery(profile))
	params.Set("limit", strconv.Itoa(c.searchLimit))
	params.Set("full_description", "true")
	params.Set("sort_field", "time_submitted")
	params.Set("reverse_sort", "true")

	if profile.BudgetMin > 0 {
		params.Set("min_price", strconv.FormatFloat(profile.BudgetMin, 'f', -1, 64))
	}
	if profile.BudgetMax > 0 {
		params.Set("max_price", strconv.FormatFloat(profile.BudgetMax, 'f', -1, 64))
	}
	if profile.Currency != "" {
		params.Set("currency", profile.Currency)
	}
	for _, skill := range profile.Skills {
		params.Add("jobs[]", skill)
	}

	reqURL := c.apiBase + "/projects/0.1/projects/active/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrSearchUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: freelancer returned %d: %s", domain.ErrSearchUnavailable, resp.StatusCode, body)
	}

	return parseSearchResponse(body, c.searchLimit)
}

// parseSearchResponse extracts projects from either the flat or the
// result-wrapped response shape and normalises them. NDA and fulltime
// projects are dropped.
func parseSearchResponse(body []byte, limit int) ([]domain.RawListing, error) {
	var envelope struct {
		Projects []json.RawMessage `json:"projects"`
		Result   struct {
			Projects []json.RawMessage `json:"projects"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrSearchUnavailable, err)
	}

	raws := envelope.Projects
	if len(raws) == 0 {
		raws = envelope.Result.Projects
	}

	listings := make([]domain.RawListing, 0, len(raws))
	for _, raw := range raws {
		var p freelancerProject
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if p.Upgrades["NDA"] || p.Upgrades["fulltime"] {
			continue
		}

		listings = append(listings, toListing(&p, raw))
		if len(listings) >= limit {
			break
		}
	}

	return listings, nil
}

func toListing(p *freelancerProject, raw json.RawMessage) domain.RawListing {
	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = strings.TrimSpace(p.PreviewDescription)
	}

	currency := p.Budget.Currency.Code
	if currency == "" {
		currency = p.Budget.Currency.Sign
	}
	if currency == "" {
		currency = "USD"
	}

	jobType := "fixed"
	if p.Upgrades["is_hourly"] {
		jobType = "hourly"
	}

	skills := make([]string, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		if j.Name != "" {
			skills = append(skills, j.Name)
		}
	}

	var postedAt time.Time
	if p.SubmitDate > 0 {
		postedAt = time.Unix(p.SubmitDate, 0).UTC()
	}

	return domain.RawListing{
		ExternalID:   strconv.FormatInt(p.ID, 10),
		Title:        p.Title,
		Description:  description,
		BudgetMin:    p.Budget.Minimum,
		BudgetMax:    p.Budget.Maximum,
		Currency:     currency,
		JobType:      jobType,
		DurationDays: p.Period,
		Skills:       skills,
		PostedAt:     postedAt,
		Raw:          append(json.RawMessage(nil), raw...),
	}
}

// SubmitBid places a bid on a project. An explicit API rejection comes back
// as BidRejectedByPlatform with the platform's message; transport errors are
// returned as errors.
func (c *Client) SubmitBid(ctx context.Context, req *platform.BidRequest) (*platform.BidResult, error) {
	bidderID, err := c.resolveBidderID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve bidder id: %w", err)
	}

	projectID, err := strconv.ParseInt(req.Job.ExternalID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid freelancer project id %q: %w", req.Job.ExternalID, err)
	}

	payload, err := json.Marshal(map[string]any{
		"project_id":           projectID,
		"bidder_id":            bidderID,
		"amount":               req.Amount,
		"period":               req.PeriodDays,
		"milestone_percentage": milestonePercentage,
		"description":          req.CoverLetter,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bid payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/projects/0.1/bids/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(oauthHeader, c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post bid: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bid response: %w", err)
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if len(body) > 0 {
		// A malformed body still carries the status code, fall through.
		_ = json.Unmarshal(body, &result)
	}

	if resp.StatusCode == http.StatusOK && result.Status == "success" {
		c.logger.Info("Bid placed",
			slog.String("job_key", req.Job.Key()),
			slog.Float64("amount", req.Amount),
			slog.Int("period_days", req.PeriodDays),
		)
		return &platform.BidResult{Outcome: platform.BidAccepted}, nil
	}

	message := result.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fmt.Sprintf("freelancer returned %d", resp.StatusCode)
	}

	c.logger.Warn("Bid rejected by platform",
		slog.String("job_key", req.Job.Key()),
		slog.Int("status_code", resp.StatusCode),
		slog.String("message", message),
	)

	return &platform.BidResult{
		Outcome: platform.BidRejectedByPlatform,
		Message: message,
	}, nil
}

// resolveBidderID fetches and caches the authenticated user's Freelancer id.
func (c *Client) resolveBidderID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bidderID != 0 {
		return c.bidderID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/users/0.1/self/", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set(oauthHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get self: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("freelancer self returned %d: %s", resp.StatusCode, body)
	}

	var self struct {
		Result struct {
			ID int64 `json:"id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&self); err != nil {
		return 0, fmt.Errorf("decode self response: %w", err)
	}
	if self.Result.ID == 0 {
		return 0, fmt.Errorf("freelancer self response missing user id")
	}

	c.bidderID = self.Result.ID
	return c.bidderID, nil
}

// searchQuery picks the free-text query: preferred category first, then the
// first skill, with a generic fallback.
func searchQuery(profile *domain.ProfileRecord) string {
	if len(profile.Categories) > 0 && strings.TrimSpace(profile.Categories[0]) != "" {
		return strings.TrimSpace(profile.Categories[0])
	}
	if len(profile.Skills) > 0 && strings.TrimSpace(profile.Skills[0]) != "" {
		return strings.TrimSpace(profile.Skills[0])
	}
	return "freelance"
}
