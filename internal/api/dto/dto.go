package dto

type UpsertProfileRequest struct {
	Skills         []string `json:"skills"`
	Categories     []string `json:"categories"`
	Platforms      []string `json:"platforms" binding:"required"`
	BudgetMin      float64  `json:"budget_min"`
	BudgetMax      float64  `json:"budget_max"`
	HourlyRate     float64  `json:"hourly_rate"`
	Currency       string   `json:"currency"`
	Experience     string   `json:"experience"`
	SampleLinks    []string `json:"sample_links"`
	MaxTrackedJobs int      `json:"max_tracked_jobs"`
}

type ProfileResponse struct {
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

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
}

type ListJobsRequest struct {
	States string `form:"states"`
}

type JobDTO struct {
	JobKey       string  `json:"job_key"`
	Platform     string  `json:"platform"`
	ExternalID   string  `json:"external_id"`
	UserID       string  `json:"user_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	BudgetMin    float64 `json:"budget_min"`
	BudgetMax    float64 `json:"budget_max"`
	Currency     string  `json:"currency"`
	JobType      string  `json:"job_type"`
	State        string  `json:"state"`
	StateNote    string  `json:"state_note,omitempty"`
	PostedAt     string  `json:"posted_at"`
	DiscoveredAt string  `json:"discovered_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobDTO `json:"jobs"`
}

type MatchingStatusResponse struct {
	UserID  string `json:"user_id"`
	Running bool   `json:"running"`
}
