package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/shared/rabbitmq"
)

const (
	routingKeyNewJob    = "jobmatch.job.presented"
	routingKeyBidResult = "jobmatch.bid.result"

	contentTypeJSON = "application/json"
)

// jobEvent is the wire format for presented-job notifications.
type jobEvent struct {
	Event        string    `json:"event"`
	JobKey       string    `json:"job_key"`
	Platform     string    `json:"platform"`
	ExternalID   string    `json:"external_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	BudgetMin    float64   `json:"budget_min"`
	BudgetMax    float64   `json:"budget_max"`
	Currency     string    `json:"currency"`
	JobType      string    `json:"job_type"`
	PostedAt     time.Time `json:"posted_at"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// bidResultEvent is the wire format for bid outcome notifications.
type bidResultEvent struct {
	Event      string    `json:"event"`
	JobKey     string    `json:"job_key"`
	Platform   string    `json:"platform"`
	ExternalID string    `json:"external_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	StateNote  string    `json:"state_note,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AMQPNotifier publishes lifecycle events to RabbitMQ.
type AMQPNotifier struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewAMQPNotifier creates a notifier over an established RabbitMQ client.
func NewAMQPNotifier(client *rabbitmq.Client, logger *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{client: client, logger: logger}
}

// NotifyNewJob publishes a presented-job event.
func (n *AMQPNotifier) NotifyNewJob(ctx context.Context, job *domain.JobRecord) error {
	event := jobEvent{
		Event:        "job_presented",
		JobKey:       job.Key(),
		Platform:     job.Platform,
		ExternalID:   job.ExternalID,
		UserID:       job.UserID,
		Title:        job.Title,
		Description:  job.Description,
		BudgetMin:    job.BudgetMin,
		BudgetMax:    job.BudgetMax,
		Currency:     job.Currency,
		JobType:      job.JobType,
		PostedAt:     job.PostedAt,
		DiscoveredAt: job.DiscoveredAt,
	}

	return n.publish(ctx, routingKeyNewJob, event)
}

// NotifyBidResult publishes a bid outcome event.
func (n *AMQPNotifier) NotifyBidResult(ctx context.Context, job *domain.JobRecord) error {
	event := bidResultEvent{
		Event:      "bid_result",
		JobKey:     job.Key(),
		Platform:   job.Platform,
		ExternalID: job.ExternalID,
		UserID:     job.UserID,
		Title:      job.Title,
		State:      string(job.State),
		StateNote:  job.StateNote,
		UpdatedAt:  job.UpdatedAt,
	}

	return n.publish(ctx, routingKeyBidResult, event)
}

func (n *AMQPNotifier) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := n.client.PublishWithRetry(ctx, routingKey, body, contentTypeJSON); err != nil {
		return domain.NewRetryableError(err)
	}

	n.logger.Debug("Notification published",
		slog.String("routing_key", routingKey),
	)

	return nil
}
