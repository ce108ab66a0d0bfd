package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/shared/rabbitmq"
)

const (
	decisionsQueueName  = "jobmatch_decisions"
	decisionsBindingKey = "jobmatch.decision.*"
	consumerTag         = "jobmatch-decision-consumer"
)

// Decider applies user decisions coming back from the gateway.
type Decider interface {
	Accept(ctx context.Context, key string) (*domain.JobRecord, error)
	Reject(ctx context.Context, key string) (*domain.JobRecord, error)
	SubmitBid(ctx context.Context, key string) (*domain.JobRecord, error)
}

// decisionMessage is the wire format gateways publish for user decisions.
type decisionMessage struct {
	JobKey   string `json:"job_key"`
	Decision string `json:"decision"` // accept, reject, bid
}

// DecisionConsumer reads user decisions off the decisions queue and applies
// them through the dispatcher. It mirrors the HTTP decision endpoints for
// gateways that prefer the queue.
type DecisionConsumer struct {
	client  *rabbitmq.Client
	decider Decider
	logger  *slog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDecisionConsumer creates a consumer over an established RabbitMQ client.
func NewDecisionConsumer(client *rabbitmq.Client, decider Decider, logger *slog.Logger) *DecisionConsumer {
	return &DecisionConsumer{
		client:   client,
		decider:  decider,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start binds the decisions queue and launches the consume loop.
func (dc *DecisionConsumer) Start(ctx context.Context) error {
	deliveries, err := dc.client.ConsumeQueue(decisionsQueueName, decisionsBindingKey, consumerTag)
	if err != nil {
		return err
	}

	dc.wg.Add(1)
	go dc.loop(ctx, deliveries)

	dc.logger.Info("Decision consumer started",
		slog.String("queue", decisionsQueueName),
	)

	return nil
}

// Stop halts the consume loop and waits for it to exit.
func (dc *DecisionConsumer) Stop() {
	close(dc.stopChan)
	dc.wg.Wait()
	dc.logger.Info("Decision consumer stopped")
}

func (dc *DecisionConsumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer dc.wg.Done()

	for {
		select {
		case <-dc.stopChan:
			return

		case <-ctx.Done():
			return

		case delivery, ok := <-deliveries:
			if !ok {
				dc.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			dc.handle(ctx, delivery)
		}
	}
}

// handle applies one decision. A lost CAS or a non-edge means the decision is
// stale, not retryable, so the message is dropped rather than requeued.
func (dc *DecisionConsumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var msg decisionMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		dc.logger.Error("Failed to parse decision message",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		dc.nack(delivery, false)
		return
	}

	var err error
	switch msg.Decision {
	case "accept":
		_, err = dc.decider.Accept(ctx, msg.JobKey)
	case "reject":
		_, err = dc.decider.Reject(ctx, msg.JobKey)
	case "bid":
		_, err = dc.decider.SubmitBid(ctx, msg.JobKey)
	default:
		dc.logger.Error("Unknown decision",
			slog.String("decision", msg.Decision),
			slog.String("job_key", msg.JobKey),
		)
		dc.nack(delivery, false)
		return
	}

	if err != nil {
		dc.logger.Error("Failed to apply decision",
			slog.String("decision", msg.Decision),
			slog.String("job_key", msg.JobKey),
			slog.String("error", err.Error()),
		)
		dc.nack(delivery, dc.shouldRequeue(err))
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		dc.logger.Error("Failed to ACK decision message",
			slog.String("job_key", msg.JobKey),
			slog.String("error", ackErr.Error()),
		)
		return
	}

	dc.logger.Info("Decision applied",
		slog.String("decision", msg.Decision),
		slog.String("job_key", msg.JobKey),
	)
}

// shouldRequeue keeps only transient failures in the queue.
func (dc *DecisionConsumer) shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrJobNotFound) {
		return false
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return false
	}

	var invalid *domain.InvalidTransitionError
	if errors.As(err, &invalid) {
		return false
	}

	var retryable *domain.RetryableError
	return errors.As(err, &retryable)
}

func (dc *DecisionConsumer) nack(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		dc.logger.Error("Failed to NACK message",
			slog.String("error", err.Error()),
		)
	}
}
