package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type fakeDecider struct {
	err      error
	accepts  int
	rejects  int
	bids     int
	lastKey  string
	returned *domain.JobRecord
}

func (f *fakeDecider) Accept(ctx context.Context, key string) (*domain.JobRecord, error) {
	f.accepts++
	f.lastKey = key
	return f.returned, f.err
}

func (f *fakeDecider) Reject(ctx context.Context, key string) (*domain.JobRecord, error) {
	f.rejects++
	f.lastKey = key
	return f.returned, f.err
}

func (f *fakeDecider) SubmitBid(ctx context.Context, key string) (*domain.JobRecord, error) {
	f.bids++
	f.lastKey = key
	return f.returned, f.err
}

func newTestConsumer(decider Decider) *DecisionConsumer {
	return NewDecisionConsumer(nil, decider, slog.New(slog.DiscardHandler))
}

func delivery(ack *fakeAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body)}
}

func TestDecisionConsumer_Handle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		deciderErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{
			name:    "valid accept is acked",
			body:    `{"job_key":"freelancer-1","decision":"accept"}`,
			wantAck: true,
		},
		{
			name: "malformed body dropped",
			body: `{broken`,
		},
		{
			name: "unknown decision dropped",
			body: `{"job_key":"freelancer-1","decision":"maybe"}`,
		},
		{
			name:       "unknown job dropped",
			body:       `{"job_key":"freelancer-404","decision":"accept"}`,
			deciderErr: domain.ErrJobNotFound,
		},
		{
			name:       "stale decision dropped",
			body:       `{"job_key":"freelancer-1","decision":"accept"}`,
			deciderErr: &domain.ConflictError{Key: "freelancer-1", Expected: domain.StatePresented, Actual: domain.StateAccepted},
		},
		{
			name:        "transient failure requeued",
			body:        `{"job_key":"freelancer-1","decision":"bid"}`,
			deciderErr:  domain.NewRetryableError(errors.New("broker unavailable")),
			wantRequeue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			decider := &fakeDecider{err: tt.deciderErr, returned: &domain.JobRecord{}}
			dc := newTestConsumer(decider)

			dc.handle(context.Background(), delivery(ack, tt.body))

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestDecisionConsumer_RoutesDecisions(t *testing.T) {
	decider := &fakeDecider{returned: &domain.JobRecord{}}
	dc := newTestConsumer(decider)

	dc.handle(context.Background(), delivery(&fakeAcknowledger{}, `{"job_key":"freelancer-1","decision":"accept"}`))
	dc.handle(context.Background(), delivery(&fakeAcknowledger{}, `{"job_key":"freelancer-2","decision":"reject"}`))
	dc.handle(context.Background(), delivery(&fakeAcknowledger{}, `{"job_key":"freelancer-3","decision":"bid"}`))

	assert.Equal(t, 1, decider.accepts)
	assert.Equal(t, 1, decider.rejects)
	assert.Equal(t, 1, decider.bids)
	assert.Equal(t, "freelancer-3", decider.lastKey)
}
