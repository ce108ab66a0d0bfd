// Package notify delivers job and bid events to the user-facing gateway.
// The engine only knows the Presenter contract; the AMQP implementation
// fans events out to whatever front end is bound to the exchange.
package notify

import (
	"context"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

// Presenter pushes lifecycle events toward the user. Implementations must
// tolerate repeated delivery of the same event; consumers deduplicate on the
// job key.
type Presenter interface {
	// NotifyNewJob announces a job that just moved to presented, asking the
	// user for an accept or reject decision.
	NotifyNewJob(ctx context.Context, job *domain.JobRecord) error

	// NotifyBidResult reports the outcome of a bid attempt, confirmed or
	// failed, with the failure reason when there is one.
	NotifyBidResult(ctx context.Context, job *domain.JobRecord) error
}
