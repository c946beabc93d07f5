// Package chain defines the transaction boundary: batches go in, an ordered
// sequence of lifecycle statuses comes out, ending in exactly one terminal
// success or failure. The blockchain itself is externally owned.
package chain

import (
	"context"

	"github.com/nyuiela/revent/internal/publication/batch"
)

// Status is one named lifecycle status reported while a batch is processed.
type Status string

const (
	// StatusPending means the batch was accepted and is queued.
	StatusPending Status = "pending"
	// StatusBuilt means transactions were constructed from the batch.
	StatusBuilt Status = "built"
	// StatusSuccess is the terminal success status.
	StatusSuccess Status = "success"
	// StatusFailure is the terminal failure status.
	StatusFailure Status = "failure"
)

// Receipt identifies one confirmed operation inside a submitted batch.
type Receipt struct {
	OperationIndex int    `json:"operationIndex"`
	ID             string `json:"id"`
}

// LifecycleEvent is one status notification emitted during submission.
type LifecycleEvent struct {
	Status  Status
	Message string
}

// Result is the terminal outcome of a successful submission.
type Result struct {
	// Receipts holds one per-operation receipt identifier.
	Receipts []Receipt
	// Sender is the wallet address that actually submitted the batch.
	Sender string
}

// Observer receives lifecycle events in emission order. A nil observer is
// valid and ignores all events.
type Observer func(LifecycleEvent)

// Submitter accepts an operation batch for a target network and drives it to
// a terminal outcome.
type Submitter interface {
	Submit(ctx context.Context, b batch.Batch, network string, observe Observer) (Result, error)
}

func notify(observe Observer, status Status, message string) {
	if observe != nil {
		observe(LifecycleEvent{Status: status, Message: message})
	}
}
