// Package storage persists publication stage outcomes.
package storage

import (
	"context"
	"time"
)

// Stage outcome labels recorded per stage attempt.
const (
	OutcomeStarted   = "started"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeTimeout   = "timeout"
)

// StageRecord is one durable publication stage outcome.
type StageRecord struct {
	ID            int64
	PublicationID string
	Stage         string
	Outcome       string
	Attempts      int32
	EventID       string
	LastError     string

	// Expected verification attributes, kept so an interrupted verification
	// can be resumed after a restart.
	Title     string
	Creator   string
	StartTime int64
	EndTime   int64

	CreatedAt time.Time
}

// PublicationStore persists publication stage records.
type PublicationStore interface {
	RecordStage(ctx context.Context, record StageRecord) error
	ListStages(ctx context.Context, limit int) ([]StageRecord, error)
	// ListPendingVerifications returns the latest record per publication
	// whose most recent verification attempt timed out.
	ListPendingVerifications(ctx context.Context) ([]StageRecord, error)
}
