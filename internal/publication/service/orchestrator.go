// Package service sequences a publication through its stages: metadata
// upload, event-creation submission, index verification, and the optional
// ticket and domain follow-up stages.
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nyuiela/revent/internal/chain"
	"github.com/nyuiela/revent/internal/content"
	"github.com/nyuiela/revent/internal/indexer"
	"github.com/nyuiela/revent/internal/platform/id"
	"github.com/nyuiela/revent/internal/publication/batch"
	"github.com/nyuiela/revent/internal/publication/domain"
	"github.com/nyuiela/revent/internal/publication/storage"
)

// Stage identifies one discrete stretch of the publication state machine.
type Stage int

const (
	// StageIdle means no publication attempt is in progress.
	StageIdle Stage = iota
	// StagePreparing covers metadata upload and creation-batch building.
	StagePreparing
	// StageAwaitingEventTx holds the built creation batch for submission.
	StageAwaitingEventTx
	// StageVerifyingEvent polls the index for the created event.
	StageVerifyingEvent
	// StageAwaitingTicketTx covers the optional ticket issuance stage.
	StageAwaitingTicketTx
	// StageAwaitingDomainTx covers the optional domain registration stage.
	StageAwaitingDomainTx
	// StageComplete is terminal for one publication.
	StageComplete
	// StageFailed marks a stage-scoped failure; FailedStage names the stage.
	StageFailed
)

// String returns the stage label used in records and logs.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePreparing:
		return "preparing"
	case StageAwaitingEventTx:
		return "awaiting_event_tx"
	case StageVerifyingEvent:
		return "verifying_event"
	case StageAwaitingTicketTx:
		return "awaiting_ticket_tx"
	case StageAwaitingDomainTx:
		return "awaiting_domain_tx"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the orchestrator's single mutable record, owned exclusively by the
// orchestrator for the lifetime of one publication attempt.
type State struct {
	Stage          Stage
	FailedStage    Stage
	LastError      string
	EventID        string
	VerifyAttempts int
	Plan           domain.StagePlan
	SkippedTickets bool
	SkippedDomain  bool
	ContentRef     domain.ContentReference
}

// MetadataPublisher uploads the event document and optional asset.
type MetadataPublisher interface {
	Publish(ctx context.Context, doc content.Document, asset *content.Asset) (domain.ContentReference, error)
}

// Verifier confirms the created event appeared in the index.
type Verifier interface {
	Verify(ctx context.Context, expected indexer.Expectation, maxAttempts int) (indexer.Result, error)
}

// AvailabilityChecker answers domain-name availability lookups.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, candidate string) (bool, error)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Metadata     MetadataPublisher
	Submitter    chain.Submitter
	Verifier     Verifier
	Availability AvailabilityChecker
	// Store is optional; stage outcomes are recorded when present.
	Store   storage.PublicationStore
	Network string
	// MaxVerifyAttempts bounds each verification run; zero means the
	// verifier default.
	MaxVerifyAttempts int
	Clock             func() time.Time
	IDGenerator       func() (string, error)
	Logf              func(format string, args ...any)
}

// Orchestrator drives exactly one publication attempt at a time through the
// stage machine. Collaborators report outcomes; only the orchestrator applies
// the resulting transition, and late results whose stage no longer matches
// the current state are discarded.
type Orchestrator struct {
	metadata          MetadataPublisher
	submitter         chain.Submitter
	verifier          Verifier
	availability      AvailabilityChecker
	store             storage.PublicationStore
	network           string
	maxVerifyAttempts int
	clock             func() time.Time
	idGenerator       func() (string, error)
	logf              func(format string, args ...any)

	mu            sync.Mutex
	generation    uint64
	state         State
	request       domain.PublicationRequest
	publicationID string
	creationBatch batch.Batch
	expected      indexer.Expectation
	inFlight      map[Stage]bool
}

// ErrStageBusy rejects a duplicate trigger for a stage whose work is already
// in flight, e.g. a rapid double-click relayed by the UI.
type ErrStageBusy struct {
	Stage Stage
}

// Error implements the error interface.
func (e *ErrStageBusy) Error() string {
	return fmt.Sprintf("%s is already in flight", e.Stage)
}

// ErrWrongStage rejects a trigger that does not apply to the current stage.
type ErrWrongStage struct {
	Current   Stage
	Requested Stage
}

// Error implements the error interface.
func (e *ErrWrongStage) Error() string {
	return fmt.Sprintf("cannot run %s while %s", e.Requested, e.Current)
}

// NewOrchestrator creates a publication orchestrator.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Metadata == nil {
		return nil, fmt.Errorf("metadata publisher is required")
	}
	if deps.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if deps.Network == "" {
		return nil, fmt.Errorf("network is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	logf := deps.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Orchestrator{
		metadata:          deps.Metadata,
		submitter:         deps.Submitter,
		verifier:          deps.Verifier,
		availability:      deps.Availability,
		store:             deps.Store,
		network:           deps.Network,
		maxVerifyAttempts: deps.MaxVerifyAttempts,
		clock:             clock,
		idGenerator:       idGenerator,
		logf:              logf,
		inFlight:          make(map[Stage]bool),
	}, nil
}

// State returns a copy of the current publication state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// PublicationID returns the identifier assigned when preparation started.
func (o *Orchestrator) PublicationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.publicationID
}

// Prepare validates the request, uploads metadata (at most once per session),
// and builds the creation batch. On success the orchestrator holds the batch
// in StageAwaitingEventTx. On failure the state moves to Failed(Preparing),
// retaining the error and all session state so prepare can be retried.
func (o *Orchestrator) Prepare(ctx context.Context, req domain.PublicationRequest) error {
	o.mu.Lock()
	if o.state.Stage == StageComplete {
		o.mu.Unlock()
		return &ErrWrongStage{Current: StageComplete, Requested: StagePreparing}
	}
	if err := o.acquireLocked(StagePreparing, StageIdle, StageAwaitingEventTx); err != nil {
		o.mu.Unlock()
		return err
	}

	normalized, err := domain.NormalizeRequest(req)
	if err != nil {
		o.failLocked(StagePreparing, err)
		o.releaseLocked(StagePreparing)
		o.mu.Unlock()
		return err
	}

	if o.publicationID == "" {
		pubID, idErr := o.idGenerator()
		if idErr != nil {
			o.failLocked(StagePreparing, idErr)
			o.releaseLocked(StagePreparing)
			o.mu.Unlock()
			return fmt.Errorf("assign publication id: %w", idErr)
		}
		o.publicationID = pubID
	}
	o.request = normalized
	o.state.Stage = StagePreparing
	contentRef := o.state.ContentRef
	generation := o.generation
	o.mu.Unlock()

	o.record(ctx, StagePreparing, storage.OutcomeStarted, 0, "")

	if contentRef == "" {
		doc := content.DocumentFromRequest(normalized)
		var asset *content.Asset
		if normalized.HasImage() {
			asset = &content.Asset{
				Name:        normalized.ImageName,
				ContentType: normalized.ImageType,
				Data:        normalized.ImageData,
			}
		}
		ref, err := o.metadata.Publish(ctx, doc, asset)
		if err != nil {
			o.fail(ctx, generation, StagePreparing, err)
			return err
		}
		contentRef = ref
	}

	built, err := batch.BuildCreationBatch(normalized, contentRef)
	if err != nil {
		o.fail(ctx, generation, StagePreparing, err)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.releaseLocked(StagePreparing)
	if o.generation != generation {
		// The session was cancelled while uploading; drop the result.
		return context.Canceled
	}
	o.state.ContentRef = contentRef
	o.state.Stage = StageAwaitingEventTx
	o.state.LastError = ""
	o.state.FailedStage = StageIdle
	o.creationBatch = built
	return nil
}

// SubmitEvent submits the held creation batch. On terminal success the
// orchestrator captures the expected verification attributes — including the
// wallet address that actually submitted — and moves to StageVerifyingEvent.
func (o *Orchestrator) SubmitEvent(ctx context.Context, observe chain.Observer) error {
	o.mu.Lock()
	if err := o.acquireLocked(StageAwaitingEventTx); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state.Stage = StageAwaitingEventTx
	submitBatch := o.creationBatch
	request := o.request
	generation := o.generation
	o.mu.Unlock()

	result, err := o.submitter.Submit(ctx, submitBatch, o.network, observe)
	if err != nil {
		submissionErr := &domain.SubmissionError{Stage: StageAwaitingEventTx.String(), Err: err}
		o.fail(ctx, generation, StageAwaitingEventTx, submissionErr)
		return submissionErr
	}

	o.mu.Lock()
	o.releaseLocked(StageAwaitingEventTx)
	if o.generation != generation || o.state.Stage != StageAwaitingEventTx {
		o.mu.Unlock()
		return context.Canceled
	}
	// Capture expectations now, not earlier: the creator must be the wallet
	// that actually submitted the batch.
	o.expected = indexer.Expectation{
		Title:     request.Title,
		Creator:   result.Sender,
		StartTime: request.StartTime.Unix(),
		EndTime:   request.EndTime.Unix(),
	}
	o.state.Stage = StageVerifyingEvent
	o.state.LastError = ""
	o.state.FailedStage = StageIdle
	o.creationBatch = batch.Batch{}
	o.mu.Unlock()

	o.record(ctx, StageAwaitingEventTx, storage.OutcomeSucceeded, 0, "")
	return nil
}

// VerifyEvent polls the index for the created event. On success it records
// the matched identifier, decides the stage plan once, and advances. On
// exhaustion it returns VerificationTimeout and stays in StageVerifyingEvent
// so the caller can re-invoke verification.
func (o *Orchestrator) VerifyEvent(ctx context.Context) error {
	o.mu.Lock()
	if err := o.acquireLocked(StageVerifyingEvent); err != nil {
		o.mu.Unlock()
		return err
	}
	expected := o.expected
	generation := o.generation
	o.mu.Unlock()

	result, err := o.verifier.Verify(ctx, expected, o.maxVerifyAttempts)

	o.mu.Lock()
	o.releaseLocked(StageVerifyingEvent)
	if o.generation != generation || o.state.Stage != StageVerifyingEvent {
		o.mu.Unlock()
		if err != nil {
			return err
		}
		return context.Canceled
	}
	o.state.VerifyAttempts += result.Attempts
	if err != nil {
		// Cancellation mid-wait; the stage is unchanged and retryable.
		o.mu.Unlock()
		return err
	}

	if !result.Found {
		timeout := &domain.VerificationTimeout{Attempts: result.Attempts}
		o.state.LastError = timeout.Error()
		o.mu.Unlock()
		o.record(ctx, StageVerifyingEvent, storage.OutcomeTimeout, result.Attempts, timeout.Error())
		return timeout
	}

	o.state.EventID = result.MatchedID
	o.state.Plan = domain.DecidePlan(o.request)
	o.state.LastError = ""
	next := o.advanceAfterVerificationLocked()
	o.mu.Unlock()

	o.record(ctx, StageVerifyingEvent, storage.OutcomeSucceeded, result.Attempts, "")
	if next == StageComplete {
		o.record(ctx, StageComplete, storage.OutcomeSucceeded, 0, "")
	}
	return nil
}

// SubmitTickets builds and submits the ticket batch. An empty batch counts
// as nothing to submit and the stage advances as a success.
func (o *Orchestrator) SubmitTickets(ctx context.Context, observe chain.Observer) error {
	o.mu.Lock()
	if err := o.acquireLocked(StageAwaitingTicketTx); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state.Stage = StageAwaitingTicketTx
	eventID := o.state.EventID
	ticketTypes := o.request.TicketTypes
	generation := o.generation
	o.mu.Unlock()

	built, err := batch.BuildTicketBatch(eventID, ticketTypes)
	if err != nil {
		o.fail(ctx, generation, StageAwaitingTicketTx, err)
		return err
	}

	if !built.Empty() {
		if _, err := o.submitter.Submit(ctx, built, o.network, observe); err != nil {
			submissionErr := &domain.SubmissionError{Stage: StageAwaitingTicketTx.String(), Err: err}
			o.fail(ctx, generation, StageAwaitingTicketTx, submissionErr)
			return submissionErr
		}
	}

	o.mu.Lock()
	o.releaseLocked(StageAwaitingTicketTx)
	if o.generation != generation || o.state.Stage != StageAwaitingTicketTx {
		o.mu.Unlock()
		return context.Canceled
	}
	o.state.LastError = ""
	o.state.FailedStage = StageIdle
	next := o.advanceAfterTicketsLocked()
	o.mu.Unlock()

	o.record(ctx, StageAwaitingTicketTx, storage.OutcomeSucceeded, 0, "")
	if next == StageComplete {
		o.record(ctx, StageComplete, storage.OutcomeSucceeded, 0, "")
	}
	return nil
}

// SkipTickets abandons the ticket stage. Skipping is a successful transition
// to the next valid stage, never a failure, and never re-enters a prior
// stage.
func (o *Orchestrator) SkipTickets(ctx context.Context) error {
	o.mu.Lock()
	if err := o.checkStageLocked(StageAwaitingTicketTx); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state.SkippedTickets = true
	o.state.LastError = ""
	o.state.FailedStage = StageIdle
	o.state.Stage = StageAwaitingTicketTx
	next := o.advanceAfterTicketsLocked()
	o.mu.Unlock()

	o.record(ctx, StageAwaitingTicketTx, storage.OutcomeSkipped, 0, "")
	if next == StageComplete {
		o.record(ctx, StageComplete, storage.OutcomeSucceeded, 0, "")
	}
	return nil
}

// SubmitDomain confirms the candidate is still available, then builds and
// submits the domain batch. A name registered in the meantime surfaces as
// DomainConflict: stage-scoped, user-correctable, retryable with another
// name.
func (o *Orchestrator) SubmitDomain(ctx context.Context, observe chain.Observer) error {
	o.mu.Lock()
	if err := o.acquireLocked(StageAwaitingDomainTx); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state.Stage = StageAwaitingDomainTx
	eventID := o.state.EventID
	domainName := o.request.DomainName
	generation := o.generation
	o.mu.Unlock()

	if o.availability != nil {
		available, err := o.availability.IsAvailable(ctx, domainName)
		if err != nil {
			o.fail(ctx, generation, StageAwaitingDomainTx, err)
			return err
		}
		if !available {
			conflict := &domain.DomainConflict{Name: domainName}
			o.fail(ctx, generation, StageAwaitingDomainTx, conflict)
			return conflict
		}
	}

	built, err := batch.BuildDomainBatch(eventID, domainName)
	if err != nil {
		o.fail(ctx, generation, StageAwaitingDomainTx, err)
		return err
	}
	if _, err := o.submitter.Submit(ctx, built, o.network, observe); err != nil {
		submissionErr := &domain.SubmissionError{Stage: StageAwaitingDomainTx.String(), Err: err}
		o.fail(ctx, generation, StageAwaitingDomainTx, submissionErr)
		return submissionErr
	}

	o.mu.Lock()
	o.releaseLocked(StageAwaitingDomainTx)
	if o.generation != generation || o.state.Stage != StageAwaitingDomainTx {
		o.mu.Unlock()
		return context.Canceled
	}
	o.state.LastError = ""
	o.state.FailedStage = StageIdle
	o.state.Stage = StageComplete
	o.mu.Unlock()

	o.record(ctx, StageAwaitingDomainTx, storage.OutcomeSucceeded, 0, "")
	o.record(ctx, StageComplete, storage.OutcomeSucceeded, 0, "")
	return nil
}

// SkipDomain abandons the domain stage and completes the publication.
func (o *Orchestrator) SkipDomain(ctx context.Context) error {
	o.mu.Lock()
	if err := o.checkStageLocked(StageAwaitingDomainTx); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state.SkippedDomain = true
	o.state.LastError = ""
	o.state.FailedStage = StageIdle
	o.state.Stage = StageComplete
	o.mu.Unlock()

	o.record(ctx, StageAwaitingDomainTx, storage.OutcomeSkipped, 0, "")
	o.record(ctx, StageComplete, storage.OutcomeSucceeded, 0, "")
	return nil
}

// Cancel abandons the current publication attempt and returns to StageIdle.
// Any in-flight work is invalidated: its late result is discarded rather
// than applied to the fresh state.
func (o *Orchestrator) Cancel() {
	o.Reset()
}

// Reset destroys the publication state and returns to StageIdle. A new
// Prepare call after StageComplete requires an explicit Reset first.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation++
	o.state = State{}
	o.request = domain.PublicationRequest{}
	o.publicationID = ""
	o.creationBatch = batch.Batch{}
	o.expected = indexer.Expectation{}
	o.inFlight = make(map[Stage]bool)
}

// acquireLocked validates that stage may run now and marks it in flight.
// A stage may run when the machine sits at its own stage, at one of the
// extra allowed stages, or at a failure scoped to the same stage (manual
// retry).
func (o *Orchestrator) acquireLocked(stage Stage, allowed ...Stage) error {
	if o.inFlight[stage] {
		return &ErrStageBusy{Stage: stage}
	}
	if err := o.allowedLocked(stage, allowed...); err != nil {
		return err
	}
	o.inFlight[stage] = true
	return nil
}

func (o *Orchestrator) checkStageLocked(stage Stage) error {
	if o.inFlight[stage] {
		return &ErrStageBusy{Stage: stage}
	}
	return o.allowedLocked(stage)
}

func (o *Orchestrator) allowedLocked(stage Stage, allowed ...Stage) error {
	current := o.state.Stage
	if current == stage {
		return nil
	}
	for _, candidate := range allowed {
		if current == candidate {
			return nil
		}
	}
	if current == StageFailed && o.state.FailedStage == stage {
		return nil
	}
	return &ErrWrongStage{Current: current, Requested: stage}
}

func (o *Orchestrator) releaseLocked(stage Stage) {
	delete(o.inFlight, stage)
}

// advanceAfterVerificationLocked applies the decided plan and returns the
// next stage.
func (o *Orchestrator) advanceAfterVerificationLocked() Stage {
	switch {
	case o.state.Plan.HasTickets():
		o.state.Stage = StageAwaitingTicketTx
	case o.state.Plan.HasDomain():
		o.state.Stage = StageAwaitingDomainTx
	default:
		o.state.Stage = StageComplete
	}
	return o.state.Stage
}

func (o *Orchestrator) advanceAfterTicketsLocked() Stage {
	if o.state.Plan.HasDomain() {
		o.state.Stage = StageAwaitingDomainTx
	} else {
		o.state.Stage = StageComplete
	}
	return o.state.Stage
}

// fail records a stage-scoped failure unless the session moved on while the
// work was in flight.
func (o *Orchestrator) fail(ctx context.Context, generation uint64, stage Stage, err error) {
	o.mu.Lock()
	o.releaseLocked(stage)
	if o.generation != generation {
		o.mu.Unlock()
		return
	}
	o.failLocked(stage, err)
	o.mu.Unlock()

	o.record(ctx, stage, storage.OutcomeFailed, 0, err.Error())
}

func (o *Orchestrator) failLocked(stage Stage, err error) {
	o.state.Stage = StageFailed
	o.state.FailedStage = stage
	o.state.LastError = err.Error()
}

// record persists one stage outcome. Recording failures are logged, never
// propagated: bookkeeping must not break the publication flow.
func (o *Orchestrator) record(ctx context.Context, stage Stage, outcome string, attempts int, lastError string) {
	if o.store == nil {
		return
	}

	o.mu.Lock()
	record := storage.StageRecord{
		PublicationID: o.publicationID,
		Stage:         stage.String(),
		Outcome:       outcome,
		Attempts:      int32(attempts),
		EventID:       o.state.EventID,
		LastError:     lastError,
		Title:         o.expected.Title,
		Creator:       o.expected.Creator,
		StartTime:     o.expected.StartTime,
		EndTime:       o.expected.EndTime,
		CreatedAt:     o.clock().UTC(),
	}
	o.mu.Unlock()

	if record.PublicationID == "" {
		return
	}
	if err := o.store.RecordStage(ctx, record); err != nil {
		o.logf("record %s stage: %v", stage, err)
	}
}
