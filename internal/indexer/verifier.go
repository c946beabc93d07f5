package indexer

import (
	"context"
	"log"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts bounds the poll loop when callers pass zero.
	DefaultMaxAttempts = 10
	// DefaultPollInterval is the fixed wait between poll attempts.
	DefaultPollInterval = 3 * time.Second
)

// Expectation describes the attributes a freshly created event should carry
// once the index catches up.
type Expectation struct {
	Title     string
	Creator   string
	StartTime int64
	EndTime   int64
}

// Result reports the outcome of one verification run.
type Result struct {
	Found     bool
	MatchedID string
	Attempts  int
}

// Verifier polls the index for a record matching an expectation, with a
// bounded attempt count and a fixed interval between attempts.
type Verifier struct {
	client   Client
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logf     func(format string, args ...any)
}

// NewVerifier creates a verifier over the given index client.
func NewVerifier(client Client) *Verifier {
	return &Verifier{
		client:   client,
		interval: DefaultPollInterval,
		sleep:    sleepContext,
		logf:     log.Printf,
	}
}

// WithInterval overrides the fixed poll interval.
func (v *Verifier) WithInterval(interval time.Duration) *Verifier {
	if interval > 0 {
		v.interval = interval
	}
	return v
}

// WithSleep overrides the inter-attempt wait, primarily for tests.
func (v *Verifier) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Verifier {
	if sleep != nil {
		v.sleep = sleep
	}
	return v
}

// Verify polls the index up to maxAttempts times for a record matching the
// expectation. Matching is deliberately permissive (title OR creator OR the
// exact (start, end) pair) because the index may populate fields
// asynchronously; the first match wins. Fetch errors are logged, counted as a
// consumed attempt, and never propagated, so the loop terminates in bounded
// time. The only returned error is context cancellation during the wait.
func (v *Verifier) Verify(ctx context.Context, expected Expectation, maxAttempts int) (Result, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	result := Result{}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		records, err := v.client.Events(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			v.logf("index verify attempt %d/%d: %v", attempt, maxAttempts, err)
		} else {
			for _, record := range records {
				if matches(expected, record) {
					result.Found = true
					result.MatchedID = record.ID
					return result, nil
				}
			}
		}

		if attempt == maxAttempts {
			break
		}
		if err := v.sleep(ctx, v.interval); err != nil {
			return result, err
		}
	}
	return result, nil
}

// matches applies the permissive OR policy: any one attribute group lining up
// counts as a match.
func matches(expected Expectation, record Record) bool {
	expectedTitle := strings.TrimSpace(expected.Title)
	if expectedTitle != "" && strings.TrimSpace(record.Title) == expectedTitle {
		return true
	}
	expectedCreator := strings.TrimSpace(expected.Creator)
	if expectedCreator != "" && strings.EqualFold(strings.TrimSpace(record.Creator), expectedCreator) {
		return true
	}
	if expected.StartTime != 0 && expected.EndTime != 0 &&
		record.StartTime == expected.StartTime && record.EndTime == expected.EndTime {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
