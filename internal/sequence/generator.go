// Package sequence issues store-scoped daily invoice numbers against a
// remote counter row, degrading to a timestamp-derived pseudo-sequence
// whenever the counter subsystem fails for any reason other than the daily
// cap.
package sequence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/remote"
	"github.com/sethvargo/go-retry"
)

// ErrDailyLimitExceeded is returned when a store would issue more than
// MaxDailySequence invoices in one day. It is the only sequence error a
// caller ever sees.
var ErrDailyLimitExceeded = errors.New("daily invoice limit exceeded")

// MaxDailySequence caps the three-digit sequence segment.
const MaxDailySequence = 999

const (
	defaultTransientRetries = 3
	retryBaseDelay          = 100 * time.Millisecond
)

// Generator computes the next invoice number for a store/day.
type Generator struct {
	counters         remote.CounterStore
	log              logging.Logger
	now              func() time.Time
	transientRetries uint64
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the time source; tests use it to pin the timestamp
// segment.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithTransientRetries overrides how many times a transient counter failure
// is retried before falling back.
func WithTransientRetries(n uint64) Option {
	return func(g *Generator) { g.transientRetries = n }
}

func New(counters remote.CounterStore, log logging.Logger, opts ...Option) *Generator {
	g := &Generator{
		counters:         counters,
		log:              log,
		now:              time.Now,
		transientRetries: defaultTransientRetries,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next awards the next invoice number for the store. The only error it can
// return is ErrDailyLimitExceeded; every other counter failure degrades to
// the pseudo-sequence so invoice creation is never blocked by the counter
// subsystem.
func (g *Generator) Next(ctx context.Context, storeID, storeCode, employeeCode string) (string, error) {
	now := g.now()
	date := now.Format("2006-01-02")

	seq, err := g.acquireWithRetry(ctx, storeID, date)
	if err != nil {
		if Classify(err) == DecisionFatal {
			return "", err
		}
		seq = pseudoSequence(now)
		g.log.Warn(ctx, "sequence counter unavailable, using fallback sequence",
			"store_id", storeID, "date", date, "seq", seq, "error", err)
	}

	return FormatInvoiceNumber(storeCode, employeeCode, now, seq), nil
}

// acquireWithRetry runs the counter protocol, retrying transient failures
// with exponential backoff before giving up.
func (g *Generator) acquireWithRetry(ctx context.Context, storeID, date string) (int, error) {
	var seq int
	b := retry.WithMaxRetries(g.transientRetries, retry.NewExponential(retryBaseDelay))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := g.acquire(ctx, storeID, date)
		if err != nil {
			if Classify(err) == DecisionRetry {
				return retry.RetryableError(err)
			}
			return err
		}
		seq = s
		return nil
	})
	return seq, err
}

// acquire performs one pass of the conflict-aware protocol: read (or lazily
// create) the counter row, then claim the next value with a compare-and-set
// update. Lost races re-read immediately; they are progress, not failure.
func (g *Generator) acquire(ctx context.Context, storeID, date string) (int, error) {
	for {
		counter, err := g.counters.GetCounter(ctx, storeID, date)
		if err != nil {
			if remote.CodeOf(err) != remote.CodeNotFound {
				return 0, err
			}
			counter, err = g.createCounter(ctx, storeID, date)
			if err != nil {
				return 0, err
			}
		}

		next := counter.Value + 1
		if next > MaxDailySequence {
			return 0, ErrDailyLimitExceeded
		}

		err = g.counters.UpdateCounterValue(ctx, counter.ID, counter.Value, next)
		if err == nil {
			return next, nil
		}
		if remote.CodeOf(err) == remote.CodeConflict {
			// another caller claimed this value; re-read and try the next one
			continue
		}
		return 0, err
	}
}

// createCounter lazily creates the first-of-day row at zero. A duplicate-key
// collision means a concurrent caller won the create; re-read instead of
// failing.
func (g *Generator) createCounter(ctx context.Context, storeID, date string) (*models.SequenceCounter, error) {
	c := &models.SequenceCounter{
		ID:      uuid.NewString(),
		StoreID: storeID,
		SeqDate: date,
		Value:   0,
	}
	err := g.counters.CreateCounter(ctx, c)
	if err == nil {
		return c, nil
	}
	if remote.CodeOf(err) == remote.CodeDuplicateKey {
		return g.counters.GetCounter(ctx, storeID, date)
	}
	return nil, err
}

// pseudoSequence derives a best-effort three-digit sequence from the wall
// clock. Collisions within the same second are tolerated: the timestamp
// segment of the invoice number keeps the full number practically unique.
func pseudoSequence(now time.Time) int {
	return int(now.UnixMilli() % 1000)
}
