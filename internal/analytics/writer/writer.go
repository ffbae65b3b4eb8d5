// Package writer streams donation event rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/zerohunger/zerohunger-backend/internal/analytics/types"
	"github.com/zerohunger/zerohunger-backend/pkg/gcp"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

// ErrRejected wraps rows BigQuery refused for reasons a retry cannot fix,
// such as schema mismatches.
var ErrRejected = errors.New("rows rejected by bigquery")

// retryableReasons are per-row BigQuery error reasons worth another attempt.
// "stopped" marks a valid row that was dropped because a sibling failed.
var retryableReasons = map[string]bool{
	"stopped":           true,
	"timeout":           true,
	"backendError":      true,
	"internalError":     true,
	"rateLimitExceeded": true,
}

type Config struct {
	DonationEventsTable string
	// BatchSize above one trades latency for fewer streaming calls. Rows
	// buffered when the process dies are lost.
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer batches rows and streams them with retries. Each row carries its
// event id as the insert id so BigQuery drops duplicates from redeliveries.
// Safe for concurrent use.
type Writer struct {
	client      inserter
	table       string
	batchSize   int
	maxAttempts int
	backoff     func(attempt int) time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	pending []types.DonationEventRow
}

func New(client inserter, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.DonationEventsTable)
	if table == "" {
		return nil, errors.New("donation events table is required")
	}
	initial := orDefault(cfg.InitialBackoff, defaultInitialBackoff)
	ceiling := max(orDefault(cfg.MaxBackoff, defaultMaxBackoff), initial)
	return &Writer{
		client:      client,
		table:       table,
		batchSize:   orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		backoff: func(attempt int) time.Duration {
			if attempt > 16 {
				return ceiling
			}
			d := initial << (attempt - 1)
			if d <= 0 || d > ceiling {
				return ceiling
			}
			return d
		},
		sleep: sleepCtx,
	}, nil
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

// Insert queues row and streams the batch once it is full.
func (w *Writer) Insert(ctx context.Context, row types.DonationEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, row)
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush streams whatever is queued.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked empties the queue whatever the outcome. A failed batch is
// reported to the caller, which owns redelivery.
func (w *Writer) flushLocked(ctx context.Context) error {
	batch := w.pending
	w.pending = nil
	if len(batch) == 0 {
		return nil
	}

	rows := make([]any, len(batch))
	for i := range batch {
		rows[i] = &cbigquery.StructSaver{Struct: &batch[i], InsertID: batch[i].EventID}
	}

	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		retry, retryable := retryRows(rows, err)
		if !retryable {
			return fmt.Errorf("%w: insert into %s: %v", ErrRejected, w.table, err)
		}
		if attempt >= w.maxAttempts {
			return fmt.Errorf("insert into %s after %d attempts: %w", w.table, attempt, err)
		}
		if err := w.sleep(ctx, w.backoff(attempt)); err != nil {
			return err
		}
		rows = retry
	}
}

// retryRows decides whether err is worth retrying and, for per-row failures,
// narrows the next attempt to the rows that failed.
func retryRows(rows []any, err error) ([]any, bool) {
	var perRow cbigquery.PutMultiError
	if !errors.As(err, &perRow) {
		return rows, gcp.IsTransient(err)
	}
	retry := make([]any, 0, len(perRow))
	for _, rowErr := range perRow {
		for _, e := range rowErr.Errors {
			var bqErr *cbigquery.Error
			if !errors.As(e, &bqErr) || !retryableReasons[bqErr.Reason] {
				return nil, false
			}
		}
		if rowErr.RowIndex >= 0 && rowErr.RowIndex < len(rows) {
			retry = append(retry, rows[rowErr.RowIndex])
		}
	}
	return retry, len(retry) > 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
