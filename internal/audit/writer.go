package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/observa-edu/observa/internal/shared"
)

// Recorder is what mutating services depend on.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Appender persists entries.
type Appender interface {
	Insert(ctx context.Context, entry Entry) (int64, error)
}

// Redeliverer hands an entry whose synchronous write failed to a retry queue.
type Redeliverer interface {
	EnqueueAuditEntry(ctx context.Context, entry Entry) error
}

// FailureCounter counts failed appends.
type FailureCounter interface {
	RecordAuditFailure(action string)
}

// Writer appends entries after the primary mutation committed. A failed append never
// undoes the mutation; it is logged, counted, optionally queued for redelivery and
// returned as shared.ErrAuditWriteFailed so the caller can surface a warning.
type Writer struct {
	store     Appender
	logger    *slog.Logger
	failures  FailureCounter
	redeliver Redeliverer
	now       func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFailureCounter registers a metric sink for failed appends.
func WithFailureCounter(c FailureCounter) WriterOption {
	return func(w *Writer) { w.failures = c }
}

// WithRedelivery queues failed entries for asynchronous retry.
func WithRedelivery(r Redeliverer) WriterOption {
	return func(w *Writer) { w.redeliver = r }
}

// NewWriter constructs a Writer.
func NewWriter(store Appender, logger *slog.Logger, opts ...WriterOption) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Record appends entry.
func (w *Writer) Record(ctx context.Context, entry Entry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("%w: unknown audit action %q", shared.ErrValidation, entry.Action)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = w.now().UTC()
	}
	if _, err := w.store.Insert(ctx, entry); err != nil {
		w.logger.Warn("audit write failed",
			slog.String("action", string(entry.Action)),
			slog.String("target_entity", entry.TargetEntity),
			slog.String("target_id", entry.TargetID),
			slog.Int64("actor_user_id", entry.ActorUserID),
			slog.Any("error", err))
		if w.failures != nil {
			w.failures.RecordAuditFailure(string(entry.Action))
		}
		if w.redeliver != nil {
			if qerr := w.redeliver.EnqueueAuditEntry(ctx, entry); qerr != nil {
				w.logger.Error("audit redelivery enqueue failed", slog.String("action", string(entry.Action)), slog.Any("error", qerr))
			}
		}
		return fmt.Errorf("%w: %v", shared.ErrAuditWriteFailed, err)
	}
	return nil
}

// Warnings converts the result of Record into response warnings.
func Warnings(err error) []string {
	if err == nil {
		return nil
	}
	return []string{shared.WarningAuditWriteFailed}
}
