package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/observa-edu/observa/internal/jobs"
)

// TaskIdempotencyCleanup purges processed Idempotency-Key records.
const TaskIdempotencyCleanup = "idempotency:cleanup"

// DefaultIdempotencyRetention keeps keys long enough to absorb client retries.
const DefaultIdempotencyRetention = 72 * time.Hour

// IdempotencyCleanupPayload describes the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours < 1 {
		return nil, fmt.Errorf("idempotency retention must be at least one hour, got %s", retention)
	}
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// KeyPurger removes idempotency keys older than a cutoff.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob runs TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	store   KeyPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job handler.
func NewIdempotencyCleanupJob(store KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionHours < 1 {
		return tracker.End(fmt.Errorf("invalid cleanup payload: %w", asynq.SkipRetry))
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if err := j.store.Cleanup(ctx, retention); err != nil {
		j.logger.Warn("idempotency cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("idempotency keys purged", slog.Duration("retention", retention))
	return tracker.End(nil)
}
