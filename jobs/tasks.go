package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/observa-edu/observa/internal/audit"
	jobmetrics "github.com/observa-edu/observa/internal/jobs"
	"github.com/observa-edu/observa/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRedeliver re-appends an audit entry whose synchronous write failed.
	TaskAuditRedeliver = "audit:redeliver"

	auditRedeliverMaxRetry = 10
)

// NewAuditRedeliverTask wraps entry into an Asynq task.
func NewAuditRedeliverTask(entry audit.Entry) (*asynq.Task, error) {
	if !entry.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown audit action %q", shared.ErrValidation, entry.Action)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRedeliver, data, asynq.Queue(QueueDefault), asynq.MaxRetry(auditRedeliverMaxRetry)), nil
}

// AuditRedeliverJob appends queued audit entries.
type AuditRedeliverJob struct {
	store   audit.Appender
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditRedeliverJob constructs the job handler.
func NewAuditRedeliverJob(store audit.Appender, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRedeliverJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRedeliverJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskAuditRedeliver tasks. Malformed payloads are not retried.
func (j *AuditRedeliverJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskAuditRedeliver)
	var entry audit.Entry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		j.logger.Error("audit redelivery payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	if !entry.Action.Valid() || entry.OccurredAt.IsZero() {
		j.logger.Error("audit redelivery rejected entry", slog.String("action", string(entry.Action)))
		return tracker.End(fmt.Errorf("invalid entry: %w", asynq.SkipRetry))
	}
	entry.ID = 0
	id, err := j.store.Insert(ctx, entry)
	if err != nil {
		j.logger.Warn("audit redelivery insert", slog.String("action", string(entry.Action)), slog.Any("error", err))
		if errors.Is(err, shared.ErrValidation) {
			return tracker.End(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
		}
		return tracker.End(err)
	}
	j.metrics.AddRedelivered(string(entry.Action))
	j.logger.Info("audit entry redelivered", slog.Int64("id", id), slog.String("action", string(entry.Action)))
	return tracker.End(nil)
}
