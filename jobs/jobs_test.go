package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observa-edu/observa/internal/audit"
	jobmetrics "github.com/observa-edu/observa/internal/jobs"
	"github.com/observa-edu/observa/internal/shared"
)

type capturingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *capturingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (c *capturingEnqueuer) Close() error { return nil }

type memoryAppender struct {
	entries []audit.Entry
	err     error
}

func (m *memoryAppender) Insert(_ context.Context, entry audit.Entry) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.entries = append(m.entries, entry)
	return int64(len(m.entries)), nil
}

var admin = shared.Principal{UserID: 1, Role: "admin", Tier: shared.TierStaff}

func sampleEntry() audit.Entry {
	e := audit.NewEntry(admin, audit.ActionPermissionChanged, "role_page_permission", "2:3", "teacher granted /students").WithRole(2).WithPage(3)
	e.OccurredAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return e
}

func TestNewAuditRedeliverTaskRejectsUnknownAction(t *testing.T) {
	_, err := NewAuditRedeliverTask(audit.Entry{Action: "dropped_table"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFailedAuditWriteIsRedelivered(t *testing.T) {
	enq := &capturingEnqueuer{}
	client := NewClientWith(enq)
	writer := audit.NewWriter(&memoryAppender{err: errors.New("connection reset")}, nil, audit.WithRedelivery(client))

	err := writer.Record(context.Background(), sampleEntry())
	require.ErrorIs(t, err, shared.ErrAuditWriteFailed)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskAuditRedeliver, enq.tasks[0].Type())

	store := &memoryAppender{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewAuditRedeliverJob(store, nil, metrics)
	require.NoError(t, job.Handle(context.Background(), enq.tasks[0]))

	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.Equal(t, audit.ActionPermissionChanged, got.Action)
	assert.Equal(t, "teacher granted /students", got.Summary)
	require.NotNil(t, got.RoleID)
	assert.Equal(t, int64(2), *got.RoleID)
	assert.Equal(t, sampleEntry().OccurredAt, got.OccurredAt)
}

func TestAuditRedeliverJobSkipsMalformedPayload(t *testing.T) {
	job := NewAuditRedeliverJob(&memoryAppender{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuditRedeliver, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	raw, _ := json.Marshal(audit.Entry{Action: audit.ActionRoleCreated})
	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditRedeliver, raw))
	require.ErrorIs(t, err, asynq.SkipRetry, "entries without a timestamp are rejected")
}

func TestAuditRedeliverJobRetriesStorageFailure(t *testing.T) {
	task, err := NewAuditRedeliverTask(sampleEntry())
	require.NoError(t, err)

	job := NewAuditRedeliverJob(&memoryAppender{err: shared.ErrStorageUnavailable}, nil, nil)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestAuditRedeliverMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewAuditRedeliverJob(&memoryAppender{}, nil, metrics)
	task, err := NewAuditRedeliverTask(sampleEntry())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))

	count, err := testutil.GatherAndCount(reg, "observa_audit_redelivered_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "observa_audit_redelivered_total" {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestClientPropagatesEnqueueError(t *testing.T) {
	client := NewClientWith(&capturingEnqueuer{err: errors.New("redis down")})
	require.Error(t, client.EnqueueAuditEntry(context.Background(), sampleEntry()))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name    string
		insp    QueueInspector
		status  int
		pending int
	}{
		{name: "no inspector", insp: nil, status: http.StatusOK},
		{name: "queue info", insp: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, status: http.StatusOK, pending: 3},
		{name: "queue not created yet", insp: stubInspector{err: asynq.ErrQueueNotFound}, status: http.StatusOK},
		{name: "redis down", insp: stubInspector{err: errors.New("dial tcp")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.insp, nil).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}

type purger struct {
	calls []time.Duration
	err   error
}

func (p *purger) Cleanup(_ context.Context, olderThan time.Duration) error {
	p.calls = append(p.calls, olderThan)
	return p.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	_, err := NewIdempotencyCleanupTask(30 * time.Minute)
	require.Error(t, err)

	task, err := NewIdempotencyCleanupTask(DefaultIdempotencyRetention)
	require.NoError(t, err)
	assert.Equal(t, TaskIdempotencyCleanup, task.Type())

	p := &purger{}
	job := NewIdempotencyCleanupJob(p, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []time.Duration{72 * time.Hour}, p.calls)

	err = job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte(`{"retention_hours":0}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	failing := NewIdempotencyCleanupJob(&purger{err: shared.ErrStorageUnavailable}, nil, nil)
	err = failing.Handle(context.Background(), task)
	require.ErrorIs(t, err, shared.ErrStorageUnavailable)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	require.Error(t, err)
}
