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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

type memoryStore struct {
	logs    []shared.AuditLog
	cutoff  time.Time
	failErr error
}

func (m *memoryStore) Record(_ context.Context, log shared.AuditLog) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return 3, m.failErr
}

type countingObserver struct{ ok, failed int }

func (c *countingObserver) ObserveAuditJob(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

type capturingQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *capturingQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func TestAuditPublisherEnqueuesRecord(t *testing.T) {
	queue := &capturingQueue{}
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := NewAuditPublisher(queue)
	pub.clock = func() time.Time { return fixed }

	err := pub.Record(context.Background(), shared.AuditLog{ActorID: 4, Action: "role.create", Entity: "role", EntityID: "9"})
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, TaskAuditRecord, queue.tasks[0].Type())

	var got shared.AuditLog
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &got))
	assert.Equal(t, "role.create", got.Action)
	assert.True(t, fixed.Equal(got.At))
}

func TestAuditPublisherErrors(t *testing.T) {
	pub := NewAuditPublisher(&capturingQueue{err: errors.New("redis down")})
	err := pub.Record(context.Background(), shared.AuditLog{Action: "a", Entity: "b", EntityID: "c"})
	assert.ErrorContains(t, err, "redis down")

	err = NewAuditPublisher(&capturingQueue{}).Record(context.Background(), shared.AuditLog{Action: "a"})
	assert.Error(t, err)

	var nilPub *AuditPublisher
	assert.Error(t, nilPub.Record(context.Background(), shared.AuditLog{}))
}

func TestAuditJobHandleRecord(t *testing.T) {
	store := &memoryStore{}
	obs := &countingObserver{}
	job := NewAuditJob(store, 0, nil, obs)

	task, err := NewAuditRecordTask(shared.AuditLog{ActorID: 1, Action: "user.delete", Entity: "user", EntityID: "5"})
	require.NoError(t, err)
	require.NoError(t, job.HandleRecord(context.Background(), task))
	require.Len(t, store.logs, 1)
	assert.Equal(t, "user.delete", store.logs[0].Action)

	bad := asynq.NewTask(TaskAuditRecord, []byte("{not json"))
	assert.ErrorIs(t, job.HandleRecord(context.Background(), bad), asynq.SkipRetry)

	incomplete := asynq.NewTask(TaskAuditRecord, []byte(`{"action":"x"}`))
	assert.ErrorIs(t, job.HandleRecord(context.Background(), incomplete), asynq.SkipRetry)

	store.failErr = errors.New("insert failed")
	assert.Error(t, job.HandleRecord(context.Background(), task))

	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, 3, obs.failed)
}

func TestAuditJobHandlePrune(t *testing.T) {
	store := &memoryStore{}
	job := NewAuditJob(store, 48*time.Hour, nil, nil)
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditPruneTask(now)
	require.NoError(t, err)
	require.NoError(t, job.HandlePrune(context.Background(), task))
	assert.Equal(t, now.Add(-48*time.Hour), store.cutoff)

	disabled := NewAuditJob(&memoryStore{}, 0, nil, nil)
	require.NoError(t, disabled.HandlePrune(context.Background(), task))

	assert.Len(t, job.Handlers(), 2)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}
