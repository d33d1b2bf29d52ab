package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit record emitted by the API.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune removes audit records past the retention window.
	TaskAuditPrune = "audit:prune"
)

// AuditStore persists and prunes audit records.
type AuditStore interface {
	Record(ctx context.Context, log shared.AuditLog) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditObserver counts processed audit tasks.
type AuditObserver interface {
	ObserveAuditJob(err error)
}

// AuditPrunePayload carries scheduling metadata.
type AuditPrunePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAuditRecordTask constructs an Asynq task carrying the audit record.
func NewAuditRecordTask(log shared.AuditLog) (*asynq.Task, error) {
	if err := log.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(log)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewAuditPruneTask constructs an Asynq task for the retention sweep.
func NewAuditPruneTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AuditPrunePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, body, asynq.Queue(QueueDefault)), nil
}

// AuditJob handles audit tasks in the worker.
type AuditJob struct {
	Store     AuditStore
	Logger    *slog.Logger
	Metrics   AuditObserver
	Retention time.Duration
	clock     func() time.Time
}

// NewAuditJob constructs the audit task handlers.
func NewAuditJob(store AuditStore, retention time.Duration, logger *slog.Logger, metrics AuditObserver) *AuditJob {
	return &AuditJob{
		Store:     store,
		Logger:    logger,
		Metrics:   metrics,
		Retention: retention,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers returns the task registrations served by the job.
func (j *AuditJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskAuditRecord, Handler: j.HandleRecord},
		{Type: TaskAuditPrune, Handler: j.HandlePrune},
	}
}

// HandleRecord persists one audit record. Malformed payloads are not retried.
func (j *AuditJob) HandleRecord(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit record: store not configured")
	}
	defer func() {
		if j.Metrics != nil {
			j.Metrics.ObserveAuditJob(err)
		}
	}()
	var log shared.AuditLog
	if uerr := json.Unmarshal(task.Payload(), &log); uerr != nil {
		j.log().Warn("audit record payload", slog.Any("error", uerr))
		return asynq.SkipRetry
	}
	if verr := log.Validate(); verr != nil {
		j.log().Warn("audit record invalid", slog.Any("error", verr))
		return asynq.SkipRetry
	}
	if err = j.Store.Record(ctx, log); err != nil {
		j.log().Error("audit record persist", slog.String("action", log.Action), slog.Any("error", err))
		return err
	}
	return nil
}

// HandlePrune deletes records older than the retention window.
func (j *AuditJob) HandlePrune(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit prune: store not configured")
	}
	if j.Retention <= 0 {
		return nil
	}
	cutoff := j.now().Add(-j.Retention)
	removed, err := j.Store.Prune(ctx, cutoff)
	if err != nil {
		j.log().Error("audit prune", slog.Any("error", err))
		return err
	}
	j.log().Info("audit prune complete", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}

func (j *AuditJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *AuditJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
