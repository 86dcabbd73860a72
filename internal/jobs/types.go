package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/household-ledger/internal/ledger"
)

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ReconcileJob asks for one owner's ledger to be reconciled in the
// background, e.g. when a client regains focus.
type ReconcileJob struct {
	JobID   string `json:"jobId"`
	OwnerID int64  `json:"ownerId"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Report is set once the job completes.
	Report *ledger.ReconcileReport `json:"report,omitempty"`

	RetryCount int `json:"retryCount"`
	MaxRetries int `json:"maxRetries"`
}

// Publisher enqueues reconcile jobs.
type Publisher interface {
	PublishReconcile(ctx context.Context, job *ReconcileJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs. It does not block.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job for retry.
type JobHandler func(ctx context.Context, job *ReconcileJob) error

// JobStore tracks job state so clients can poll for results.
type JobStore interface {
	SaveJob(ctx context.Context, job *ReconcileJob) error
	GetJob(ctx context.Context, jobID string) (*ReconcileJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReconcileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	OwnerID int64
	Status  JobStatus
	Limit   int
	Offset  int
}

// Reconciler is the part of the ledger a reconcile job needs.
type Reconciler interface {
	Reconcile(ctx context.Context, ownerID int64) (ledger.ReconcileReport, error)
}

var _ Reconciler = (*ledger.Ledger)(nil)

// ReconcileHandler returns a JobHandler that reconciles the job's owner and
// stores the report on the job.
func ReconcileHandler(r Reconciler) JobHandler {
	return func(ctx context.Context, job *ReconcileJob) error {
		report, err := r.Reconcile(ctx, job.OwnerID)
		if err != nil {
			return err
		}
		job.Report = &report
		return nil
	}
}
