package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeReconcileLedger represents a group-ledger reconciliation job.
	JobTypeReconcileLedger JobType = "reconcile_ledger"
)

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

// ReconcileLedgerJob represents a job to reconcile one ledger batch from GCS.
type ReconcileLedgerJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// LedgerURI is the GCS URI of the ledger CSV.
	LedgerURI string `json:"ledger_uri"`

	// MembersURI is the GCS URI of the group membership list.
	MembersURI string `json:"members_uri"`

	// RunID is the ID of the reconciliation run in BigQuery, once started.
	RunID string `json:"run_id,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Mismatched marks jobs whose run aborted at the reconciliation gate.
	// These are terminal business outcomes, never retried.
	Mismatched bool `json:"mismatched,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ReconcileLedgerJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ReconcileLedgerJob) GetType() JobType {
	return JobTypeReconcileLedger
}

// GetStatus implements the Job interface.
func (j *ReconcileLedgerJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishReconcileLedger publishes a ledger reconciliation job.
	PublishReconcileLedger(ctx context.Context, job *ReconcileLedgerJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
// The queue writes whole job snapshots through SaveJob; the API and the worker
// read them back via GetJob and ListJobs.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ReconcileLedgerJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ReconcileLedgerJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReconcileLedgerJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// LedgerURI filters jobs by ledger source.
	LedgerURI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
