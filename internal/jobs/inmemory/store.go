package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/group-consolidator/internal/jobs"
)

// Store keeps reconciliation job snapshots in memory, keyed by job ID. The
// queue overwrites the snapshot at every status transition, so the store only
// needs save and read operations. Data is lost on restart; history that
// matters (the runs themselves) lives in BigQuery.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ReconcileLedgerJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ReconcileLedgerJob),
	}
}

// SaveJob stores a copy of the job snapshot, replacing any previous state for
// the same ID.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ReconcileLedgerJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := *job
	s.jobs[job.JobID] = &snapshot

	return nil
}

// GetJob retrieves a job by ID. The caller gets a copy; mutating it does not
// touch the stored snapshot.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ReconcileLedgerJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	snapshot := *job
	return &snapshot, nil
}

// ListJobs retrieves jobs matching the filter, newest first. Map iteration
// order is random, so the result is sorted before limit/offset apply.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ReconcileLedgerJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ReconcileLedgerJob
	for _, job := range s.jobs {
		if filter.LedgerURI != "" && job.LedgerURI != filter.LedgerURI {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		snapshot := *job
		result = append(result, &snapshot)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ReconcileLedgerJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
