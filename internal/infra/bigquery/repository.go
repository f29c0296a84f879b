package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/group-consolidator/internal/consolidate"
)

// RunRepository is the BigQuery-backed implementation of
// consolidate.RunRepository. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type RunRepository struct {
	client *bigquery.Client
}

// NewRunRepository creates a new RunRepository with a shared BigQuery client.
func NewRunRepository(ctx context.Context) (*RunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRunRepository: creating client: %w", err)
	}
	return &RunRepository{
		client: client,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *RunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartRunWithClient with the shared client.
func (r *RunRepository) StartRun(ctx context.Context, ledgerURI, membersURI string) (string, error) {
	return StartRunWithClient(ctx, r.client, ledgerURI, membersURI)
}

// MarkRunFailed delegates to MarkRunFailedWithClient with the shared client.
func (r *RunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, runID, runErr)
}

// MarkRunMismatched delegates to MarkRunMismatchedWithClient with the shared client.
func (r *RunRepository) MarkRunMismatched(ctx context.Context, runID string, mismatches []consolidate.Mismatch) error {
	return MarkRunMismatchedWithClient(ctx, r.client, runID, mismatches)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient with the shared client.
func (r *RunRepository) MarkRunSucceeded(ctx context.Context, runID string, summary consolidate.Summary, taggedURI string) error {
	return MarkRunSucceededWithClient(ctx, r.client, runID, summary, taggedURI)
}

// ListRuns delegates to ListRunsWithClient with the shared client.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*ReconciliationRunRow, error) {
	return ListRunsWithClient(ctx, r.client, limit)
}

// ListMismatchesForRun delegates to ListMismatchesForRunWithClient with the shared client.
func (r *RunRepository) ListMismatchesForRun(ctx context.Context, runID string) ([]*MismatchRow, error) {
	return ListMismatchesForRunWithClient(ctx, r.client, runID)
}

// GetSummaryForRun delegates to GetSummaryForRunWithClient with the shared client.
func (r *RunRepository) GetSummaryForRun(ctx context.Context, runID string) (*SummaryRow, error) {
	return GetSummaryForRunWithClient(ctx, r.client, runID)
}

// Ensure RunRepository implements the pipeline's repository interface.
var _ consolidate.RunRepository = (*RunRepository)(nil)
