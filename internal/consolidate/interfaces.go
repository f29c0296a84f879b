package consolidate

import (
	"context"
)

// StorageService is the boundary to object storage. The pipeline only needs
// to fetch raw source bytes and upload the tagged audit artifact.
type StorageService interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Upload(ctx context.Context, uri string, data []byte) error
}

// RunRepository records the lifecycle of a reconciliation run: RUNNING on
// start, then exactly one of SUCCEEDED, MISMATCHED, or FAILED.
type RunRepository interface {
	// StartRun inserts a run record with status RUNNING and returns its ID.
	StartRun(ctx context.Context, ledgerURI, membersURI string) (string, error)

	// MarkRunFailed records an infrastructure or precondition failure.
	// Best effort; the original error is what gets surfaced.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// MarkRunMismatched stores every offending pair and flips the run to
	// MISMATCHED. Called instead of MarkRunSucceeded; never both.
	MarkRunMismatched(ctx context.Context, runID string, mismatches []Mismatch) error

	// MarkRunSucceeded stores the consolidated summary, the URI of the tagged
	// artifact, and flips the run to SUCCEEDED.
	MarkRunSucceeded(ctx context.Context, runID string, summary Summary, taggedURI string) error
}
