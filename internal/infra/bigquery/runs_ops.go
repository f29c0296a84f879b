package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/group-consolidator/internal/consolidate"
	"github.com/dvloznov/group-consolidator/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	projectID       = "studious-union-470122-v7"
	datasetID       = "consolidation"
	runsTable       = "reconciliation_runs"
	mismatchesTable = "mismatches"
	summariesTable  = "summaries"
)

// StartRunWithClient inserts a new row into consolidation.reconciliation_runs
// with status=RUNNING and returns the generated run_id.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, ledgerURI, membersURI string) (string, error) {
	runID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			ledger_uri,
			members_uri,
			run_date,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@ledger_uri,
			@members_uri,
			@run_date,
			@started_ts,
			@status
		)
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "ledger_uri", Value: ledgerURI},
		{Name: "members_uri", Value: membersURI},
		{Name: "run_date", Value: civil.DateOf(started)},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runAndWait(ctx, q); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}

	return runID, nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures here are logged, not returned; the original pipeline error is what
// gets surfaced to the caller.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: running update query")
	}
}

// MarkRunMismatchedWithClient stores every offending pair in
// consolidation.mismatches and flips the run to MISMATCHED.
func MarkRunMismatchedWithClient(ctx context.Context, client *bigquery.Client, runID string, mismatches []consolidate.Mismatch) error {
	now := time.Now()

	rows := make([]*MismatchRow, 0, len(mismatches))
	for _, m := range mismatches {
		rows = append(rows, &MismatchRow{
			RunID:      runID,
			PairKey:    m.Pair,
			RevenueSum: ratFromFloat(m.Revenue),
			ExpenseSum: ratFromFloat(m.Expense),
			Net:        ratFromFloat(m.Net),
			CreatedTS:  now,
		})
	}

	table := client.DatasetInProject(projectID, datasetID).Table(mismatchesTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("MarkRunMismatched: inserting mismatch rows: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    mismatch_count = @mismatch_count
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusMismatched},
		{Name: "finished_ts", Value: now},
		{Name: "mismatch_count", Value: int64(len(mismatches))},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkRunMismatched: %w", err)
	}

	return nil
}

// MarkRunSucceededWithClient stores the consolidated summary in
// consolidation.summaries and flips the run to SUCCEEDED.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, runID string, summary consolidate.Summary, taggedURI string) error {
	now := time.Now()

	row := &SummaryRow{
		RunID:     runID,
		Revenue:   ratFromFloat(summary.Revenue),
		Expense:   ratFromFloat(summary.Expense),
		Profit:    ratFromFloat(summary.Profit),
		CreatedTS: now,
	}

	table := client.DatasetInProject(projectID, datasetID).Table(summariesTable)
	if err := table.Inserter().Put(ctx, []*SummaryRow{row}); err != nil {
		return fmt.Errorf("MarkRunSucceeded: inserting summary row: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    mismatch_count = 0,
		    tagged_uri = @tagged_uri,
		    error_message = ""
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSucceeded},
		{Name: "finished_ts", Value: now},
		{Name: "tagged_uri", Value: taggedURI},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}

	return nil
}

// ListRunsWithClient retrieves recent reconciliation runs, newest first.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, limit int) ([]*ReconciliationRunRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			ledger_uri,
			members_uri,
			run_date,
			started_ts,
			finished_ts,
			status,
			error_message,
			mismatch_count,
			tagged_uri
		FROM `+"`%s.%s.%s`"+`
		ORDER BY started_ts DESC
		LIMIT @limit
	`, projectID, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: reading query: %w", err)
	}

	var runs []*ReconciliationRunRow
	for {
		var row ReconciliationRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}

// ListMismatchesForRunWithClient retrieves the offending pairs recorded for a
// run, ordered by pair key.
func ListMismatchesForRunWithClient(ctx context.Context, client *bigquery.Client, runID string) ([]*MismatchRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			pair_key,
			revenue_sum,
			expense_sum,
			net,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE run_id = @run_id
		ORDER BY pair_key
	`, projectID, datasetID, mismatchesTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMismatchesForRun: reading query: %w", err)
	}

	var rows []*MismatchRow
	for {
		var row MismatchRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMismatchesForRun: iterating: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// GetSummaryForRunWithClient retrieves the consolidated summary recorded for
// a succeeded run. Returns nil when the run has no summary.
func GetSummaryForRunWithClient(ctx context.Context, client *bigquery.Client, runID string) (*SummaryRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			revenue,
			expense,
			profit,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE run_id = @run_id
		LIMIT 1
	`, projectID, datasetID, summariesTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetSummaryForRun: reading query: %w", err)
	}

	var row SummaryRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetSummaryForRun: reading row: %w", err)
	}

	return &row, nil
}

// runAndWait runs a query job and waits for completion.
func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// ratFromFloat converts a float64 amount into the *big.Rat that the BigQuery
// NUMERIC type expects.
func ratFromFloat(v float64) *big.Rat {
	r := new(big.Rat)
	r.SetFloat64(v)
	return r
}
