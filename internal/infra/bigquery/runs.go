package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Run statuses. A run is RUNNING from StartRun until exactly one of the
// terminal updates flips it.
const (
	RunStatusRunning    = "RUNNING"
	RunStatusSucceeded  = "SUCCEEDED"
	RunStatusMismatched = "MISMATCHED"
	RunStatusFailed     = "FAILED"
)

// ReconciliationRunRow is one row of consolidation.reconciliation_runs.
type ReconciliationRunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	LedgerURI  string `bigquery:"ledger_uri"`  // REQUIRED
	MembersURI string `bigquery:"members_uri"` // REQUIRED

	RunDate    civil.Date             `bigquery:"run_date"`    // REQUIRED
	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	MismatchCount bigquery.NullInt64  `bigquery:"mismatch_count"` // NULLABLE
	TaggedURI     bigquery.NullString `bigquery:"tagged_uri"`     // NULLABLE
}

// MismatchRow is one unbalanced entity pair of a run, one row per pair in
// consolidation.mismatches.
type MismatchRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	PairKey string `bigquery:"pair_key"` // REQUIRED

	RevenueSum *big.Rat `bigquery:"revenue_sum"` // REQUIRED NUMERIC
	ExpenseSum *big.Rat `bigquery:"expense_sum"` // REQUIRED NUMERIC
	Net        *big.Rat `bigquery:"net"`         // REQUIRED NUMERIC

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// SummaryRow is the consolidated result of a successful run, one row in
// consolidation.summaries.
type SummaryRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	Revenue *big.Rat `bigquery:"revenue"` // REQUIRED NUMERIC
	Expense *big.Rat `bigquery:"expense"` // REQUIRED NUMERIC
	Profit  *big.Rat `bigquery:"profit"`  // REQUIRED NUMERIC

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
