package consolidate

import (
	"errors"
	"fmt"

	"github.com/dvloznov/group-consolidator/internal/ledger"
)

// ErrUnbalanced signals that the internal book failed reconciliation.
// Consolidated figures are never produced over an unbalanced ledger; callers
// gate on this error and report the mismatches instead.
var ErrUnbalanced = errors.New("internal transactions do not net to zero")

// Result is the outcome of a reconciliation run over one ledger batch.
// Summary is nil whenever Mismatches is non-empty.
type Result struct {
	Transactions []ledger.Transaction
	Mismatches   []Mismatch
	Summary      *Summary
}

// Balanced reports whether the internal book netted to zero within tolerance.
func (r *Result) Balanced() bool {
	return len(r.Mismatches) == 0
}

// Run executes the reconciliation core over an in-memory batch: tag internal
// transactions, detect unbalanced entity pairs, and - only if every pair nets
// to zero within tolerance - consolidate external activity.
//
// The returned Result always carries the tagged transactions and any
// mismatches. When mismatches exist the error wraps ErrUnbalanced and no
// summary is computed.
func Run(txs []ledger.Transaction, group ledger.GroupSet, tolerance float64) (*Result, error) {
	txs = Tag(txs, group)

	res := &Result{
		Transactions: txs,
		Mismatches:   DetectMismatches(txs, tolerance),
	}

	if len(res.Mismatches) > 0 {
		return res, fmt.Errorf("%w: %d unbalanced entity pairs", ErrUnbalanced, len(res.Mismatches))
	}

	summary := Consolidate(txs)
	res.Summary = &summary
	return res, nil
}
