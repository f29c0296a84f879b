package consolidate

import (
	"github.com/dvloznov/group-consolidator/internal/ledger"
)

// Summary holds the consolidated totals over external activity. Expense keeps
// the ledger's negative sign, so Profit = Revenue + Expense.
type Summary struct {
	Revenue float64 `json:"revenue"`
	Expense float64 `json:"expense"`
	Profit  float64 `json:"profit"`
}

// Consolidate sums external transactions into the consolidated summary.
// Internal transactions contribute nothing; account types other than Revenue
// and Expense are present in the ledger but excluded from both totals.
func Consolidate(txs []ledger.Transaction) Summary {
	var s Summary
	for _, t := range txs {
		if t.IsInternal {
			continue
		}
		switch t.AccountType {
		case ledger.AccountTypeRevenue:
			s.Revenue += t.Amount
		case ledger.AccountTypeExpense:
			s.Expense += t.Amount
		}
	}
	s.Profit = s.Revenue + s.Expense
	return s
}
