package consolidate

import (
	"math"
	"sort"

	"github.com/dvloznov/group-consolidator/internal/ledger"
)

// Mismatch is one entity pair whose internal trading does not net to zero
// within tolerance. Revenue and Expense carry the per-account-type sums so an
// operator can see which leg is short.
type Mismatch struct {
	Pair    string  `json:"pair"`
	Revenue float64 `json:"revenue"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// PairKey returns the direction-independent key for two entities: the
// identifiers sorted lexicographically and joined, so (A,B) and (B,A)
// collide. This is what lets the two legs of an internal trade offset each
// other no matter which side recorded which leg.
func PairKey(company, counterparty string) string {
	if counterparty < company {
		company, counterparty = counterparty, company
	}
	return company + "|" + counterparty
}

// DetectMismatches groups internal transactions by normalized entity pair,
// sums amounts per account type, and returns every pair whose net balance
// exceeds the tolerance, ordered by pair key. An empty result means the
// internal book is balanced.
//
// Summation is associative and commutative up to floating-point rounding;
// the tolerance bound is what makes the reported set independent of
// iteration order.
func DetectMismatches(txs []ledger.Transaction, tolerance float64) []Mismatch {
	type bucket struct{ revenue, expense float64 }
	sums := make(map[string]*bucket)

	for _, t := range txs {
		if !t.IsInternal {
			continue
		}
		key := PairKey(t.Company, t.Counterparty)
		b := sums[key]
		if b == nil {
			b = &bucket{}
			sums[key] = b
		}
		switch t.AccountType {
		case ledger.AccountTypeRevenue:
			b.revenue += t.Amount
		case ledger.AccountTypeExpense:
			b.expense += t.Amount
		}
	}

	var mismatches []Mismatch
	for key, b := range sums {
		net := b.revenue + b.expense
		if math.Abs(net) > tolerance {
			mismatches = append(mismatches, Mismatch{
				Pair:    key,
				Revenue: b.revenue,
				Expense: b.expense,
				Net:     net,
			})
		}
	}

	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].Pair < mismatches[j].Pair
	})

	return mismatches
}
