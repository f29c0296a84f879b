package consolidate

import (
	"testing"

	"github.com/dvloznov/group-consolidator/internal/ledger"
)

func TestPairKey_DirectionIndependent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"already sorted", "A", "B", "A|B"},
		{"reversed", "B", "A", "A|B"},
		{"longer identifiers", "SubCo-UK", "HoldCo", "HoldCo|SubCo-UK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PairKey(tt.a, tt.b); got != tt.want {
				t.Errorf("PairKey(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDetectMismatches_BalancedPair(t *testing.T) {
	// A records revenue +100 against B; B records the offsetting expense -100
	// against A. Net is zero, so no mismatch.
	txs := []ledger.Transaction{
		{Company: "A", Counterparty: "B", AccountType: ledger.AccountTypeRevenue, Amount: 100, IsInternal: true},
		{Company: "B", Counterparty: "A", AccountType: ledger.AccountTypeExpense, Amount: -100, IsInternal: true},
	}

	got := DetectMismatches(txs, DefaultTolerance)
	if len(got) != 0 {
		t.Errorf("expected balanced book, got %d mismatches: %+v", len(got), got)
	}
}

func TestDetectMismatches_UnbalancedPair(t *testing.T) {
	// Same setup but B only recorded -90: net = 10 for the pair.
	txs := []ledger.Transaction{
		{Company: "A", Counterparty: "B", AccountType: ledger.AccountTypeRevenue, Amount: 100, IsInternal: true},
		{Company: "B", Counterparty: "A", AccountType: ledger.AccountTypeExpense, Amount: -90, IsInternal: true},
	}

	got := DetectMismatches(txs, DefaultTolerance)
	if len(got) != 1 {
		t.Fatalf("expected exactly one mismatch, got %d", len(got))
	}

	m := got[0]
	if m.Pair != "A|B" {
		t.Errorf("Pair = %q, want %q", m.Pair, "A|B")
	}
	if m.Revenue != 100 {
		t.Errorf("Revenue = %v, want 100", m.Revenue)
	}
	if m.Expense != -90 {
		t.Errorf("Expense = %v, want -90", m.Expense)
	}
	if m.Net != 10 {
		t.Errorf("Net = %v, want 10", m.Net)
	}
}

func TestDetectMismatches_Tolerance(t *testing.T) {
	tests := []struct {
		name         string
		expense      float64
		wantMismatch bool
	}{
		{"net just below tolerance", -99.991, false}, // net = 0.009
		{"net just above tolerance", -99.989, true},  // net = 0.011
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := []ledger.Transaction{
				{Company: "A", Counterparty: "B", AccountType: ledger.AccountTypeRevenue, Amount: 100, IsInternal: true},
				{Company: "B", Counterparty: "A", AccountType: ledger.AccountTypeExpense, Amount: tt.expense, IsInternal: true},
			}

			got := DetectMismatches(txs, DefaultTolerance)
			if (len(got) > 0) != tt.wantMismatch {
				t.Errorf("mismatch reported = %v, want %v (got %+v)", len(got) > 0, tt.wantMismatch, got)
			}
		})
	}
}

func TestDetectMismatches_IgnoresExternal(t *testing.T) {
	// External transactions never participate in reconciliation, however
	// unbalanced they look.
	txs := []ledger.Transaction{
		{Company: "A", Counterparty: "Customer", AccountType: ledger.AccountTypeRevenue, Amount: 5000, IsInternal: false},
		{Company: "B", Counterparty: "Vendor", AccountType: ledger.AccountTypeExpense, Amount: -3000, IsInternal: false},
	}

	got := DetectMismatches(txs, DefaultTolerance)
	if len(got) != 0 {
		t.Errorf("external transactions must not produce mismatches, got %+v", got)
	}
}

func TestDetectMismatches_ReportsEveryPairSorted(t *testing.T) {
	txs := []ledger.Transaction{
		{Company: "C", Counterparty: "B", AccountType: ledger.AccountTypeRevenue, Amount: 40, IsInternal: true},
		{Company: "A", Counterparty: "B", AccountType: ledger.AccountTypeRevenue, Amount: 100, IsInternal: true},
		{Company: "B", Counterparty: "A", AccountType: ledger.AccountTypeExpense, Amount: -70, IsInternal: true},
	}

	got := DetectMismatches(txs, DefaultTolerance)
	if len(got) != 2 {
		t.Fatalf("expected both unbalanced pairs reported, got %d: %+v", len(got), got)
	}
	if got[0].Pair != "A|B" || got[1].Pair != "B|C" {
		t.Errorf("pairs not ordered by key: %q, %q", got[0].Pair, got[1].Pair)
	}
}

func TestDetectMismatches_EmptyInput(t *testing.T) {
	if got := DetectMismatches(nil, DefaultTolerance); len(got) != 0 {
		t.Errorf("expected no mismatches on empty input, got %+v", got)
	}
}
