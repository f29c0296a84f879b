package ledger

// Account types with consolidation semantics. Other values may appear in a
// ledger (balance-sheet lines etc.) and are carried through untouched, but
// they contribute to neither consolidated total.
const (
	AccountTypeRevenue = "Revenue"
	AccountTypeExpense = "Expense"
)

// Transaction is one ledger entry as recorded by a single entity.
// Amounts follow the sign convention of the source ledger: Revenue entries
// are non-negative, Expense entries are negative, so revenue + expense yields
// net profit directly.
type Transaction struct {
	Company      string
	Counterparty string
	AccountType  string
	Amount       float64

	// IsInternal is derived, not part of the input schema. It is set once by
	// the tagger and never touched again.
	IsInternal bool
}

// GroupSet is the set of entity identifiers that belong to the consolidating
// group. Membership of both parties is the sole criterion for "internal".
type GroupSet map[string]struct{}

// NewGroupSet builds a GroupSet from a list of entity identifiers.
// Empty identifiers are ignored.
func NewGroupSet(members []string) GroupSet {
	set := make(GroupSet, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		set[m] = struct{}{}
	}
	return set
}

// Contains reports whether the entity is a member of the group.
func (g GroupSet) Contains(entity string) bool {
	_, ok := g[entity]
	return ok
}
