package consolidate

import (
	"github.com/dvloznov/group-consolidator/internal/ledger"
)

// Tag sets IsInternal on every transaction: true iff both the recording
// company and its counterparty are members of the group. The slice is updated
// in place and returned with no rows added, removed, or reordered; tagging is
// a pure function of (transaction, group).
func Tag(txs []ledger.Transaction, group ledger.GroupSet) []ledger.Transaction {
	for i := range txs {
		txs[i].IsInternal = group.Contains(txs[i].Company) && group.Contains(txs[i].Counterparty)
	}
	return txs
}
