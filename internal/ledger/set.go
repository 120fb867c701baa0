// Package ledger turns raw transaction CSVs into a validated, time-ordered
// TransactionSet.
package ledger

import (
	"sort"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Set is an immutable, time-ordered collection of transactions. Ties on
// timestamp keep input order.
type Set struct {
	txs []models.Transaction
}

// NewSet copies txs and stable-sorts them by timestamp.
func NewSet(txs []models.Transaction) Set {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return Set{txs: sorted}
}

// Len returns the number of transactions.
func (s Set) Len() int {
	return len(s.txs)
}

// At returns the i-th transaction in time order.
func (s Set) At(i int) models.Transaction {
	return s.txs[i]
}

// Transactions returns a copy of the ordered transactions.
func (s Set) Transactions() []models.Transaction {
	out := make([]models.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}
