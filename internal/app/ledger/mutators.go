// Package ledger implements the point-economy state transitions.
//
// Every mutator is a pure function of the current snapshot producing a new
// snapshot; nothing here touches storage. The Service applies mutators
// through the synchronized store's single apply point, so they inherit its
// optimistic, debounced persistence and its no-op behavior outside the Live
// state. A mutator that cannot apply (unknown id, insufficient balance)
// returns the snapshot unchanged together with a sentinel error; it never
// panics and never partially applies.
package ledger

import (
	"fmt"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// TxParams carries the caller-resolved identity and time for a generic
// credit/debit. Amount is signed.
type TxParams struct {
	ID          string
	StudentID   string
	Type        domain.TransactionType
	Description string
	Amount      int
	Timestamp   int64
}

// AddTransaction credits or debits a student, clamping the resulting balance
// into [0, maxStones], and prepends a ledger entry capturing the before/after
// balance pair.
func AddTransaction(d domain.AppData, p TxParams) (domain.AppData, domain.Transaction, error) {
	i := d.FindStudent(p.StudentID)
	if i < 0 {
		return d, domain.Transaction{}, domain.ErrStudentNotFound
	}

	students := cloneStudents(d.Students)
	st := &students[i]

	before := st.Stones
	after := domain.ClampStones(before+p.Amount, st.MaxStones)
	st.Stones = after

	tx := domain.Transaction{
		ID:                 p.ID,
		StudentID:          p.StudentID,
		Type:               p.Type,
		Description:        p.Description,
		Amount:             p.Amount,
		Timestamp:          p.Timestamp,
		Status:             domain.TxActive,
		StoneBalanceBefore: before,
		StoneBalanceAfter:  after,
	}

	d.Students = students
	d.Transactions = prependTx(d.Transactions, tx)
	return d, tx, nil
}

// PurchaseParams carries an already-computed final cost: any coupon or
// discount reduction is resolved by the caller before the mutator runs.
type PurchaseParams struct {
	ID          string
	StudentID   string
	Description string
	FinalCost   int
	Timestamp   int64
}

// Purchase debits a student by the final cost without clamping to zero: the
// balance may go negative if the caller permits it.
func Purchase(d domain.AppData, p PurchaseParams) (domain.AppData, domain.Transaction, error) {
	i := d.FindStudent(p.StudentID)
	if i < 0 {
		return d, domain.Transaction{}, domain.ErrStudentNotFound
	}

	students := cloneStudents(d.Students)
	st := &students[i]

	before := st.Stones
	after := before - p.FinalCost
	st.Stones = after

	tx := domain.Transaction{
		ID:                 p.ID,
		StudentID:          p.StudentID,
		Type:               domain.TxPurchase,
		Description:        p.Description,
		Amount:             -p.FinalCost,
		Timestamp:          p.Timestamp,
		Status:             domain.TxActive,
		StoneBalanceBefore: before,
		StoneBalanceAfter:  after,
	}

	d.Students = students
	d.Transactions = prependTx(d.Transactions, tx)
	return d, tx, nil
}

// CancelTransaction applies the exact inverse of an active transaction,
// re-clamps the balance into [0, maxStones], and flips the entry's status to
// cancelled. The original record is preserved for auditability.
func CancelTransaction(d domain.AppData, txID string) (domain.AppData, error) {
	j := d.FindTransaction(txID)
	if j < 0 {
		return d, domain.ErrTransactionNotFound
	}
	if d.Transactions[j].Status != domain.TxActive {
		return d, domain.ErrTransactionCancelled
	}

	i := d.FindStudent(d.Transactions[j].StudentID)
	if i < 0 {
		return d, domain.ErrStudentNotFound
	}

	students := cloneStudents(d.Students)
	st := &students[i]
	st.Stones = domain.ClampStones(st.Stones-d.Transactions[j].Amount, st.MaxStones)

	txs := cloneTransactions(d.Transactions)
	txs[j].Status = domain.TxCancelled

	d.Students = students
	d.Transactions = txs
	return d, nil
}

// DeleteTransaction removes a ledger entry outright. The student balance is
// NOT adjusted: deletion is record removal, not reversal. Cancellation is
// the reversal path.
func DeleteTransaction(d domain.AppData, txID string) (domain.AppData, error) {
	j := d.FindTransaction(txID)
	if j < 0 {
		return d, domain.ErrTransactionNotFound
	}

	txs := make([]domain.Transaction, 0, len(d.Transactions)-1)
	txs = append(txs, d.Transactions[:j]...)
	txs = append(txs, d.Transactions[j+1:]...)
	d.Transactions = txs
	return d, nil
}

// TransferParams names both sides of a transfer and pre-generated ids for
// the two linked ledger entries.
type TransferParams struct {
	FromID    string
	ToID      string
	Amount    int
	OutTxID   string
	InTxID    string
	Timestamp int64
}

// Transfer moves a positive amount between two students in one step. The
// source must hold at least the amount (checked first, so the debit cannot
// go negative); the destination is clamped to its ceiling. Two linked
// entries are prepended, one per side, with opposite signed amounts.
func Transfer(d domain.AppData, p TransferParams) (domain.AppData, error) {
	if p.Amount <= 0 {
		return d, domain.ErrInvalidAmount
	}
	if p.FromID == p.ToID {
		return d, domain.ErrSelfTransfer
	}

	fi := d.FindStudent(p.FromID)
	ti := d.FindStudent(p.ToID)
	if fi < 0 || ti < 0 {
		return d, domain.ErrStudentNotFound
	}
	if d.Students[fi].Stones < p.Amount {
		return d, domain.ErrInsufficientStones
	}

	students := cloneStudents(d.Students)
	from := &students[fi]
	to := &students[ti]

	fromBefore := from.Stones
	from.Stones = fromBefore - p.Amount

	toBefore := to.Stones
	to.Stones = domain.ClampStones(toBefore+p.Amount, to.MaxStones)

	out := domain.Transaction{
		ID:                 p.OutTxID,
		StudentID:          p.FromID,
		Type:               domain.TxTransfer,
		Description:        fmt.Sprintf("Transfer to %s", to.Name),
		Amount:             -p.Amount,
		Timestamp:          p.Timestamp,
		Status:             domain.TxActive,
		StoneBalanceBefore: fromBefore,
		StoneBalanceAfter:  from.Stones,
		LinkedID:           p.InTxID,
	}
	in := domain.Transaction{
		ID:                 p.InTxID,
		StudentID:          p.ToID,
		Type:               domain.TxTransfer,
		Description:        fmt.Sprintf("Transfer from %s", from.Name),
		Amount:             p.Amount,
		Timestamp:          p.Timestamp,
		Status:             domain.TxActive,
		StoneBalanceBefore: toBefore,
		StoneBalanceAfter:  to.Stones,
		LinkedID:           p.OutTxID,
	}

	d.Students = students
	d.Transactions = prependTx(d.Transactions, out, in)
	return d, nil
}

// ─── Copy-On-Write Helpers ──────────────────────────────────────────────────
// AppData is passed by value but its slices are shared with the store's
// snapshot; mutators must never write into them in place.

func cloneStudents(in []domain.Student) []domain.Student {
	out := make([]domain.Student, len(in))
	copy(out, in)
	return out
}

func cloneTransactions(in []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(in))
	copy(out, in)
	return out
}

// prependTx puts new entries at the head: the ledger is ordered newest first.
func prependTx(in []domain.Transaction, txs ...domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(in)+len(txs))
	out = append(out, txs...)
	out = append(out, in...)
	return out
}
