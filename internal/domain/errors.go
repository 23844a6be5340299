package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// A mutator returning one of these leaves the snapshot unchanged; the HTTP
// layer maps them onto response statuses.

var (
	// Student errors
	ErrStudentNotFound = errors.New("student not found")
	ErrStudentExists   = errors.New("a student with this id already exists")

	// Ledger errors
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionCancelled = errors.New("transaction is already cancelled")
	ErrInsufficientStones   = errors.New("insufficient stone balance")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrSelfTransfer         = errors.New("cannot transfer stones to the same student")

	// Shop errors
	ErrItemNotFound  = errors.New("shop item not found")
	ErrOutOfStock    = errors.New("shop item is out of stock")
	ErrCouponInvalid = errors.New("coupon is invalid or already used")

	// Mission errors
	ErrMissionNotFound = errors.New("mission not found")

	// Gacha errors
	ErrNoTickets = errors.New("no gacha tickets remaining")
	ErrNoPrizes  = errors.New("gacha prize table is empty")

	// Chess errors
	ErrMatchNotFound = errors.New("chess match not found")
)
