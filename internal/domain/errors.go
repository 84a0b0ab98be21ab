package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Callers classify
// with errors.Is; layers add context with fmt.Errorf("...: %w", err).

var (
	// Validation errors — rejected before touching the ledger.
	ErrInvalidWallet = errors.New("wallet address is empty")
	ErrInvalidAmount = errors.New("amount must be a positive whole number of cents")
	ErrMissingTxID   = errors.New("transaction id required")

	// Business errors.
	ErrAccountNotFound   = errors.New("credit account not found")
	ErrInsufficientFunds = errors.New("insufficient credit balance")

	// Infrastructure errors. StorageUnavailable is transient: the mutation
	// was not applied unless the snapshot write itself succeeded, and the
	// caller should retry with the same idempotency id.
	ErrStorageUnavailable = errors.New("credit storage unavailable")
	ErrLedgerClosed       = errors.New("ledger is shut down")
)
