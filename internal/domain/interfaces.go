package domain

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the ledger depends on them.

// AccountStore abstracts durable credit persistence: one account snapshot
// and one bounded transaction list per canonical wallet key.
//
// Each method must be individually atomic; the ledger serializes all writes
// for a wallet through one worker, so implementations need no per-wallet
// locking. Storage failures are reported wrapping ErrStorageUnavailable.
type AccountStore interface {
	// GetAccount returns the snapshot, or (nil, nil) when the wallet is unknown.
	GetAccount(wallet string) (*CreditAccount, error)

	// PutAccount overwrites the full snapshot.
	PutAccount(acct CreditAccount) error

	// AppendTransaction prepends an entry to the wallet's log and truncates
	// it to the HistoryLimit most recent entries.
	AppendTransaction(wallet string, tx CreditTransaction) error

	// ListTransactions returns up to limit entries, newest first.
	ListTransactions(wallet string, limit int) ([]CreditTransaction, error)
}
