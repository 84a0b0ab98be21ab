// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"strings"
	"time"
)

// ─── Credit Types ───────────────────────────────────────────────────────────

// Tier classifies a wallet by cumulative deposits. It is derived state:
// always recomputable from TotalDeposited, never set independently.
type Tier string

const (
	TierStandard Tier = "standard"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Cumulative-deposit thresholds, in cents.
const (
	goldThreshold     Cents = 100_00
	platinumThreshold Cents = 1000_00
)

// TierFor derives the tier from cumulative deposits.
// Thresholds are checked highest first so the best qualifying tier wins.
func TierFor(totalDeposited Cents) Tier {
	switch {
	case totalDeposited >= platinumThreshold:
		return TierPlatinum
	case totalDeposited >= goldThreshold:
		return TierGold
	default:
		return TierStandard
	}
}

// TransactionType represents the business reason for a ledger entry.
type TransactionType string

const (
	TxDeposit TransactionType = "deposit"
	TxSpend   TransactionType = "spend"
	TxBonus   TransactionType = "bonus"
)

// CreditAccount is the current ledger snapshot for one wallet.
type CreditAccount struct {
	WalletAddress  string    `json:"wallet_address"`
	Balance        Cents     `json:"balance_cents"`
	TotalDeposited Cents     `json:"total_deposited_cents"`
	TotalSpent     Cents     `json:"total_spent_cents"`
	Tier           Tier      `json:"tier"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewAccount materializes a zero-balance standard-tier account.
// Accounts are created lazily on first deposit or first lookup and are
// never deleted.
func NewAccount(wallet string, now time.Time) CreditAccount {
	return CreditAccount{
		WalletAddress:  wallet,
		Tier:           TierStandard,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// CreditTransaction is a single row in the per-wallet ledger log.
// Amount is signed: positive for deposit/bonus, negative for spend.
type CreditTransaction struct {
	ID          string            `json:"id"`
	Type        TransactionType   `json:"type"`
	Amount      Cents             `json:"amount_cents"`
	Description string            `json:"description,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BonusTxID derives the id of the bonus entry credited alongside a deposit.
func BonusTxID(depositTxID string) string {
	return depositTxID + "-bonus"
}

// HistoryLimit bounds the per-wallet transaction log. The log is a recent
// window, not a full audit trail: inserting past the limit evicts the
// oldest entry.
const HistoryLimit = 50

// NormalizeWallet canonicalizes a wallet address to the single lowercase
// form used as the storage key.
func NormalizeWallet(raw string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(raw))
	if w == "" {
		return "", ErrInvalidWallet
	}
	return w, nil
}
