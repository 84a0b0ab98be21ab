package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/webintel-network/webledger/internal/domain"
)

// ─── Account Snapshot Operations ────────────────────────────────────────────

// GetAccount retrieves the snapshot for a wallet, or (nil, nil) when the
// wallet is unknown.
func (db *DB) GetAccount(wallet string) (*domain.CreditAccount, error) {
	var a domain.CreditAccount
	var createdStr, activityStr string
	err := db.db.QueryRow(`
		SELECT wallet, balance, total_deposited, total_spent, tier, created_at, last_activity_at
		FROM credit_accounts WHERE wallet = ?
	`, wallet).Scan(&a.WalletAddress, &a.Balance, &a.TotalDeposited, &a.TotalSpent, &a.Tier, &createdStr, &activityStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get account", err)
	}
	a.CreatedAt = parseTime(createdStr)
	a.LastActivityAt = parseTime(activityStr)
	return &a, nil
}

// PutAccount overwrites the full snapshot for the account's wallet.
func (db *DB) PutAccount(acct domain.CreditAccount) error {
	_, err := db.db.Exec(`
		INSERT INTO credit_accounts (wallet, balance, total_deposited, total_spent, tier, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet) DO UPDATE SET
			balance          = excluded.balance,
			total_deposited  = excluded.total_deposited,
			total_spent      = excluded.total_spent,
			tier             = excluded.tier,
			last_activity_at = excluded.last_activity_at
	`, acct.WalletAddress, acct.Balance, acct.TotalDeposited, acct.TotalSpent, string(acct.Tier),
		formatTime(acct.CreatedAt), formatTime(acct.LastActivityAt))
	if err != nil {
		return storageErr("put account", err)
	}
	return nil
}

// ─── Transaction Log Operations ─────────────────────────────────────────────

// AppendTransaction inserts a log entry for the wallet, then truncates the
// log to the HistoryLimit most recent entries.
func (db *DB) AppendTransaction(wallet string, tx domain.CreditTransaction) error {
	metadata := "{}"
	if len(tx.Metadata) > 0 {
		b, err := json.Marshal(tx.Metadata)
		if err != nil {
			return storageErr("encode metadata", err)
		}
		metadata = string(b)
	}

	_, err := db.db.Exec(`
		INSERT INTO credit_transactions (wallet, tx_id, type, amount, description, metadata_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, wallet, tx.ID, string(tx.Type), tx.Amount, tx.Description, metadata, formatTime(tx.Timestamp))
	if err != nil {
		return storageErr("append transaction", err)
	}

	_, err = db.db.Exec(`
		DELETE FROM credit_transactions
		WHERE wallet = ? AND seq NOT IN (
			SELECT seq FROM credit_transactions WHERE wallet = ?
			ORDER BY seq DESC LIMIT ?
		)
	`, wallet, wallet, domain.HistoryLimit)
	if err != nil {
		return storageErr("truncate transactions", err)
	}
	return nil
}

// ListTransactions returns up to limit entries for a wallet, newest first.
func (db *DB) ListTransactions(wallet string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > domain.HistoryLimit {
		limit = domain.HistoryLimit
	}

	rows, err := db.db.Query(`
		SELECT tx_id, type, amount, description, metadata_json, timestamp
		FROM credit_transactions WHERE wallet = ?
		ORDER BY seq DESC LIMIT ?
	`, wallet, limit)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	defer rows.Close()

	var result []domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		var txType, metadata, tsStr string
		if err := rows.Scan(&tx.ID, &txType, &tx.Amount, &tx.Description, &metadata, &tsStr); err != nil {
			return nil, storageErr("scan transaction", err)
		}
		tx.Type = domain.TransactionType(txType)
		tx.Timestamp = parseTime(tsStr)
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &tx.Metadata); err != nil {
				return nil, storageErr("decode metadata", err)
			}
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list transactions", err)
	}
	return result, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// storageErr classifies any sqlite failure as the transient storage error so
// callers can treat the outcome as retryable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
