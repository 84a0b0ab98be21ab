package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/webintel-network/webledger/internal/domain"
)

// ─── Wire Types ─────────────────────────────────────────────────────────────
// Amounts cross the API boundary as decimal USD; the ledger itself only
// sees integer cents.

type depositRequest struct {
	Wallet    string          `json:"wallet"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	TxID      string          `json:"tx_id,omitempty"`
}

type debitRequest struct {
	Wallet      string          `json:"wallet"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	Description string          `json:"description,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

type accountView struct {
	WalletAddress     string    `json:"wallet_address"`
	BalanceUSD        string    `json:"balance_usd"`
	TotalDepositedUSD string    `json:"total_deposited_usd"`
	TotalSpentUSD     string    `json:"total_spent_usd"`
	Tier              string    `json:"tier"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}

type depositResponse struct {
	Account         accountView `json:"account"`
	BonusAccruedUSD string      `json:"bonus_accrued_usd"`
}

type transactionView struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	AmountUSD   string            `json:"amount_usd"`
	Description string            `json:"description,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func viewAccount(a domain.CreditAccount) accountView {
	return accountView{
		WalletAddress:     a.WalletAddress,
		BalanceUSD:        a.Balance.USD().StringFixed(2),
		TotalDepositedUSD: a.TotalDeposited.USD().StringFixed(2),
		TotalSpentUSD:     a.TotalSpent.USD().StringFixed(2),
		Tier:              string(a.Tier),
		CreatedAt:         a.CreatedAt,
		LastActivityAt:    a.LastActivityAt,
	}
}

func viewTransaction(tx domain.CreditTransaction) transactionView {
	return transactionView{
		ID:          tx.ID,
		Type:        string(tx.Type),
		AmountUSD:   tx.Amount.USD().StringFixed(2),
		Description: tx.Description,
		Timestamp:   tx.Timestamp,
		Metadata:    tx.Metadata,
	}
}

// ─── Handlers ───────────────────────────────────────────────────────────────

// handleDeposit credits a settled payment. Called by the settlement layer;
// a missing tx_id gets a server-generated one, which forfeits retry
// idempotency, so settlement callers should always pass their own.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TxID == "" {
		req.TxID = uuid.NewString()
	}

	amount, err := domain.CentsFromUSD(req.AmountUSD)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	res, err := s.ledger.Deposit(r.Context(), req.Wallet, amount, req.TxID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResponse{
		Account:         viewAccount(res.Account),
		BonusAccruedUSD: res.BonusAccrued.USD().StringFixed(2),
	})
}

// handleDebit charges a wallet before a paid operation is fulfilled.
func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req debitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	amount, err := domain.CentsFromUSD(req.AmountUSD)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	acct, err := s.ledger.Debit(r.Context(), req.Wallet, amount, req.Description, req.RequestID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAccount(acct))
}

// handleGetAccount returns the balance/tier snapshot, materializing the
// account on first lookup.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.ledger.GetAccount(r.Context(), chi.URLParam(r, "wallet"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAccount(acct))
}

// handleHistory returns the recent transaction window, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.GetHistory(r.Context(), chi.URLParam(r, "wallet"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	views := make([]transactionView, 0, len(list))
	for _, tx := range list {
		views = append(views, viewTransaction(tx))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
	})
}
