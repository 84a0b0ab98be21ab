// Package ledger implements the prepaid credit ledger for the metered API.
//
// Every mutation for a wallet is routed by a deterministic hash of the
// canonical wallet key to one shard worker, which executes that wallet's
// operations strictly one at a time in arrival order. Operations against
// different wallets run in parallel; there is no global lock. Within one
// operation the worker does a plain read-modify-write against the injected
// AccountStore, so per-wallet linearizability comes from the routing alone.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/webintel-network/webledger/internal/domain"
	"github.com/webintel-network/webledger/internal/infra/observability"
)

// Config controls ledger concurrency and idempotency behavior.
type Config struct {
	Shards         int           // serializing workers (default: 16)
	MailboxDepth   int           // per-shard queue depth (default: 64)
	IdempotencyTTL time.Duration // replay window for completed ops (default: 10m)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Shards:         16,
		MailboxDepth:   64,
		IdempotencyTTL: 10 * time.Minute,
	}
}

// Ledger serializes credit mutations per wallet and persists them through
// an injected AccountStore. Construct with New; there is no package-level
// instance.
type Ledger struct {
	config Config
	store  domain.AccountStore
	bonus  *domain.BonusCalculator
	shards []chan func()
	seen   *idempotencyCache

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a ledger backed by store and starts its shard workers.
func New(cfg Config, store domain.AccountStore, bonus *domain.BonusCalculator) *Ledger {
	def := DefaultConfig()
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.MailboxDepth <= 0 {
		cfg.MailboxDepth = def.MailboxDepth
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}

	l := &Ledger{
		config: cfg,
		store:  store,
		bonus:  bonus,
		shards: make([]chan func(), cfg.Shards),
		seen:   newIdempotencyCache(cfg.IdempotencyTTL),
	}
	for i := range l.shards {
		l.shards[i] = make(chan func(), cfg.MailboxDepth)
		l.wg.Add(1)
		go l.runShard(l.shards[i])
	}
	return l
}

// runShard drains one mailbox. Tasks on the same shard never overlap.
func (l *Ledger) runShard(mailbox <-chan func()) {
	defer l.wg.Done()
	for task := range mailbox {
		task()
	}
}

// Close stops accepting operations and waits for in-flight ones to finish.
func (l *Ledger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	for _, ch := range l.shards {
		close(ch)
	}
	l.wg.Wait()
}

// shardFor routes a canonical wallet key to its shard. SHA-256 truncation
// gives a well-distributed, stable mapping: the same wallet always
// serializes through the same worker, across retries and restarts.
func (l *Ledger) shardFor(wallet string) int {
	h := sha256.Sum256([]byte(wallet))
	return int(binary.BigEndian.Uint32(h[:4]) % uint32(len(l.shards)))
}

// submit runs fn on the wallet's shard and waits for it to finish.
// Once accepted by the shard, fn runs to completion even if ctx is
// cancelled while waiting; the caller then gets ctx.Err() and must treat
// the outcome as unknown, like any other transient failure.
func (l *Ledger) submit(ctx context.Context, wallet string, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return domain.ErrLedgerClosed
	}
	select {
	case l.shards[l.shardFor(wallet)] <- task:
		l.mu.RUnlock()
	case <-ctx.Done():
		l.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Operations ─────────────────────────────────────────────────────────────

// DepositResult reports an applied (or replayed) deposit.
type DepositResult struct {
	Account      domain.CreditAccount `json:"account"`
	BonusAccrued domain.Cents         `json:"bonus_accrued_cents"`
}

// Deposit credits amount (plus any schedule bonus) to the wallet,
// materializing the account if needed. txID correlates the ledger entries
// with the settled payment and doubles as the idempotency key: a repeat
// within the replay window returns the original result without mutating
// state. Deposits are never rejected on business grounds.
func (l *Ledger) Deposit(ctx context.Context, wallet string, amount domain.Cents, txID string) (DepositResult, error) {
	start := time.Now()
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return DepositResult{}, l.finish("deposit", start, err)
	}
	if amount <= 0 {
		return DepositResult{}, l.finish("deposit", start,
			fmt.Errorf("%w: deposit of %s", domain.ErrInvalidAmount, amount))
	}
	if txID == "" {
		return DepositResult{}, l.finish("deposit", start, domain.ErrMissingTxID)
	}

	var res DepositResult
	var opErr error
	if err := l.submit(ctx, w, func() {
		res, opErr = l.applyDeposit(w, amount, txID)
	}); err != nil {
		return DepositResult{}, l.finish("deposit", start, err)
	}
	return res, l.finish("deposit", start, opErr)
}

func (l *Ledger) applyDeposit(wallet string, amount domain.Cents, txID string) (DepositResult, error) {
	if prior, ok := l.seen.get(depositKey(txID)); ok {
		observability.IdempotentReplays.Inc()
		return DepositResult{Account: prior.account, BonusAccrued: prior.bonus}, nil
	}

	now := time.Now().UTC()
	acct, err := l.store.GetAccount(wallet)
	if err != nil {
		return DepositResult{}, err
	}
	if acct == nil {
		created := domain.NewAccount(wallet, now)
		acct = &created
	}

	bonus := l.bonus.Bonus(amount)
	acct.Balance += amount + bonus
	acct.TotalDeposited += amount
	acct.Tier = domain.TierFor(acct.TotalDeposited)
	acct.LastActivityAt = now

	if err := l.store.PutAccount(*acct); err != nil {
		// The in-memory copy is discarded; nothing was applied.
		return DepositResult{}, err
	}
	if err := l.store.AppendTransaction(wallet, domain.CreditTransaction{
		ID:          txID,
		Type:        domain.TxDeposit,
		Amount:      amount,
		Description: "deposit",
		Timestamp:   now,
	}); err != nil {
		return DepositResult{}, err
	}
	if bonus > 0 {
		if err := l.store.AppendTransaction(wallet, domain.CreditTransaction{
			ID:          domain.BonusTxID(txID),
			Type:        domain.TxBonus,
			Amount:      bonus,
			Description: "deposit bonus",
			Timestamp:   now,
		}); err != nil {
			return DepositResult{}, err
		}
		observability.BonusCredited.Add(float64(bonus))
	}

	log.Printf("[ledger] deposit wallet=%s amount=%s bonus=%s balance=%s tier=%s",
		wallet, amount, bonus, acct.Balance, acct.Tier)
	l.seen.put(depositKey(txID), opOutcome{account: *acct, bonus: bonus})
	return DepositResult{Account: *acct, BonusAccrued: bonus}, nil
}

// Debit charges amount against the wallet's balance before a paid
// operation. requestID is the idempotency key: a retried request within the
// replay window returns the original post-debit account without charging
// again. A failed debit mutates nothing.
func (l *Ledger) Debit(ctx context.Context, wallet string, amount domain.Cents, description, requestID string) (domain.CreditAccount, error) {
	start := time.Now()
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return domain.CreditAccount{}, l.finish("debit", start, err)
	}
	if amount <= 0 {
		return domain.CreditAccount{}, l.finish("debit", start,
			fmt.Errorf("%w: debit of %s", domain.ErrInvalidAmount, amount))
	}
	if requestID == "" {
		return domain.CreditAccount{}, l.finish("debit", start, domain.ErrMissingTxID)
	}

	var res domain.CreditAccount
	var opErr error
	if err := l.submit(ctx, w, func() {
		res, opErr = l.applyDebit(w, amount, description, requestID)
	}); err != nil {
		return domain.CreditAccount{}, l.finish("debit", start, err)
	}
	return res, l.finish("debit", start, opErr)
}

func (l *Ledger) applyDebit(wallet string, amount domain.Cents, description, requestID string) (domain.CreditAccount, error) {
	if prior, ok := l.seen.get(debitKey(requestID)); ok {
		observability.IdempotentReplays.Inc()
		return prior.account, nil
	}

	acct, err := l.store.GetAccount(wallet)
	if err != nil {
		return domain.CreditAccount{}, err
	}
	if acct == nil {
		return domain.CreditAccount{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, wallet)
	}
	if acct.Balance < amount {
		// Business failures are not cached: a later retry re-evaluates
		// against the then-current balance.
		return domain.CreditAccount{}, fmt.Errorf("%w: balance %s, debit %s",
			domain.ErrInsufficientFunds, acct.Balance, amount)
	}

	now := time.Now().UTC()
	acct.Balance -= amount
	acct.TotalSpent += amount
	acct.LastActivityAt = now

	if err := l.store.PutAccount(*acct); err != nil {
		return domain.CreditAccount{}, err
	}
	if err := l.store.AppendTransaction(wallet, domain.CreditTransaction{
		ID:          requestID,
		Type:        domain.TxSpend,
		Amount:      -amount,
		Description: description,
		Timestamp:   now,
	}); err != nil {
		return domain.CreditAccount{}, err
	}

	log.Printf("[ledger] debit wallet=%s amount=%s balance=%s", wallet, amount, acct.Balance)
	l.seen.put(debitKey(requestID), opOutcome{account: *acct})
	return *acct, nil
}

// GetAccount returns the wallet's snapshot, lazily materializing a
// zero-balance standard-tier account on first lookup. Materialization is a
// write, so the lookup goes through the wallet's shard like any mutation.
func (l *Ledger) GetAccount(ctx context.Context, wallet string) (domain.CreditAccount, error) {
	start := time.Now()
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return domain.CreditAccount{}, l.finish("get_account", start, err)
	}

	var res domain.CreditAccount
	var opErr error
	if err := l.submit(ctx, w, func() {
		res, opErr = l.materialize(w)
	}); err != nil {
		return domain.CreditAccount{}, l.finish("get_account", start, err)
	}
	return res, l.finish("get_account", start, opErr)
}

func (l *Ledger) materialize(wallet string) (domain.CreditAccount, error) {
	acct, err := l.store.GetAccount(wallet)
	if err != nil {
		return domain.CreditAccount{}, err
	}
	if acct != nil {
		return *acct, nil
	}
	created := domain.NewAccount(wallet, time.Now().UTC())
	if err := l.store.PutAccount(created); err != nil {
		return domain.CreditAccount{}, err
	}
	return created, nil
}

// GetHistory returns up to HistoryLimit transactions, newest first. Pure
// read: it bypasses the shard workers and never materializes an account.
func (l *Ledger) GetHistory(ctx context.Context, wallet string) ([]domain.CreditTransaction, error) {
	start := time.Now()
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, l.finish("get_history", start, err)
	}
	list, err := l.store.ListTransactions(w, domain.HistoryLimit)
	return list, l.finish("get_history", start, err)
}

// ─── Metrics ────────────────────────────────────────────────────────────────

// finish records metrics for a completed operation and passes err through.
func (l *Ledger) finish(op string, start time.Time, err error) error {
	observability.LedgerOps.WithLabelValues(op, outcome(err)).Inc()
	observability.LedgerOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if errors.Is(err, domain.ErrStorageUnavailable) {
		observability.StorageErrors.Inc()
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_error"
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidWallet),
		errors.Is(err, domain.ErrMissingTxID):
		return "invalid"
	case errors.Is(err, domain.ErrLedgerClosed):
		return "rejected"
	default:
		return "error"
	}
}
