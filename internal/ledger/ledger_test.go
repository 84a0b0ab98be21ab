package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/webintel-network/webledger/internal/domain"
	"github.com/webintel-network/webledger/internal/infra/sqlite"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "credits.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	l := New(DefaultConfig(), db, domain.NewBonusCalculator(domain.DefaultBonusSchedule()))
	t.Cleanup(func() {
		l.Close()
		db.Close()
	})
	return l
}

func TestDepositDebitScenario(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Fresh wallet: $10 deposit earns 20% bonus.
	res, err := l.Deposit(ctx, "0xW", 10_00, "tx1")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if res.BonusAccrued != 2_00 {
		t.Errorf("bonus = %s, want $2.00", res.BonusAccrued)
	}
	if res.Account.Balance != 12_00 || res.Account.TotalDeposited != 10_00 {
		t.Errorf("after tx1: balance=%s totalDeposited=%s", res.Account.Balance, res.Account.TotalDeposited)
	}
	if res.Account.Tier != domain.TierStandard {
		t.Errorf("tier = %q, want standard", res.Account.Tier)
	}

	// $100 deposit earns 40% and lifts cumulative deposits to gold.
	res, err = l.Deposit(ctx, "0xW", 100_00, "tx2")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if res.Account.Balance != 152_00 {
		t.Errorf("after tx2: balance = %s, want $152.00", res.Account.Balance)
	}
	if res.Account.TotalDeposited != 110_00 {
		t.Errorf("after tx2: totalDeposited = %s, want $110.00", res.Account.TotalDeposited)
	}
	if res.Account.Tier != domain.TierGold {
		t.Errorf("tier = %q, want gold", res.Account.Tier)
	}

	// A covered debit.
	acct, err := l.Debit(ctx, "0xW", 5_00, "usage", "req1")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if acct.Balance != 147_00 || acct.TotalSpent != 5_00 {
		t.Errorf("after req1: balance=%s totalSpent=%s", acct.Balance, acct.TotalSpent)
	}

	// An overdraw fails and mutates nothing.
	_, err = l.Debit(ctx, "0xW", 1000_00, "usage", "req2")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw error = %v, want ErrInsufficientFunds", err)
	}
	acct, err = l.GetAccount(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Balance != 147_00 || acct.TotalSpent != 5_00 {
		t.Errorf("failed debit mutated state: balance=%s totalSpent=%s", acct.Balance, acct.TotalSpent)
	}
}

func TestFailedDebitLeavesLogUnchanged(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "0xW", 10_00, "tx1"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	before, err := l.GetHistory(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}

	if _, err := l.Debit(ctx, "0xW", 999_00, "usage", "req1"); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("debit error = %v, want ErrInsufficientFunds", err)
	}

	after, err := l.GetHistory(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("failed debit appended to the log: %d -> %d entries", len(before), len(after))
	}
}

func TestDebitUnknownWallet(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Debit(context.Background(), "0xnobody", 1_00, "usage", "req1")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "0xW", 0, "tx1"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero deposit error = %v, want ErrInvalidAmount", err)
	}
	if _, err := l.Deposit(ctx, "0xW", -5_00, "tx1"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative deposit error = %v, want ErrInvalidAmount", err)
	}
	if _, err := l.Debit(ctx, "0xW", 0, "usage", "req1"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero debit error = %v, want ErrInvalidAmount", err)
	}
	if _, err := l.Deposit(ctx, "", 1_00, "tx1"); !errors.Is(err, domain.ErrInvalidWallet) {
		t.Errorf("empty wallet error = %v, want ErrInvalidWallet", err)
	}
	if _, err := l.Deposit(ctx, "0xW", 1_00, ""); !errors.Is(err, domain.ErrMissingTxID) {
		t.Errorf("missing tx id error = %v, want ErrMissingTxID", err)
	}
}

func TestWalletCaseNormalization(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "0xAbC", 10_00, "tx1"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	acct, err := l.GetAccount(ctx, "0XABC")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.WalletAddress != "0xabc" {
		t.Errorf("wallet key = %q, want %q", acct.WalletAddress, "0xabc")
	}
	if acct.Balance != 12_00 {
		t.Errorf("case variants did not reach the same account: balance = %s", acct.Balance)
	}
}

func TestGetAccountMaterializes(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	acct, err := l.GetAccount(ctx, "0xfresh")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Balance != 0 || acct.Tier != domain.TierStandard {
		t.Errorf("materialized account = %+v", acct)
	}

	// Now known: a debit fails on funds, not on existence.
	_, err = l.Debit(ctx, "0xfresh", 1_00, "usage", "req1")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("debit error = %v, want ErrInsufficientFunds", err)
	}
}

func TestHistoryNewestFirstWithBonus(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "0xW", 10_00, "tx1"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := l.Debit(ctx, "0xW", 3_00, "page fetch", "req1"); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	list, err := l.GetHistory(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("history length = %d, want 3", len(list))
	}
	// Newest first: spend, then the bonus appended after its deposit.
	if list[0].Type != domain.TxSpend || list[0].Amount != -3_00 || list[0].ID != "req1" {
		t.Errorf("list[0] = %+v, want spend of -$3.00", list[0])
	}
	if list[1].Type != domain.TxBonus || list[1].ID != "tx1-bonus" || list[1].Amount != 2_00 {
		t.Errorf("list[1] = %+v, want bonus tx1-bonus", list[1])
	}
	if list[2].Type != domain.TxDeposit || list[2].ID != "tx1" || list[2].Amount != 10_00 {
		t.Errorf("list[2] = %+v, want deposit tx1", list[2])
	}
}

func TestHistoryCapThroughLedger(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// $5 deposits earn no bonus, so each is exactly one log entry.
	total := domain.HistoryLimit + 1
	for i := 0; i < total; i++ {
		if _, err := l.Deposit(ctx, "0xW", 5_00, fmt.Sprintf("tx-%d", i)); err != nil {
			t.Fatalf("Deposit %d: %v", i, err)
		}
	}

	list, err := l.GetHistory(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(list) != domain.HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(list), domain.HistoryLimit)
	}
	if list[0].ID != fmt.Sprintf("tx-%d", total-1) {
		t.Errorf("newest = %q, want tx-%d", list[0].ID, total-1)
	}
	if list[len(list)-1].ID != "tx-1" {
		t.Errorf("oldest surviving = %q, want tx-1 (tx-0 evicted)", list[len(list)-1].ID)
	}
}

func TestIdempotentDepositReplay(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Deposit(ctx, "0xW", 10_00, "tx1")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	replay, err := l.Deposit(ctx, "0xW", 10_00, "tx1")
	if err != nil {
		t.Fatalf("replay Deposit: %v", err)
	}
	if replay.Account.Balance != first.Account.Balance || replay.BonusAccrued != first.BonusAccrued {
		t.Errorf("replay diverged: %+v vs %+v", replay, first)
	}

	acct, err := l.GetAccount(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Balance != 12_00 {
		t.Errorf("replayed deposit applied twice: balance = %s", acct.Balance)
	}
	list, err := l.GetHistory(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("replayed deposit appended again: %d entries", len(list))
	}
}

func TestIdempotentDebitReplay(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, "0xW", 100_00, "tx1"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	first, err := l.Debit(ctx, "0xW", 5_00, "usage", "req1")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	replay, err := l.Debit(ctx, "0xW", 5_00, "usage", "req1")
	if err != nil {
		t.Fatalf("replay Debit: %v", err)
	}
	if replay.Balance != first.Balance {
		t.Errorf("replay balance = %s, want %s", replay.Balance, first.Balance)
	}

	acct, err := l.GetAccount(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.TotalSpent != 5_00 {
		t.Errorf("retried debit double-charged: totalSpent = %s", acct.TotalSpent)
	}
}

func TestConcurrentSameWalletMatchesSequential(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Seed enough balance that every debit is covered regardless of order.
	if _, err := l.Deposit(ctx, "0xW", 500_00, "seed"); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	// 50 $5 deposits (no bonus) and 50 $3 debits, all racing on one wallet.
	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := l.Deposit(ctx, "0xW", 5_00, fmt.Sprintf("dep-%d", i))
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := l.Debit(ctx, "0xW", 3_00, "usage", fmt.Sprintf("req-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent op failed: %v", err)
		}
	}

	// Sequential replay of the same multiset of operations:
	// 700.00 (seed incl. bonus) + 50*5.00 - 50*3.00 = 800.00.
	acct, err := l.GetAccount(ctx, "0xW")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Balance != 800_00 {
		t.Errorf("lost update: balance = %s, want $800.00", acct.Balance)
	}
	if acct.TotalDeposited != 750_00 {
		t.Errorf("totalDeposited = %s, want $750.00", acct.TotalDeposited)
	}
	if acct.TotalSpent != 150_00 {
		t.Errorf("totalSpent = %s, want $150.00", acct.TotalSpent)
	}
	if acct.Balance < 0 {
		t.Errorf("balance went negative: %s", acct.Balance)
	}
}

func TestConcurrentDistinctWallets(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const wallets = 20
	var wg sync.WaitGroup
	errs := make(chan error, wallets)
	for i := 0; i < wallets; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := fmt.Sprintf("0xwallet-%d", i)
			if _, err := l.Deposit(ctx, w, 10_00, "tx1"); err != nil {
				errs <- err
				return
			}
			if _, err := l.Debit(ctx, w, 4_00, "usage", "req1"); err != nil {
				errs <- err
				return
			}
			errs <- nil
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("wallet op failed: %v", err)
		}
	}

	for i := 0; i < wallets; i++ {
		acct, err := l.GetAccount(ctx, fmt.Sprintf("0xwallet-%d", i))
		if err != nil {
			t.Fatalf("GetAccount: %v", err)
		}
		if acct.Balance != 8_00 {
			t.Errorf("wallet %d balance = %s, want $8.00", i, acct.Balance)
		}
	}
}

func TestShardRoutingIsDeterministic(t *testing.T) {
	l := newTestLedger(t)

	for _, wallet := range []string{"0xabc", "0xdef", "wallet-long-name-123"} {
		first := l.shardFor(wallet)
		for i := 0; i < 10; i++ {
			if got := l.shardFor(wallet); got != first {
				t.Fatalf("shardFor(%q) unstable: %d then %d", wallet, first, got)
			}
		}
		if first < 0 || first >= len(l.shards) {
			t.Fatalf("shardFor(%q) = %d out of range", wallet, first)
		}
	}
}

func TestClosedLedgerRejectsOps(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "credits.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	l := New(DefaultConfig(), db, domain.NewBonusCalculator(domain.DefaultBonusSchedule()))
	l.Close()
	l.Close() // double close is a no-op

	_, err = l.Deposit(context.Background(), "0xW", 10_00, "tx1")
	if !errors.Is(err, domain.ErrLedgerClosed) {
		t.Errorf("error = %v, want ErrLedgerClosed", err)
	}
}

func TestIdempotencyCacheExpiry(t *testing.T) {
	c := newIdempotencyCache(10 * time.Millisecond)
	c.put(depositKey("tx1"), opOutcome{bonus: 2_00})

	if _, ok := c.get(depositKey("tx1")); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.get(depositKey("tx1")); ok {
		t.Error("expired entry still returned")
	}
	if c.size() != 0 {
		t.Errorf("expired entry not dropped, size = %d", c.size())
	}
}
