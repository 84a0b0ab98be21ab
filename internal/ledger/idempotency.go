package ledger

import (
	"sync"
	"time"

	"github.com/webintel-network/webledger/internal/domain"
)

// idempotencyCache remembers completed operation outcomes for a bounded
// window so a retried request replays its result instead of re-applying the
// mutation. Only successes are stored; validation and business failures are
// re-evaluated on retry.
//
// Keys are prefixed by operation kind, so a deposit tx id and a debit
// request id can never collide.

const sweepThreshold = 4096

type opOutcome struct {
	account  domain.CreditAccount
	bonus    domain.Cents
	storedAt time.Time
}

type idempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]opOutcome
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		ttl:     ttl,
		entries: make(map[string]opOutcome),
	}
}

func depositKey(txID string) string    { return "deposit:" + txID }
func debitKey(requestID string) string { return "debit:" + requestID }

// get returns the cached outcome for key if it is still within the TTL.
func (c *idempotencyCache) get(key string) (opOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return opOutcome{}, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return opOutcome{}, false
	}
	return entry, true
}

// put stores a completed outcome. When the cache grows past sweepThreshold,
// expired entries are dropped in-line; the workload is request-id keyed, so
// the population is naturally bounded by the TTL window.
func (c *idempotencyCache) put(key string, outcome opOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome.storedAt = time.Now()
	c.entries[key] = outcome

	if len(c.entries) > sweepThreshold {
		for k, e := range c.entries {
			if time.Since(e.storedAt) > c.ttl {
				delete(c.entries, k)
			}
		}
	}
}

// size reports the current entry count (used in tests).
func (c *idempotencyCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
