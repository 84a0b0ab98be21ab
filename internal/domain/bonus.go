package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ─── Deposit Bonus Schedule ─────────────────────────────────────────────────
// Deposits at or above a tier's threshold earn extra balance. Only the
// highest qualifying tier applies; its rate covers the full deposit amount.

// BonusTier grants a percentage bonus for deposits at or above MinDeposit.
type BonusTier struct {
	MinDeposit Cents
	Rate       decimal.Decimal // 0.20 == 20%
}

// DefaultBonusSchedule returns the production bonus tiers:
// $10 → 20%, $50 → 30%, $100 → 40%.
func DefaultBonusSchedule() []BonusTier {
	return []BonusTier{
		{MinDeposit: 10_00, Rate: decimal.NewFromFloat(0.20)},
		{MinDeposit: 50_00, Rate: decimal.NewFromFloat(0.30)},
		{MinDeposit: 100_00, Rate: decimal.NewFromFloat(0.40)},
	}
}

// BonusCalculator applies a tiered deposit bonus schedule.
type BonusCalculator struct {
	tiers []BonusTier // sorted descending by MinDeposit
}

// NewBonusCalculator copies and sorts the schedule descending by threshold.
// The sort is stable: tiers sharing a threshold keep their declared order,
// and the earliest-declared one wins the match.
func NewBonusCalculator(tiers []BonusTier) *BonusCalculator {
	sorted := make([]BonusTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinDeposit > sorted[j].MinDeposit
	})
	return &BonusCalculator{tiers: sorted}
}

// Bonus returns the bonus for a deposit: the first tier (highest threshold
// first) whose minimum the amount meets, applied to the full amount.
// Zero when no tier qualifies.
func (b *BonusCalculator) Bonus(amount Cents) Cents {
	for _, t := range b.tiers {
		if amount >= t.MinDeposit {
			bonus := decimal.NewFromInt(int64(amount)).Mul(t.Rate).Round(0)
			return Cents(bonus.IntPart())
		}
	}
	return 0
}
