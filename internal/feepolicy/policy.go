// Package feepolicy computes the monetary penalties of the circulation
// engine: overdue fees, damage fees and lost-book fees. All functions are
// pure; callers load the FeeSettings and persist the results. Amounts are
// kept at full precision here and rounded to two decimal places once, via
// RoundMoney, at the point of persistence.
package feepolicy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/model"
)

// OverdueDays returns the whole-day floor of the time elapsed between the
// due date and the actual return, clamped at zero. A return 71 hours past
// the due date is 2 days overdue; a return before the due date is 0.
func OverdueDays(dueDate, returnedAt time.Time) int {
	elapsed := returnedAt.Sub(dueDate)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed.Hours()) / 24
}

// OverdueFee prices overdue days at the configured per-day rate.
// Negative day counts are treated as zero.
func OverdueFee(overdueDays int, perDayRate decimal.Decimal) decimal.Decimal {
	if overdueDays <= 0 {
		return decimal.Zero
	}
	return perDayRate.Mul(decimal.NewFromInt(int64(overdueDays)))
}

// DamageFee sums the configured fee for each selected damage type.
// Unknown types contribute nothing. The sum is taken before rounding so
// multiple types do not compound rounding error.
func DamageFee(types []model.DamageType, settings model.FeeSettings) decimal.Decimal {
	total := decimal.Zero
	for _, t := range types {
		if fee, ok := settings.DamageFees[t]; ok {
			total = total.Add(fee)
		}
	}
	return total
}

// DamageFeeForType prices the legacy single-valued damage classification
// recorded on a loan. NONE costs nothing; every other known type maps to
// its entry in the fee table.
func DamageFeeForType(t model.DamageType, settings model.FeeSettings) decimal.Decimal {
	if t == model.DamageNone {
		return decimal.Zero
	}
	if fee, ok := settings.DamageFees[t]; ok {
		return fee
	}
	return decimal.Zero
}

// LostFee is the configured multiplier applied to the book's replacement
// price (default 1.5x).
func LostFee(bookPrice, multiplier decimal.Decimal) decimal.Decimal {
	fee := bookPrice.Mul(multiplier)
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

// RoundMoney normalizes a computed amount for persistence: never negative,
// rounded to two decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return d.Round(2)
}
