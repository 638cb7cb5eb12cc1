package model

import "github.com/shopspring/decimal"

// FeeSettings is the process-wide penalty configuration. It is read-only
// from the engine's perspective; the values live in the fee_settings and
// damage_fees tables and are reloaded per transaction.
type FeeSettings struct {
	OverdueFeePerDay  decimal.Decimal                // fee_settings.overdue_fee_per_day
	LostFeeMultiplier decimal.Decimal                // fee_settings.lost_fee_multiplier
	DamageFees        map[DamageType]decimal.Decimal // damage_fees rows
}

// DefaultFeeSettings returns the configuration used when the settings
// rows are missing: 30 per overdue day, 500 for torn or missing pages,
// 300 for general damage, lost fee at 1.5x the book price.
func DefaultFeeSettings() FeeSettings {
	return FeeSettings{
		OverdueFeePerDay:  decimal.NewFromInt(30),
		LostFeeMultiplier: decimal.RequireFromString("1.5"),
		DamageFees: map[DamageType]decimal.Decimal{
			DamageTorn:    decimal.NewFromInt(500),
			DamageMissing: decimal.NewFromInt(500),
			DamageGeneral: decimal.NewFromInt(300),
		},
	}
}
