package feepolicy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-circulation/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestOverdueDays(t *testing.T) {
	assert.Equal(t, 0, OverdueDays(day(7), day(7)))
	assert.Equal(t, 0, OverdueDays(day(7), day(3)), "early return is never negative")
	assert.Equal(t, 3, OverdueDays(day(7), day(10)))
	// Partial days floor: 71 hours late is 2 whole days.
	assert.Equal(t, 2, OverdueDays(day(0), day(0).Add(71*time.Hour)))
	// A few minutes short of a full day is still 0.
	assert.Equal(t, 0, OverdueDays(day(0), day(0).Add(23*time.Hour+59*time.Minute)))
}

func TestOverdueFee(t *testing.T) {
	rate := decimal.NewFromInt(30)
	assert.True(t, OverdueFee(5, rate).Equal(decimal.NewFromInt(150)))
	assert.True(t, OverdueFee(0, rate).Equal(decimal.Zero))
	assert.True(t, OverdueFee(-4, rate).Equal(decimal.Zero))
}

func TestDamageFee(t *testing.T) {
	settings := model.DefaultFeeSettings()

	sum := DamageFee([]model.DamageType{model.DamageTorn, model.DamageGeneral}, settings)
	assert.True(t, sum.Equal(decimal.NewFromInt(800)))

	assert.True(t, DamageFee(nil, settings).Equal(decimal.Zero))

	// Unknown types contribute nothing.
	sum = DamageFee([]model.DamageType{model.DamageTorn, model.DamageType("SCRIBBLES")}, settings)
	assert.True(t, sum.Equal(decimal.NewFromInt(500)))
}

func TestDamageFeeForType(t *testing.T) {
	settings := model.DefaultFeeSettings()

	assert.True(t, DamageFeeForType(model.DamageNone, settings).Equal(decimal.Zero))
	// Torn pages and missing pages both price as the torn-paper fee.
	assert.True(t, DamageFeeForType(model.DamageTorn, settings).Equal(decimal.NewFromInt(500)))
	assert.True(t, DamageFeeForType(model.DamageMissing, settings).Equal(decimal.NewFromInt(500)))
	assert.True(t, DamageFeeForType(model.DamageGeneral, settings).Equal(decimal.NewFromInt(300)))
}

func TestLostFee(t *testing.T) {
	multiplier := decimal.RequireFromString("1.5")

	fee := LostFee(decimal.NewFromInt(500), multiplier)
	assert.True(t, fee.Equal(decimal.NewFromInt(750)))

	fee = LostFee(decimal.NewFromInt(400), multiplier)
	assert.True(t, fee.Equal(decimal.NewFromInt(600)))

	assert.True(t, LostFee(decimal.NewFromInt(-10), multiplier).Equal(decimal.Zero))
}

func TestRoundMoney(t *testing.T) {
	require.Equal(t, "10.67", RoundMoney(decimal.RequireFromString("10.666")).StringFixed(2))
	require.Equal(t, "0.00", RoundMoney(decimal.RequireFromString("-3")).StringFixed(2))

	// Rounding happens once at the edge: summing three thirds and rounding
	// differs from summing three pre-rounded thirds.
	third := decimal.RequireFromString("0.333")
	sum := third.Add(third).Add(third)
	require.Equal(t, "1.00", RoundMoney(sum).StringFixed(2))
}
