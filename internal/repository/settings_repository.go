package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/model"
)

// SettingsRepo reads the process-wide fee configuration. The engine only
// ever reads these tables; updates arrive through an external
// configuration channel.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Load reads the fee settings row and the per-damage-type fee table.
// Missing rows fall back to the defaults so a fresh database prices
// penalties sensibly.
func (r *SettingsRepo) Load(ctx context.Context) (model.FeeSettings, error) {
	settings := model.DefaultFeeSettings()

	const q = `SELECT overdue_fee_per_day, lost_fee_multiplier FROM fee_settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, q).Scan(&settings.OverdueFeePerDay, &settings.LostFeeMultiplier)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.FeeSettings{}, err
	}

	const feeQ = `SELECT damage_type, fee FROM damage_fees`
	rows, err := r.db.QueryContext(ctx, feeQ)
	if err != nil {
		return model.FeeSettings{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.DamageType
		var fee decimal.Decimal
		if err := rows.Scan(&t, &fee); err != nil {
			return model.FeeSettings{}, err
		}
		settings.DamageFees[t] = fee
	}
	return settings, rows.Err()
}
