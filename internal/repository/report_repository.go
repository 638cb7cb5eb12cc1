package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/model"
)

// ReportRepo provides access to the damage_reports table.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo returns a ReportRepo bound to the given database.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

const reportColumns = `id, book_id, copy_id, loan_id, patron_id, report_type, severity, status,
	description, damage_types, fee_charged, admin_notes, resolved_at, created_at, updated_at`

func scanReport(scan func(dest ...any) error) (*model.DamageReport, error) {
	var rep model.DamageReport
	var desc, notes sql.NullString
	var resolved sql.NullTime
	var typesCSV string
	err := scan(&rep.ID, &rep.BookID, &rep.CopyID, &rep.LoanID, &rep.PatronID,
		&rep.ReportType, &rep.Severity, &rep.Status, &desc, &typesCSV,
		&rep.FeeCharged, &notes, &resolved, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rep.DamageTypes = model.DecodeDamageTypes(typesCSV)
	if desc.Valid {
		v := desc.String
		rep.Description = &v
	}
	if notes.Valid {
		v := notes.String
		rep.AdminNotes = &v
	}
	if resolved.Valid {
		t := resolved.Time
		rep.ResolvedAt = &t
	}
	return &rep, nil
}

// CreateTx inserts a PENDING report inside the filing transaction and
// populates its ID.
func (r *ReportRepo) CreateTx(ctx context.Context, tx *sql.Tx, rep *model.DamageReport) error {
	const q = `INSERT INTO damage_reports
	           (book_id, copy_id, loan_id, patron_id, report_type, severity, status,
	            description, damage_types, fee_charged)
	           VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?, ?, ?)`
	var desc interface{}
	if rep.Description != nil {
		desc = *rep.Description
	}
	res, err := tx.ExecContext(ctx, q, rep.BookID, rep.CopyID, rep.LoanID, rep.PatronID,
		rep.ReportType, rep.Severity, desc,
		model.EncodeDamageTypes(rep.DamageTypes), rep.FeeCharged)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rep.ID = uint64(id)
	rep.Status = model.ReportPending
	return nil
}

// GetByID loads a single report without locking.
func (r *ReportRepo) GetByID(ctx context.Context, id uint64) (*model.DamageReport, error) {
	const q = `SELECT ` + reportColumns + ` FROM damage_reports WHERE id = ?`
	return scanReport(r.db.QueryRowContext(ctx, q, id).Scan)
}

// GetForUpdateTx loads a report under a row lock. The AlreadyResolved
// guard in resolve depends on this read staying valid until commit.
func (r *ReportRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.DamageReport, error) {
	const q = `SELECT ` + reportColumns + ` FROM damage_reports WHERE id = ? FOR UPDATE`
	return scanReport(tx.QueryRowContext(ctx, q, id).Scan)
}

// HasOpenByCopyTx reports whether a PENDING report already exists for the
// copy. At most one open report may reference a copy; filing checks this
// under the same transaction that locks the copy's open loan.
func (r *ReportRepo) HasOpenByCopyTx(ctx context.Context, tx *sql.Tx, copyID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM damage_reports WHERE copy_id = ? AND status = 'PENDING'`
	var n int
	if err := tx.QueryRowContext(ctx, q, copyID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResolveTx freezes the authoritative fee and moves a PENDING report to
// RESOLVED. Zero affected rows means another transaction resolved it
// first.
func (r *ReportRepo) ResolveTx(ctx context.Context, tx *sql.Tx, id uint64, fee decimal.Decimal, adminNotes string, resolvedAt time.Time) error {
	const q = `UPDATE damage_reports
	           SET status = 'RESOLVED', fee_charged = ?, admin_notes = ?, resolved_at = ?
	           WHERE id = ? AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, fee, adminNotes, resolvedAt.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}

// ListPending returns all unresolved reports, oldest first.
func (r *ReportRepo) ListPending(ctx context.Context) ([]model.DamageReport, error) {
	const q = `SELECT ` + reportColumns + ` FROM damage_reports
	           WHERE status = 'PENDING' ORDER BY created_at, id`
	return r.list(ctx, q)
}

// ListByPatron returns a patron's reports, newest first.
func (r *ReportRepo) ListByPatron(ctx context.Context, patronID uint64) ([]model.DamageReport, error) {
	const q = `SELECT ` + reportColumns + ` FROM damage_reports
	           WHERE patron_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, patronID)
}

func (r *ReportRepo) list(ctx context.Context, q string, args ...any) ([]model.DamageReport, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DamageReport, 0)
	for rows.Next() {
		rep, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}
