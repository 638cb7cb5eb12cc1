package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/model"
)

// LoanRepo provides access to the loans table.
type LoanRepo struct {
	db *sql.DB
}

// NewLoanRepo returns a LoanRepo bound to the given database.
func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

const loanColumns = `id, copy_id, patron_id, status, borrowed_at, due_date, returned_at,
	late_fee, damage_fee, penalty_fee, damage_type, damage_note, created_at, updated_at`

func scanLoan(scan func(dest ...any) error) (*model.Loan, error) {
	var l model.Loan
	var returned sql.NullTime
	var note sql.NullString
	err := scan(&l.ID, &l.CopyID, &l.PatronID, &l.Status, &l.BorrowedAt, &l.DueDate,
		&returned, &l.LateFee, &l.DamageFee, &l.PenaltyFee, &l.DamageType, &note,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if returned.Valid {
		t := returned.Time
		l.ReturnedAt = &t
	}
	if note.Valid {
		v := note.String
		l.DamageNote = &v
	}
	return &l, nil
}

// CreateTx inserts a BORROWED loan inside the claiming transaction and
// populates its ID.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	const q = `INSERT INTO loans (copy_id, patron_id, status, borrowed_at, due_date)
	           VALUES (?, ?, 'BORROWED', ?, ?)`
	res, err := tx.ExecContext(ctx, q, l.CopyID, l.PatronID, l.BorrowedAt.UTC(), l.DueDate.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	l.Status = model.LoanBorrowed
	return nil
}

// GetByID loads a single loan without locking.
func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (*model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`
	return scanLoan(r.db.QueryRowContext(ctx, q, id).Scan)
}

// GetForUpdateTx loads a loan under a row lock. The terminal-state guard
// in returnLoan depends on this read staying valid until commit.
func (r *LoanRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans WHERE id = ? FOR UPDATE`
	return scanLoan(tx.QueryRowContext(ctx, q, id).Scan)
}

// GetOpenByCopyAndPatronTx returns the open loan held by the patron for
// the given copy, locked for the duration of the transaction. Used when
// filing a report to prove the patron currently holds the copy.
func (r *LoanRepo) GetOpenByCopyAndPatronTx(ctx context.Context, tx *sql.Tx, copyID, patronID uint64) (*model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans
	           WHERE copy_id = ? AND patron_id = ? AND status IN ('BORROWED','OVERDUE')
	           LIMIT 1 FOR UPDATE`
	return scanLoan(tx.QueryRowContext(ctx, q, copyID, patronID).Scan)
}

// CloseTx freezes a priced return: terminal status, return date, all
// four fee fields and the damage declaration, guarded on the loan still
// being open.
func (r *LoanRepo) CloseTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	const q = `UPDATE loans
	           SET status = 'RETURNED', returned_at = ?, late_fee = ?, damage_fee = ?,
	               penalty_fee = ?, damage_type = ?, damage_note = ?
	           WHERE id = ? AND status IN ('BORROWED','OVERDUE')`
	var note interface{}
	if l.DamageNote != nil {
		note = *l.DamageNote
	}
	res, err := tx.ExecContext(ctx, q, l.ReturnedAt.UTC(), l.LateFee, l.DamageFee,
		l.PenaltyFee, l.DamageType, note, l.ID)
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

// AddPenaltyTx adds a resolved report fee to the loan's running penalty.
func (r *LoanRepo) AddPenaltyTx(ctx context.Context, tx *sql.Tx, loanID uint64, fee decimal.Decimal) error {
	const q = `UPDATE loans SET penalty_fee = penalty_fee + ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, fee, loanID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOverdueDue flips every BORROWED loan whose due date has passed to
// OVERDUE and returns how many were flipped. Return pricing never trusts
// this flag; it recomputes from the dates.
func (r *LoanRepo) MarkOverdueDue(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE loans SET status = 'OVERDUE'
	           WHERE status = 'BORROWED' AND due_date < ?`
	res, err := r.db.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByPatron returns a patron's loans, newest first.
func (r *LoanRepo) ListByPatron(ctx context.Context, patronID uint64) ([]model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans
	           WHERE patron_id = ? ORDER BY borrowed_at DESC, id DESC`
	return r.list(ctx, q, patronID)
}

// ListOpen returns every loan still holding a copy, oldest due first.
func (r *LoanRepo) ListOpen(ctx context.Context) ([]model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans
	           WHERE status IN ('BORROWED','OVERDUE') ORDER BY due_date, id`
	return r.list(ctx, q)
}

func (r *LoanRepo) list(ctx context.Context, q string, args ...any) ([]model.Loan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
