package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/library-circulation/internal/model"
)

// ReservationRepo provides access to the reservations table. Status
// updates that participate in the approval/cancellation flows are guarded
// by a WHERE clause on the current status so a concurrent transition
// shows up as zero affected rows rather than a silent double-apply.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, book_id, patron_id, status, reserved_at, expires_at, decline_reason, loan_id, created_at, updated_at`

func scanReservation(scan func(dest ...any) error) (*model.Reservation, error) {
	var r model.Reservation
	var expires sql.NullTime
	var reason sql.NullString
	var loanID sql.NullInt64
	err := scan(&r.ID, &r.BookID, &r.PatronID, &r.Status, &r.ReservedAt,
		&expires, &reason, &loanID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		r.ExpiresAt = &t
	}
	if reason.Valid {
		v := reason.String
		r.DeclineReason = &v
	}
	if loanID.Valid {
		v := uint64(loanID.Int64)
		r.LoanID = &v
	}
	return &r, nil
}

// Create inserts a PENDING reservation and populates its ID. No copy is
// claimed at this point.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (book_id, patron_id, status, reserved_at, expires_at)
	           VALUES (?, ?, 'PENDING', ?, ?)`
	var expires interface{}
	if res.ExpiresAt != nil {
		expires = res.ExpiresAt.UTC()
	}
	result, err := r.db.ExecContext(ctx, q, res.BookID, res.PatronID, res.ReservedAt.UTC(), expires)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.Status = model.ReservationPending
	return nil
}

// GetByID loads a single reservation without locking.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id).Scan)
}

// GetForUpdateTx loads a reservation under a row lock so the status read
// stays valid until the transaction commits.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, id).Scan)
}

// transitionTx applies a guarded status change. Zero affected rows means
// the reservation left the expected status concurrently.
func (r *ReservationRepo) transitionTx(ctx context.Context, tx *sql.Tx, q string, args ...any) error {
	res, err := tx.ExecContext(ctx, q, args...)
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

// ApproveTx moves a PENDING reservation to APPROVED and records the loan
// opened for it.
func (r *ReservationRepo) ApproveTx(ctx context.Context, tx *sql.Tx, id, loanID uint64) error {
	const q = `UPDATE reservations SET status = 'APPROVED', loan_id = ?
	           WHERE id = ? AND status = 'PENDING'`
	return r.transitionTx(ctx, tx, q, loanID, id)
}

// DeclineTx moves a PENDING reservation to DECLINED, storing the reason.
func (r *ReservationRepo) DeclineTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error {
	const q = `UPDATE reservations SET status = 'DECLINED', decline_reason = ?
	           WHERE id = ? AND status = 'PENDING'`
	return r.transitionTx(ctx, tx, q, reason, id)
}

// SetStatusTx applies an unconditional-target transition guarded by the
// expected current status.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ? AND status = ?`
	return r.transitionTx(ctx, tx, q, to, id, from)
}

// FulfillByLoanTx marks the reservation linked to the given loan as
// FULFILLED. A loan opened directly by staff has no linked reservation;
// that is not an error.
func (r *ReservationRepo) FulfillByLoanTx(ctx context.Context, tx *sql.Tx, loanID uint64) error {
	const q = `UPDATE reservations SET status = 'FULFILLED'
	           WHERE loan_id = ? AND status = 'APPROVED'`
	_, err := tx.ExecContext(ctx, q, loanID)
	return err
}

// ExpirePendingTx expires every PENDING reservation whose deadline has
// passed and returns how many were swept. APPROVED reservations need a
// compensating copy release and are handled row by row by the service.
func (r *ReservationRepo) ExpirePendingTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	const q = `UPDATE reservations SET status = 'EXPIRED'
	           WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at <= ?`
	res, err := tx.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListExpiredApprovedTx returns, under row locks, the APPROVED
// reservations whose deadline has passed. The caller releases each
// claimed copy and then transitions the reservation.
func (r *ReservationRepo) ListExpiredApprovedTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'APPROVED' AND expires_at IS NOT NULL AND expires_at <= ?
	           ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// ListByPatron returns a patron's reservations, newest first.
func (r *ReservationRepo) ListByPatron(ctx context.Context, patronID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE patron_id = ? ORDER BY reserved_at DESC, id DESC`
	return r.list(ctx, q, patronID)
}

// ListPending returns all PENDING reservations FIFO by reserved_at, the
// order in which staff are expected to approve them.
func (r *ReservationRepo) ListPending(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'PENDING' ORDER BY reserved_at, id`
	return r.list(ctx, q)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
