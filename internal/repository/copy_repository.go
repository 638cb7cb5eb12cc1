package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/library-circulation/internal/model"
)

// CopyRepo provides access to the book_copies table. Claiming and
// releasing are the concurrency-critical operations of the whole engine:
// both take a *sql.Tx, lock the rows they act on with SELECT ... FOR
// UPDATE, and keep the status change and the books counter adjustment in
// the same transaction so the two can never diverge.
type CopyRepo struct {
	db    *sql.DB
	books *BookRepo
}

// NewCopyRepo returns a CopyRepo bound to the given database. The book
// repo is used for the counter updates that accompany every claim and
// release.
func NewCopyRepo(db *sql.DB, books *BookRepo) *CopyRepo {
	return &CopyRepo{db: db, books: books}
}

const copyColumns = `id, book_id, barcode, status, condition_note, section, shelf, shelf_row, slot, created_at, updated_at`

func scanCopy(scan func(dest ...any) error) (*model.BookCopy, error) {
	var c model.BookCopy
	var barcode, note, section, shelf, shelfRow, slot sql.NullString
	err := scan(&c.ID, &c.BookID, &barcode, &c.Status, &note,
		&section, &shelf, &shelfRow, &slot, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	for _, pair := range []struct {
		src sql.NullString
		dst **string
	}{
		{barcode, &c.Barcode}, {note, &c.ConditionNote},
		{section, &c.Section}, {shelf, &c.Shelf},
		{shelfRow, &c.ShelfRow}, {slot, &c.Slot},
	} {
		if pair.src.Valid {
			v := pair.src.String
			*pair.dst = &v
		}
	}
	return &c, nil
}

// InsertTx registers a new physical copy in AVAILABLE status and bumps
// the owning book's counters in the same transaction.
func (r *CopyRepo) InsertTx(ctx context.Context, tx *sql.Tx, c *model.BookCopy) error {
	const q = `INSERT INTO book_copies (book_id, barcode, status) VALUES (?, ?, 'AVAILABLE')`
	var barcode interface{}
	if c.Barcode != nil {
		barcode = *c.Barcode
	}
	res, err := tx.ExecContext(ctx, q, c.BookID, barcode)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.Status = model.CopyAvailable
	return r.books.IncrementTotalsTx(ctx, tx, c.BookID)
}

// GetByID loads a single copy without locking.
func (r *CopyRepo) GetByID(ctx context.Context, id uint64) (*model.BookCopy, error) {
	const q = `SELECT ` + copyColumns + ` FROM book_copies WHERE id = ?`
	return scanCopy(r.db.QueryRowContext(ctx, q, id).Scan)
}

// GetForUpdateTx loads a copy under a row lock. Every status transition
// must read the copy through this method inside the transaction that
// will act on it; check-then-act without the lock is a correctness bug.
func (r *CopyRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.BookCopy, error) {
	const q = `SELECT ` + copyColumns + ` FROM book_copies WHERE id = ? FOR UPDATE`
	return scanCopy(tx.QueryRowContext(ctx, q, id).Scan)
}

// ClaimAvailableTx selects one AVAILABLE copy of the book, locks it,
// moves it to the target status (BORROWED, or RESERVED for a two-phase
// flow) and decrements the book's availability. Exactly one concurrent
// caller can win a given copy: the FOR UPDATE read serializes claimants
// and the conditional counter update backstops the invariant. Returns
// ErrNoAvailableCopy when the book has no claimable copy.
func (r *CopyRepo) ClaimAvailableTx(ctx context.Context, tx *sql.Tx, bookID uint64, target model.CopyStatus) (uint64, error) {
	if target != model.CopyBorrowed && target != model.CopyReserved {
		return 0, ErrInvalidTransition
	}
	const sel = `SELECT id FROM book_copies
	             WHERE book_id = ? AND status = 'AVAILABLE'
	             ORDER BY id LIMIT 1 FOR UPDATE`
	var copyID uint64
	if err := tx.QueryRowContext(ctx, sel, bookID).Scan(&copyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoAvailableCopy
		}
		return 0, err
	}
	const upd = `UPDATE book_copies SET status = ? WHERE id = ? AND status = 'AVAILABLE'`
	res, err := tx.ExecContext(ctx, upd, target, copyID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrConcurrencyConflict
	}
	if err := r.books.DecrementAvailableTx(ctx, tx, bookID); err != nil {
		return 0, err
	}
	return copyID, nil
}

// ReleaseTx transitions a held copy (BORROWED or RESERVED) to AVAILABLE,
// DAMAGED or LOST, adjusting the book counters: availability grows only
// on release to AVAILABLE, and a LOST copy additionally leaves the
// book's circulation total. Returns ErrInvalidTransition when the copy
// is not currently held or the target status is not a release target.
func (r *CopyRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, copyID uint64, target model.CopyStatus) (*model.BookCopy, error) {
	switch target {
	case model.CopyAvailable, model.CopyDamaged, model.CopyLost:
	default:
		return nil, ErrInvalidTransition
	}
	c, err := r.GetForUpdateTx(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if !c.Status.Held() {
		return nil, ErrInvalidTransition
	}
	const upd = `UPDATE book_copies SET status = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, target, copyID); err != nil {
		return nil, err
	}
	switch target {
	case model.CopyAvailable:
		err = r.books.IncrementAvailableTx(ctx, tx, c.BookID)
	case model.CopyLost:
		err = r.books.DecrementTotalTx(ctx, tx, c.BookID)
	}
	if err != nil {
		return nil, err
	}
	c.Status = target
	return c, nil
}

// PullTx moves an AVAILABLE copy directly to DAMAGED or LOST. Used when
// a report is resolved after the loan was already returned and the copy
// went back on the shelf in the meantime. The copy leaves availability,
// and a LOST copy leaves the circulation total as well.
func (r *CopyRepo) PullTx(ctx context.Context, tx *sql.Tx, copyID uint64, target model.CopyStatus) (*model.BookCopy, error) {
	if target != model.CopyDamaged && target != model.CopyLost {
		return nil, ErrInvalidTransition
	}
	c, err := r.GetForUpdateTx(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CopyAvailable {
		return nil, ErrInvalidTransition
	}
	const upd = `UPDATE book_copies SET status = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, target, copyID); err != nil {
		return nil, err
	}
	if err := r.books.DecrementAvailableTx(ctx, tx, c.BookID); err != nil {
		return nil, err
	}
	if target == model.CopyLost {
		if err := r.books.DecrementTotalTx(ctx, tx, c.BookID); err != nil {
			return nil, err
		}
	}
	c.Status = target
	return c, nil
}

// WithdrawTx soft-deletes a copy. Only AVAILABLE or DAMAGED copies can
// be withdrawn; a held copy must be returned first. An AVAILABLE copy
// leaves both counters, a DAMAGED one only the total.
func (r *CopyRepo) WithdrawTx(ctx context.Context, tx *sql.Tx, copyID uint64) (*model.BookCopy, error) {
	c, err := r.GetForUpdateTx(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CopyAvailable && c.Status != model.CopyDamaged {
		return nil, ErrInvalidTransition
	}
	const upd = `UPDATE book_copies SET status = 'WITHDRAWN' WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, copyID); err != nil {
		return nil, err
	}
	if c.Status == model.CopyAvailable {
		const q = `UPDATE books SET total_copies = total_copies - 1,
		           available_copies = available_copies - 1
		           WHERE id = ? AND available_copies > 0`
		res, err := tx.ExecContext(ctx, q, c.BookID)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrConcurrencyConflict
		}
	} else {
		if err := r.books.DecrementTotalTx(ctx, tx, c.BookID); err != nil {
			return nil, err
		}
	}
	c.Status = model.CopyWithdrawn
	return c, nil
}

// SetConditionNote records a cosmetic condition remark without touching
// status or availability.
func (r *CopyRepo) SetConditionNote(ctx context.Context, copyID uint64, note string) error {
	const q = `UPDATE book_copies SET condition_note = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, note, copyID)
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

// ListByBook returns all copies of a book ordered by id.
func (r *CopyRepo) ListByBook(ctx context.Context, bookID uint64) ([]model.BookCopy, error) {
	const q = `SELECT ` + copyColumns + ` FROM book_copies WHERE book_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	copies := make([]model.BookCopy, 0)
	for rows.Next() {
		c, err := scanCopy(rows.Scan)
		if err != nil {
			return nil, err
		}
		copies = append(copies, *c)
	}
	return copies, rows.Err()
}
