package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/library-circulation/internal/model"
)

// BookRepo provides access to the books table, including the cached copy
// counters. Counter updates are conditional so that the invariant
// 0 <= available_copies <= total_copies survives concurrent claims; an
// update that matches no row surfaces as ErrConcurrencyConflict.
type BookRepo struct {
	db *sql.DB
}

// NewBookRepo returns a BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

// DB exposes the underlying handle so services can open transactions.
func (r *BookRepo) DB() *sql.DB { return r.db }

const bookColumns = `id, title, author, isbn, price, total_copies, available_copies, created_at, updated_at`

func scanBook(row *sql.Row) (*model.Book, error) {
	var b model.Book
	var isbn sql.NullString
	err := row.Scan(&b.ID, &b.Title, &b.Author, &isbn, &b.Price,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if isbn.Valid {
		v := isbn.String
		b.ISBN = &v
	}
	return &b, nil
}

// Create inserts a new book with zero copies and populates its ID.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	const q = `INSERT INTO books (title, author, isbn, price) VALUES (?, ?, ?, ?)`
	var isbn interface{}
	if b.ISBN != nil {
		isbn = *b.ISBN
	}
	res, err := r.db.ExecContext(ctx, q, b.Title, b.Author, isbn, b.Price.Round(2))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID loads a single book.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
	return scanBook(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx loads a book under a row lock. Used when a transaction
// needs the price or counters to stay stable until commit.
func (r *BookRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ? FOR UPDATE`
	return scanBook(tx.QueryRowContext(ctx, q, id))
}

// List returns all books ordered by title.
func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books ORDER BY title, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	books := make([]model.Book, 0)
	for rows.Next() {
		var b model.Book
		var isbn sql.NullString
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &isbn, &b.Price,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if isbn.Valid {
			v := isbn.String
			b.ISBN = &v
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// DecrementAvailableTx reserves one unit of availability. The WHERE
// clause makes the decrement conditional; zero affected rows means a
// concurrent claim took the last copy between the lock and this update.
func (r *BookRepo) DecrementAvailableTx(ctx context.Context, tx *sql.Tx, bookID uint64) error {
	const q = `UPDATE books SET available_copies = available_copies - 1
	           WHERE id = ? AND available_copies > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
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

// IncrementAvailableTx returns one unit of availability, capped at
// total_copies.
func (r *BookRepo) IncrementAvailableTx(ctx context.Context, tx *sql.Tx, bookID uint64) error {
	const q = `UPDATE books SET available_copies = available_copies + 1
	           WHERE id = ? AND available_copies < total_copies`
	res, err := tx.ExecContext(ctx, q, bookID)
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

// DecrementTotalTx shrinks circulation by one copy. Used when a copy is
// declared lost or withdrawn; availability is untouched because such
// copies are never in AVAILABLE status at that point.
func (r *BookRepo) DecrementTotalTx(ctx context.Context, tx *sql.Tx, bookID uint64) error {
	const q = `UPDATE books SET total_copies = total_copies - 1
	           WHERE id = ? AND total_copies > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
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

// IncrementTotalsTx grows both counters by one. Used when a new physical
// copy is registered.
func (r *BookRepo) IncrementTotalsTx(ctx context.Context, tx *sql.Tx, bookID uint64) error {
	const q = `UPDATE books
	           SET total_copies = total_copies + 1, available_copies = available_copies + 1
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, bookID)
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
