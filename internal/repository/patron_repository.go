package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/library-circulation/internal/model"
)

// PatronRepo provides access to the patrons table.
type PatronRepo struct {
	db *sql.DB
}

// NewPatronRepo returns a PatronRepo bound to the given database.
func NewPatronRepo(db *sql.DB) *PatronRepo { return &PatronRepo{db: db} }

const patronColumns = `id, user_id, full_name, email, membership, created_at, updated_at`

func scanPatron(scan func(dest ...any) error) (*model.Patron, error) {
	var p model.Patron
	var userID sql.NullInt64
	err := scan(&p.ID, &userID, &p.FullName, &p.Email, &p.Membership, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		p.UserID = &v
	}
	return &p, nil
}

// Create inserts an ACTIVE patron and populates their ID.
func (r *PatronRepo) Create(ctx context.Context, p *model.Patron) error {
	const q = `INSERT INTO patrons (user_id, full_name, email, membership)
	           VALUES (?, ?, ?, 'ACTIVE')`
	var userID interface{}
	if p.UserID != nil {
		userID = *p.UserID
	}
	res, err := r.db.ExecContext(ctx, q, userID, p.FullName, p.Email)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Membership = model.MembershipActive
	return nil
}

// GetByID loads a single patron.
func (r *PatronRepo) GetByID(ctx context.Context, id uint64) (*model.Patron, error) {
	const q = `SELECT ` + patronColumns + ` FROM patrons WHERE id = ?`
	return scanPatron(r.db.QueryRowContext(ctx, q, id).Scan)
}

// GetByUserID resolves the patron linked to an auth account.
func (r *PatronRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Patron, error) {
	const q = `SELECT ` + patronColumns + ` FROM patrons WHERE user_id = ?`
	return scanPatron(r.db.QueryRowContext(ctx, q, userID).Scan)
}

// List returns all patrons ordered by name.
func (r *PatronRepo) List(ctx context.Context) ([]model.Patron, error) {
	const q = `SELECT ` + patronColumns + ` FROM patrons ORDER BY full_name, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Patron, 0)
	for rows.Next() {
		p, err := scanPatron(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
