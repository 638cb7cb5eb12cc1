package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/library-circulation/internal/model"
)

// AuditRepo appends audit entries. Writes happen inside the same
// transaction as the state change they record, so a rolled-back
// operation never leaves an audit trace.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends one entry outside any transaction. Used after
// single-statement operations such as creating a reservation.
func (r *AuditRepo) Record(ctx context.Context, e model.AuditEntry) error {
	const q = `INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details)
	           VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Details)
	return err
}

// RecordTx appends one entry within the provided transaction.
func (r *AuditRepo) RecordTx(ctx context.Context, tx *sql.Tx, e model.AuditEntry) error {
	const q = `INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details)
	           VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Details)
	return err
}

// ListByEntity returns the audit trail for one entity, oldest first.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType string, entityID uint64) ([]model.AuditEntry, error) {
	const q = `SELECT id, actor_id, action, entity_type, entity_id, details, created_at
	           FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
