package model

import "time"

// AuditEntry records one successful state transition. Entries are written
// in the same transaction as the transition they describe.
type AuditEntry struct {
	ID         uint64    // audit_logs.id
	ActorID    uint64    // audit_logs.actor_id
	Action     string    // audit_logs.action (e.g. "loan.return")
	EntityType string    // audit_logs.entity_type (e.g. "loan")
	EntityID   uint64    // audit_logs.entity_id
	Details    string    // audit_logs.details (free-form summary)
	CreatedAt  time.Time // audit_logs.created_at
}
