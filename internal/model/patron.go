package model

import "time"

// Membership enumerates a patron's standing with the library.
type Membership string

const (
	MembershipActive    Membership = "ACTIVE"
	MembershipSuspended Membership = "SUSPENDED"
	MembershipExpired   Membership = "EXPIRED"
)

// Patron is a library member. The circulation engine never mutates a
// patron; it only references them from reservations, loans and reports.
type Patron struct {
	ID         uint64     // patrons.id
	UserID     *uint64    // patrons.user_id (nullable; links to the auth account)
	FullName   string     // patrons.full_name
	Email      string     // patrons.email
	Membership Membership // patrons.membership
	CreatedAt  time.Time  // patrons.created_at
	UpdatedAt  time.Time  // patrons.updated_at
}
