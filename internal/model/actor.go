package model

// Role enumerates the actor roles known to the API.
type Role string

const (
	RoleLibrarian Role = "LIBRARIAN"
	RolePatron    Role = "PATRON"
)

// Actor identifies who is performing an operation. Every state-changing
// service call takes an explicit Actor; the engine never reads ambient
// session state.
type Actor struct {
	ID   uint64
	Role Role
}

// IsStaff reports whether the actor may perform librarian operations.
func (a Actor) IsStaff() bool { return a.Role == RoleLibrarian }
