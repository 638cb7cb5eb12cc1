package model

import "time"

// ReservationStatus enumerates the reservation lifecycle states.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationApproved  ReservationStatus = "APPROVED"
	ReservationDeclined  ReservationStatus = "DECLINED"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// reservationTransitions encodes the legal state machine:
// PENDING may move to any of the four outcomes, APPROVED may still be
// fulfilled, cancelled or expired (the patron never collected).
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending: {
		ReservationApproved, ReservationDeclined,
		ReservationCancelled, ReservationExpired,
	},
	ReservationApproved: {
		ReservationFulfilled, ReservationCancelled, ReservationExpired,
	},
}

// CanTransition reports whether a reservation may move from s to next.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, t := range reservationTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Reservation is a patron's request to borrow a title, queued until staff
// approve or decline it. Approval opens a loan against a concrete copy;
// the loan's identifier is recorded in LoanID so a later cancellation can
// release the claimed copy.
//
// Fields:
//  ID            – primary key identifier.
//  BookID        – title being requested (no specific copy yet).
//  PatronID      – requesting patron.
//  Status        – lifecycle state, see ReservationStatus.
//  ReservedAt    – when the request was made; pending requests for the
//                  same book are served FIFO by this timestamp.
//  ExpiresAt     – optional expiry deadline enforced by the sweep.
//  DeclineReason – free text recorded when staff decline.
//  LoanID        – loan opened on approval (nullable until then).
type Reservation struct {
	ID            uint64            // reservations.id
	BookID        uint64            // reservations.book_id
	PatronID      uint64            // reservations.patron_id
	Status        ReservationStatus // reservations.status
	ReservedAt    time.Time         // reservations.reserved_at
	ExpiresAt     *time.Time        // reservations.expires_at (nullable)
	DeclineReason *string           // reservations.decline_reason (nullable)
	LoanID        *uint64           // reservations.loan_id (nullable)
	CreatedAt     time.Time         // reservations.created_at
	UpdatedAt     time.Time         // reservations.updated_at
}
