package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus enumerates the loan lifecycle states. OVERDUE is stored
// explicitly (flipped by the sweep) but return pricing always recomputes
// from the dates, never from this flag.
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "BORROWED"
	LoanOverdue  LoanStatus = "OVERDUE"
	LoanReturned LoanStatus = "RETURNED"
)

// Open reports whether the loan still holds its copy.
func (s LoanStatus) Open() bool { return s == LoanBorrowed || s == LoanOverdue }

// DamageType is the legacy single-valued damage classification recorded
// on a loan at return time. Reports carry richer damage-type sets.
type DamageType string

const (
	DamageNone    DamageType = "NONE"
	DamageTorn    DamageType = "PAPER_TORN"
	DamageMissing DamageType = "PAGES_MISSING"
	DamageGeneral DamageType = "GENERAL_DAMAGE"
)

var validDamageTypes = map[DamageType]bool{
	DamageNone:    true,
	DamageTorn:    true,
	DamageMissing: true,
	DamageGeneral: true,
}

// IsValidDamageType reports whether d is a known damage type.
func IsValidDamageType(d DamageType) bool { return validDamageTypes[d] }

// Destructive reports whether a returned copy with this damage type is
// pulled from circulation. Torn or missing pages are charged but the copy
// stays lendable; general damage routes the copy to DAMAGED.
func (d DamageType) Destructive() bool { return d == DamageGeneral }

// Loan is a single borrow-to-return transaction for one copy and one
// patron. The fee fields are zero until the loan is returned, at which
// point they are computed once and frozen; a second return attempt is
// rejected without touching them.
//
// Fields:
//  ID         – primary key identifier.
//  CopyID     – the claimed copy.
//  PatronID   – the borrowing patron.
//  Status     – lifecycle state, see LoanStatus.
//  BorrowedAt – when the copy was handed over.
//  DueDate    – return deadline; overdue days count from here.
//  ReturnedAt – actual return time (nullable until returned).
//  LateFee    – overdue days × per-day rate.
//  DamageFee  – fee for the declared damage type.
//  PenaltyFee – LateFee + DamageFee, plus any resolved report fees.
//  DamageType – declared damage at return, NONE when clean.
//  DamageNote – free-text damage description.
type Loan struct {
	ID         uint64          // loans.id
	CopyID     uint64          // loans.copy_id
	PatronID   uint64          // loans.patron_id
	Status     LoanStatus      // loans.status
	BorrowedAt time.Time       // loans.borrowed_at
	DueDate    time.Time       // loans.due_date
	ReturnedAt *time.Time      // loans.returned_at (nullable)
	LateFee    decimal.Decimal // loans.late_fee
	DamageFee  decimal.Decimal // loans.damage_fee
	PenaltyFee decimal.Decimal // loans.penalty_fee
	DamageType DamageType      // loans.damage_type
	DamageNote *string         // loans.damage_note (nullable)
	CreatedAt  time.Time       // loans.created_at
	UpdatedAt  time.Time       // loans.updated_at
}
