package model

import "time"

// CopyStatus enumerates the states a physical copy can be in.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyReserved  CopyStatus = "RESERVED"
	CopyBorrowed  CopyStatus = "BORROWED"
	CopyDamaged   CopyStatus = "DAMAGED"
	CopyLost      CopyStatus = "LOST"
	CopyWithdrawn CopyStatus = "WITHDRAWN"
)

var validCopyStatuses = map[CopyStatus]bool{
	CopyAvailable: true,
	CopyReserved:  true,
	CopyBorrowed:  true,
	CopyDamaged:   true,
	CopyLost:      true,
	CopyWithdrawn: true,
}

// IsValidCopyStatus reports whether s is a known copy status.
func IsValidCopyStatus(s CopyStatus) bool { return validCopyStatuses[s] }

// Held reports whether the copy is currently claimed by a patron and can
// therefore be released. Only BORROWED and RESERVED copies are held.
func (s CopyStatus) Held() bool { return s == CopyBorrowed || s == CopyReserved }

// BookCopy is one physical instance of a Book. Exactly one open loan and
// one open damage report may reference a copy at any time; the engine
// enforces this when claiming and when filing reports.
//
// The placement columns (Section, Shelf, ShelfRow, Slot) belong to the
// shelf-placement service. The circulation engine reads them for display
// only and never writes them.
//
// Fields:
//  ID            – primary key identifier.
//  BookID        – the owning book.
//  Barcode       – optional physical barcode.
//  Status        – current circulation status.
//  ConditionNote – free-text condition remark, set by staff.
//  CreatedAt     – when the physical item was registered.
//  UpdatedAt     – last update timestamp.
type BookCopy struct {
	ID            uint64     // book_copies.id
	BookID        uint64     // book_copies.book_id
	Barcode       *string    // book_copies.barcode (nullable)
	Status        CopyStatus // book_copies.status
	ConditionNote *string    // book_copies.condition_note (nullable)
	Section       *string    // book_copies.section (nullable, external)
	Shelf         *string    // book_copies.shelf (nullable, external)
	ShelfRow      *string    // book_copies.shelf_row (nullable, external)
	Slot          *string    // book_copies.slot (nullable, external)
	CreatedAt     time.Time  // book_copies.created_at
	UpdatedAt     time.Time  // book_copies.updated_at
}
