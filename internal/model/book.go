package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book describes a title in the catalog along with its copy counters.
// The counters are derived caches: available_copies must always equal
// the number of this book's copies whose status is AVAILABLE, and
// total_copies counts every copy that has not been withdrawn or lost.
//
// Fields:
//  ID              – primary key identifier.
//  Title           – book title.
//  Author          – primary author.
//  ISBN            – optional ISBN identifier.
//  Price           – replacement price, used for lost-book fees.
//  TotalCopies     – copies in circulation (excludes WITHDRAWN and LOST).
//  AvailableCopies – copies currently AVAILABLE.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Book struct {
	ID              uint64          // books.id
	Title           string          // books.title
	Author          string          // books.author
	ISBN            *string         // books.isbn (nullable)
	Price           decimal.Decimal // books.price
	TotalCopies     uint32          // books.total_copies
	AvailableCopies uint32          // books.available_copies
	CreatedAt       time.Time       // books.created_at
	UpdatedAt       time.Time       // books.updated_at
}
