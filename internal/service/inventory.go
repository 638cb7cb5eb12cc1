package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/repository"
)

// InventoryService manages the catalog: books, their physical copies and
// the availability counters kept on each book.
type InventoryService struct {
	db     *sql.DB
	books  *repository.BookRepo
	copies *repository.CopyRepo
	audit  *repository.AuditRepo
	avail  AvailabilityInvalidator
}

// NewInventoryService wires an InventoryService.
func NewInventoryService(db *sql.DB, books *repository.BookRepo, copies *repository.CopyRepo, audit *repository.AuditRepo, avail AvailabilityInvalidator) *InventoryService {
	return &InventoryService{db: db, books: books, copies: copies, audit: audit, avail: avail}
}

// AddBookRequest describes a new catalog title. Copies are registered
// separately.
type AddBookRequest struct {
	Title  string
	Author string
	ISBN   string
	Price  decimal.Decimal
}

// AddBook registers a title with zero copies.
func (s *InventoryService) AddBook(ctx context.Context, actor model.Actor, req AddBookRequest) (*model.Book, error) {
	if req.Title == "" {
		return nil, invalidf("title", "required")
	}
	if req.Author == "" {
		return nil, invalidf("author", "required")
	}
	if req.Price.IsNegative() {
		return nil, invalidf("price", "must not be negative")
	}
	b := &model.Book{
		Title:  req.Title,
		Author: req.Author,
		Price:  req.Price.Round(2),
	}
	if req.ISBN != "" {
		b.ISBN = &req.ISBN
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "book.create",
		EntityType: "book",
		EntityID:   b.ID,
		Details:    fmt.Sprintf("%q by %s", b.Title, b.Author),
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// AddCopy registers a physical copy of a book in AVAILABLE status. The
// insert and the counter bump commit together.
func (s *InventoryService) AddCopy(ctx context.Context, actor model.Actor, bookID uint64, barcode string) (*model.BookCopy, error) {
	if bookID == 0 {
		return nil, invalidf("book_id", "required")
	}
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	c := &model.BookCopy{BookID: bookID}
	if barcode != "" {
		c.Barcode = &barcode
	}
	if err := s.copies.InsertTx(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "copy.create",
		EntityType: "copy",
		EntityID:   c.ID,
		Details:    fmt.Sprintf("copy of book %d registered", bookID),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	s.invalidateAvailability(bookID)
	return c, nil
}

// WithdrawCopy removes a copy from circulation permanently. Only an
// AVAILABLE or DAMAGED copy can be withdrawn.
func (s *InventoryService) WithdrawCopy(ctx context.Context, actor model.Actor, copyID uint64) (*model.BookCopy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	c, err := s.copies.WithdrawTx(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "copy.withdraw",
		EntityType: "copy",
		EntityID:   c.ID,
		Details:    fmt.Sprintf("copy of book %d withdrawn", c.BookID),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	s.invalidateAvailability(c.BookID)
	return c, nil
}

func (s *InventoryService) invalidateAvailability(bookID uint64) {
	if s.avail != nil {
		s.avail.Invalidate(bookID)
	}
}

// MarkCondition records a condition remark on a copy without changing
// its status.
func (s *InventoryService) MarkCondition(ctx context.Context, actor model.Actor, copyID uint64, note string) error {
	if note == "" {
		return invalidf("note", "required")
	}
	if err := s.copies.SetConditionNote(ctx, copyID, note); err != nil {
		return err
	}
	return s.audit.Record(ctx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "copy.condition",
		EntityType: "copy",
		EntityID:   copyID,
		Details:    note,
	})
}

// GetBook loads one title with its counters.
func (s *InventoryService) GetBook(ctx context.Context, id uint64) (*model.Book, error) {
	return s.books.GetByID(ctx, id)
}

// ListBooks returns the catalog.
func (s *InventoryService) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.books.List(ctx)
}

// ListCopies returns all copies of a book.
func (s *InventoryService) ListCopies(ctx context.Context, bookID uint64) ([]model.BookCopy, error) {
	return s.copies.ListByBook(ctx, bookID)
}
