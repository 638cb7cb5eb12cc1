package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/library-circulation/internal/feepolicy"
	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/queue"
	"github.com/iliyamo/library-circulation/internal/repository"
)

// ReceiptPublisher emits receipt requests after fees are frozen. A nil
// publisher disables receipts without disabling circulation.
type ReceiptPublisher interface {
	PublishReceiptRequested(ctx context.Context, evt queue.ReceiptRequestedEvent) error
}

// AvailabilityInvalidator drops a book's cached availability counters.
// The services call it after every committed transaction that claims or
// releases a copy; a nil invalidator disables the cache layer.
type AvailabilityInvalidator interface {
	Invalidate(bookID uint64)
}

// LoanService opens and closes loans. Every state change runs inside a
// single transaction: the loan row, the copy status, the book counters
// and the audit entry commit together or not at all.
type LoanService struct {
	db           *sql.DB
	loans        *repository.LoanRepo
	copies       *repository.CopyRepo
	reservations *repository.ReservationRepo
	patrons      *repository.PatronRepo
	settings     *repository.SettingsRepo
	audit        *repository.AuditRepo
	receipts     ReceiptPublisher
	avail        AvailabilityInvalidator
	clock        Clock
	loanPeriod   time.Duration
}

// NewLoanService wires a LoanService. loanPeriodDays is the default due
// period for loans opened without an explicit due date.
func NewLoanService(
	db *sql.DB,
	loans *repository.LoanRepo,
	copies *repository.CopyRepo,
	reservations *repository.ReservationRepo,
	patrons *repository.PatronRepo,
	settings *repository.SettingsRepo,
	audit *repository.AuditRepo,
	receipts ReceiptPublisher,
	avail AvailabilityInvalidator,
	clock Clock,
	loanPeriodDays int,
) *LoanService {
	if clock == nil {
		clock = SystemClock()
	}
	return &LoanService{
		db:           db,
		loans:        loans,
		copies:       copies,
		reservations: reservations,
		patrons:      patrons,
		settings:     settings,
		audit:        audit,
		receipts:     receipts,
		avail:        avail,
		clock:        clock,
		loanPeriod:   time.Duration(loanPeriodDays) * 24 * time.Hour,
	}
}

// OpenLoanRequest asks for a walk-up loan of any available copy of a
// book. DueDate is optional; when nil the configured loan period applies.
type OpenLoanRequest struct {
	BookID   uint64
	PatronID uint64
	DueDate  *time.Time
}

// Open claims an available copy of the book and opens a BORROWED loan
// for the patron. Returns repository.ErrNoAvailableCopy when every copy
// is held, damaged, lost or withdrawn.
func (s *LoanService) Open(ctx context.Context, actor model.Actor, req OpenLoanRequest) (*model.Loan, error) {
	if req.BookID == 0 {
		return nil, invalidf("book_id", "required")
	}
	if req.PatronID == 0 {
		return nil, invalidf("patron_id", "required")
	}
	if _, err := s.patrons.GetByID(ctx, req.PatronID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	due := now.Add(s.loanPeriod)
	if req.DueDate != nil {
		if !req.DueDate.After(now) {
			return nil, invalidf("due_date", "must be in the future")
		}
		due = req.DueDate.UTC()
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

	loan, err := s.OpenTx(ctx, tx, req.BookID, req.PatronID, now, due)
	if err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "loan.open",
		EntityType: "loan",
		EntityID:   loan.ID,
		Details:    fmt.Sprintf("copy %d borrowed by patron %d, due %s", loan.CopyID, loan.PatronID, due.Format(time.RFC3339)),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	s.invalidateAvailability(req.BookID)
	return loan, nil
}

// OpenTx claims a copy and creates the loan inside the caller's
// transaction. Reservation approval uses this so the approval, the claim
// and the loan commit atomically.
func (s *LoanService) OpenTx(ctx context.Context, tx *sql.Tx, bookID, patronID uint64, borrowedAt, dueDate time.Time) (*model.Loan, error) {
	copyID, err := s.copies.ClaimAvailableTx(ctx, tx, bookID, model.CopyBorrowed)
	if err != nil {
		return nil, err
	}
	loan := &model.Loan{
		CopyID:     copyID,
		PatronID:   patronID,
		BorrowedAt: borrowedAt.UTC(),
		DueDate:    dueDate.UTC(),
		DamageType: model.DamageNone,
	}
	if err := s.loans.CreateTx(ctx, tx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnLoanRequest records a return. An empty DamageType means the copy
// came back clean.
type ReturnLoanRequest struct {
	LoanID     uint64
	DamageType model.DamageType
	DamageNote string
}

// Return closes a loan: computes the late and damage fees from the
// current fee settings, freezes them on the loan, releases the copy and
// fulfills the linked reservation if any. A torn or pages-missing copy
// is charged but goes back on the shelf; general damage pulls it to
// DAMAGED. Returning an already-returned loan fails with
// ErrAlreadyReturned and changes nothing.
func (s *LoanService) Return(ctx context.Context, actor model.Actor, req ReturnLoanRequest) (*model.Loan, error) {
	if req.LoanID == 0 {
		return nil, invalidf("loan_id", "required")
	}
	damage := req.DamageType
	if damage == "" {
		damage = model.DamageNone
	}
	if !model.IsValidDamageType(damage) {
		return nil, invalidf("damage_type", "unknown damage type %q", req.DamageType)
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

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

	loan, err := s.loans.GetForUpdateTx(ctx, tx, req.LoanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.Open() {
		return nil, ErrAlreadyReturned
	}

	overdueDays := feepolicy.OverdueDays(loan.DueDate, now)
	lateFee := feepolicy.RoundMoney(feepolicy.OverdueFee(overdueDays, cfg.OverdueFeePerDay))
	damageFee := feepolicy.RoundMoney(feepolicy.DamageFeeForType(damage, cfg))

	loan.ReturnedAt = &now
	loan.LateFee = lateFee
	loan.DamageFee = damageFee
	loan.PenaltyFee = lateFee.Add(damageFee)
	loan.DamageType = damage
	if req.DamageNote != "" {
		loan.DamageNote = &req.DamageNote
	}
	if err := s.loans.CloseTx(ctx, tx, loan); err != nil {
		return nil, err
	}

	target := model.CopyAvailable
	if damage.Destructive() {
		target = model.CopyDamaged
	}
	cp, err := s.copies.ReleaseTx(ctx, tx, loan.CopyID, target)
	if err != nil {
		return nil, err
	}
	if err := s.reservations.FulfillByLoanTx(ctx, tx, loan.ID); err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "loan.return",
		EntityType: "loan",
		EntityID:   loan.ID,
		Details: fmt.Sprintf("%d days overdue, late %s, damage %s (%s)",
			overdueDays, lateFee.StringFixed(2), damageFee.StringFixed(2), damage),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	loan.Status = model.LoanReturned
	s.invalidateAvailability(cp.BookID)

	s.publishReceipt(ctx, queue.ReceiptRequestedEvent{
		Kind:       queue.ReceiptKindLoanReturn,
		LoanID:     loan.ID,
		PatronID:   loan.PatronID,
		CopyID:     loan.CopyID,
		LateFee:    loan.LateFee.StringFixed(2),
		DamageFee:  loan.DamageFee.StringFixed(2),
		PenaltyFee: loan.PenaltyFee.StringFixed(2),
		IssuedAt:   now,
	})
	return loan, nil
}

// MarkOverdue flips every BORROWED loan past its due date to OVERDUE.
// Meant to be driven by an external scheduler.
func (s *LoanService) MarkOverdue(ctx context.Context, actor model.Actor) (int64, error) {
	n, err := s.loans.MarkOverdueDue(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := s.audit.Record(ctx, model.AuditEntry{
			ActorID:    actor.ID,
			Action:     "loan.sweep_overdue",
			EntityType: "loan",
			Details:    fmt.Sprintf("%d loans marked overdue", n),
		}); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Get loads one loan.
func (s *LoanService) Get(ctx context.Context, id uint64) (*model.Loan, error) {
	return s.loans.GetByID(ctx, id)
}

// ListByPatron returns a patron's loan history, newest first.
func (s *LoanService) ListByPatron(ctx context.Context, patronID uint64) ([]model.Loan, error) {
	return s.loans.ListByPatron(ctx, patronID)
}

// ListOpen returns every loan still holding a copy.
func (s *LoanService) ListOpen(ctx context.Context) ([]model.Loan, error) {
	return s.loans.ListOpen(ctx)
}

func (s *LoanService) invalidateAvailability(bookID uint64) {
	if s.avail != nil {
		s.avail.Invalidate(bookID)
	}
}

// publishReceipt is fire and forget. The state change has committed; a
// broker outage must not fail the request.
func (s *LoanService) publishReceipt(ctx context.Context, evt queue.ReceiptRequestedEvent) {
	if s.receipts == nil {
		return
	}
	if err := s.receipts.PublishReceiptRequested(ctx, evt); err != nil {
		log.Printf("receipt publish failed (loan %d): %v", evt.LoanID, err)
	}
}
