package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/repository"
)

// ReservationService runs the reservation lifecycle. No copy is held
// while a reservation is PENDING; approval claims one and opens the loan
// in the same transaction, so a reservation that could not be backed by
// a copy stays PENDING.
type ReservationService struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	books        *repository.BookRepo
	patrons      *repository.PatronRepo
	copies       *repository.CopyRepo
	loans        *LoanService
	audit        *repository.AuditRepo
	avail        AvailabilityInvalidator
	clock        Clock
	holdPeriod   time.Duration
}

// NewReservationService wires a ReservationService. holdDays bounds how
// long a reservation may sit before the expiry sweep collects it; zero
// disables expiry.
func NewReservationService(
	db *sql.DB,
	reservations *repository.ReservationRepo,
	books *repository.BookRepo,
	patrons *repository.PatronRepo,
	copies *repository.CopyRepo,
	loans *LoanService,
	audit *repository.AuditRepo,
	avail AvailabilityInvalidator,
	clock Clock,
	holdDays int,
) *ReservationService {
	if clock == nil {
		clock = SystemClock()
	}
	return &ReservationService{
		db:           db,
		reservations: reservations,
		books:        books,
		patrons:      patrons,
		copies:       copies,
		loans:        loans,
		audit:        audit,
		avail:        avail,
		clock:        clock,
		holdPeriod:   time.Duration(holdDays) * 24 * time.Hour,
	}
}

// Create files a PENDING reservation for a book. The book and patron
// must exist; availability is not checked here, only at approval.
func (s *ReservationService) Create(ctx context.Context, actor model.Actor, bookID, patronID uint64) (*model.Reservation, error) {
	if bookID == 0 {
		return nil, invalidf("book_id", "required")
	}
	if patronID == 0 {
		return nil, invalidf("patron_id", "required")
	}
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, err
	}
	if _, err := s.patrons.GetByID(ctx, patronID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	res := &model.Reservation{
		BookID:     bookID,
		PatronID:   patronID,
		ReservedAt: now,
	}
	if s.holdPeriod > 0 {
		expires := now.Add(s.holdPeriod)
		res.ExpiresAt = &expires
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "reservation.create",
		EntityType: "reservation",
		EntityID:   res.ID,
		Details:    fmt.Sprintf("book %d reserved by patron %d", bookID, patronID),
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Approve grants a PENDING reservation: a copy is claimed, a loan is
// opened for the reserving patron and the reservation records the loan.
// All three commit together. When no copy is available the transaction
// rolls back and the reservation stays PENDING so staff can retry once a
// copy returns.
func (s *ReservationService) Approve(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, *model.Loan, error) {
	now := s.clock.Now()
	due := now.Add(s.loans.loanPeriod)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	res, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if !res.Status.CanTransition(model.ReservationApproved) {
		return nil, nil, repository.ErrInvalidTransition
	}

	loan, err := s.loans.OpenTx(ctx, tx, res.BookID, res.PatronID, now, due)
	if err != nil {
		return nil, nil, err
	}
	if err := s.reservations.ApproveTx(ctx, tx, res.ID, loan.ID); err != nil {
		return nil, nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "reservation.approve",
		EntityType: "reservation",
		EntityID:   res.ID,
		Details:    fmt.Sprintf("loan %d opened on copy %d for patron %d", loan.ID, loan.CopyID, res.PatronID),
	}); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true
	s.invalidateAvailability(res.BookID)

	res.Status = model.ReservationApproved
	res.LoanID = &loan.ID
	return res, loan, nil
}

// Decline rejects a PENDING reservation with a reason.
func (s *ReservationService) Decline(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Reservation, error) {
	if reason == "" {
		return nil, invalidf("reason", "required")
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

	res, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !res.Status.CanTransition(model.ReservationDeclined) {
		return nil, repository.ErrInvalidTransition
	}
	if err := s.reservations.DeclineTx(ctx, tx, res.ID, reason); err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "reservation.decline",
		EntityType: "reservation",
		EntityID:   res.ID,
		Details:    reason,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	res.Status = model.ReservationDeclined
	res.DeclineReason = &reason
	return res, nil
}

// Cancel withdraws a reservation. Patrons may only cancel their own;
// pass ownPatronID zero for staff. Cancelling an APPROVED reservation
// releases the claimed copy by closing its loan with no fees.
func (s *ReservationService) Cancel(ctx context.Context, actor model.Actor, id, ownPatronID uint64) (*model.Reservation, error) {
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

	res, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && res.PatronID != ownPatronID {
		return nil, ErrForbidden
	}
	if !res.Status.CanTransition(model.ReservationCancelled) {
		return nil, repository.ErrInvalidTransition
	}

	released := false
	if res.Status == model.ReservationApproved {
		if err := s.releaseClaimTx(ctx, tx, res, now); err != nil {
			return nil, err
		}
		released = true
	}
	if err := s.reservations.SetStatusTx(ctx, tx, res.ID, res.Status, model.ReservationCancelled); err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "reservation.cancel",
		EntityType: "reservation",
		EntityID:   res.ID,
		Details:    fmt.Sprintf("cancelled from %s", res.Status),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	if released {
		s.invalidateAvailability(res.BookID)
	}

	res.Status = model.ReservationCancelled
	return res, nil
}

// ExpireDue collects reservations past their deadline: PENDING ones flip
// in bulk, APPROVED ones additionally give their claimed copy back.
// Returns how many reservations were expired.
func (s *ReservationService) ExpireDue(ctx context.Context, actor model.Actor) (int64, error) {
	now := s.clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	n, err := s.reservations.ExpirePendingTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	approved, err := s.reservations.ListExpiredApprovedTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	for i := range approved {
		res := &approved[i]
		if err := s.releaseClaimTx(ctx, tx, res, now); err != nil {
			return 0, err
		}
		if err := s.reservations.SetStatusTx(ctx, tx, res.ID, model.ReservationApproved, model.ReservationExpired); err != nil {
			return 0, err
		}
		n++
	}
	if n > 0 {
		if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
			ActorID:    actor.ID,
			Action:     "reservation.sweep_expired",
			EntityType: "reservation",
			Details:    fmt.Sprintf("%d reservations expired", n),
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	for i := range approved {
		s.invalidateAvailability(approved[i].BookID)
	}
	return n, nil
}

func (s *ReservationService) invalidateAvailability(bookID uint64) {
	if s.avail != nil {
		s.avail.Invalidate(bookID)
	}
}

// releaseClaimTx undoes the claim behind an APPROVED reservation: the
// loan closes with zero fees and the copy goes back on the shelf. A loan
// the patron already returned needs nothing.
func (s *ReservationService) releaseClaimTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, now time.Time) error {
	if res.LoanID == nil {
		return nil
	}
	loan, err := s.loans.loans.GetForUpdateTx(ctx, tx, *res.LoanID)
	if err != nil {
		return err
	}
	if !loan.Status.Open() {
		return nil
	}
	loan.ReturnedAt = &now
	loan.DamageType = model.DamageNone
	if err := s.loans.loans.CloseTx(ctx, tx, loan); err != nil {
		return err
	}
	_, err = s.copies.ReleaseTx(ctx, tx, loan.CopyID, model.CopyAvailable)
	return err
}

// Get loads one reservation.
func (s *ReservationService) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// ListPending returns the approval queue, oldest request first.
func (s *ReservationService) ListPending(ctx context.Context) ([]model.Reservation, error) {
	return s.reservations.ListPending(ctx)
}

// ListByPatron returns a patron's reservations, newest first.
func (s *ReservationService) ListByPatron(ctx context.Context, patronID uint64) ([]model.Reservation, error) {
	return s.reservations.ListByPatron(ctx, patronID)
}
