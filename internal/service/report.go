package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/feepolicy"
	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/queue"
	"github.com/iliyamo/library-circulation/internal/repository"
)

// ReportService files and resolves lost/damage reports. A report can
// only be filed against a copy the patron currently holds on an open
// loan, and at most one open report may reference a copy. Resolution
// computes the authoritative fee from the settings current at that
// moment, adds it to the loan's penalty and routes the copy to DAMAGED
// or LOST.
type ReportService struct {
	db       *sql.DB
	reports  *repository.ReportRepo
	loans    *repository.LoanRepo
	copies   *repository.CopyRepo
	books    *repository.BookRepo
	settings *repository.SettingsRepo
	audit    *repository.AuditRepo
	receipts ReceiptPublisher
	avail    AvailabilityInvalidator
	clock    Clock
}

// NewReportService wires a ReportService.
func NewReportService(
	db *sql.DB,
	reports *repository.ReportRepo,
	loans *repository.LoanRepo,
	copies *repository.CopyRepo,
	books *repository.BookRepo,
	settings *repository.SettingsRepo,
	audit *repository.AuditRepo,
	receipts ReceiptPublisher,
	avail AvailabilityInvalidator,
	clock Clock,
) *ReportService {
	if clock == nil {
		clock = SystemClock()
	}
	return &ReportService{
		db:       db,
		reports:  reports,
		loans:    loans,
		copies:   copies,
		books:    books,
		settings: settings,
		audit:    audit,
		receipts: receipts,
		avail:    avail,
		clock:    clock,
	}
}

// FileReportRequest declares a lost or damaged copy. DamageTypes applies
// to DAMAGED reports only.
type FileReportRequest struct {
	BookID      uint64
	CopyID      uint64
	PatronID    uint64
	ReportType  model.ReportType
	Severity    model.ReportSeverity
	Description string
	DamageTypes []model.DamageType
}

// File opens a PENDING report. The fee recorded at filing is an
// estimate; Resolve recomputes it. Fails with ErrNoActiveLoan when the
// patron holds no open loan on the copy, and with ErrOpenReportExists
// when the copy already has an unresolved report.
func (s *ReportService) File(ctx context.Context, actor model.Actor, req FileReportRequest) (*model.DamageReport, error) {
	if req.BookID == 0 {
		return nil, invalidf("book_id", "required")
	}
	if req.CopyID == 0 {
		return nil, invalidf("copy_id", "required")
	}
	if req.PatronID == 0 {
		return nil, invalidf("patron_id", "required")
	}
	if !model.IsValidReportType(req.ReportType) {
		return nil, invalidf("report_type", "unknown report type %q", req.ReportType)
	}
	if !model.IsValidSeverity(req.Severity) {
		return nil, invalidf("severity", "unknown severity %q", req.Severity)
	}
	for _, t := range req.DamageTypes {
		if t == model.DamageNone || !model.IsValidDamageType(t) {
			return nil, invalidf("damage_types", "unknown damage type %q", t)
		}
	}
	if req.ReportType == model.ReportDamaged && len(req.DamageTypes) == 0 {
		return nil, invalidf("damage_types", "required for a damage report")
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
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

	// Loan before copy; returns lock in the same order.
	loan, err := s.loans.GetOpenByCopyAndPatronTx(ctx, tx, req.CopyID, req.PatronID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveLoan
		}
		return nil, err
	}
	c, err := s.copies.GetForUpdateTx(ctx, tx, req.CopyID)
	if err != nil {
		return nil, err
	}
	if c.BookID != req.BookID {
		return nil, invalidf("copy_id", "copy %d does not belong to book %d", req.CopyID, req.BookID)
	}
	open, err := s.reports.HasOpenByCopyTx(ctx, tx, req.CopyID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrOpenReportExists
	}

	estimate := decimal.Zero
	if req.ReportType == model.ReportDamaged {
		estimate = feepolicy.RoundMoney(feepolicy.DamageFee(req.DamageTypes, cfg))
	}

	rep := &model.DamageReport{
		BookID:      req.BookID,
		CopyID:      req.CopyID,
		LoanID:      loan.ID,
		PatronID:    req.PatronID,
		ReportType:  req.ReportType,
		Severity:    req.Severity,
		DamageTypes: req.DamageTypes,
		FeeCharged:  estimate,
	}
	if req.Description != "" {
		rep.Description = &req.Description
	}
	if err := s.reports.CreateTx(ctx, tx, rep); err != nil {
		return nil, err
	}
	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "report.file",
		EntityType: "report",
		EntityID:   rep.ID,
		Details:    fmt.Sprintf("%s report on copy %d (loan %d), severity %s", rep.ReportType, rep.CopyID, rep.LoanID, rep.Severity),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return rep, nil
}

// Resolve settles a PENDING report. The fee is recomputed from current
// settings (damage fees summed per type; a lost copy costs the book's
// price times the configured multiplier), frozen on the report and added
// to the loan's penalty. The copy is pulled to DAMAGED or LOST; if the
// loan is still open it is closed with the report fee as its penalty.
// Resolving twice fails with ErrAlreadyResolved.
func (s *ReportService) Resolve(ctx context.Context, actor model.Actor, id uint64, adminNotes string) (*model.DamageReport, error) {
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

	rep, err := s.reports.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rep.Status != model.ReportPending {
		return nil, ErrAlreadyResolved
	}

	// Loan before book and copy; returns lock in the same order.
	loan, err := s.loans.GetForUpdateTx(ctx, tx, rep.LoanID)
	if err != nil {
		return nil, err
	}

	var fee decimal.Decimal
	var target model.CopyStatus
	switch rep.ReportType {
	case model.ReportLost:
		book, err := s.books.GetForUpdateTx(ctx, tx, rep.BookID)
		if err != nil {
			return nil, err
		}
		fee = feepolicy.RoundMoney(feepolicy.LostFee(book.Price, cfg.LostFeeMultiplier))
		target = model.CopyLost
	default:
		fee = feepolicy.RoundMoney(feepolicy.DamageFee(rep.DamageTypes, cfg))
		target = model.CopyDamaged
	}

	if err := s.reports.ResolveTx(ctx, tx, rep.ID, fee, adminNotes, now); err != nil {
		return nil, err
	}

	if loan.Status.Open() {
		// Resolution ends the loan: the copy is not coming back usable.
		loan.ReturnedAt = &now
		loan.PenaltyFee = loan.PenaltyFee.Add(fee)
		if err := s.loans.CloseTx(ctx, tx, loan); err != nil {
			return nil, err
		}
		if _, err := s.copies.ReleaseTx(ctx, tx, loan.CopyID, target); err != nil {
			return nil, err
		}
	} else {
		if err := s.loans.AddPenaltyTx(ctx, tx, loan.ID, fee); err != nil {
			return nil, err
		}
		// The copy went back on the shelf at return; pull it if it is
		// still there.
		c, err := s.copies.GetForUpdateTx(ctx, tx, rep.CopyID)
		if err != nil {
			return nil, err
		}
		if c.Status == model.CopyAvailable {
			if _, err := s.copies.PullTx(ctx, tx, rep.CopyID, target); err != nil {
				return nil, err
			}
		}
	}

	if err := s.audit.RecordTx(ctx, tx, model.AuditEntry{
		ActorID:    actor.ID,
		Action:     "report.resolve",
		EntityType: "report",
		EntityID:   rep.ID,
		Details:    fmt.Sprintf("%s resolved, fee %s charged to loan %d", rep.ReportType, fee.StringFixed(2), rep.LoanID),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	if s.avail != nil {
		s.avail.Invalidate(rep.BookID)
	}

	rep.Status = model.ReportResolved
	rep.FeeCharged = fee
	rep.ResolvedAt = &now
	if adminNotes != "" {
		rep.AdminNotes = &adminNotes
	}

	if s.receipts != nil {
		evt := queue.ReceiptRequestedEvent{
			Kind:       queue.ReceiptKindReportResolution,
			LoanID:     rep.LoanID,
			ReportID:   rep.ID,
			PatronID:   rep.PatronID,
			CopyID:     rep.CopyID,
			LateFee:    decimal.Zero.StringFixed(2),
			DamageFee:  fee.StringFixed(2),
			PenaltyFee: fee.StringFixed(2),
			IssuedAt:   now,
		}
		if err := s.receipts.PublishReceiptRequested(ctx, evt); err != nil {
			log.Printf("receipt publish failed (report %d): %v", rep.ID, err)
		}
	}
	return rep, nil
}

// Get loads one report.
func (s *ReportService) Get(ctx context.Context, id uint64) (*model.DamageReport, error) {
	return s.reports.GetByID(ctx, id)
}

// ListPending returns the resolution queue, oldest first.
func (s *ReportService) ListPending(ctx context.Context) ([]model.DamageReport, error) {
	return s.reports.ListPending(ctx)
}

// ListByPatron returns a patron's reports, newest first.
func (s *ReportService) ListByPatron(ctx context.Context, patronID uint64) ([]model.DamageReport, error) {
	return s.reports.ListByPatron(ctx, patronID)
}
