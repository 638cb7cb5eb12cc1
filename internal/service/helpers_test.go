package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/queue"
	"github.com/iliyamo/library-circulation/internal/repository"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type captureReceipts struct {
	events []queue.ReceiptRequestedEvent
}

func (c *captureReceipts) PublishReceiptRequested(_ context.Context, evt queue.ReceiptRequestedEvent) error {
	c.events = append(c.events, evt)
	return nil
}

type captureInvalidations struct {
	bookIDs []uint64
}

func (c *captureInvalidations) Invalidate(bookID uint64) {
	c.bookIDs = append(c.bookIDs, bookID)
}

// engineFixture wires every service over one mocked database so a test
// can drive any flow end to end.
type engineFixture struct {
	db           *sql.DB
	mock         sqlmock.Sqlmock
	receipts     *captureReceipts
	avail        *captureInvalidations
	loans        *LoanService
	reservations *ReservationService
	reports      *ReportService
	inventory    *InventoryService
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	books := repository.NewBookRepo(db)
	copies := repository.NewCopyRepo(db, books)
	loanRepo := repository.NewLoanRepo(db)
	resRepo := repository.NewReservationRepo(db)
	repRepo := repository.NewReportRepo(db)
	patrons := repository.NewPatronRepo(db)
	settings := repository.NewSettingsRepo(db)
	audit := repository.NewAuditRepo(db)

	clock := fixedClock{t: now}
	receipts := &captureReceipts{}
	avail := &captureInvalidations{}

	loans := NewLoanService(db, loanRepo, copies, resRepo, patrons, settings, audit, receipts, avail, clock, 14)
	return &engineFixture{
		db:           db,
		mock:         mock,
		receipts:     receipts,
		avail:        avail,
		loans:        loans,
		reservations: NewReservationService(db, resRepo, books, patrons, copies, loans, audit, avail, clock, 7),
		reports:      NewReportService(db, repRepo, loanRepo, copies, books, settings, audit, receipts, avail, clock),
		inventory:    NewInventoryService(db, books, copies, audit, avail),
	}
}

var staff = model.Actor{ID: 1, Role: model.RoleLibrarian}

// expectSettingsLoad queues the two reads behind SettingsRepo.Load with
// the default pricing: 30/day overdue, 1.5x lost multiplier, 500 for
// torn or missing pages, 300 for general damage.
func expectSettingsLoad(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM fee_settings").WillReturnRows(
		sqlmock.NewRows([]string{"overdue_fee_per_day", "lost_fee_multiplier"}).
			AddRow("30.00", "1.50"))
	mock.ExpectQuery("FROM damage_fees").WillReturnRows(
		sqlmock.NewRows([]string{"damage_type", "fee"}).
			AddRow("PAPER_TORN", "500.00").
			AddRow("PAGES_MISSING", "500.00").
			AddRow("GENERAL_DAMAGE", "300.00"))
}

var loanTestColumns = []string{
	"id", "copy_id", "patron_id", "status", "borrowed_at", "due_date", "returned_at",
	"late_fee", "damage_fee", "penalty_fee", "damage_type", "damage_note",
	"created_at", "updated_at",
}

func openLoanRow(id, copyID, patronID uint64, borrowed, due time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(loanTestColumns).AddRow(
		id, copyID, patronID, "BORROWED", borrowed, due, nil,
		"0.00", "0.00", "0.00", "NONE", nil, borrowed, borrowed)
}

var copyTestColumns = []string{
	"id", "book_id", "barcode", "status", "condition_note",
	"section", "shelf", "shelf_row", "slot", "created_at", "updated_at",
}

func copyRow(id, bookID uint64, status string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(copyTestColumns).AddRow(
		id, bookID, nil, status, nil, nil, nil, nil, nil, at, at)
}

var reservationTestColumns = []string{
	"id", "book_id", "patron_id", "status", "reserved_at", "expires_at",
	"decline_reason", "loan_id", "created_at", "updated_at",
}

var patronTestColumns = []string{
	"id", "user_id", "full_name", "email", "membership", "created_at", "updated_at",
}

func patronRow(id uint64, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(patronTestColumns).AddRow(
		id, nil, "Ada Lovelace", "ada@example.com", "ACTIVE", at, at)
}
