package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/queue"
)

var reportTestColumns = []string{
	"id", "book_id", "copy_id", "loan_id", "patron_id", "report_type", "severity",
	"status", "description", "damage_types", "fee_charged", "admin_notes",
	"resolved_at", "created_at", "updated_at",
}

func pendingReportRow(id uint64, reportType, damageTypes string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(reportTestColumns).AddRow(
		id, 3, 7, 42, 2, reportType, "SEVERE", "PENDING",
		nil, damageTypes, "0.00", nil, nil, at, at)
}

func TestReportFile_RequiresActiveLoan(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM loans WHERE copy_id = \\? AND patron_id = \\?").
		WithArgs(7, 2).WillReturnRows(sqlmock.NewRows(loanTestColumns))
	f.mock.ExpectRollback()

	_, err := f.reports.File(context.Background(), staff, FileReportRequest{
		BookID:      3,
		CopyID:      7,
		PatronID:    2,
		ReportType:  model.ReportLost,
		Severity:    model.SeveritySevere,
		Description: "cannot find it anywhere",
	})
	assert.ErrorIs(t, err, ErrNoActiveLoan)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportFile_RejectsSecondOpenReport(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM loans WHERE copy_id = \\? AND patron_id = \\?").
		WithArgs(7, 2).WillReturnRows(openLoanRow(42, 7, 2, now.Add(-72*time.Hour), now.Add(11*24*time.Hour)))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", now))
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM damage_reports").
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectRollback()

	_, err := f.reports.File(context.Background(), staff, FileReportRequest{
		BookID:      3,
		CopyID:      7,
		PatronID:    2,
		ReportType:  model.ReportDamaged,
		Severity:    model.SeverityMinor,
		DamageTypes: []model.DamageType{model.DamageTorn},
	})
	assert.ErrorIs(t, err, ErrOpenReportExists)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportFile_DamagedEstimatesFee(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM loans WHERE copy_id = \\? AND patron_id = \\?").
		WithArgs(7, 2).WillReturnRows(openLoanRow(42, 7, 2, now.Add(-72*time.Hour), now.Add(11*24*time.Hour)))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", now))
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM damage_reports").
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectExec("INSERT INTO damage_reports").
		WithArgs(3, 7, 42, 2, "DAMAGED", "MODERATE", sqlmock.AnyArg(),
			"PAPER_TORN,PAGES_MISSING", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(91, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	rep, err := f.reports.File(context.Background(), staff, FileReportRequest{
		BookID:      3,
		CopyID:      7,
		PatronID:    2,
		ReportType:  model.ReportDamaged,
		Severity:    model.SeverityModerate,
		DamageTypes: []model.DamageType{model.DamageTorn, model.DamageMissing},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(91), rep.ID)
	assert.Equal(t, model.ReportPending, rep.Status)
	assert.True(t, rep.FeeCharged.Equal(decimal.NewFromInt(1000)), "estimate %s", rep.FeeCharged)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResolve_LostChargesPriceTimesMultiplier(t *testing.T) {
	// Book priced 400 with a 1.5x multiplier: 600 charged, the open loan
	// closes and the copy leaves circulation.
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM damage_reports WHERE id = \\? FOR UPDATE").
		WithArgs(91).WillReturnRows(pendingReportRow(91, "LOST", "", now.Add(-time.Hour)))
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(42).WillReturnRows(openLoanRow(42, 7, 2, now.Add(-10*24*time.Hour), now.Add(4*24*time.Hour)))
	f.mock.ExpectQuery("FROM books WHERE id = \\? FOR UPDATE").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{
		"id", "title", "author", "isbn", "price", "total_copies", "available_copies", "created_at", "updated_at",
	}).AddRow(3, "The Go Programming Language", "Donovan", nil, "400.00", 2, 0, now, now))
	f.mock.ExpectExec("UPDATE damage_reports").
		WithArgs(sqlmock.AnyArg(), "misplaced during a move", sqlmock.AnyArg(), 91).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", now))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("LOST", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET total_copies = total_copies - 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	rep, err := f.reports.Resolve(context.Background(), staff, 91, "misplaced during a move")
	require.NoError(t, err)
	assert.Equal(t, model.ReportResolved, rep.Status)
	assert.True(t, rep.FeeCharged.Equal(decimal.NewFromInt(600)), "fee %s", rep.FeeCharged)
	require.NotNil(t, rep.ResolvedAt)

	require.Len(t, f.receipts.events, 1)
	assert.Equal(t, queue.ReceiptKindReportResolution, f.receipts.events[0].Kind)
	assert.Equal(t, "600.00", f.receipts.events[0].PenaltyFee)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "resolution must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResolve_AfterReturnAddsPenaltyAndPullsCopy(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	returned := now.Add(-24 * time.Hour)
	closedLoan := sqlmock.NewRows(loanTestColumns).AddRow(
		42, 7, 2, "RETURNED", returned.Add(-14*24*time.Hour), returned.Add(-24*time.Hour),
		returned, "30.00", "0.00", "30.00", "NONE", nil, returned, returned)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM damage_reports WHERE id = \\? FOR UPDATE").
		WithArgs(91).WillReturnRows(pendingReportRow(91, "DAMAGED", "GENERAL_DAMAGE", now.Add(-time.Hour)))
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(42).WillReturnRows(closedLoan)
	f.mock.ExpectExec("UPDATE damage_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE loans SET penalty_fee = penalty_fee \\+ \\?").
		WithArgs(sqlmock.AnyArg(), 42).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "AVAILABLE", now))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "AVAILABLE", now))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("DAMAGED", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies - 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	rep, err := f.reports.Resolve(context.Background(), staff, 91, "")
	require.NoError(t, err)
	assert.True(t, rep.FeeCharged.Equal(decimal.NewFromInt(300)), "fee %s", rep.FeeCharged)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "pulling the copy must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResolve_AlreadyResolved(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	resolved := sqlmock.NewRows(reportTestColumns).AddRow(
		91, 3, 7, 42, 2, "LOST", "SEVERE", "RESOLVED",
		nil, "", "600.00", "already settled", now.Add(-time.Hour), now, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM damage_reports WHERE id = \\? FOR UPDATE").
		WithArgs(91).WillReturnRows(resolved)
	f.mock.ExpectRollback()

	_, err := f.reports.Resolve(context.Background(), staff, 91, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Empty(t, f.receipts.events)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
