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
	"github.com/iliyamo/library-circulation/internal/repository"
)

func TestLoanOpen_ClaimsCopyAndCreatesLoan(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectQuery("FROM patrons WHERE id = \\?").
		WithArgs(2).WillReturnRows(patronRow(2, now))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM book_copies").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("BORROWED", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies - 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO loans").
		WithArgs(7, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	loan, err := f.loans.Open(context.Background(), staff, OpenLoanRequest{BookID: 3, PatronID: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), loan.ID)
	assert.Equal(t, uint64(7), loan.CopyID)
	assert.Equal(t, model.LoanBorrowed, loan.Status)
	assert.Equal(t, now.Add(14*24*time.Hour), loan.DueDate)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "claim must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

// A rival claimant can win the copy between the locking read and the
// guarded status update; the loser's transaction must roll back whole.
func TestLoanOpen_LostClaimRaceRollsBack(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectQuery("FROM patrons WHERE id = \\?").
		WithArgs(2).WillReturnRows(patronRow(2, now))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM book_copies").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("BORROWED", 7).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectRollback()

	_, err := f.loans.Open(context.Background(), staff, OpenLoanRequest{BookID: 3, PatronID: 2})
	assert.ErrorIs(t, err, repository.ErrConcurrencyConflict)
	assert.Empty(t, f.avail.bookIDs)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

// The conditional counter decrement backstops the claim: when it matches
// no row the availability invariant would break, so the claim fails.
func TestLoanOpen_CounterConflictRollsBack(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectQuery("FROM patrons WHERE id = \\?").
		WithArgs(2).WillReturnRows(patronRow(2, now))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM book_copies").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("BORROWED", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies - 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectRollback()

	_, err := f.loans.Open(context.Background(), staff, OpenLoanRequest{BookID: 3, PatronID: 2})
	assert.ErrorIs(t, err, repository.ErrConcurrencyConflict)
	assert.Empty(t, f.avail.bookIDs)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoanOpen_NoAvailableCopy(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectQuery("FROM patrons WHERE id = \\?").
		WithArgs(2).WillReturnRows(patronRow(2, now))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM book_copies").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectRollback()

	_, err := f.loans.Open(context.Background(), staff, OpenLoanRequest{BookID: 3, PatronID: 2})
	assert.ErrorIs(t, err, repository.ErrNoAvailableCopy)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoanReturn_OverdueWithTornPages(t *testing.T) {
	// Due three full days before the return: 3 x 30 late plus 500 for
	// torn pages. The copy stays lendable.
	due := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	borrowed := due.Add(-14 * 24 * time.Hour)
	f := newEngineFixture(t, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(5).WillReturnRows(openLoanRow(5, 7, 2, borrowed, due))
	f.mock.ExpectExec("UPDATE loans").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"PAPER_TORN", "corner torn", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", borrowed))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("AVAILABLE", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies \\+ 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE reservations SET status = 'FULFILLED'").
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	loan, err := f.loans.Return(context.Background(), staff, ReturnLoanRequest{
		LoanID:     5,
		DamageType: model.DamageTorn,
		DamageNote: "corner torn",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, loan.Status)
	assert.True(t, loan.LateFee.Equal(decimal.NewFromInt(90)), "late fee %s", loan.LateFee)
	assert.True(t, loan.DamageFee.Equal(decimal.NewFromInt(500)), "damage fee %s", loan.DamageFee)
	assert.True(t, loan.PenaltyFee.Equal(decimal.NewFromInt(590)), "penalty %s", loan.PenaltyFee)

	require.Len(t, f.receipts.events, 1)
	evt := f.receipts.events[0]
	assert.Equal(t, queue.ReceiptKindLoanReturn, evt.Kind)
	assert.Equal(t, "590.00", evt.PenaltyFee)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "release must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoanReturn_GeneralDamagePullsCopy(t *testing.T) {
	due := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	now := due.Add(-24 * time.Hour) // returned early, no late fee
	borrowed := due.Add(-14 * 24 * time.Hour)
	f := newEngineFixture(t, now)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(5).WillReturnRows(openLoanRow(5, 7, 2, borrowed, due))
	f.mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", borrowed))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("DAMAGED", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE reservations SET status = 'FULFILLED'").
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	loan, err := f.loans.Return(context.Background(), staff, ReturnLoanRequest{
		LoanID:     5,
		DamageType: model.DamageGeneral,
	})
	require.NoError(t, err)
	assert.True(t, loan.LateFee.IsZero())
	assert.True(t, loan.DamageFee.Equal(decimal.NewFromInt(300)), "damage fee %s", loan.DamageFee)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoanReturn_AlreadyReturned(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	returned := now.Add(-48 * time.Hour)
	rows := sqlmock.NewRows(loanTestColumns).AddRow(
		5, 7, 2, "RETURNED", returned.Add(-14*24*time.Hour), returned.Add(-24*time.Hour),
		returned, "30.00", "0.00", "30.00", "NONE", nil, returned, returned)

	expectSettingsLoad(f.mock)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(5).WillReturnRows(rows)
	f.mock.ExpectRollback()

	_, err := f.loans.Return(context.Background(), staff, ReturnLoanRequest{LoanID: 5})
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	assert.Empty(t, f.receipts.events)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoanReturn_RejectsUnknownDamageType(t *testing.T) {
	f := newEngineFixture(t, time.Now().UTC())

	_, err := f.loans.Return(context.Background(), staff, ReturnLoanRequest{
		LoanID:     5,
		DamageType: "SPILLED_COFFEE",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "damage_type", verr.Field)
}

func TestMarkOverdue_SweepsAndAudits(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectExec("UPDATE loans SET status = 'OVERDUE'").
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	n, err := f.loans.MarkOverdue(context.Background(), staff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
