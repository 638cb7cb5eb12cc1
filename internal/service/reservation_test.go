package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/repository"
)

func pendingReservationRow(id, bookID, patronID uint64, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(reservationTestColumns).AddRow(
		id, bookID, patronID, "PENDING", at, nil, nil, nil, at, at)
}

func TestReservationCreate_StartsPending(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectQuery("FROM books WHERE id = \\?").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{
		"id", "title", "author", "isbn", "price", "total_copies", "available_copies", "created_at", "updated_at",
	}).AddRow(3, "The Go Programming Language", "Donovan", nil, "400.00", 2, 0, now, now))
	f.mock.ExpectQuery("FROM patrons WHERE id = \\?").
		WithArgs(2).WillReturnRows(patronRow(2, now))
	f.mock.ExpectExec("INSERT INTO reservations").
		WithArgs(3, 2, now, now.Add(7*24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(11, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	res, err := f.reservations.Create(context.Background(), staff, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), res.ID)
	assert.Equal(t, model.ReservationPending, res.Status)
	require.NotNil(t, res.ExpiresAt)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReservationApprove_OpensLoanAtomically(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM reservations WHERE id = \\? FOR UPDATE").
		WithArgs(11).WillReturnRows(pendingReservationRow(11, 3, 2, now.Add(-time.Hour)))
	f.mock.ExpectQuery("SELECT id FROM book_copies").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("BORROWED", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies - 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO loans").
		WithArgs(7, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))
	f.mock.ExpectExec("UPDATE reservations SET status = 'APPROVED'").
		WithArgs(42, 11).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	res, loan, err := f.reservations.Approve(context.Background(), staff, 11)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationApproved, res.Status)
	require.NotNil(t, res.LoanID)
	assert.Equal(t, loan.ID, *res.LoanID)
	assert.Equal(t, uint64(7), loan.CopyID)
	assert.Equal(t, now.Add(14*24*time.Hour), loan.DueDate)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "approval must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReservationApprove_NoCopyLeavesPending(t *testing.T) {
	// The whole approval rolls back when no copy can be claimed; the
	// reservation stays PENDING for a later retry.
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM reservations WHERE id = \\? FOR UPDATE").
		WithArgs(11).WillReturnRows(pendingReservationRow(11, 3, 2, now.Add(-time.Hour)))
	f.mock.ExpectQuery("SELECT id FROM book_copies").
		WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectRollback()

	_, _, err := f.reservations.Approve(context.Background(), staff, 11)
	assert.ErrorIs(t, err, repository.ErrNoAvailableCopy)
	assert.Empty(t, f.avail.bookIDs)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReservationApprove_RejectsNonPending(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	rows := sqlmock.NewRows(reservationTestColumns).AddRow(
		11, 3, 2, "DECLINED", now.Add(-time.Hour), nil, "no longer stocked", nil, now, now)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM reservations WHERE id = \\? FOR UPDATE").
		WithArgs(11).WillReturnRows(rows)
	f.mock.ExpectRollback()

	_, _, err := f.reservations.Approve(context.Background(), staff, 11)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReservationCancel_OwnershipEnforced(t *testing.T) {
	now := time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM reservations WHERE id = \\? FOR UPDATE").
		WithArgs(11).WillReturnRows(pendingReservationRow(11, 3, 2, now.Add(-time.Hour)))
	f.mock.ExpectRollback()

	patron := model.Actor{ID: 9, Role: model.RolePatron}
	_, err := f.reservations.Cancel(context.Background(), patron, 11, 4)
	assert.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReservationCancel_ApprovedReleasesCopy(t *testing.T) {
	now := time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	reservedAt := now.Add(-48 * time.Hour)
	rows := sqlmock.NewRows(reservationTestColumns).AddRow(
		11, 3, 2, "APPROVED", reservedAt, nil, nil, 42, reservedAt, reservedAt)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM reservations WHERE id = \\? FOR UPDATE").
		WithArgs(11).WillReturnRows(rows)
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(42).WillReturnRows(openLoanRow(42, 7, 2, reservedAt, reservedAt.Add(14*24*time.Hour)))
	f.mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", reservedAt))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("AVAILABLE", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies \\+ 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE reservations SET status = \\?").
		WithArgs("CANCELLED", 11, "APPROVED").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	res, err := f.reservations.Cancel(context.Background(), staff, 11, 0)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "releasing the copy must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReservationExpireDue_SweepsBothPhases(t *testing.T) {
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	reservedAt := now.Add(-10 * 24 * time.Hour)
	expired := sqlmock.NewRows(reservationTestColumns).AddRow(
		12, 3, 2, "APPROVED", reservedAt, now.Add(-time.Hour), nil, 42, reservedAt, reservedAt)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE reservations SET status = 'EXPIRED'").
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectQuery("FROM reservations WHERE status = 'APPROVED'").
		WithArgs(now).WillReturnRows(expired)
	f.mock.ExpectQuery("FROM loans WHERE id = \\? FOR UPDATE").
		WithArgs(42).WillReturnRows(openLoanRow(42, 7, 2, reservedAt, reservedAt.Add(14*24*time.Hour)))
	f.mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("FROM book_copies WHERE id = \\? FOR UPDATE").
		WithArgs(7).WillReturnRows(copyRow(7, 3, "BORROWED", reservedAt))
	f.mock.ExpectExec("UPDATE book_copies SET status = \\?").
		WithArgs("AVAILABLE", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE books SET available_copies = available_copies \\+ 1").
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE reservations SET status = \\?").
		WithArgs("EXPIRED", 12, "APPROVED").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	n, err := f.reservations.ExpireDue(context.Background(), staff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []uint64{3}, f.avail.bookIDs, "each released claim must drop the cached availability")
	require.NoError(t, f.mock.ExpectationsWereMet())
}
