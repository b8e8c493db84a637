package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sigep-hr/sigep-api/internal/models"
)

func vacationRequestRows(id string, status models.RequestStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "employee_id", "start_date", "end_date", "requested_days", "reason", "status", "approved_by_user_id", "approved_at", "approver_comments", "created_at", "updated_at"}).
		AddRow(id, "emp-1", now, now.AddDate(0, 0, 4), 5, nil, status, nil, nil, nil, now, now)
}

func TestVacationRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vacation_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	request := &models.VacationRequest{
		EmployeeID:    "emp-1",
		StartDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		RequestedDays: 5,
	}
	require.NoError(t, repo.CreateTx(context.Background(), tx, request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.StatusPendiente, request.Status)
	require.NoError(t, tx.Commit())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, employee_id, start_date")).
		WithArgs(request.ID).
		WillReturnRows(vacationRequestRows(request.ID, models.StatusPendiente))
	found, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationRequestRepositoryHasOverlapTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM vacation_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	start := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	overlap, err := repo.HasOverlapTx(context.Background(), tx, "emp-1", start, end, "")
	require.NoError(t, err)
	require.True(t, overlap)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationRequestRepositoryUpdateStatusTxRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationRequestRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vacation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(context.Background(), tx, ReviewParams{
		ID:         "req-1",
		Status:     models.StatusAprobada,
		ReviewerID: "user-9",
		ReviewedAt: now,
	}))
	require.NoError(t, tx.Commit())

	// A second reviewer hits a no-longer-reviewable row.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vacation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err = db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.UpdateStatusTx(context.Background(), tx, ReviewParams{
		ID:         "req-1",
		Status:     models.StatusRechazada,
		ReviewerID: "user-8",
		ReviewedAt: now,
	})
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, employee_id, start_date")).
		WithArgs("emp-1", string(models.StatusPendiente), string(models.StatusEnRevision)).
		WillReturnRows(vacationRequestRows("req-1", models.StatusPendiente))

	list, err := repo.List(context.Background(), models.VacationRequestFilter{
		EmployeeID: "emp-1",
		Status:     []models.RequestStatus{models.StatusPendiente, models.StatusEnRevision},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationRequestRepositoryHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vacation_request_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	entry := &models.VacationRequestHistory{
		VacationRequestID: "req-1",
		Status:            models.StatusAprobada,
		ChangedByUserID:   "user-9",
	}
	require.NoError(t, repo.AddHistoryTx(context.Background(), tx, entry))
	require.NotEmpty(t, entry.ID)
	require.NoError(t, tx.Commit())

	rows := sqlmock.NewRows([]string{"id", "vacation_request_id", "status", "comments", "changed_by_user_id", "created_at"}).
		AddRow("hist-1", "req-1", "Pendiente", nil, "user-1", time.Now()).
		AddRow("hist-2", "req-1", "Aprobada", nil, "user-9", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM vacation_request_history")).
		WithArgs("req-1").
		WillReturnRows(rows)

	trail, err := repo.History(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, models.StatusAprobada, trail[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
