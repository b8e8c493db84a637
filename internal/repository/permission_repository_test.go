package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sigep-hr/sigep-api/internal/models"
)

func TestPermissionRepositoryListTypes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "max_days_per_year", "requires_document", "is_paid", "is_active", "created_at", "updated_at"}).
		AddRow("type-1", "Cita medica", nil, 5, true, true, true, now, now).
		AddRow("type-2", "Asuntos personales", nil, 3, false, false, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM permission_types")).WillReturnRows(rows)

	types, err := repo.ListTypes(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, types, 2)
	require.True(t, types[0].RequiresDocument)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositorySumDaysForYearTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(duration_days), 0)")).
		WithArgs("emp-1", "type-1", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("3.5"))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.AcquireCapLockTx(context.Background(), tx, "emp-1", "type-1", 2026))
	total, err := repo.SumDaysForYearTx(context.Background(), tx, "emp-1", "type-1", 2026)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("3.5")))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryDateConflictTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("is_partial_day = FALSE")).
		WithArgs("emp-1", date, true).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("is_partial_day = FALSE")).
		WithArgs("emp-1", date, false).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	conflict, err := repo.HasDateConflictTx(context.Background(), tx, "emp-1", date, true)
	require.NoError(t, err)
	require.False(t, conflict)
	conflict, err = repo.HasDateConflictTx(context.Background(), tx, "emp-1", date, false)
	require.NoError(t, err)
	require.True(t, conflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryCreateTxDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	request := &models.PermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-1",
		StartDate:        time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		DurationDays:     decimal.NewFromInt(1),
	}
	require.NoError(t, repo.CreateTx(context.Background(), tx, request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.StatusPendiente, request.Status)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryUsageByType(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	rows := sqlmock.NewRows([]string{"permission_type_id", "type_name", "days_used"}).
		AddRow("type-1", "Cita medica", "2").
		AddRow("type-2", "Asuntos personales", "0.5")
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY pr.permission_type_id")).
		WithArgs("emp-1", 2026).
		WillReturnRows(rows)

	usage, err := repo.UsageByType(context.Background(), "emp-1", 2026)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	require.True(t, usage[1].DaysUsed.Equal(decimal.RequireFromString("0.5")))
	require.NoError(t, mock.ExpectationsWereMet())
}
