package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func balanceRows(id string, total, used, pending, carried string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "employee_id", "year", "total_days", "used_days", "pending_days", "carried_over_days", "expiration_date", "created_at", "updated_at"}).
		AddRow(id, "emp-1", 2026, total, used, pending, carried, now.AddDate(0, 6, 0), now, now)
}

func TestVacationBalanceRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationBalanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, employee_id, year, total_days")).
		WithArgs("emp-1", 2026).
		WillReturnRows(balanceRows("bal-1", "15", "5", "3", "0"))

	balance, err := repo.Get(context.Background(), "emp-1", 2026)
	require.NoError(t, err)
	require.Equal(t, "bal-1", balance.ID)
	require.True(t, balance.AvailableDays().Equal(decimal.NewFromInt(7)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationBalanceRepositoryGetForUpdateTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationBalanceRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("emp-1", 2026).
		WillReturnRows(balanceRows("bal-1", "20", "0", "0", "5"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	balance, err := repo.GetForUpdateTx(context.Background(), tx, "emp-1", 2026)
	require.NoError(t, err)
	require.True(t, balance.TotalDays.Equal(decimal.NewFromInt(20)))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationBalanceRepositoryUpdateCountersTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationBalanceRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vacation_balances SET used_days")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.UpdateCountersTx(context.Background(), tx, "bal-1", decimal.NewFromInt(8), decimal.NewFromInt(2))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationBalanceRepositoryUpdateCountersTxMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVacationBalanceRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vacation_balances SET used_days")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.UpdateCountersTx(context.Background(), tx, "bal-missing", decimal.Zero, decimal.Zero)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
}
