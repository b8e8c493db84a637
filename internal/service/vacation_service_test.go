package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	"github.com/sigep-hr/sigep-api/pkg/config"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

// txStub hands out real transactions from an sqlmock connection so the
// workflow can begin and settle them while the stores below are stubbed.
type txStub struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxStub(t *testing.T) *txStub {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	// Workflows open one transaction per call; allow a handful per test.
	for i := 0; i < 8; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	return &txStub{db: sqlx.NewDb(db, "sqlmock"), mock: mock}
}

func (s *txStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, opts)
}

type counterUpdate struct {
	id      string
	used    decimal.Decimal
	pending decimal.Decimal
}

type balanceStoreStub struct {
	balance      *models.VacationBalance
	created      *models.VacationBalance
	updatedUsed  decimal.Decimal
	updatedPend  decimal.Decimal
	updates      int
	updatesLog   []counterUpdate
	applyUpdates bool
	exists       bool
	previous     *models.VacationBalance
}

func (s *balanceStoreStub) Get(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error) {
	if s.balance == nil {
		return nil, sql.ErrNoRows
	}
	return s.balance, nil
}

func (s *balanceStoreStub) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (*models.VacationBalance, error) {
	if s.balance != nil && s.balance.Year == year {
		return s.balance, nil
	}
	if s.previous != nil && s.previous.Year == year {
		return s.previous, nil
	}
	return nil, sql.ErrNoRows
}

func (s *balanceStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, balance *models.VacationBalance) error {
	balance.ID = "bal-created"
	s.created = balance
	if s.balance == nil {
		s.balance = balance
	}
	return nil
}

func (s *balanceStoreStub) UpdateCountersTx(ctx context.Context, tx *sqlx.Tx, id string, usedDays, pendingDays decimal.Decimal) error {
	s.updatedUsed = usedDays
	s.updatedPend = pendingDays
	s.updates++
	s.updatesLog = append(s.updatesLog, counterUpdate{id: id, used: usedDays, pending: pendingDays})
	if s.applyUpdates {
		for _, b := range []*models.VacationBalance{s.balance, s.previous} {
			if b != nil && b.ID == id {
				b.UsedDays = usedDays
				b.PendingDays = pendingDays
			}
		}
	}
	return nil
}

func (s *balanceStoreStub) ListByEmployee(ctx context.Context, employeeID string) ([]models.VacationBalance, error) {
	if s.balance == nil {
		return nil, nil
	}
	return []models.VacationBalance{*s.balance}, nil
}

func (s *balanceStoreStub) ExistsTx(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (bool, error) {
	return s.exists, nil
}

type requestStoreStub struct {
	request   *models.VacationRequest
	created   *models.VacationRequest
	overlap   bool
	history   []models.VacationRequestHistory
	reviewed  *repository.ReviewParams
	cancelled bool
	listed    []models.VacationRequest
}

func (s *requestStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.VacationRequest) error {
	request.ID = "req-created"
	s.created = request
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.VacationRequest, error) {
	if s.request == nil {
		return nil, sql.ErrNoRows
	}
	return s.request, nil
}

func (s *requestStoreStub) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.VacationRequest, error) {
	if s.request == nil {
		return nil, sql.ErrNoRows
	}
	return s.request, nil
}

func (s *requestStoreStub) HasOverlapTx(ctx context.Context, tx *sqlx.Tx, employeeID string, start, end time.Time, excludeID string) (bool, error) {
	return s.overlap, nil
}

func (s *requestStoreStub) UpdateDatesTx(ctx context.Context, tx *sqlx.Tx, id string, start, end time.Time, requestedDays int, reason *string) error {
	return nil
}

func (s *requestStoreStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, params repository.ReviewParams) error {
	s.reviewed = &params
	return nil
}

func (s *requestStoreStub) MarkInReviewTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if s.request != nil && s.request.ID == id {
		s.request.Status = models.StatusEnRevision
	}
	return nil
}

func (s *requestStoreStub) CancelTx(ctx context.Context, tx *sqlx.Tx, id string, fromStatus models.RequestStatus, comments *string) error {
	s.cancelled = true
	return nil
}

func (s *requestStoreStub) List(ctx context.Context, filter models.VacationRequestFilter) ([]models.VacationRequest, error) {
	return s.listed, nil
}

func (s *requestStoreStub) ListPendingForEmployees(ctx context.Context, employeeIDs []string) ([]models.VacationRequest, error) {
	return s.listed, nil
}

func (s *requestStoreStub) AddHistoryTx(ctx context.Context, tx *sqlx.Tx, entry *models.VacationRequestHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *requestStoreStub) History(ctx context.Context, requestID string) ([]models.VacationRequestHistory, error) {
	return s.history, nil
}

type employeeStub struct {
	employees map[string]*models.Employee
}

func (s *employeeStub) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	if e, ok := s.employees[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *employeeStub) GetByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	for _, e := range s.employees {
		if e.UserID != nil && *e.UserID == userID {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *employeeStub) List(ctx context.Context, filter repository.EmployeeFilter) ([]models.Employee, error) {
	out := make([]models.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, *e)
	}
	return out, nil
}

func (s *employeeStub) ListSubordinates(ctx context.Context, supervisorID string) ([]models.Employee, error) {
	var out []models.Employee
	for _, e := range s.employees {
		if e.SupervisorID != nil && *e.SupervisorID == supervisorID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type userStub struct {
	users map[string]*models.User
}

func (s *userStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type effectsStub struct {
	audits        []models.AuditLog
	notifications []models.Notification
}

func (s *effectsStub) EmitAudit(entry models.AuditLog)           { s.audits = append(s.audits, entry) }
func (s *effectsStub) Notify(notification models.Notification)   { s.notifications = append(s.notifications, notification) }

func futureMonday() time.Time {
	d := truncateToDate(time.Now().UTC()).AddDate(0, 0, 14)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

type vacationFixture struct {
	svc      *VacationService
	tx       *txStub
	balances *balanceStoreStub
	requests *requestStoreStub
	effects  *effectsStub
	metrics  *MetricsService
}

func newVacationFixture(t *testing.T) *vacationFixture {
	supID := "emp-sup"
	supUser := "user-sup"
	empUser := "user-emp"
	employees := &employeeStub{employees: map[string]*models.Employee{
		"emp-1": {
			ID:                  "emp-1",
			FirstName:           "Ana",
			LastName:            "Lopez",
			VacationDaysPerYear: 15,
			SupervisorID:        &supID,
			UserID:              &empUser,
			Active:              true,
		},
		"emp-sup": {
			ID:        "emp-sup",
			FirstName: "Luis",
			LastName:  "Mora",
			UserID:    &supUser,
			Active:    true,
		},
	}}
	users := &userStub{users: map[string]*models.User{
		"user-sup": {ID: "user-sup", FullName: "Luis Mora"},
		"user-emp": {ID: "user-emp", FullName: "Ana Lopez"},
	}}
	f := &vacationFixture{
		tx:       newTxStub(t),
		balances: &balanceStoreStub{},
		requests: &requestStoreStub{},
		effects:  &effectsStub{},
		metrics:  NewMetricsService(),
	}
	f.svc = NewVacationService(f.tx, f.balances, f.requests, employees, users, f.effects, f.metrics, config.VacationConfig{CarryOverMaxDays: 5}, nil)
	return f
}

func employeeActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-emp", EmployeeID: "emp-1", Role: models.RoleEmployee}
}

func supervisorActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-sup", EmployeeID: "emp-sup", Role: models.RoleSupervisor}
}

func hrActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-hr", Role: models.RoleHR}
}

func TestBusinessDaysCounting(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	friday := monday.AddDate(0, 0, 4)
	require.Equal(t, 5, BusinessDaysBetween(monday, friday))

	saturday := monday.AddDate(0, 0, 5)
	sunday := monday.AddDate(0, 0, 6)
	require.Equal(t, 0, BusinessDaysBetween(saturday, sunday))

	// Two full weeks spanning a weekend count ten working days.
	require.Equal(t, 10, BusinessDaysBetween(monday, monday.AddDate(0, 0, 11)))
	require.Equal(t, 1, BusinessDaysBetween(monday, monday))
}

func TestCreateVacationReservesPendingDays(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(15),
	}

	view, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 4).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, 5, view.RequestedDays)
	require.Equal(t, models.StatusPendiente, view.Status)

	// Five days moved into pending, none used.
	require.True(t, f.balances.updatedPend.Equal(decimal.NewFromInt(5)))
	require.True(t, f.balances.updatedUsed.Equal(decimal.Zero))
	require.Len(t, f.requests.history, 1)
	require.Equal(t, models.StatusPendiente, f.requests.history[0].Status)
	require.Len(t, f.effects.audits, 1)
	require.Equal(t, models.AuditActionCreate, f.effects.audits[0].Action)
	require.Len(t, f.effects.notifications, 1)
	require.Equal(t, "user-sup", f.effects.notifications[0].UserID)
}

func TestCreateVacationAtExactAvailableBalance(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays:   decimal.NewFromInt(15),
		UsedDays:    decimal.NewFromInt(5),
		PendingDays: decimal.NewFromInt(5),
	}

	// Exactly five available; a five-day request must pass.
	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 4).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.True(t, f.balances.updatedPend.Equal(decimal.NewFromInt(10)))
}

func TestCreateVacationInsufficientBalance(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(15),
		UsedDays:  decimal.NewFromInt(11),
	}

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 4).Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
	require.Zero(t, f.balances.updates)
	require.Nil(t, f.requests.created)
}

func TestCreateVacationOverlapRejected(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(15),
	}
	f.requests.overlap = true

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 4).Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrOverlap)
	require.Nil(t, f.requests.created)
}

func TestCreateVacationLazyBalanceHasNoCarryOver(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.NotNil(t, f.balances.created)
	require.True(t, f.balances.created.TotalDays.Equal(decimal.NewFromInt(15)))
	require.True(t, f.balances.created.CarriedOverDays.Equal(decimal.Zero))
}

func TestCreateVacationWeekendOnlyRange(t *testing.T) {
	f := newVacationFixture(t)
	saturday := futureMonday().AddDate(0, 0, 5)

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  saturday.Format(dateLayout),
		EndDate:    saturday.AddDate(0, 0, 1).Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func mondayIn(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func TestUpdateAdjustsReservationAndRecordsTrail(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays:   decimal.NewFromInt(15),
		PendingDays: decimal.NewFromInt(5),
	}

	view, err := f.svc.Update(context.Background(), "req-1", dto.UpdateVacationRequest{
		StartDate: start.Format(dateLayout),
		EndDate:   start.AddDate(0, 0, 1).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, 2, view.RequestedDays)
	require.True(t, f.balances.updatedPend.Equal(decimal.NewFromInt(2)))
	require.Len(t, f.requests.history, 1)
	require.Equal(t, models.StatusPendiente, f.requests.history[0].Status)
	require.Equal(t, "Solicitud modificada", *f.requests.history[0].Comments)
}

func TestUpdateMovesReservationAcrossYears(t *testing.T) {
	f := newVacationFixture(t)
	year := time.Now().UTC().Year() + 1
	oldStart := mondayIn(year, time.December)
	newStart := mondayIn(year+1, time.January)
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: oldStart, EndDate: oldStart.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-old", EmployeeID: "emp-1", Year: year,
		TotalDays:   decimal.NewFromInt(15),
		PendingDays: decimal.NewFromInt(5),
	}
	f.balances.previous = &models.VacationBalance{
		ID: "bal-new", EmployeeID: "emp-1", Year: year + 1,
		TotalDays: decimal.NewFromInt(15),
	}

	view, err := f.svc.Update(context.Background(), "req-1", dto.UpdateVacationRequest{
		StartDate: newStart.Format(dateLayout),
		EndDate:   newStart.AddDate(0, 0, 1).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, 2, view.RequestedDays)

	// Old year released in full, new year reserved, atomically.
	require.Len(t, f.balances.updatesLog, 2)
	require.Equal(t, "bal-old", f.balances.updatesLog[0].id)
	require.True(t, f.balances.updatesLog[0].pending.Equal(decimal.Zero))
	require.Equal(t, "bal-new", f.balances.updatesLog[1].id)
	require.True(t, f.balances.updatesLog[1].pending.Equal(decimal.NewFromInt(2)))
	require.Len(t, f.requests.history, 1)
}

func TestUpdateCrossYearFailsOnShortTargetBalance(t *testing.T) {
	f := newVacationFixture(t)
	year := time.Now().UTC().Year() + 1
	oldStart := mondayIn(year, time.December)
	newStart := mondayIn(year+1, time.January)
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: oldStart, EndDate: oldStart.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-old", EmployeeID: "emp-1", Year: year,
		TotalDays:   decimal.NewFromInt(15),
		PendingDays: decimal.NewFromInt(5),
	}
	f.balances.previous = &models.VacationBalance{
		ID: "bal-new", EmployeeID: "emp-1", Year: year + 1,
		TotalDays: decimal.NewFromInt(15),
		UsedDays:  decimal.NewFromInt(14),
	}

	_, err := f.svc.Update(context.Background(), "req-1", dto.UpdateVacationRequest{
		StartDate: newStart.Format(dateLayout),
		EndDate:   newStart.AddDate(0, 0, 1).Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
	// Neither year row was touched.
	require.Zero(t, f.balances.updates)
	require.Empty(t, f.requests.history)
}

func TestApproveMovesPendingToUsed(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays:   decimal.NewFromInt(15),
		UsedDays:    decimal.NewFromInt(2),
		PendingDays: decimal.NewFromInt(5),
	}

	view, err := f.svc.Approve(context.Background(), "req-1", dto.DecisionRequest{Comments: "disfruta"}, supervisorActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusAprobada, view.Status)
	require.True(t, f.balances.updatedUsed.Equal(decimal.NewFromInt(7)))
	require.True(t, f.balances.updatedPend.Equal(decimal.Zero))
	require.Equal(t, models.StatusAprobada, f.requests.reviewed.Status)
	require.Len(t, f.requests.history, 1)
	require.Len(t, f.effects.notifications, 1)
	require.Equal(t, models.NotificationSuccess, f.effects.notifications[0].Type)
}

func TestRejectReleasesPendingDays(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays:   decimal.NewFromInt(15),
		PendingDays: decimal.NewFromInt(5),
	}

	view, err := f.svc.Reject(context.Background(), "req-1", dto.DecisionRequest{Comments: "cobertura insuficiente"}, supervisorActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusRechazada, view.Status)
	// Pending released, used untouched.
	require.True(t, f.balances.updatedUsed.Equal(decimal.Zero))
	require.True(t, f.balances.updatedPend.Equal(decimal.Zero))
	require.Equal(t, models.NotificationWarning, f.effects.notifications[0].Type)
}

func TestRejectWithoutReasonWritesNothing(t *testing.T) {
	f := newVacationFixture(t)
	f.requests.request = &models.VacationRequest{ID: "req-1", EmployeeID: "emp-1", Status: models.StatusPendiente}

	_, err := f.svc.Reject(context.Background(), "req-1", dto.DecisionRequest{Comments: "   "}, supervisorActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
	require.Nil(t, f.requests.reviewed)
	require.Empty(t, f.requests.history)
	require.Zero(t, f.balances.updates)
}

func TestApproveOwnRequestForbidden(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-sup",
		StartDate: start, EndDate: start,
		RequestedDays: 1, Status: models.StatusPendiente,
	}

	_, err := f.svc.Approve(context.Background(), "req-1", dto.DecisionRequest{}, supervisorActor())
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestApproveTerminalRequestFails(t *testing.T) {
	f := newVacationFixture(t)
	f.requests.request = &models.VacationRequest{ID: "req-1", EmployeeID: "emp-1", Status: models.StatusRechazada}

	_, err := f.svc.Approve(context.Background(), "req-1", dto.DecisionRequest{}, supervisorActor())
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	require.Zero(t, f.balances.updates)
}

func TestStartReviewClaimsPendingRequest(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}

	view, err := f.svc.StartReview(context.Background(), "req-1", supervisorActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusEnRevision, view.Status)
	require.Len(t, f.requests.history, 1)
	require.Zero(t, f.balances.updates)
	require.Empty(t, f.effects.notifications)
	require.Len(t, f.effects.audits, 1)
}

func TestStartReviewDecidedRequestFails(t *testing.T) {
	f := newVacationFixture(t)
	f.requests.request = &models.VacationRequest{ID: "req-1", EmployeeID: "emp-1", Status: models.StatusAprobada}

	_, err := f.svc.StartReview(context.Background(), "req-1", supervisorActor())
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	require.Empty(t, f.requests.history)
}

func TestCancelPendingReleasesReservation(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusPendiente,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays:   decimal.NewFromInt(15),
		PendingDays: decimal.NewFromInt(5),
	}

	view, err := f.svc.Cancel(context.Background(), "req-1", dto.CancelRequest{}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelada, view.Status)
	require.True(t, f.balances.updatedPend.Equal(decimal.Zero))
	require.True(t, f.balances.updatedUsed.Equal(decimal.Zero))
}

func TestCancelApprovedFutureReversesUsedDays(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusAprobada,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(15),
		UsedDays:  decimal.NewFromInt(5),
	}

	view, err := f.svc.Cancel(context.Background(), "req-1", dto.CancelRequest{}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelada, view.Status)
	require.True(t, f.balances.updatedUsed.Equal(decimal.Zero))
}

func TestCancelApprovedStartedIsRejected(t *testing.T) {
	f := newVacationFixture(t)
	started := truncateToDate(time.Now().UTC()).AddDate(0, 0, -1)
	f.requests.request = &models.VacationRequest{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: started, EndDate: started.AddDate(0, 0, 4),
		RequestedDays: 5, Status: models.StatusAprobada,
	}
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: started.Year(),
		TotalDays: decimal.NewFromInt(15),
		UsedDays:  decimal.NewFromInt(5),
	}

	_, err := f.svc.Cancel(context.Background(), "req-1", dto.CancelRequest{}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	require.False(t, f.requests.cancelled)
	require.Zero(t, f.balances.updates)
}

func TestInitializeBalanceCapsCarryOver(t *testing.T) {
	f := newVacationFixture(t)
	year := time.Now().UTC().Year() + 1
	// Eight unspent days last year; only five may travel.
	f.balances.previous = &models.VacationBalance{
		ID: "bal-prev", EmployeeID: "emp-1", Year: year - 1,
		TotalDays: decimal.NewFromInt(15),
		UsedDays:  decimal.NewFromInt(7),
	}

	view, err := f.svc.InitializeBalance(context.Background(), "emp-1", year, hrActor())
	require.NoError(t, err)
	require.True(t, view.CarriedOverDays.Equal(decimal.NewFromInt(5)))
	require.True(t, view.TotalDays.Equal(decimal.NewFromInt(20)))
}

func TestInitializeBalanceTwiceConflicts(t *testing.T) {
	f := newVacationFixture(t)
	f.balances.exists = true

	_, err := f.svc.InitializeBalance(context.Background(), "emp-1", time.Now().UTC().Year(), hrActor())
	require.ErrorIs(t, err, appErrors.ErrBalanceExists)
}

func TestInitializeBalanceRequiresHR(t *testing.T) {
	f := newVacationFixture(t)

	_, err := f.svc.InitializeBalance(context.Background(), "emp-1", time.Now().UTC().Year(), employeeActor())
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGetBalanceDerivesViewWithoutRow(t *testing.T) {
	f := newVacationFixture(t)

	view, err := f.svc.GetBalance(context.Background(), "emp-1", 2026, employeeActor())
	require.NoError(t, err)
	require.True(t, view.TotalDays.Equal(decimal.NewFromInt(15)))
	require.True(t, view.AvailableDays.Equal(decimal.NewFromInt(15)))
	// Nothing was persisted.
	require.Nil(t, f.balances.created)
}

func TestBalanceInvariantHoldsThroughLifecycle(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	balance := &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(15),
	}
	f.balances.balance = balance

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 4).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)

	// total = used + pending + available after the reservation.
	balance.UsedDays = f.balances.updatedUsed
	balance.PendingDays = f.balances.updatedPend
	sum := balance.UsedDays.Add(balance.PendingDays).Add(balance.AvailableDays())
	require.True(t, balance.TotalDays.Equal(sum))

	f.requests.request = f.requests.created
	_, err = f.svc.Approve(context.Background(), f.requests.created.ID, dto.DecisionRequest{}, supervisorActor())
	require.NoError(t, err)

	balance.UsedDays = f.balances.updatedUsed
	balance.PendingDays = f.balances.updatedPend
	sum = balance.UsedDays.Add(balance.PendingDays).Add(balance.AvailableDays())
	require.True(t, balance.TotalDays.Equal(sum))
	require.True(t, balance.UsedDays.Equal(decimal.NewFromInt(5)))
}

// Reservations re-read the balance row under a row lock before checking
// availability, so two six-day requests against ten available days settle
// one after the other and the second always fails.
func TestSerializedReservationsNeverOversubscribe(t *testing.T) {
	f := newVacationFixture(t)
	f.balances.applyUpdates = true
	start := futureMonday()
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(10),
	}

	// Monday through the next Monday spans six business days.
	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 7).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.True(t, f.balances.balance.PendingDays.Equal(decimal.NewFromInt(6)))

	later := start.AddDate(0, 0, 14)
	_, err = f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  later.Format(dateLayout),
		EndDate:    later.AddDate(0, 0, 7).Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
	require.Equal(t, 1, f.balances.updates)
}

func TestWorkflowCountersTrackCreateAndDecision(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()
	f.balances.balance = &models.VacationBalance{
		ID: "bal-1", EmployeeID: "emp-1", Year: start.Year(),
		TotalDays: decimal.NewFromInt(15),
	}

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-1",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.AddDate(0, 0, 4).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)

	f.balances.balance.PendingDays = decimal.NewFromInt(5)
	f.requests.request = f.requests.created
	_, err = f.svc.Approve(context.Background(), f.requests.created.ID, dto.DecisionRequest{}, supervisorActor())
	require.NoError(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.requestsOpened.WithLabelValues("vacation")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.decisionsTotal.WithLabelValues("vacation", "aprobada")))
}

func TestVacationForbiddenForOtherEmployee(t *testing.T) {
	f := newVacationFixture(t)
	start := futureMonday()

	_, err := f.svc.Create(context.Background(), dto.CreateVacationRequest{
		EmployeeID: "emp-sup",
		StartDate:  start.Format(dateLayout),
		EndDate:    start.Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
