package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	"github.com/sigep-hr/sigep-api/pkg/config"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

type permissionStoreStub struct {
	types          map[string]*models.PermissionType
	consumed       decimal.Decimal
	capLocks       int
	fullDayOnDate  bool
	partialOnDate  bool
	conflictChecks int
	request        *models.PermissionRequest
	created        *models.PermissionRequest
	reviewed       *repository.ReviewParams
	cancelled      bool
	usage          []models.PermissionUsage
}

func (s *permissionStoreStub) ListTypes(ctx context.Context, activeOnly bool) ([]models.PermissionType, error) {
	out := make([]models.PermissionType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, *t)
	}
	return out, nil
}

func (s *permissionStoreStub) GetTypeByID(ctx context.Context, id string) (*models.PermissionType, error) {
	if t, ok := s.types[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *permissionStoreStub) AcquireCapLockTx(ctx context.Context, tx *sqlx.Tx, employeeID, typeID string, year int) error {
	s.capLocks++
	return nil
}

func (s *permissionStoreStub) SumDaysForYearTx(ctx context.Context, tx *sqlx.Tx, employeeID, typeID string, year int) (decimal.Decimal, error) {
	return s.consumed, nil
}

func (s *permissionStoreStub) HasDateConflictTx(ctx context.Context, tx *sqlx.Tx, employeeID string, startDate time.Time, fullDayOnly bool) (bool, error) {
	s.conflictChecks++
	if fullDayOnly {
		return s.fullDayOnDate, nil
	}
	return s.fullDayOnDate || s.partialOnDate, nil
}

func (s *permissionStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.PermissionRequest) error {
	request.ID = "perm-created"
	s.created = request
	return nil
}

func (s *permissionStoreStub) GetByID(ctx context.Context, id string) (*models.PermissionRequest, error) {
	if s.request == nil {
		return nil, sql.ErrNoRows
	}
	return s.request, nil
}

func (s *permissionStoreStub) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.PermissionRequest, error) {
	if s.request == nil {
		return nil, sql.ErrNoRows
	}
	return s.request, nil
}

func (s *permissionStoreStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, params repository.ReviewParams) error {
	s.reviewed = &params
	return nil
}

func (s *permissionStoreStub) MarkInReviewTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if s.request != nil && s.request.ID == id {
		s.request.Status = models.StatusEnRevision
	}
	return nil
}

func (s *permissionStoreStub) CancelTx(ctx context.Context, tx *sqlx.Tx, id string, fromStatus models.RequestStatus, comments *string) error {
	s.cancelled = true
	return nil
}

func (s *permissionStoreStub) List(ctx context.Context, filter models.PermissionRequestFilter) ([]models.PermissionRequest, error) {
	return nil, nil
}

func (s *permissionStoreStub) ListPendingForEmployees(ctx context.Context, employeeIDs []string) ([]models.PermissionRequest, error) {
	return nil, nil
}

func (s *permissionStoreStub) UsageByType(ctx context.Context, employeeID string, year int) ([]models.PermissionUsage, error) {
	return s.usage, nil
}

type permissionFixture struct {
	svc     *PermissionService
	repo    *permissionStoreStub
	effects *effectsStub
}

func newPermissionFixture(t *testing.T) *permissionFixture {
	supID := "emp-sup"
	supUser := "user-sup"
	empUser := "user-emp"
	employees := &employeeStub{employees: map[string]*models.Employee{
		"emp-1": {
			ID: "emp-1", FirstName: "Ana", LastName: "Lopez",
			SupervisorID: &supID, UserID: &empUser, Active: true,
		},
		"emp-sup": {ID: "emp-sup", FirstName: "Luis", LastName: "Mora", UserID: &supUser, Active: true},
	}}
	users := &userStub{users: map[string]*models.User{
		"user-sup": {ID: "user-sup", FullName: "Luis Mora"},
	}}
	maxDays := 5
	f := &permissionFixture{
		repo: &permissionStoreStub{types: map[string]*models.PermissionType{
			"type-med": {ID: "type-med", Name: "Cita medica", MaxDaysPerYear: &maxDays, RequiresDocument: true, IsActive: true},
			"type-per": {ID: "type-per", Name: "Asuntos personales", IsActive: true},
			"type-old": {ID: "type-old", Name: "Obsoleto", IsActive: false},
		}},
		effects: &effectsStub{},
	}
	f.svc = NewPermissionService(newTxStub(t), f.repo, employees, users, f.effects, nil, nil,
		config.PermissionConfig{WorkdayHours: 8, TypeCacheTTL: time.Minute}, nil)
	return f
}

func TestPermissionFullDayDurationIsInclusive(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()

	view, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
		EndDate:          start.AddDate(0, 0, 2).Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.True(t, view.DurationDays.Equal(decimal.NewFromInt(3)))
	require.False(t, view.IsPartialDay)
}

func TestPermissionPartialDayDurationFromHours(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()

	// Two hours out of an eight hour workday.
	view, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
		StartTime:        "09:00",
		EndTime:          "11:00",
		IsPartialDay:     true,
	}, employeeActor())
	require.NoError(t, err)
	require.True(t, view.DurationDays.Equal(decimal.RequireFromString("0.25")))
}

func TestPermissionPartialDayRequiresBothTimes(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
		StartTime:        "09:00",
		IsPartialDay:     true,
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
	require.Nil(t, f.repo.created)
}

func TestPermissionCapSaturation(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.consumed = decimal.NewFromInt(3)

	// 3 consumed + 2 requested reaches the cap of 5 exactly.
	doc := "signed-token"
	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-med",
		StartDate:        start.Format(dateLayout),
		EndDate:          start.AddDate(0, 0, 1).Format(dateLayout),
		DocumentURL:      doc,
	}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, 1, f.repo.capLocks)

	// One more day overflows; the error reports taken and requested days.
	f.repo.consumed = decimal.NewFromInt(5)
	_, err = f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-med",
		StartDate:        start.AddDate(0, 0, 7).Format(dateLayout),
		DocumentURL:      doc,
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrCapExceeded)
	require.ErrorContains(t, err, "5 already taken")
	require.ErrorContains(t, err, "1 requested")
}

func TestPermissionUncappedTypeSkipsCapCheck(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
	}, employeeActor())
	require.NoError(t, err)
	require.Zero(t, f.repo.capLocks)
}

func TestPermissionRequiresDocument(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-med",
		StartDate:        start.Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
	require.Nil(t, f.repo.created)
}

func TestPermissionInactiveTypeRejected(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-old",
		StartDate:        start.Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPermissionFullDayConflictBlocksFullDay(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.fullDayOnDate = true

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrOverlap)
}

// A full-day request blocks the whole date, so a partial slice on a date
// already held by a full-day permission is rejected.
func TestPermissionPartialDayBlockedByFullDay(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.fullDayOnDate = true

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
		StartTime:        "09:00",
		EndTime:          "10:00",
		IsPartialDay:     true,
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrOverlap)
	require.Equal(t, 1, f.repo.conflictChecks)
	require.Nil(t, f.repo.created)
}

// The reverse also holds: a full-day request collides with any request
// already starting on the date, partial slices included.
func TestPermissionFullDayBlockedByPartialSlice(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.partialOnDate = true

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
	}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrOverlap)
	require.Nil(t, f.repo.created)
}

// Two partial slices of the same date have no time-range intersection
// check and may coexist.
func TestPermissionPartialSlicesCoexist(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.partialOnDate = true

	_, err := f.svc.Create(context.Background(), dto.CreatePermissionRequest{
		EmployeeID:       "emp-1",
		PermissionTypeID: "type-per",
		StartDate:        start.Format(dateLayout),
		StartTime:        "09:00",
		EndTime:          "10:00",
		IsPartialDay:     true,
	}, employeeActor())
	require.NoError(t, err)
	require.Equal(t, 1, f.repo.conflictChecks)
	require.NotNil(t, f.repo.created)
}

func TestPermissionApproveAndNotify(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.request = &models.PermissionRequest{
		ID: "perm-1", EmployeeID: "emp-1", PermissionTypeID: "type-per",
		StartDate: start, EndDate: start,
		DurationDays: decimal.NewFromInt(1), Status: models.StatusPendiente,
	}

	view, err := f.svc.Approve(context.Background(), "perm-1", dto.DecisionRequest{Comments: "ok"}, supervisorActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusAprobada, view.Status)
	require.Equal(t, models.StatusAprobada, f.repo.reviewed.Status)
	require.Len(t, f.effects.notifications, 1)
	require.Equal(t, models.NotificationSuccess, f.effects.notifications[0].Type)
}

func TestPermissionStartReviewClaimsRequest(t *testing.T) {
	f := newPermissionFixture(t)
	start := futureMonday()
	f.repo.request = &models.PermissionRequest{
		ID: "perm-1", EmployeeID: "emp-1", PermissionTypeID: "type-per",
		StartDate: start, EndDate: start,
		DurationDays: decimal.NewFromInt(1), Status: models.StatusPendiente,
	}

	view, err := f.svc.StartReview(context.Background(), "perm-1", supervisorActor())
	require.NoError(t, err)
	require.Equal(t, models.StatusEnRevision, view.Status)
	require.Empty(t, f.effects.notifications)
	require.Len(t, f.effects.audits, 1)
	require.Equal(t, models.AuditActionUpdate, f.effects.audits[0].Action)

	_, err = f.svc.StartReview(context.Background(), "perm-1", supervisorActor())
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestPermissionRejectRequiresReason(t *testing.T) {
	f := newPermissionFixture(t)
	f.repo.request = &models.PermissionRequest{ID: "perm-1", EmployeeID: "emp-1", Status: models.StatusPendiente}

	_, err := f.svc.Reject(context.Background(), "perm-1", dto.DecisionRequest{}, supervisorActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
	require.Nil(t, f.repo.reviewed)
}

func TestPermissionCancelApprovedStartedFails(t *testing.T) {
	f := newPermissionFixture(t)
	yesterday := truncateToDate(time.Now().UTC()).AddDate(0, 0, -1)
	f.repo.request = &models.PermissionRequest{
		ID: "perm-1", EmployeeID: "emp-1",
		StartDate: yesterday, EndDate: yesterday,
		Status: models.StatusAprobada,
	}

	_, err := f.svc.Cancel(context.Background(), "perm-1", dto.CancelRequest{}, employeeActor())
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	require.False(t, f.repo.cancelled)
}

func TestPermissionUsageSummaryTotals(t *testing.T) {
	f := newPermissionFixture(t)
	f.repo.usage = []models.PermissionUsage{
		{PermissionTypeID: "type-med", TypeName: "Cita medica", DaysUsed: decimal.NewFromInt(2)},
		{PermissionTypeID: "type-per", TypeName: "Asuntos personales", DaysUsed: decimal.RequireFromString("0.5")},
	}

	summary, err := f.svc.UsageSummary(context.Background(), "emp-1", 2026, employeeActor())
	require.NoError(t, err)
	require.Len(t, summary.UsageByType, 2)
	require.True(t, summary.TotalDaysUsed.Equal(decimal.RequireFromString("2.5")))
}
