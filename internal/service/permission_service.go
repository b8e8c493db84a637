package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	"github.com/sigep-hr/sigep-api/pkg/config"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

const permissionTypesCacheKey = "permission_types:active"

const timeLayout = "15:04"

type permissionStore interface {
	ListTypes(ctx context.Context, activeOnly bool) ([]models.PermissionType, error)
	GetTypeByID(ctx context.Context, id string) (*models.PermissionType, error)
	AcquireCapLockTx(ctx context.Context, tx *sqlx.Tx, employeeID, typeID string, year int) error
	SumDaysForYearTx(ctx context.Context, tx *sqlx.Tx, employeeID, typeID string, year int) (decimal.Decimal, error)
	HasDateConflictTx(ctx context.Context, tx *sqlx.Tx, employeeID string, startDate time.Time, fullDayOnly bool) (bool, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.PermissionRequest) error
	GetByID(ctx context.Context, id string) (*models.PermissionRequest, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.PermissionRequest, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, params repository.ReviewParams) error
	MarkInReviewTx(ctx context.Context, tx *sqlx.Tx, id string) error
	CancelTx(ctx context.Context, tx *sqlx.Tx, id string, fromStatus models.RequestStatus, comments *string) error
	List(ctx context.Context, filter models.PermissionRequestFilter) ([]models.PermissionRequest, error)
	ListPendingForEmployees(ctx context.Context, employeeIDs []string) ([]models.PermissionRequest, error)
	UsageByType(ctx context.Context, employeeID string, year int) ([]models.PermissionUsage, error)
}

type typeCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PermissionService coordinates short-leave requests: duration accounting,
// the per-type yearly cap and the decision workflow. Unlike vacations there
// is no day ledger; consumption is the live sum over the request rows, so
// cap checks serialize on an advisory lock instead of a row lock.
type PermissionService struct {
	db        txBeginner
	repo      permissionStore
	employees employeeDirectory
	users     userDirectory
	effects   effectEmitter
	metrics   *MetricsService
	cache     typeCache
	cfg       config.PermissionConfig
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewPermissionService constructs the service. cache may be nil to disable
// type catalog caching; metrics may be nil.
func NewPermissionService(db txBeginner, repo permissionStore, employees employeeDirectory, users userDirectory, effects effectEmitter, metrics *MetricsService, cache typeCache, cfg config.PermissionConfig, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WorkdayHours <= 0 {
		cfg.WorkdayHours = 8
	}
	if cfg.CacheDisabled {
		cache = nil
	}
	if c, ok := cache.(*redis.Client); ok && c == nil {
		cache = nil
	}
	return &PermissionService{
		db:        db,
		repo:      repo,
		employees: employees,
		users:     users,
		effects:   effects,
		metrics:   metrics,
		cache:     cache,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    logger,
	}
}

// ListTypes returns the active permission type catalog, served from cache
// when possible.
func (s *PermissionService) ListTypes(ctx context.Context) ([]models.PermissionType, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, permissionTypesCacheKey).Result(); err == nil {
			var types []models.PermissionType
			if err := json.Unmarshal([]byte(raw), &types); err == nil {
				return types, nil
			}
		}
	}
	types, err := s.repo.ListTypes(ctx, true)
	if err != nil {
		return nil, wrapInternal(err, "failed to list permission types")
	}
	if s.cache != nil {
		if payload, err := json.Marshal(types); err == nil {
			if err := s.cache.Set(ctx, permissionTypesCacheKey, payload, s.cfg.TypeCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache permission types", zap.Error(err))
			}
		}
	}
	return types, nil
}

// Create opens a new permission request after duration, document, conflict
// and cap checks.
func (s *PermissionService) Create(ctx context.Context, req dto.CreatePermissionRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid permission request payload")
	}
	if !s.canActFor(actor, req.EmployeeID) {
		return nil, appErrors.ErrForbidden
	}

	permType, err := s.loadType(ctx, req.PermissionTypeID)
	if err != nil {
		return nil, err
	}
	if !permType.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "permission type is inactive")
	}
	documentURL := optionalString(req.DocumentURL)
	if permType.RequiresDocument && documentURL == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("permission type %s requires a supporting document", permType.Name))
	}

	request, err := s.buildRequest(req, documentURL)
	if err != nil {
		return nil, err
	}

	employee, err := s.loadEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !employee.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee is inactive")
	}

	year := request.StartDate.Year()
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if permType.MaxDaysPerYear != nil {
			if err := s.repo.AcquireCapLockTx(ctx, tx, req.EmployeeID, permType.ID, year); err != nil {
				return wrapInternal(err, "failed to serialize cap check")
			}
			consumed, err := s.repo.SumDaysForYearTx(ctx, tx, req.EmployeeID, permType.ID, year)
			if err != nil {
				return wrapInternal(err, "failed to total permission usage")
			}
			capDays := decimal.NewFromInt(int64(*permType.MaxDaysPerYear))
			if consumed.Add(request.DurationDays).GreaterThan(capDays) {
				return appErrors.Clone(appErrors.ErrCapExceeded,
					fmt.Sprintf("type %s allows %d days per year, %s already taken, %s requested", permType.Name, *permType.MaxDaysPerYear, consumed, request.DurationDays))
			}
		}
		// A full-day request blocks the whole date; a partial slice only
		// collides with an existing full-day one. Two partial slices of the
		// same date may coexist.
		conflict, err := s.repo.HasDateConflictTx(ctx, tx, req.EmployeeID, request.StartDate, request.IsPartialDay)
		if err != nil {
			return wrapInternal(err, "failed to check same-day permissions")
		}
		if conflict {
			if request.IsPartialDay {
				return appErrors.Clone(appErrors.ErrOverlap, "a full-day permission already covers that date")
			}
			return appErrors.Clone(appErrors.ErrOverlap, "another permission already starts on that date")
		}
		if err := s.repo.CreateTx(ctx, tx, request); err != nil {
			return wrapInternal(err, "failed to create permission request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CountRequestOpened("permission")
	payload, _ := json.Marshal(request)
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCreate,
		Module:     models.AuditModulePermissions,
		EntityType: strPtr("permission_request"),
		EntityID:   &request.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "permission-service",
	})
	s.notifySupervisor(ctx, employee, models.Notification{
		Title:   "Nueva solicitud de permiso",
		Message: fmt.Sprintf("%s solicitó %s el %s", employee.FullName(), permType.Name, request.StartDate.Format(dateLayout)),
		Type:    models.NotificationInfo,
	}, request.ID)

	return s.buildView(ctx, request), nil
}

// Approve moves a reviewable permission request to Aprobada.
func (s *PermissionService) Approve(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	return s.decide(ctx, id, models.StatusAprobada, req.Comments, actor)
}

// Reject moves a reviewable permission request to Rechazada. The reason is
// mandatory and checked before any write.
func (s *PermissionService) Reject(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	if strings.TrimSpace(req.Comments) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.decide(ctx, id, models.StatusRechazada, req.Comments, actor)
}

func (s *PermissionService) decide(ctx context.Context, id string, outcome models.RequestStatus, comments string, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var request *models.PermissionRequest
	now := time.Now().UTC()
	trimmed := optionalString(comments)

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		request, err = s.lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if !request.Status.Reviewable() {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("request in status %s cannot be reviewed", request.Status))
		}
		if err := s.authorizeReviewer(ctx, actor, request.EmployeeID); err != nil {
			return err
		}
		err = s.repo.UpdateStatusTx(ctx, tx, repository.ReviewParams{
			ID:         request.ID,
			Status:     outcome,
			ReviewerID: actor.UserID,
			ReviewedAt: now,
			Comments:   trimmed,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "request was reviewed concurrently")
			}
			return wrapInternal(err, "failed to record decision")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	oldStatus := request.Status
	request.Status = outcome
	request.ApprovedByUserID = &actor.UserID
	request.ApprovedAt = &now
	request.ApproverComments = trimmed
	s.metrics.CountDecision("permission", strings.ToLower(string(outcome)))

	action := models.AuditActionApprove
	title := "Solicitud de permiso aprobada"
	severity := models.NotificationSuccess
	if outcome == models.StatusRechazada {
		action = models.AuditActionReject
		title = "Solicitud de permiso rechazada"
		severity = models.NotificationWarning
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"status": oldStatus})
	newPayload, _ := json.Marshal(map[string]interface{}{"status": outcome, "comments": comments})
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Module:     models.AuditModulePermissions,
		EntityType: strPtr("permission_request"),
		EntityID:   &request.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  "system",
		UserAgent:  "permission-service",
	})
	s.notifyEmployee(ctx, request.EmployeeID, models.Notification{
		Title:   title,
		Message: fmt.Sprintf("Tu solicitud de permiso del %s fue %s", request.StartDate.Format(dateLayout), strings.ToLower(string(outcome))),
		Type:    severity,
	}, request.ID)

	return s.buildView(ctx, request), nil
}

// Cancel withdraws a permission request. Approved requests can only be
// cancelled while their start date is still in the future.
// StartReview claims a pending permission request, moving it to EnRevision.
func (s *PermissionService) StartReview(ctx context.Context, id string, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var request *models.PermissionRequest

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		request, err = s.lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if request.Status != models.StatusPendiente {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("request in status %s cannot enter review", request.Status))
		}
		if err := s.authorizeReviewer(ctx, actor, request.EmployeeID); err != nil {
			return err
		}
		if err := s.repo.MarkInReviewTx(ctx, tx, request.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "request was claimed concurrently")
			}
			return wrapInternal(err, "failed to mark request in review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"status": request.Status})
	newPayload, _ := json.Marshal(map[string]interface{}{"status": models.StatusEnRevision})
	request.Status = models.StatusEnRevision
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionUpdate,
		Module:     models.AuditModulePermissions,
		EntityType: strPtr("permission_request"),
		EntityID:   &request.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  "system",
		UserAgent:  "permission-service",
	})
	return s.buildView(ctx, request), nil
}

func (s *PermissionService) Cancel(ctx context.Context, id string, req dto.CancelRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var request *models.PermissionRequest
	reason := optionalString(req.Reason)

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		request, err = s.lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if !s.canActFor(actor, request.EmployeeID) {
			return appErrors.ErrForbidden
		}
		switch {
		case request.Status.Reviewable():
		case request.Status == models.StatusAprobada:
			if !request.StartDate.After(truncateToDate(time.Now().UTC())) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "approved permissions that already started cannot be cancelled")
			}
		default:
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("request in status %s cannot be cancelled", request.Status))
		}
		if err := s.repo.CancelTx(ctx, tx, request.ID, request.Status, reason); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "request changed concurrently")
			}
			return wrapInternal(err, "failed to cancel permission request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	oldStatus := request.Status
	request.Status = models.StatusCancelada
	s.metrics.CountDecision("permission", strings.ToLower(string(models.StatusCancelada)))
	oldPayload, _ := json.Marshal(map[string]interface{}{"status": oldStatus})
	newPayload, _ := json.Marshal(map[string]interface{}{"status": models.StatusCancelada})
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCancel,
		Module:     models.AuditModulePermissions,
		EntityType: strPtr("permission_request"),
		EntityID:   &request.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  "system",
		UserAgent:  "permission-service",
	})
	s.notifyEmployee(ctx, request.EmployeeID, models.Notification{
		Title:   "Solicitud de permiso cancelada",
		Message: fmt.Sprintf("La solicitud de permiso del %s fue cancelada", request.StartDate.Format(dateLayout)),
		Type:    models.NotificationInfo,
	}, request.ID)

	return s.buildView(ctx, request), nil
}

// Get returns one permission request with actor scope enforced.
func (s *PermissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, wrapInternal(err, "failed to load permission request")
	}
	ok, err := s.canView(ctx, actor, request.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.ErrForbidden
	}
	return s.buildView(ctx, request), nil
}

// List returns permission requests visible to the actor.
func (s *PermissionService) List(ctx context.Context, query dto.PermissionRequestQuery, actor *models.JWTClaims) ([]dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.PermissionRequestFilter{
		EmployeeID:       query.EmployeeID,
		PermissionTypeID: query.PermissionTypeID,
		Status:           query.Status,
		DateFrom:         query.From,
		DateTo:           query.To,
		Limit:            query.Limit,
		Offset:           query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
	case models.RoleSupervisor, models.RoleEmployee:
		if filter.EmployeeID == "" {
			filter.EmployeeID = actor.EmployeeID
		}
		ok, err := s.canView(ctx, actor, filter.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, appErrors.ErrForbidden
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, wrapInternal(err, "failed to list permission requests")
	}
	views := make([]dto.PermissionRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, *s.buildView(ctx, &requests[i]))
	}
	return views, nil
}

// PendingForApprover returns the reviewable backlog for the actor's scope.
func (s *PermissionService) PendingForApprover(ctx context.Context, actor *models.JWTClaims) ([]dto.PermissionRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var requests []models.PermissionRequest
	var err error
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		requests, err = s.repo.List(ctx, models.PermissionRequestFilter{
			Status: []models.RequestStatus{models.StatusPendiente, models.StatusEnRevision},
			Limit:  200,
		})
	case models.RoleSupervisor:
		subordinates, serr := s.employees.ListSubordinates(ctx, actor.EmployeeID)
		if serr != nil {
			return nil, wrapInternal(serr, "failed to list subordinates")
		}
		ids := make([]string, 0, len(subordinates))
		for _, sub := range subordinates {
			ids = append(ids, sub.ID)
		}
		requests, err = s.repo.ListPendingForEmployees(ctx, ids)
	default:
		return nil, appErrors.ErrForbidden
	}
	if err != nil {
		return nil, wrapInternal(err, "failed to list pending permission requests")
	}
	views := make([]dto.PermissionRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, *s.buildView(ctx, &requests[i]))
	}
	return views, nil
}

// UsageSummary totals Pendiente plus Aprobada days per type for one
// employee and year.
func (s *PermissionService) UsageSummary(ctx context.Context, employeeID string, year int, actor *models.JWTClaims) (*models.PermissionUsageSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	ok, err := s.canView(ctx, actor, employeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.ErrForbidden
	}
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	usage, err := s.repo.UsageByType(ctx, employeeID, year)
	if err != nil {
		return nil, wrapInternal(err, "failed to total permission usage")
	}
	total := decimal.Zero
	for _, entry := range usage {
		total = total.Add(entry.DaysUsed)
	}
	return &models.PermissionUsageSummary{
		EmployeeID:    employeeID,
		Year:          year,
		UsageByType:   usage,
		TotalDaysUsed: total,
	}, nil
}

// buildRequest parses dates and times and computes the duration: inclusive
// calendar days for whole-day requests, elapsed hours over the workday for
// partial days.
func (s *PermissionService) buildRequest(req dto.CreatePermissionRequest, documentURL *string) (*models.PermissionRequest, error) {
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must use YYYY-MM-DD")
	}
	end := start
	if req.EndDate != "" {
		end, err = parseDate(req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must use YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date cannot precede start_date")
		}
	}

	request := &models.PermissionRequest{
		EmployeeID:       req.EmployeeID,
		PermissionTypeID: req.PermissionTypeID,
		StartDate:        start,
		EndDate:          end,
		IsPartialDay:     req.IsPartialDay,
		Reason:           optionalString(req.Reason),
		DocumentURL:      documentURL,
		Status:           models.StatusPendiente,
	}

	if !req.IsPartialDay {
		request.DurationDays = decimal.NewFromInt(int64(CalendarDaysBetween(start, end)))
		return request, nil
	}

	if req.StartTime == "" || req.EndTime == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "partial-day permissions require start_time and end_time")
	}
	startClock, err := time.Parse(timeLayout, req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must use HH:MM")
	}
	endClock, err := time.Parse(timeLayout, req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must use HH:MM")
	}
	minutes := endClock.Sub(startClock).Minutes()
	if minutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	request.EndDate = start
	request.StartTime = strPtr(req.StartTime)
	request.EndTime = strPtr(req.EndTime)
	request.DurationDays = decimal.NewFromFloat(minutes).
		Div(decimal.NewFromInt(int64(60 * s.cfg.WorkdayHours))).
		Round(4)
	return request, nil
}

func (s *PermissionService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapInternal(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapInternal(err, "failed to commit transaction")
	}
	return nil
}

func (s *PermissionService) lockRequest(ctx context.Context, tx *sqlx.Tx, id string) (*models.PermissionRequest, error) {
	request, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, wrapInternal(err, "failed to lock permission request")
	}
	return request, nil
}

func (s *PermissionService) loadType(ctx context.Context, id string) (*models.PermissionType, error) {
	permType, err := s.repo.GetTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission type not found")
		}
		return nil, wrapInternal(err, "failed to load permission type")
	}
	return permType, nil
}

func (s *PermissionService) loadEmployee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.employees.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, wrapInternal(err, "failed to load employee")
	}
	return employee, nil
}

func (s *PermissionService) canActFor(actor *models.JWTClaims, employeeID string) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		return true
	default:
		return actor.EmployeeID != "" && actor.EmployeeID == employeeID
	}
}

func (s *PermissionService) canView(ctx context.Context, actor *models.JWTClaims, employeeID string) (bool, error) {
	if s.canActFor(actor, employeeID) {
		return true, nil
	}
	if actor.Role != models.RoleSupervisor || employeeID == "" {
		return false, nil
	}
	employee, err := s.loadEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	return employee.SupervisorID != nil && *employee.SupervisorID == actor.EmployeeID, nil
}

func (s *PermissionService) authorizeReviewer(ctx context.Context, actor *models.JWTClaims, employeeID string) error {
	if actor.EmployeeID != "" && actor.EmployeeID == employeeID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot review your own request")
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		return nil
	case models.RoleSupervisor:
		employee, err := s.loadEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		if employee.SupervisorID != nil && *employee.SupervisorID == actor.EmployeeID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another team")
	default:
		return appErrors.ErrForbidden
	}
}

func (s *PermissionService) buildView(ctx context.Context, request *models.PermissionRequest) *dto.PermissionRequestView {
	view := &dto.PermissionRequestView{
		ID:               request.ID,
		EmployeeID:       request.EmployeeID,
		PermissionTypeID: request.PermissionTypeID,
		StartDate:        request.StartDate,
		EndDate:          request.EndDate,
		StartTime:        request.StartTime,
		EndTime:          request.EndTime,
		IsPartialDay:     request.IsPartialDay,
		DurationDays:     request.DurationDays,
		Reason:           request.Reason,
		DocumentURL:      request.DocumentURL,
		Status:           request.Status,
		ApprovedByUserID: request.ApprovedByUserID,
		ApprovedAt:       request.ApprovedAt,
		ApproverComments: request.ApproverComments,
		CreatedAt:        request.CreatedAt,
		UpdatedAt:        request.UpdatedAt,
	}
	if employee, err := s.employees.GetByID(ctx, request.EmployeeID); err == nil {
		view.EmployeeName = employee.FullName()
	}
	if permType, err := s.repo.GetTypeByID(ctx, request.PermissionTypeID); err == nil {
		view.PermissionTypeName = permType.Name
	}
	if request.ApprovedByUserID != nil {
		if user, err := s.users.FindByID(ctx, *request.ApprovedByUserID); err == nil {
			view.ApprovedByUserName = &user.FullName
		}
	}
	return view
}

func (s *PermissionService) notifySupervisor(ctx context.Context, employee *models.Employee, notification models.Notification, requestID string) {
	if employee.SupervisorID == nil {
		return
	}
	supervisor, err := s.employees.GetByID(ctx, *employee.SupervisorID)
	if err != nil || supervisor.UserID == nil {
		return
	}
	notification.UserID = *supervisor.UserID
	notification.Module = strPtr(models.AuditModulePermissions)
	notification.EntityType = strPtr("permission_request")
	notification.EntityID = &requestID
	s.effects.Notify(notification)
}

func (s *PermissionService) notifyEmployee(ctx context.Context, employeeID string, notification models.Notification, requestID string) {
	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil || employee.UserID == nil {
		return
	}
	notification.UserID = *employee.UserID
	notification.Module = strPtr(models.AuditModulePermissions)
	notification.EntityType = strPtr("permission_request")
	notification.EntityID = &requestID
	s.effects.Notify(notification)
}
