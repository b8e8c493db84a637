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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	"github.com/sigep-hr/sigep-api/pkg/config"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

type vacationBalanceStore interface {
	Get(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (*models.VacationBalance, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, balance *models.VacationBalance) error
	UpdateCountersTx(ctx context.Context, tx *sqlx.Tx, id string, usedDays, pendingDays decimal.Decimal) error
	ListByEmployee(ctx context.Context, employeeID string) ([]models.VacationBalance, error)
	ExistsTx(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (bool, error)
}

type vacationRequestStore interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.VacationRequest) error
	GetByID(ctx context.Context, id string) (*models.VacationRequest, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.VacationRequest, error)
	HasOverlapTx(ctx context.Context, tx *sqlx.Tx, employeeID string, start, end time.Time, excludeID string) (bool, error)
	UpdateDatesTx(ctx context.Context, tx *sqlx.Tx, id string, start, end time.Time, requestedDays int, reason *string) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, params repository.ReviewParams) error
	MarkInReviewTx(ctx context.Context, tx *sqlx.Tx, id string) error
	CancelTx(ctx context.Context, tx *sqlx.Tx, id string, fromStatus models.RequestStatus, comments *string) error
	List(ctx context.Context, filter models.VacationRequestFilter) ([]models.VacationRequest, error)
	ListPendingForEmployees(ctx context.Context, employeeIDs []string) ([]models.VacationRequest, error)
	AddHistoryTx(ctx context.Context, tx *sqlx.Tx, entry *models.VacationRequestHistory) error
	History(ctx context.Context, requestID string) ([]models.VacationRequestHistory, error)
}

// VacationService coordinates the vacation request lifecycle against the
// day ledger. Every state change and its ledger counterpart commit in one
// transaction; audit and notifications run after commit.
type VacationService struct {
	db        txBeginner
	balances  vacationBalanceStore
	requests  vacationRequestStore
	employees employeeDirectory
	users     userDirectory
	effects   effectEmitter
	metrics   *MetricsService
	cfg       config.VacationConfig
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewVacationService constructs the service. metrics may be nil.
func NewVacationService(db txBeginner, balances vacationBalanceStore, requests vacationRequestStore, employees employeeDirectory, users userDirectory, effects effectEmitter, metrics *MetricsService, cfg config.VacationConfig, logger *zap.Logger) *VacationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VacationService{
		db:        db,
		balances:  balances,
		requests:  requests,
		employees: employees,
		users:     users,
		effects:   effects,
		metrics:   metrics,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Create opens a new vacation request, reserving its business days on the
// balance of the start date's year.
func (s *VacationService) Create(ctx context.Context, req dto.CreateVacationRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vacation request payload")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if start.Before(truncateToDate(time.Now().UTC())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date cannot be in the past")
	}
	if !s.canActFor(actor, req.EmployeeID) {
		return nil, appErrors.ErrForbidden
	}
	requestedDays := BusinessDaysBetween(start, end)
	if requestedDays == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range contains no business days")
	}

	employee, err := s.loadEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !employee.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee is inactive")
	}

	request := &models.VacationRequest{
		EmployeeID:    req.EmployeeID,
		StartDate:     start,
		EndDate:       end,
		RequestedDays: requestedDays,
		Reason:        optionalString(req.Reason),
		Status:        models.StatusPendiente,
	}

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		balance, err := s.lockOrCreateBalance(ctx, tx, employee, start.Year())
		if err != nil {
			return err
		}
		overlap, err := s.requests.HasOverlapTx(ctx, tx, req.EmployeeID, start, end, "")
		if err != nil {
			return wrapInternal(err, "failed to check overlapping requests")
		}
		if overlap {
			return appErrors.ErrOverlap
		}
		days := decimal.NewFromInt(int64(requestedDays))
		if balance.AvailableDays().LessThan(days) {
			return appErrors.Clone(appErrors.ErrInsufficientBalance,
				fmt.Sprintf("requested %d days but only %s available", requestedDays, balance.AvailableDays()))
		}
		if err := s.balances.UpdateCountersTx(ctx, tx, balance.ID, balance.UsedDays, balance.PendingDays.Add(days)); err != nil {
			return wrapInternal(err, "failed to reserve vacation days")
		}
		if err := s.requests.CreateTx(ctx, tx, request); err != nil {
			return wrapInternal(err, "failed to create vacation request")
		}
		return s.addHistory(ctx, tx, request.ID, models.StatusPendiente, request.Reason, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CountRequestOpened("vacation")
	payload, _ := json.Marshal(request)
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCreate,
		Module:     models.AuditModuleVacations,
		EntityType: strPtr("vacation_request"),
		EntityID:   &request.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "vacation-service",
	})
	s.notifySupervisor(ctx, employee, models.Notification{
		Title:   "Nueva solicitud de vacaciones",
		Message: fmt.Sprintf("%s solicitó vacaciones del %s al %s (%d días)", employee.FullName(), start.Format(dateLayout), end.Format(dateLayout), requestedDays),
		Type:    models.NotificationInfo,
	}, request.ID)

	return s.buildView(ctx, request), nil
}

// Update rewrites the range of a still-pending request. Within the same
// balance year the reservation moves by the day difference; a range landing
// in another year releases the old year's pending days and reserves the new
// year's in the same transaction.
func (s *VacationService) Update(ctx context.Context, id string, req dto.UpdateVacationRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vacation request payload")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	newDays := BusinessDaysBetween(start, end)
	if newDays == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range contains no business days")
	}

	var request *models.VacationRequest
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		request, err = s.lockRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if !s.canActFor(actor, request.EmployeeID) {
			return appErrors.ErrForbidden
		}
		if request.Status != models.StatusPendiente {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending requests can be edited")
		}
		overlap, err := s.requests.HasOverlapTx(ctx, tx, request.EmployeeID, start, end, request.ID)
		if err != nil {
			return wrapInternal(err, "failed to check overlapping requests")
		}
		if overlap {
			return appErrors.ErrOverlap
		}
		oldYear := request.StartDate.Year()
		newYear := start.Year()
		oldDays := decimal.NewFromInt(int64(request.RequestedDays))
		days := decimal.NewFromInt(int64(newDays))
		if oldYear == newYear {
			balance, err := s.lockBalance(ctx, tx, request.EmployeeID, oldYear)
			if err != nil {
				return err
			}
			delta := days.Sub(oldDays)
			if delta.IsPositive() && balance.AvailableDays().LessThan(delta) {
				return appErrors.Clone(appErrors.ErrInsufficientBalance,
					fmt.Sprintf("extending by %s days exceeds the available balance", delta))
			}
			if err := s.balances.UpdateCountersTx(ctx, tx, balance.ID, balance.UsedDays, balance.PendingDays.Add(delta)); err != nil {
				return wrapInternal(err, "failed to adjust vacation reservation")
			}
		} else {
			employee, err := s.loadEmployee(ctx, request.EmployeeID)
			if err != nil {
				return err
			}
			// Lock both year rows in ascending year order so two edits
			// moving in opposite directions cannot deadlock.
			var oldBalance, newBalance *models.VacationBalance
			years := []int{oldYear, newYear}
			if newYear < oldYear {
				years = []int{newYear, oldYear}
			}
			for _, year := range years {
				if year == oldYear {
					oldBalance, err = s.lockBalance(ctx, tx, request.EmployeeID, year)
				} else {
					newBalance, err = s.lockOrCreateBalance(ctx, tx, employee, year)
				}
				if err != nil {
					return err
				}
			}
			if newBalance.AvailableDays().LessThan(days) {
				return appErrors.Clone(appErrors.ErrInsufficientBalance,
					fmt.Sprintf("requested %d days but only %s available in %d", newDays, newBalance.AvailableDays(), newYear))
			}
			if err := s.balances.UpdateCountersTx(ctx, tx, oldBalance.ID, oldBalance.UsedDays, oldBalance.PendingDays.Sub(oldDays)); err != nil {
				return wrapInternal(err, "failed to release the old year's reservation")
			}
			if err := s.balances.UpdateCountersTx(ctx, tx, newBalance.ID, newBalance.UsedDays, newBalance.PendingDays.Add(days)); err != nil {
				return wrapInternal(err, "failed to reserve the new year's days")
			}
		}
		reason := optionalString(req.Reason)
		if err := s.requests.UpdateDatesTx(ctx, tx, request.ID, start, end, newDays, reason); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer pending")
			}
			return wrapInternal(err, "failed to update vacation request")
		}
		request.StartDate = start
		request.EndDate = end
		request.RequestedDays = newDays
		request.Reason = reason
		return s.addHistory(ctx, tx, request.ID, request.Status, strPtr("Solicitud modificada"), actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(request)
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionUpdate,
		Module:     models.AuditModuleVacations,
		EntityType: strPtr("vacation_request"),
		EntityID:   &request.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "vacation-service",
	})
	return s.buildView(ctx, request), nil
}

// Approve moves a reviewable request to Aprobada, converting its pending
// reservation into used days.
func (s *VacationService) Approve(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	return s.decide(ctx, id, models.StatusAprobada, req.Comments, actor)
}

// Reject moves a reviewable request to Rechazada, releasing its pending
// reservation. A non-empty reason is mandatory and checked before any write.
func (s *VacationService) Reject(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if strings.TrimSpace(req.Comments) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.decide(ctx, id, models.StatusRechazada, req.Comments, actor)
}

func (s *VacationService) decide(ctx context.Context, id string, outcome models.RequestStatus, comments string, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var request *models.VacationRequest
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
		balance, err := s.lockBalance(ctx, tx, request.EmployeeID, request.StartDate.Year())
		if err != nil {
			return err
		}
		days := decimal.NewFromInt(int64(request.RequestedDays))
		if balance.PendingDays.LessThan(days) {
			return wrapInternal(fmt.Errorf("pending %s < requested %s", balance.PendingDays, days), "balance ledger out of sync")
		}
		pending := balance.PendingDays.Sub(days)
		used := balance.UsedDays
		if outcome == models.StatusAprobada {
			used = used.Add(days)
		}
		if err := s.balances.UpdateCountersTx(ctx, tx, balance.ID, used, pending); err != nil {
			return wrapInternal(err, "failed to settle vacation reservation")
		}
		err = s.requests.UpdateStatusTx(ctx, tx, repository.ReviewParams{
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
		return s.addHistory(ctx, tx, request.ID, outcome, trimmed, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	oldStatus := request.Status
	request.Status = outcome
	request.ApprovedByUserID = &actor.UserID
	request.ApprovedAt = &now
	request.ApproverComments = trimmed
	s.metrics.CountDecision("vacation", strings.ToLower(string(outcome)))

	action := models.AuditActionApprove
	title := "Solicitud de vacaciones aprobada"
	severity := models.NotificationSuccess
	if outcome == models.StatusRechazada {
		action = models.AuditActionReject
		title = "Solicitud de vacaciones rechazada"
		severity = models.NotificationWarning
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"status": oldStatus})
	newPayload, _ := json.Marshal(map[string]interface{}{"status": outcome, "comments": comments})
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Module:     models.AuditModuleVacations,
		EntityType: strPtr("vacation_request"),
		EntityID:   &request.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  "system",
		UserAgent:  "vacation-service",
	})
	s.notifyEmployee(ctx, request.EmployeeID, models.Notification{
		Title:   title,
		Message: fmt.Sprintf("Tu solicitud del %s al %s fue %s", request.StartDate.Format(dateLayout), request.EndDate.Format(dateLayout), strings.ToLower(string(outcome))),
		Type:    severity,
	}, request.ID)

	return s.buildView(ctx, request), nil
}

// StartReview claims a pending request for review, moving it to EnRevision.
// The claim does not touch the ledger; the reservation stays pending until
// the decision.
func (s *VacationService) StartReview(ctx context.Context, id string, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var request *models.VacationRequest

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
		if err := s.requests.MarkInReviewTx(ctx, tx, request.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "request was claimed concurrently")
			}
			return wrapInternal(err, "failed to mark request in review")
		}
		return s.addHistory(ctx, tx, request.ID, models.StatusEnRevision, nil, actor.UserID)
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
		Module:     models.AuditModuleVacations,
		EntityType: strPtr("vacation_request"),
		EntityID:   &request.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  "system",
		UserAgent:  "vacation-service",
	})
	return s.buildView(ctx, request), nil
}

// Cancel withdraws a request. Pending requests release their reservation;
// approved requests reverse used days only while the start date is still in
// the future.
func (s *VacationService) Cancel(ctx context.Context, id string, req dto.CancelRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var request *models.VacationRequest
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
		balance, err := s.lockBalance(ctx, tx, request.EmployeeID, request.StartDate.Year())
		if err != nil {
			return err
		}
		days := decimal.NewFromInt(int64(request.RequestedDays))
		switch {
		case request.Status.Reviewable():
			if err := s.balances.UpdateCountersTx(ctx, tx, balance.ID, balance.UsedDays, balance.PendingDays.Sub(days)); err != nil {
				return wrapInternal(err, "failed to release vacation reservation")
			}
		case request.Status == models.StatusAprobada:
			if !request.StartDate.After(truncateToDate(time.Now().UTC())) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "approved vacations that already started cannot be cancelled")
			}
			if err := s.balances.UpdateCountersTx(ctx, tx, balance.ID, balance.UsedDays.Sub(days), balance.PendingDays); err != nil {
				return wrapInternal(err, "failed to reverse used vacation days")
			}
		default:
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("request in status %s cannot be cancelled", request.Status))
		}
		if err := s.requests.CancelTx(ctx, tx, request.ID, request.Status, reason); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "request changed concurrently")
			}
			return wrapInternal(err, "failed to cancel vacation request")
		}
		return s.addHistory(ctx, tx, request.ID, models.StatusCancelada, reason, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	oldStatus := request.Status
	request.Status = models.StatusCancelada
	s.metrics.CountDecision("vacation", strings.ToLower(string(models.StatusCancelada)))
	oldPayload, _ := json.Marshal(map[string]interface{}{"status": oldStatus})
	newPayload, _ := json.Marshal(map[string]interface{}{"status": models.StatusCancelada})
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCancel,
		Module:     models.AuditModuleVacations,
		EntityType: strPtr("vacation_request"),
		EntityID:   &request.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  "system",
		UserAgent:  "vacation-service",
	})
	s.notifyEmployee(ctx, request.EmployeeID, models.Notification{
		Title:   "Solicitud de vacaciones cancelada",
		Message: fmt.Sprintf("La solicitud del %s al %s fue cancelada", request.StartDate.Format(dateLayout), request.EndDate.Format(dateLayout)),
		Type:    models.NotificationInfo,
	}, request.ID)

	return s.buildView(ctx, request), nil
}

// Get returns one request with actor scope enforced.
func (s *VacationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vacation request not found")
		}
		return nil, wrapInternal(err, "failed to load vacation request")
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

// List returns requests visible to the actor.
func (s *VacationService) List(ctx context.Context, query dto.VacationRequestQuery, actor *models.JWTClaims) ([]dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.VacationRequestFilter{
		EmployeeID:    query.EmployeeID,
		Status:        query.Status,
		StartDateFrom: query.From,
		StartDateTo:   query.To,
		Year:          query.Year,
		Limit:         query.Limit,
		Offset:        query.Offset,
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
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, wrapInternal(err, "failed to list vacation requests")
	}
	views := make([]dto.VacationRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, *s.buildView(ctx, &requests[i]))
	}
	return views, nil
}

// PendingForApprover returns the reviewable backlog for the actor's scope.
func (s *VacationService) PendingForApprover(ctx context.Context, actor *models.JWTClaims) ([]dto.VacationRequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var requests []models.VacationRequest
	var err error
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		requests, err = s.requests.List(ctx, models.VacationRequestFilter{
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
		requests, err = s.requests.ListPendingForEmployees(ctx, ids)
	default:
		return nil, appErrors.ErrForbidden
	}
	if err != nil {
		return nil, wrapInternal(err, "failed to list pending vacation requests")
	}
	views := make([]dto.VacationRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, *s.buildView(ctx, &requests[i]))
	}
	return views, nil
}

// History returns the status trail of one request.
func (s *VacationService) History(ctx context.Context, requestID string, actor *models.JWTClaims) ([]dto.VacationHistoryView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vacation request not found")
		}
		return nil, wrapInternal(err, "failed to load vacation request")
	}
	ok, err := s.canView(ctx, actor, request.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.requests.History(ctx, requestID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load request history")
	}
	views := make([]dto.VacationHistoryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, dto.VacationHistoryView{
			ID:                entry.ID,
			Status:            entry.Status,
			Comments:          entry.Comments,
			ChangedByUserName: s.userName(ctx, entry.ChangedByUserID),
			CreatedAt:         entry.CreatedAt,
		})
	}
	return views, nil
}

// GetBalance returns the ledger of one employee and year. When no row
// exists yet the view is derived from the employee's entitlement without
// persisting anything.
func (s *VacationService) GetBalance(ctx context.Context, employeeID string, year int, actor *models.JWTClaims) (*dto.VacationBalanceView, error) {
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
	balance, err := s.balances.Get(ctx, employeeID, year)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, wrapInternal(err, "failed to load vacation balance")
		}
		employee, lerr := s.loadEmployee(ctx, employeeID)
		if lerr != nil {
			return nil, lerr
		}
		balance = &models.VacationBalance{
			EmployeeID:     employeeID,
			Year:           year,
			TotalDays:      decimal.NewFromInt(int64(employee.VacationDaysPerYear)),
			ExpirationDate: endOfYear(year),
		}
	}
	return balanceView(balance), nil
}

// BalanceHistory returns every balance year of one employee, newest first.
func (s *VacationService) BalanceHistory(ctx context.Context, employeeID string, actor *models.JWTClaims) ([]dto.VacationBalanceView, error) {
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
	balances, err := s.balances.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, wrapInternal(err, "failed to list vacation balances")
	}
	views := make([]dto.VacationBalanceView, 0, len(balances))
	for i := range balances {
		views = append(views, *balanceView(&balances[i]))
	}
	return views, nil
}

// InitializeBalance explicitly opens the ledger year for one employee,
// carrying over up to the configured maximum of unspent days from the
// previous year. Initializing twice conflicts.
func (s *VacationService) InitializeBalance(ctx context.Context, employeeID string, year int, actor *models.JWTClaims) (*dto.VacationBalanceView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleHR {
		return nil, appErrors.ErrForbidden
	}
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	employee, err := s.loadEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	balance := &models.VacationBalance{
		EmployeeID:     employeeID,
		Year:           year,
		ExpirationDate: endOfYear(year),
	}
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		exists, err := s.balances.ExistsTx(ctx, tx, employeeID, year)
		if err != nil {
			return wrapInternal(err, "failed to check existing balance")
		}
		if exists {
			return appErrors.ErrBalanceExists
		}
		carried := decimal.Zero
		previous, err := s.balances.GetForUpdateTx(ctx, tx, employeeID, year-1)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return wrapInternal(err, "failed to load previous balance")
		}
		if err == nil {
			carried = previous.AvailableDays()
			capDays := decimal.NewFromInt(int64(s.cfg.CarryOverMaxDays))
			if carried.GreaterThan(capDays) {
				carried = capDays
			}
			if carried.IsNegative() {
				carried = decimal.Zero
			}
		}
		balance.CarriedOverDays = carried
		balance.TotalDays = decimal.NewFromInt(int64(employee.VacationDaysPerYear)).Add(carried)
		return s.balances.CreateTx(ctx, tx, balance)
	})
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(balance)
	s.effects.EmitAudit(models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionInitialize,
		Module:     models.AuditModuleVacations,
		EntityType: strPtr("vacation_balance"),
		EntityID:   &balance.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "vacation-service",
	})
	return balanceView(balance), nil
}

func (s *VacationService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
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

func (s *VacationService) lockRequest(ctx context.Context, tx *sqlx.Tx, id string) (*models.VacationRequest, error) {
	request, err := s.requests.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vacation request not found")
		}
		return nil, wrapInternal(err, "failed to lock vacation request")
	}
	return request, nil
}

func (s *VacationService) lockBalance(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (*models.VacationBalance, error) {
	balance, err := s.balances.GetForUpdateTx(ctx, tx, employeeID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vacation balance not found")
		}
		return nil, wrapInternal(err, "failed to lock vacation balance")
	}
	return balance, nil
}

// lockOrCreateBalance returns the locked ledger row for the year, creating
// it from the employee's entitlement on first use. Balances created this
// way never carry over days; that requires explicit initialization.
func (s *VacationService) lockOrCreateBalance(ctx context.Context, tx *sqlx.Tx, employee *models.Employee, year int) (*models.VacationBalance, error) {
	balance, err := s.balances.GetForUpdateTx(ctx, tx, employee.ID, year)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapInternal(err, "failed to lock vacation balance")
	}
	balance = &models.VacationBalance{
		EmployeeID:     employee.ID,
		Year:           year,
		TotalDays:      decimal.NewFromInt(int64(employee.VacationDaysPerYear)),
		ExpirationDate: endOfYear(year),
	}
	if err := s.balances.CreateTx(ctx, tx, balance); err != nil {
		return nil, wrapInternal(err, "failed to create vacation balance")
	}
	return balance, nil
}

func (s *VacationService) addHistory(ctx context.Context, tx *sqlx.Tx, requestID string, status models.RequestStatus, comments *string, userID string) error {
	entry := &models.VacationRequestHistory{
		VacationRequestID: requestID,
		Status:            status,
		Comments:          comments,
		ChangedByUserID:   userID,
	}
	if err := s.requests.AddHistoryTx(ctx, tx, entry); err != nil {
		return wrapInternal(err, "failed to record request history")
	}
	return nil
}

func (s *VacationService) loadEmployee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.employees.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, wrapInternal(err, "failed to load employee")
	}
	return employee, nil
}

// canActFor reports whether the actor may create or withdraw requests for
// the employee. Only HR and admins act on behalf of others.
func (s *VacationService) canActFor(actor *models.JWTClaims, employeeID string) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		return true
	default:
		return actor.EmployeeID != "" && actor.EmployeeID == employeeID
	}
}

// canView extends canActFor with the supervisor's read access to direct
// reports.
func (s *VacationService) canView(ctx context.Context, actor *models.JWTClaims, employeeID string) (bool, error) {
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

// authorizeReviewer allows HR, admins and the employee's direct supervisor
// to decide; nobody reviews their own request.
func (s *VacationService) authorizeReviewer(ctx context.Context, actor *models.JWTClaims, employeeID string) error {
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

func (s *VacationService) buildView(ctx context.Context, request *models.VacationRequest) *dto.VacationRequestView {
	view := &dto.VacationRequestView{
		ID:               request.ID,
		EmployeeID:       request.EmployeeID,
		StartDate:        request.StartDate,
		EndDate:          request.EndDate,
		RequestedDays:    request.RequestedDays,
		Reason:           request.Reason,
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
	if request.ApprovedByUserID != nil {
		if name := s.userName(ctx, *request.ApprovedByUserID); name != "" {
			view.ApprovedByUserName = &name
		}
	}
	return view
}

func (s *VacationService) userName(ctx context.Context, userID string) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.FullName
}

// notifySupervisor addresses the employee's direct supervisor, silently
// skipping when there is none or the supervisor has no account.
func (s *VacationService) notifySupervisor(ctx context.Context, employee *models.Employee, notification models.Notification, requestID string) {
	if employee.SupervisorID == nil {
		return
	}
	supervisor, err := s.employees.GetByID(ctx, *employee.SupervisorID)
	if err != nil || supervisor.UserID == nil {
		return
	}
	notification.UserID = *supervisor.UserID
	notification.Module = strPtr(models.AuditModuleVacations)
	notification.EntityType = strPtr("vacation_request")
	notification.EntityID = &requestID
	s.effects.Notify(notification)
}

func (s *VacationService) notifyEmployee(ctx context.Context, employeeID string, notification models.Notification, requestID string) {
	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil || employee.UserID == nil {
		return
	}
	notification.UserID = *employee.UserID
	notification.Module = strPtr(models.AuditModuleVacations)
	notification.EntityType = strPtr("vacation_request")
	notification.EntityID = &requestID
	s.effects.Notify(notification)
}

func balanceView(balance *models.VacationBalance) *dto.VacationBalanceView {
	return &dto.VacationBalanceView{
		ID:              balance.ID,
		EmployeeID:      balance.EmployeeID,
		Year:            balance.Year,
		TotalDays:       balance.TotalDays,
		UsedDays:        balance.UsedDays,
		PendingDays:     balance.PendingDays,
		AvailableDays:   balance.AvailableDays(),
		CarriedOverDays: balance.CarriedOverDays,
		ExpirationDate:  balance.ExpirationDate,
	}
}

func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := parseDate(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must use YYYY-MM-DD")
	}
	end, err := parseDate(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must use YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date cannot precede start_date")
	}
	return start, end, nil
}

func endOfYear(year int) time.Time {
	return time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
}

func wrapInternal(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func strPtr(value string) *string {
	return &value
}
