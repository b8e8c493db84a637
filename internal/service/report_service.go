package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
	"github.com/sigep-hr/sigep-api/pkg/export"
)

// Report output formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

// ReportFile is a rendered export ready for download.
type ReportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReportService renders request listings as CSV or PDF downloads for HR.
type ReportService struct {
	vacations   *VacationService
	permissions *PermissionService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(vacations *VacationService, permissions *PermissionService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		vacations:   vacations,
		permissions: permissions,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// VacationReport exports vacation requests matching the query.
func (s *ReportService) VacationReport(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) (*ReportFile, error) {
	listQuery, err := vacationQueryFromReport(query)
	if err != nil {
		return nil, err
	}
	requests, err := s.vacations.List(ctx, listQuery, actor)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"Empleado", "Inicio", "Fin", "Días", "Estado", "Aprobado por"},
	}
	for _, req := range requests {
		approver := ""
		if req.ApprovedByUserName != nil {
			approver = *req.ApprovedByUserName
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Empleado":     req.EmployeeName,
			"Inicio":       req.StartDate.Format(dateLayout),
			"Fin":          req.EndDate.Format(dateLayout),
			"Días":         fmt.Sprintf("%d", req.RequestedDays),
			"Estado":       string(req.Status),
			"Aprobado por": approver,
		})
	}
	return s.render(dataset, "Reporte de vacaciones", "vacaciones", query.Format)
}

// PermissionReport exports permission requests matching the query.
func (s *ReportService) PermissionReport(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) (*ReportFile, error) {
	listQuery, err := permissionQueryFromReport(query)
	if err != nil {
		return nil, err
	}
	requests, err := s.permissions.List(ctx, listQuery, actor)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"Empleado", "Tipo", "Inicio", "Fin", "Duración", "Estado"},
	}
	for _, req := range requests {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Empleado": req.EmployeeName,
			"Tipo":     req.PermissionTypeName,
			"Inicio":   req.StartDate.Format(dateLayout),
			"Fin":      req.EndDate.Format(dateLayout),
			"Duración": req.DurationDays.String(),
			"Estado":   string(req.Status),
		})
	}
	return s.render(dataset, "Reporte de permisos", "permisos", query.Format)
}

func (s *ReportService) render(dataset export.Dataset, title, prefix, format string) (*ReportFile, error) {
	stamp := time.Now().UTC().Format("20060102")
	switch strings.ToLower(format) {
	case ReportFormatPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, wrapInternal(err, "failed to render pdf report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("%s_%s.pdf", prefix, stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	case ReportFormatCSV, "":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, wrapInternal(err, "failed to render csv report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("%s_%s.csv", prefix, stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func vacationQueryFromReport(query dto.ReportQuery) (dto.VacationRequestQuery, error) {
	out := dto.VacationRequestQuery{
		EmployeeID: query.EmployeeID,
		Year:       query.Year,
		Limit:      200,
	}
	if query.Status != "" {
		status := models.RequestStatus(query.Status)
		if !status.Valid() {
			return out, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
		}
		out.Status = []models.RequestStatus{status}
	}
	from, to, err := parseReportRange(query.From, query.To)
	if err != nil {
		return out, err
	}
	out.From = from
	out.To = to
	return out, nil
}

func permissionQueryFromReport(query dto.ReportQuery) (dto.PermissionRequestQuery, error) {
	out := dto.PermissionRequestQuery{
		EmployeeID: query.EmployeeID,
		Limit:      200,
	}
	if query.Status != "" {
		status := models.RequestStatus(query.Status)
		if !status.Valid() {
			return out, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
		}
		out.Status = []models.RequestStatus{status}
	}
	from, to, err := parseReportRange(query.From, query.To)
	if err != nil {
		return out, err
	}
	out.From = from
	out.To = to
	return out, nil
}

func parseReportRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromRaw != "" {
		parsed, err := parseDate(fromRaw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must use YYYY-MM-DD")
		}
		from = &parsed
	}
	if toRaw != "" {
		parsed, err := parseDate(toRaw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must use YYYY-MM-DD")
		}
		to = &parsed
	}
	return from, to, nil
}
