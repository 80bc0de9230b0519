package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/export"
	"github.com/qirllo/school-api/pkg/jobs"
	"github.com/qirllo/school-api/pkg/storage"
)

// JobTypeRenderReceipt renders the PDF receipt of a recorded payment.
const JobTypeRenderReceipt = "render_receipt"

// ReceiptJobPayload is the job payload for JobTypeRenderReceipt.
type ReceiptJobPayload struct {
	PaymentID string
}

// Export formats accepted by ExportBalances.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

type feeRepository interface {
	UpsertStructure(ctx context.Context, structure *models.FeeStructure) error
	ListStructures(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, error)
	FindStructure(ctx context.Context, filter models.FeeStructureFilter) (*models.FeeStructure, error)
	CreatePayment(ctx context.Context, payment *models.FeePayment) error
	FindPayment(ctx context.Context, id string) (*models.FeePayment, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, error)
	PaidByStudent(ctx context.Context, filter models.PaymentFilter) (map[string]float64, error)
	SetReceiptPath(ctx context.Context, id, path string) error
	ClearReceiptPaths(ctx context.Context, before time.Time) (int64, error)
}

type feeStudentRepository interface {
	studentDirectory
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type receiptStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type receiptSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (string, string, error)
}

// FeeServiceDeps bundles the collaborators of FeeService.
type FeeServiceDeps struct {
	Repo        feeRepository
	Students    feeStudentRepository
	Classes     classFinder
	Storage     receiptStore
	Signer      receiptSigner
	Queue       jobEnqueuer
	PDF         documentRenderer
	Metrics     *MetricsService
	Audit       auditRecorder
	Authz       Authorizer
	Defaults    SchoolDefaults
	SchoolName  string
	DownloadURL string
	Retention   time.Duration
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// FeeService manages fee structures, the payment ledger and balances.
type FeeService struct {
	repo        feeRepository
	students    feeStudentRepository
	classes     classFinder
	storage     receiptStore
	signer      receiptSigner
	queue       jobEnqueuer
	pdf         documentRenderer
	csv         *export.CSVExporter
	xlsx        *export.XLSXExporter
	metrics     *MetricsService
	audit       auditRecorder
	authz       Authorizer
	defaults    SchoolDefaults
	school      string
	downloadURL string
	retention   time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeeService constructs a FeeService.
func NewFeeService(deps FeeServiceDeps) *FeeService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.PDF == nil {
		deps.PDF = export.NewPDFExporter()
	}
	if deps.Retention <= 0 {
		deps.Retention = 90 * 24 * time.Hour
	}
	return &FeeService{
		repo:        deps.Repo,
		students:    deps.Students,
		classes:     deps.Classes,
		storage:     deps.Storage,
		signer:      deps.Signer,
		queue:       deps.Queue,
		pdf:         deps.PDF,
		csv:         export.NewCSVExporter(),
		xlsx:        export.NewXLSXExporter(),
		metrics:     deps.Metrics,
		audit:       deps.Audit,
		authz:       defaultAuthorizer(deps.Authz),
		defaults:    deps.Defaults,
		school:      deps.SchoolName,
		downloadURL: deps.DownloadURL,
		retention:   deps.Retention,
		validator:   deps.Validator,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// SetStructure creates or replaces the fee structure for a level and term.
func (s *FeeService) SetStructure(ctx context.Context, caller *models.JWTClaims, req models.FeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageFees); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid fee structure payload")
	}
	structure := &models.FeeStructure{
		ClassLevel:   req.ClassLevel,
		Term:         req.Term,
		AcademicYear: s.defaults.year(req.AcademicYear),
		Tuition:      req.Tuition,
		Books:        req.Books,
		Uniform:      req.Uniform,
		OtherFees:    req.OtherFees,
		Total:        req.Tuition + req.Books + req.Uniform + req.OtherFees,
	}
	if err := s.repo.UpsertStructure(ctx, structure); err != nil {
		return nil, internalError(err, "failed to save fee structure")
	}
	return structure, nil
}

// ListStructures returns fee structures, optionally narrowed by level and term.
func (s *FeeService) ListStructures(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, error) {
	structures, err := s.repo.ListStructures(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list fee structures")
	}
	return structures, nil
}

// RecordPayment appends a payment to the ledger and queues its receipt.
func (s *FeeService) RecordPayment(ctx context.Context, caller *models.JWTClaims, req models.RecordPaymentRequest) (*models.FeePayment, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageFees); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	student, err := s.student(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payment := &models.FeePayment{
		ID:            uuid.NewString(),
		StudentID:     student.ID,
		StudentName:   &student.FullName,
		ClassName:     student.ClassName,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Term:          req.Term,
		AcademicYear:  s.defaults.year(req.AcademicYear),
		Notes:         req.Notes,
		RecordedBy:    strPtr(caller.UserID),
		CreatedAt:     now,
	}
	payment.ReceiptNumber = ReceiptNumber(payment.ID, now)
	if req.ReceiptNumber != nil && strings.TrimSpace(*req.ReceiptNumber) != "" {
		payment.ReceiptNumber = strings.TrimSpace(*req.ReceiptNumber)
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, internalError(err, "failed to record payment")
	}
	s.metrics.RecordPayment(payment.Amount)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &caller.UserID,
		Action:     models.AuditActionCreate,
		Resource:   "fee_payments",
		ResourceID: &payment.ID,
	})

	if s.queue != nil {
		job := jobs.Job{Type: JobTypeRenderReceipt, Payload: ReceiptJobPayload{PaymentID: payment.ID}}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue receipt render", zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}
	return payment, nil
}

// ReceiptNumber builds the default receipt number for a payment.
func ReceiptNumber(paymentID string, at time.Time) string {
	short := strings.ReplaceAll(paymentID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("RCP-%s-%s", at.Format("20060102"), strings.ToUpper(short))
}

// ListPayments returns payments newest first. Parents see only their children.
func (s *FeeService) ListPayments(ctx context.Context, caller *models.JWTClaims, filter models.PaymentFilter) ([]models.FeePayment, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if caller.IsParent() {
		children, err := s.students.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to resolve children")
		}
		filter.StudentIDs = restrictTo(filter.StudentIDs, children)
	}
	payments, err := s.repo.ListPayments(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list payments")
	}
	return payments, nil
}

// Balance reports what a student owes for a term. The academic year is
// optional; without it the most recent structure and all payments for the
// term are used. Overpayment yields a negative balance.
func (s *FeeService) Balance(ctx context.Context, caller *models.JWTClaims, studentID, term, year string) (*models.FeeBalance, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(caller, policy.ActionViewBalance, policy.OwnerOf(student.ParentID)); err != nil {
		return nil, err
	}
	term = s.defaults.term(term)
	year = strings.TrimSpace(year)

	total, err := s.totalFor(ctx, s.levelOf(ctx, student), term, year)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, models.PaymentFilter{StudentIDs: []string{student.ID}, Term: term, AcademicYear: year})
	if err != nil {
		return nil, internalError(err, "failed to load payments")
	}
	var paid float64
	for _, p := range payments {
		paid += p.Amount
	}
	return &models.FeeBalance{
		StudentID:   student.ID,
		StudentName: student.FullName,
		ClassName:   deref(student.ClassName),
		Term:        term,
		TotalFees:   total,
		TotalPaid:   paid,
		Balance:     total - paid,
		Payments:    payments,
	}, nil
}

// AllBalances reports the balance of every student, optionally in one class.
func (s *FeeService) AllBalances(ctx context.Context, caller *models.JWTClaims, classID, term, year string) ([]models.BalanceRow, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageFees); err != nil {
		return nil, err
	}
	term = s.defaults.term(term)
	year = strings.TrimSpace(year)

	students, _, err := s.students.List(ctx, models.StudentFilter{ClassID: classID, PageSize: 1000})
	if err != nil {
		return nil, internalError(err, "failed to list students")
	}
	paid, err := s.repo.PaidByStudent(ctx, models.PaymentFilter{Term: term, AcademicYear: year})
	if err != nil {
		return nil, internalError(err, "failed to sum payments")
	}

	levels := make(map[string]models.ClassLevel)
	totals := make(map[models.ClassLevel]float64)
	rows := make([]models.BalanceRow, 0, len(students))
	for i := range students {
		student := &students[i]
		classKey := deref(student.ClassID)
		level, ok := levels[classKey]
		if !ok {
			level = s.levelOf(ctx, student)
			levels[classKey] = level
		}
		total, ok := totals[level]
		if !ok {
			if total, err = s.totalFor(ctx, level, term, year); err != nil {
				return nil, err
			}
			totals[level] = total
		}
		amount := paid[student.ID]
		rows = append(rows, models.BalanceRow{
			StudentID:       student.ID,
			StudentName:     student.FullName,
			AdmissionNumber: student.AdmissionNumber,
			ClassName:       deref(student.ClassName),
			TotalFees:       total,
			TotalPaid:       amount,
			Balance:         total - amount,
			Status:          BalanceStatus(total-amount, amount),
		})
	}
	return rows, nil
}

// BalanceStatus classifies a balance line.
func BalanceStatus(balance, paid float64) string {
	switch {
	case balance <= 0:
		return models.BalancePaid
	case paid > 0:
		return models.BalancePartial
	default:
		return models.BalanceUnpaid
	}
}

// ExportBalances renders AllBalances as csv, xlsx or pdf. It returns the
// document, its content type and a file name.
func (s *FeeService) ExportBalances(ctx context.Context, caller *models.JWTClaims, classID, term, year, format string) ([]byte, string, string, error) {
	rows, err := s.AllBalances(ctx, caller, classID, term, year)
	if err != nil {
		return nil, "", "", err
	}
	term = s.defaults.term(term)

	data := export.Dataset{Headers: []string{"Admission Number", "Student", "Class", "Total Fees", "Paid", "Balance", "Status"}}
	for _, row := range rows {
		data.Append(map[string]string{
			"Admission Number": row.AdmissionNumber,
			"Student":          row.StudentName,
			"Class":            row.ClassName,
			"Total Fees":       formatAmount(row.TotalFees),
			"Paid":             formatAmount(row.TotalPaid),
			"Balance":          formatAmount(row.Balance),
			"Status":           row.Status,
		})
	}

	name := "fee-balances-" + term
	var (
		out         []byte
		contentType string
	)
	switch strings.ToLower(format) {
	case "", FormatCSV:
		format, contentType = FormatCSV, "text/csv"
		out, err = s.csv.Render(data)
	case FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		out, err = s.xlsx.Render(data, "Balances")
	case FormatPDF:
		contentType = "application/pdf"
		out, err = s.pdf.RenderDocument(export.Document{Heading: s.school, Title: "Fee Balances: " + titleCase(term) + " Term", Table: &data})
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrBadRequest, "format must be csv, xlsx or pdf")
	}
	if err != nil {
		return nil, "", "", internalError(err, "failed to render balances")
	}
	return out, contentType, name + "." + strings.ToLower(format), nil
}

// HandleReceiptJob is the queue handler for JobTypeRenderReceipt.
func (s *FeeService) HandleReceiptJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ReceiptJobPayload)
	if !ok {
		s.logger.Error("invalid receipt payload", zap.String("job_id", job.ID))
		return nil
	}
	payment, err := s.repo.FindPayment(ctx, payload.PaymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	_, err = s.renderReceipt(ctx, payment)
	s.metrics.RecordJob(JobTypeRenderReceipt, err)
	return err
}

// ReceiptLink returns a signed download URL for a payment's receipt,
// rendering the receipt first when it has not been stored yet.
func (s *FeeService) ReceiptLink(ctx context.Context, caller *models.JWTClaims, paymentID string) (*models.ReceiptLink, error) {
	payment, err := s.repo.FindPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Payment not found")
		}
		return nil, internalError(err, "failed to load payment")
	}
	student, err := s.student(ctx, payment.StudentID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(caller, policy.ActionViewBalance, policy.OwnerOf(student.ParentID)); err != nil {
		return nil, err
	}

	path := deref(payment.ReceiptPath)
	if path == "" {
		if path, err = s.renderReceipt(ctx, payment); err != nil {
			return nil, internalError(err, "failed to render receipt")
		}
	}
	token, expiresAt, err := s.signer.Generate(payment.ID, path)
	if err != nil {
		return nil, internalError(err, "failed to sign receipt link")
	}
	return &models.ReceiptLink{
		PaymentID:     payment.ID,
		ReceiptNumber: payment.ReceiptNumber,
		URL:           s.downloadURL + "?token=" + url.QueryEscape(token),
		ExpiresAt:     expiresAt,
	}, nil
}

// DownloadReceipt resolves a signed token to the stored receipt PDF.
func (s *FeeService) DownloadReceipt(ctx context.Context, token string) ([]byte, string, error) {
	paymentID, path, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrExpiredToken) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Invalid download link")
	}
	data, err := s.storage.Read(path)
	if err != nil {
		s.logger.Warn("receipt file missing", zap.String("payment_id", paymentID), zap.String("path", path), zap.Error(err))
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "Receipt not found")
	}
	return data, "receipt-" + paymentID + ".pdf", nil
}

// CleanupReceipts deletes rendered receipts past retention. Receipts are
// rendered again on the next link request.
func (s *FeeService) CleanupReceipts(ctx context.Context) error {
	deleted, err := s.storage.CleanupOlderThan(s.retention)
	if err == nil {
		var cleared int64
		cleared, err = s.repo.ClearReceiptPaths(ctx, s.now().Add(-s.retention))
		s.logger.Info("receipt cleanup finished", zap.Int("files", len(deleted)), zap.Int64("payments", cleared))
	}
	s.metrics.RecordJob("receipt_cleanup", err)
	return err
}

func (s *FeeService) renderReceipt(ctx context.Context, payment *models.FeePayment) (string, error) {
	doc, err := s.pdf.RenderDocument(export.Document{
		Heading: s.school,
		Title:   "Payment Receipt",
		Fields: []export.Field{
			{Label: "Receipt Number", Value: payment.ReceiptNumber},
			{Label: "Date", Value: payment.CreatedAt.Format("02 Jan 2006")},
			{Label: "Student", Value: deref(payment.StudentName)},
			{Label: "Class", Value: deref(payment.ClassName)},
			{Label: "Term", Value: titleCase(payment.Term)},
			{Label: "Academic Year", Value: payment.AcademicYear},
			{Label: "Payment Method", Value: strings.ToUpper(payment.PaymentMethod)},
			{Label: "Amount", Value: formatAmount(payment.Amount)},
		},
		Footnote: deref(payment.Notes),
	})
	if err != nil {
		return "", err
	}
	path, err := s.storage.Save(fmt.Sprintf("%s/%s.pdf", payment.CreatedAt.Format("2006/01"), payment.ID), doc)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetReceiptPath(ctx, payment.ID, path); err != nil {
		return "", err
	}
	payment.ReceiptPath = &path
	return path, nil
}

func (s *FeeService) totalFor(ctx context.Context, level models.ClassLevel, term, year string) (float64, error) {
	structure, err := s.repo.FindStructure(ctx, models.FeeStructureFilter{ClassLevel: string(level), Term: term, AcademicYear: year})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults.feeTotal(), nil
		}
		return 0, internalError(err, "failed to load fee structure")
	}
	return structure.Total, nil
}

func (s *FeeService) levelOf(ctx context.Context, student *models.Student) models.ClassLevel {
	if student.ClassID == nil || s.classes == nil {
		return models.LevelJSS1
	}
	class, err := s.classes.FindByID(ctx, *student.ClassID)
	if err != nil {
		return models.LevelJSS1
	}
	return class.Level
}

func (s *FeeService) student(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
