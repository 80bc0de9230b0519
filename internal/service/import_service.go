package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	"github.com/qirllo/school-api/internal/repository"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/export"
)

// Importer names.
const (
	ImportStudents = "students"
	ImportParents  = "parents"
	ImportPayments = "payments"
)

const defaultParentPassword = "parent123"

type importStudentRepository interface {
	FindByAdmissionNumber(ctx context.Context, admission string) (*models.Student, error)
	ExistsByAdmissionNumber(ctx context.Context, admission string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	LinkParent(ctx context.Context, parentID string, admissionNumbers []string) (int64, error)
}

type importClassRepository interface {
	FindByName(ctx context.Context, name string) (*models.Class, error)
	FindByLevel(ctx context.Context, level models.ClassLevel) (*models.Class, error)
}

type importUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type paymentRecorder interface {
	RecordPayment(ctx context.Context, caller *models.JWTClaims, req models.RecordPaymentRequest) (*models.FeePayment, error)
}

type classCreator interface {
	Create(ctx context.Context, caller *models.JWTClaims, req models.CreateClassRequest) (*models.Class, error)
}

type structureSetter interface {
	SetStructure(ctx context.Context, caller *models.JWTClaims, req models.FeeStructureRequest) (*models.FeeStructure, error)
}

// ImportServiceDeps groups ImportService collaborators.
type ImportServiceDeps struct {
	Students   importStudentRepository
	Classes    importClassRepository
	Users      importUserRepository
	Payments   paymentRecorder
	ClassSetup classCreator
	Structures structureSetter
	Cache      *CacheService
	XLSX       *export.XLSXExporter
	Metrics    *MetricsService
	Audit      auditRecorder
	Authz      Authorizer
	Defaults   SchoolDefaults
	Logger     *zap.Logger
}

// ImportService loads students, parents and payments from CSV uploads, and
// classes with fee structures from XLSX workbooks. Each row is processed on
// its own; failures are reported as "Row N: reason" with the header counted
// as row 1.
type ImportService struct {
	students   importStudentRepository
	classes    importClassRepository
	users      importUserRepository
	payments   paymentRecorder
	classSetup classCreator
	structures structureSetter
	cache      *CacheService
	xlsx       *export.XLSXExporter
	metrics    *MetricsService
	audit      auditRecorder
	authz      Authorizer
	defaults   SchoolDefaults
	logger     *zap.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(deps ImportServiceDeps) *ImportService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.XLSX == nil {
		deps.XLSX = export.NewXLSXExporter()
	}
	return &ImportService{
		students:   deps.Students,
		classes:    deps.Classes,
		users:      deps.Users,
		payments:   deps.Payments,
		classSetup: deps.ClassSetup,
		structures: deps.Structures,
		cache:      deps.Cache,
		xlsx:       deps.XLSX,
		metrics:    deps.Metrics,
		audit:      deps.Audit,
		authz:      defaultAuthorizer(deps.Authz),
		defaults:   deps.Defaults,
		logger:     deps.Logger,
	}
}

type csvRow struct {
	num    int
	values map[string]string
}

func (r csvRow) get(name string) string {
	return strings.TrimSpace(r.values[name])
}

type rowHandler func(ctx context.Context, caller *models.JWTClaims, row csvRow) error

// Import runs the named importer over a CSV document.
func (s *ImportService) Import(ctx context.Context, caller *models.JWTClaims, kind, filename string, src io.Reader) (*models.ImportResult, error) {
	if err := s.authz.Authorize(caller, policy.ActionImport); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "File must be a CSV")
	}

	var (
		handle rowHandler
		format string
	)
	switch kind {
	case ImportStudents:
		handle, format = s.importStudent, "Successfully created %d students"
	case ImportParents:
		handle, format = s.importParent, "Successfully created %d parent accounts"
	case ImportPayments:
		handle, format = s.importPayment, "Successfully recorded %d payments"
	default:
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "unknown importer "+kind)
	}

	result := &models.ImportResult{Errors: make([]string, 0)}
	err := readRows(src, func(row csvRow, rowErr error) {
		if rowErr == nil {
			rowErr = handle(ctx, caller, row)
		}
		if rowErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", row.num, rowErr.Error()))
			return
		}
		result.Created++
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "unable to read CSV file")
	}
	result.Message = fmt.Sprintf(format, result.Created)

	if kind == ImportStudents && result.Created > 0 {
		_ = s.cache.Invalidate(ctx, cacheKey(cacheKeyClasses, "*"))
	}

	s.metrics.RecordImport(kind, result.Created, len(result.Errors))
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:   &caller.UserID,
		Action:   models.AuditActionImport,
		Resource: kind,
		Payload:  importPayload(filename, result),
	})
	s.logger.Info("csv import finished", zap.String("importer", kind), zap.Int("created", result.Created), zap.Int("failed", len(result.Errors)))
	return result, nil
}

func importPayload(filename string, result *models.ImportResult) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"filename": filename,
		"created":  result.Created,
		"failed":   len(result.Errors),
	})
	return payload
}

// readRows streams data rows keyed by lower-cased header. Malformed rows are
// passed with a non-nil error and reading continues.
func readRows(src io.Reader, fn func(row csvRow, err error)) error {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	for num := 2; ; num++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		row := csvRow{num: num, values: make(map[string]string, len(header))}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				fn(row, parseErr.Err)
				continue
			}
			return err
		}
		for i, name := range header {
			if i < len(record) {
				row.values[name] = record[i]
			}
		}
		fn(row, nil)
	}
}

func (s *ImportService) importStudent(ctx context.Context, _ *models.JWTClaims, row csvRow) error {
	fullName := row.get("full_name")
	admission := row.get("admission_number")
	if fullName == "" || admission == "" {
		return errors.New("Missing required fields (full_name or admission_number)")
	}
	exists, err := s.students.ExistsByAdmissionNumber(ctx, admission, "")
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("Admission number %s already exists", admission)
	}

	className := row.get("class")
	student := &models.Student{
		FullName:        fullName,
		AdmissionNumber: admission,
		ClassName:       strPtr(className),
		Gender:          normalizeGender(row.get("gender")),
		Address:         strPtr(row.get("address")),
	}
	if class := s.matchClass(ctx, className); class != nil {
		student.ClassID = &class.ID
		student.ClassName = &class.Name
	}
	if raw := row.get("date_of_birth"); raw != "" {
		dob, err := models.ParseDate(raw)
		if err != nil {
			return err
		}
		student.DateOfBirth = &dob
	}
	if email := row.get("parent_email"); email != "" {
		parent, err := s.users.FindByEmail(ctx, email)
		if err == nil && parent.Role == models.RoleParent {
			student.ParentID = &parent.ID
		}
	}

	if err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("Admission number %s already exists", admission)
		}
		return err
	}
	return nil
}

// matchClass finds a class by exact name, falling back to the first class
// whose level code appears in the upper-cased name.
func (s *ImportService) matchClass(ctx context.Context, name string) *models.Class {
	if name == "" {
		return nil
	}
	if class, err := s.classes.FindByName(ctx, name); err == nil {
		return class
	}
	upper := strings.ToUpper(name)
	for _, level := range models.ClassLevels {
		if strings.Contains(upper, string(level)) {
			if class, err := s.classes.FindByLevel(ctx, level); err == nil {
				return class
			}
			return nil
		}
	}
	return nil
}

func (s *ImportService) importParent(ctx context.Context, _ *models.JWTClaims, row csvRow) error {
	fullName := row.get("full_name")
	email := row.get("email")
	if fullName == "" || email == "" {
		return errors.New("Missing required fields (full_name or email)")
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("Email %s already exists", email)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	password := row.get("password")
	if password == "" {
		password = defaultParentPassword
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	parent := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         models.RoleParent,
		Phone:        strPtr(row.get("phone")),
	}
	if err := s.users.Create(ctx, parent); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("Email %s already exists", email)
		}
		return err
	}

	admissions := make([]string, 0)
	for _, adm := range strings.Split(row.get("student_admission_numbers"), ";") {
		if adm = strings.TrimSpace(adm); adm != "" {
			admissions = append(admissions, adm)
		}
	}
	if len(admissions) > 0 {
		if _, err := s.students.LinkParent(ctx, parent.ID, admissions); err != nil {
			s.logger.Warn("failed to link children", zap.String("parent_id", parent.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *ImportService) importPayment(ctx context.Context, caller *models.JWTClaims, row csvRow) error {
	admission := row.get("admission_number")
	rawAmount := row.get("amount")
	if admission == "" || rawAmount == "" {
		return errors.New("Missing required fields (admission_number or amount)")
	}
	student, err := s.students.FindByAdmissionNumber(ctx, admission)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("Student %s not found", admission)
		}
		return err
	}
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil {
		return fmt.Errorf("Invalid amount %s", rawAmount)
	}

	_, err = s.payments.RecordPayment(ctx, caller, models.RecordPaymentRequest{
		StudentID:     student.ID,
		Amount:        amount,
		PaymentMethod: normalizePaymentMethod(row.get("payment_method")),
		Term:          normalizeTerm(row.get("term")),
		Notes:         strPtr(row.get("notes")),
	})
	if err != nil {
		return errors.New(appErrors.FromError(err).Message)
	}
	return nil
}

// Template returns a sample file and column documentation for an importer.
func (s *ImportService) Template(kind string) (*models.CSVTemplate, error) {
	tpl, ok := csvTemplates[kind]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Template not found")
	}
	return &tpl, nil
}

var csvTemplates = map[string]models.CSVTemplate{
	ImportStudents: {
		Template: "full_name,admission_number,class,gender,date_of_birth,parent_email,address\n" +
			"John Doe,QRL/2025/0001,JSS1 A,male,2012-05-15,parent@email.com,123 Lagos Street\n" +
			"Jane Smith,QRL/2025/0002,JSS1 A,female,2012-08-20,parent2@email.com,456 Abuja Road",
		Fields: []models.TemplateField{
			{Name: "full_name", Required: true, Description: "Student's full name"},
			{Name: "admission_number", Required: true, Description: "Unique admission number"},
			{Name: "class", Description: "Class name (e.g., JSS1 A)"},
			{Name: "gender", Description: "male or female"},
			{Name: "date_of_birth", Description: "YYYY-MM-DD format"},
			{Name: "parent_email", Description: "Parent's registered email"},
			{Name: "address", Description: "Student's address"},
		},
	},
	ImportParents: {
		Template: "full_name,email,phone,password,student_admission_numbers\n" +
			"Mr. Ojo Adewale,parent@email.com,+234 801 234 5678,parent123,QRL/2025/0001;QRL/2025/0002\n" +
			"Mrs. Nwosu Chidinma,parent2@email.com,+234 802 345 6789,parent123,QRL/2025/0003",
		Fields: []models.TemplateField{
			{Name: "full_name", Required: true, Description: "Parent's full name"},
			{Name: "email", Required: true, Description: "Parent's email (used for login)"},
			{Name: "phone", Description: "Phone number"},
			{Name: "password", Description: "Password (default: parent123)"},
			{Name: "student_admission_numbers", Description: "Student admission numbers separated by semicolon"},
		},
	},
	ImportPayments: {
		Template: "admission_number,amount,payment_method,term,notes\n" +
			"QRL/2025/0001,50000,transfer,first,First term full payment\n" +
			"QRL/2025/0002,25000,cash,first,Partial payment\n" +
			"QRL/2025/0003,50000,pos,first,",
		Fields: []models.TemplateField{
			{Name: "admission_number", Required: true, Description: "Student's admission number"},
			{Name: "amount", Required: true, Description: "Payment amount in Naira"},
			{Name: "payment_method", Description: "cash, transfer, card, or pos (default: transfer)"},
			{Name: "term", Description: "first, second, or third (default: first)"},
			{Name: "notes", Description: "Payment notes"},
		},
	},
}

func normalizeGender(v string) string {
	if strings.ToLower(v) == models.GenderFemale {
		return models.GenderFemale
	}
	return models.GenderMale
}

func normalizePaymentMethod(v string) string {
	switch v = strings.ToLower(v); v {
	case models.PaymentCash, models.PaymentTransfer, models.PaymentCard, models.PaymentPOS:
		return v
	}
	return models.PaymentTransfer
}

func normalizeTerm(v string) string {
	switch v = strings.ToLower(v); v {
	case models.TermFirst, models.TermSecond, models.TermThird:
		return v
	}
	return models.TermFirst
}
