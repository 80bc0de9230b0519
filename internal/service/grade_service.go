package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/export"
)

type gradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	Transition(ctx context.Context, id string, from, to models.GradeStatus) (bool, error)
	BulkTransition(ctx context.Context, filter models.GradeFilter, from, to models.GradeStatus) (int64, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ChildIDs(ctx context.Context, parentID string) ([]string, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// GradeService drives the grade lifecycle: draft entry, submission and approval.
type GradeService struct {
	repo      gradeRepository
	students  studentDirectory
	subjects  subjectFinder
	pdf       documentRenderer
	metrics   *MetricsService
	audit     auditRecorder
	authz     Authorizer
	defaults  SchoolDefaults
	school    string
	validator *validator.Validate
	logger    *zap.Logger
}

// GradeServiceDeps bundles the collaborators of GradeService.
type GradeServiceDeps struct {
	Repo       gradeRepository
	Students   studentDirectory
	Subjects   subjectFinder
	PDF        documentRenderer
	Metrics    *MetricsService
	Audit      auditRecorder
	Authz      Authorizer
	Defaults   SchoolDefaults
	SchoolName string
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(deps GradeServiceDeps) *GradeService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.PDF == nil {
		deps.PDF = export.NewPDFExporter()
	}
	return &GradeService{
		repo:      deps.Repo,
		students:  deps.Students,
		subjects:  deps.Subjects,
		pdf:       deps.PDF,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		authz:     defaultAuthorizer(deps.Authz),
		defaults:  deps.Defaults,
		school:    deps.SchoolName,
		validator: deps.Validator,
		logger:    deps.Logger,
	}
}

// Upsert records a grade for (student, subject, term, academic year). An
// existing grade for that key is overwritten and returns to draft.
func (s *GradeService) Upsert(ctx context.Context, caller *models.JWTClaims, req models.UpsertGradeRequest) (*models.Grade, error) {
	if err := s.authz.Authorize(caller, policy.ActionEnterGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	subject, err := s.subject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	student, err := s.student(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	grade := buildGrade(student, subject, req.Term, s.defaults.year(req.AcademicYear), req.CAScore, req.ExamScore, req.Comment, caller.UserID)
	if err := s.repo.Upsert(ctx, grade); err != nil {
		return nil, internalError(err, "failed to save grade")
	}
	return grade, nil
}

// BulkUpsert saves a batch of grades for one subject and term. Entries that
// fail are reported by index and never abort the batch.
func (s *GradeService) BulkUpsert(ctx context.Context, caller *models.JWTClaims, req models.BulkGradeRequest) (*models.BulkGradeResult, error) {
	if err := s.authz.Authorize(caller, policy.ActionEnterGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk grade payload")
	}
	subject, err := s.subject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	year := s.defaults.year(req.AcademicYear)

	result := &models.BulkGradeResult{Grades: make([]models.Grade, 0, len(req.Grades)), Errors: make([]models.BulkEntryError, 0)}
	for i, entry := range req.Grades {
		fail := func(msg string) {
			result.Errors = append(result.Errors, models.BulkEntryError{Index: i, StudentID: entry.StudentID, Error: msg})
		}
		if err := s.validator.Struct(entry); err != nil {
			fail(fmt.Sprintf("invalid entry: %v", err))
			continue
		}
		student, err := s.student(ctx, entry.StudentID)
		if err != nil {
			fail(appErrors.FromError(err).Message)
			continue
		}
		grade := buildGrade(student, subject, req.Term, year, entry.CAScore, entry.ExamScore, entry.Comment, caller.UserID)
		if err := s.repo.Upsert(ctx, grade); err != nil {
			s.logger.Warn("bulk grade entry failed", zap.Int("index", i), zap.Error(err))
			fail("failed to save grade")
			continue
		}
		result.Grades = append(result.Grades, *grade)
	}
	return result, nil
}

// List returns grades matching the filter. Parents are limited to approved
// grades of their own children regardless of the filter supplied.
func (s *GradeService) List(ctx context.Context, caller *models.JWTClaims, filter models.GradeFilter) ([]models.Grade, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if caller.IsParent() {
		children, err := s.students.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to resolve children")
		}
		filter.StudentIDs = restrictTo(filter.StudentIDs, children)
		filter.Status = models.GradeStatusApproved
	}
	grades, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list grades")
	}
	return grades, nil
}

// Submit moves a draft grade to submitted.
func (s *GradeService) Submit(ctx context.Context, caller *models.JWTClaims, id string) (*models.Grade, error) {
	if err := s.authz.Authorize(caller, policy.ActionEnterGrades); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, id, models.GradeStatusDraft, models.GradeStatusSubmitted, "Only draft grades can be submitted")
}

// Approve moves a submitted grade to approved.
func (s *GradeService) Approve(ctx context.Context, caller *models.JWTClaims, id string) (*models.Grade, error) {
	if err := s.authz.Authorize(caller, policy.ActionApproveGrades); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, id, models.GradeStatusSubmitted, models.GradeStatusApproved, "Only submitted grades can be approved")
}

// Reject sends a submitted grade back to draft.
func (s *GradeService) Reject(ctx context.Context, caller *models.JWTClaims, id string) (*models.Grade, error) {
	if err := s.authz.Authorize(caller, policy.ActionApproveGrades); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, id, models.GradeStatusSubmitted, models.GradeStatusDraft, "Only submitted grades can be rejected")
}

// BulkSubmit submits every draft for a subject and term.
func (s *GradeService) BulkSubmit(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error) {
	if err := s.authz.Authorize(caller, policy.ActionEnterGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submit payload")
	}
	if req.SubjectID == "" || req.Term == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_id and term are required")
	}
	return s.bulk(ctx, caller, req, models.GradeStatusDraft, models.GradeStatusSubmitted, "submitted")
}

// BulkApprove approves every submitted grade matching the optional filters.
func (s *GradeService) BulkApprove(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error) {
	if err := s.authz.Authorize(caller, policy.ActionApproveGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid approve payload")
	}
	return s.bulk(ctx, caller, req, models.GradeStatusSubmitted, models.GradeStatusApproved, "approved")
}

// BulkReject returns every submitted grade matching the optional filters to draft.
func (s *GradeService) BulkReject(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest) (*models.TransitionResult, error) {
	if err := s.authz.Authorize(caller, policy.ActionApproveGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reject payload")
	}
	return s.bulk(ctx, caller, req, models.GradeStatusSubmitted, models.GradeStatusDraft, "rejected")
}

// ReportCard renders the approved grades of a student for a term as PDF.
func (s *GradeService) ReportCard(ctx context.Context, caller *models.JWTClaims, studentID, term, year string) ([]byte, string, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return nil, "", err
	}
	if err := s.authz.Authorize(caller, policy.ActionViewReportCard, policy.OwnerOf(student.ParentID)); err != nil {
		return nil, "", err
	}
	term = s.defaults.term(term)
	year = s.defaults.year(year)

	grades, err := s.repo.List(ctx, models.GradeFilter{
		StudentIDs:   []string{student.ID},
		Term:         term,
		AcademicYear: year,
		Status:       models.GradeStatusApproved,
	})
	if err != nil {
		return nil, "", internalError(err, "failed to load grades")
	}

	table := &export.Dataset{Headers: []string{"Subject", "CA", "Exam", "Total", "Grade", "Comment"}}
	var sum float64
	for _, g := range grades {
		sum += g.TotalScore
		table.Append(map[string]string{
			"Subject": deref(g.SubjectName),
			"CA":      formatScore(g.CAScore),
			"Exam":    formatScore(g.ExamScore),
			"Total":   formatScore(g.TotalScore),
			"Grade":   g.Grade,
			"Comment": deref(g.Comment),
		})
	}
	footnote := "No approved results are available for this term."
	if len(grades) > 0 {
		avg := math.Round(sum/float64(len(grades))*10) / 10
		footnote = fmt.Sprintf("Subjects: %d. Average score: %s (%s).", len(grades), formatScore(avg), models.LetterGrade(avg))
	}

	data, err := s.pdf.RenderDocument(export.Document{
		Heading: s.school,
		Title:   "Report Card",
		Fields: []export.Field{
			{Label: "Student", Value: student.FullName},
			{Label: "Admission Number", Value: student.AdmissionNumber},
			{Label: "Class", Value: deref(student.ClassName)},
			{Label: "Term", Value: titleCase(term)},
			{Label: "Academic Year", Value: year},
		},
		Table:    table,
		Footnote: footnote,
	})
	if err != nil {
		return nil, "", internalError(err, "failed to render report card")
	}
	filename := fmt.Sprintf("report-card-%s-%s.pdf", sanitizeFilename(student.AdmissionNumber), term)
	return data, filename, nil
}

func (s *GradeService) transition(ctx context.Context, caller *models.JWTClaims, id string, from, to models.GradeStatus, message string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Grade not found")
		}
		return nil, internalError(err, "failed to load grade")
	}
	if grade.Status != from {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, message)
	}
	changed, err := s.repo.Transition(ctx, id, from, to)
	if err != nil {
		return nil, internalError(err, "failed to update grade status")
	}
	if !changed {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, message)
	}
	grade.Status = to
	s.metrics.RecordGradeTransition(string(to), 1)
	if to == models.GradeStatusApproved {
		recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
			UserID:     &caller.UserID,
			Action:     models.AuditActionApprove,
			Resource:   "grades",
			ResourceID: &grade.ID,
		})
	}
	return grade, nil
}

func (s *GradeService) bulk(ctx context.Context, caller *models.JWTClaims, req models.GradeTransitionRequest, from, to models.GradeStatus, verb string) (*models.TransitionResult, error) {
	filter := models.GradeFilter{
		SubjectID:    req.SubjectID,
		ClassID:      req.ClassID,
		Term:         req.Term,
		AcademicYear: req.AcademicYear,
	}
	count, err := s.repo.BulkTransition(ctx, filter, from, to)
	if err != nil {
		return nil, internalError(err, "failed to update grades")
	}
	s.metrics.RecordGradeTransition(string(to), count)
	s.logger.Info("bulk grade transition", zap.String("actor", caller.UserID), zap.String("to", string(to)), zap.Int64("count", count))
	return &models.TransitionResult{Message: fmt.Sprintf("%d grades %s", count, verb), Count: count}, nil
}

func (s *GradeService) student(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

func (s *GradeService) subject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		return nil, internalError(err, "failed to load subject")
	}
	return subject, nil
}

func buildGrade(student *models.Student, subject *models.Subject, term, year string, ca, exam float64, comment *string, teacherID string) *models.Grade {
	total := ca + exam
	return &models.Grade{
		StudentID:    student.ID,
		StudentName:  &student.FullName,
		SubjectID:    subject.ID,
		SubjectName:  &subject.Name,
		Term:         term,
		AcademicYear: year,
		CAScore:      ca,
		ExamScore:    exam,
		TotalScore:   total,
		Grade:        models.LetterGrade(total),
		Comment:      comment,
		Status:       models.GradeStatusDraft,
		TeacherID:    strPtr(teacherID),
	}
}

// restrictTo narrows requested ids to allowed ones. With no request it
// returns the allowed set itself. The result is never nil so it always
// filters.
func restrictTo(requested, allowed []string) []string {
	if requested == nil {
		return append(make([]string, 0, len(allowed)), allowed...)
	}
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func formatScore(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func sanitizeFilename(v string) string {
	return strings.NewReplacer("/", "-", " ", "_", "\\", "-").Replace(v)
}
