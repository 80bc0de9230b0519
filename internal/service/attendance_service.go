package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
	Counts(ctx context.Context, studentID string) (models.AttendanceCounts, error)
}

type teacherClassLookup interface {
	ClassIDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// AttendanceService records and reports daily attendance.
type AttendanceService struct {
	repo      attendanceRepository
	students  studentDirectory
	classes   classFinder
	subjects  teacherClassLookup
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, students studentDirectory, classes classFinder, subjects teacherClassLookup, authz Authorizer, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		students:  students,
		classes:   classes,
		subjects:  subjects,
		authz:     defaultAuthorizer(authz),
		validator: validate,
		logger:    logger,
	}
}

// Mark records one student's attendance for a day, replacing any earlier mark.
func (s *AttendanceService) Mark(ctx context.Context, caller *models.JWTClaims, req models.MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.authz.Authorize(caller, policy.ActionMarkAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	if req.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, internalError(err, "failed to load student")
	}

	record := s.record(ctx, student, req.Date, req.Status, req.Notes, caller.UserID)
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, internalError(err, "failed to save attendance")
	}
	return record, nil
}

// BulkMark records attendance for a class on one day. Unknown students are
// skipped.
func (s *AttendanceService) BulkMark(ctx context.Context, caller *models.JWTClaims, req models.BulkAttendanceRequest) ([]models.Attendance, error) {
	if err := s.authz.Authorize(caller, policy.ActionMarkAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk attendance payload")
	}
	if req.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}

	saved := make([]models.Attendance, 0, len(req.Records))
	for _, entry := range req.Records {
		student, err := s.students.FindByID(ctx, entry.StudentID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("bulk attendance lookup failed", zap.String("student_id", entry.StudentID), zap.Error(err))
			}
			continue
		}
		record := s.record(ctx, student, req.Date, entry.Status, entry.Notes, caller.UserID)
		if err := s.repo.Upsert(ctx, record); err != nil {
			return nil, internalError(err, "failed to save attendance")
		}
		saved = append(saved, *record)
	}
	return saved, nil
}

// List returns attendance records. Parents see only their children; teachers
// without an explicit class see the classes they teach.
func (s *AttendanceService) List(ctx context.Context, caller *models.JWTClaims, filter models.AttendanceFilter) ([]models.Attendance, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch {
	case caller.IsParent():
		children, err := s.students.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to resolve children")
		}
		filter.StudentIDs = restrictTo(filter.StudentIDs, children)
	case caller.IsTeacher() && filter.ClassIDs == nil:
		classIDs, err := s.subjects.ClassIDsByTeacher(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to resolve teacher classes")
		}
		filter.ClassIDs = restrictTo(nil, classIDs)
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	return records, nil
}

// Summary tallies a student's attendance across all recorded days. The term
// argument is accepted for compatibility and does not narrow the tally.
func (s *AttendanceService) Summary(ctx context.Context, caller *models.JWTClaims, studentID, term string) (*models.AttendanceSummary, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	if err := s.authz.Authorize(caller, policy.ActionViewAttendance, policy.OwnerOf(student.ParentID)); err != nil {
		return nil, err
	}
	if term != "" {
		s.logger.Debug("attendance summary term ignored", zap.String("term", term))
	}

	counts, err := s.repo.Counts(ctx, student.ID)
	if err != nil {
		return nil, internalError(err, "failed to count attendance")
	}
	return &models.AttendanceSummary{
		StudentID:        student.ID,
		StudentName:      student.FullName,
		AttendanceCounts: counts,
		AttendanceRate:   AttendanceRate(counts),
	}, nil
}

// AttendanceRate is the share of present or late days as a percentage
// rounded to one decimal. No records yields 0.
func AttendanceRate(c models.AttendanceCounts) float64 {
	if c.Total == 0 {
		return 0
	}
	rate := float64(c.Present+c.Late) / float64(c.Total) * 100
	return math.Round(rate*10) / 10
}

func (s *AttendanceService) record(ctx context.Context, student *models.Student, date models.Date, status models.AttendanceStatus, notes *string, markedBy string) *models.Attendance {
	record := &models.Attendance{
		StudentID:   student.ID,
		StudentName: &student.FullName,
		ClassID:     student.ClassID,
		ClassName:   student.ClassName,
		Date:        date,
		Status:      status,
		Notes:       notes,
		MarkedBy:    strPtr(markedBy),
	}
	if student.ClassID != nil && s.classes != nil {
		if class, err := s.classes.FindByID(ctx, *student.ClassID); err == nil {
			record.ClassName = &class.Name
		}
	}
	return record
}
