package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	"github.com/qirllo/school-api/internal/repository"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByAdmissionNumber(ctx context.Context, admission string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// StudentService implements student management use-cases.
type StudentService struct {
	repo      studentRepository
	classes   classFinder
	cache     *CacheService
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(repo studentRepository, classes classFinder, cache *CacheService, authz Authorizer, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classes: classes, cache: cache, authz: defaultAuthorizer(authz), validator: validate, logger: logger}
}

// List returns students. Parents only ever see their own children whatever
// filter they pass.
func (s *StudentService) List(ctx context.Context, caller *models.JWTClaims, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if caller == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if caller.IsParent() {
		filter.ParentID = caller.UserID
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 1000 {
		size = 1000
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.Student, error) {
	student, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(caller, policy.ActionViewStudent, policy.OwnerOf(student.ParentID)); err != nil {
		return nil, err
	}
	return student, nil
}

// Create registers a new student in an existing class.
func (s *StudentService) Create(ctx context.Context, caller *models.JWTClaims, req models.CreateStudentRequest) (*models.Student, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageStudents); err != nil {
		return nil, err
	}
	req.AdmissionNumber = strings.TrimSpace(req.AdmissionNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if err := s.ensureAdmissionAvailable(ctx, req.AdmissionNumber, ""); err != nil {
		return nil, err
	}
	class, err := s.class(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		FullName:        strings.TrimSpace(req.FullName),
		AdmissionNumber: req.AdmissionNumber,
		ClassID:         &class.ID,
		ClassName:       &class.Name,
		Gender:          req.Gender,
		DateOfBirth:     req.DateOfBirth,
		ParentID:        req.ParentID,
		Address:         req.Address,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Admission number already exists")
		}
		return nil, internalError(err, "failed to create student")
	}
	s.invalidateClassCounts(ctx)
	return student, nil
}

// Update replaces a student's details.
func (s *StudentService) Update(ctx context.Context, caller *models.JWTClaims, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageStudents); err != nil {
		return nil, err
	}
	req.AdmissionNumber = strings.TrimSpace(req.AdmissionNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAdmissionAvailable(ctx, req.AdmissionNumber, id); err != nil {
		return nil, err
	}
	class, err := s.class(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	student.FullName = strings.TrimSpace(req.FullName)
	student.AdmissionNumber = req.AdmissionNumber
	student.ClassID = &class.ID
	student.ClassName = &class.Name
	student.Gender = req.Gender
	student.DateOfBirth = req.DateOfBirth
	student.ParentID = req.ParentID
	student.Address = req.Address
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Admission number already exists")
		}
		return nil, internalError(err, "failed to update student")
	}
	s.invalidateClassCounts(ctx)
	return student, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	if err := s.authz.Authorize(caller, policy.ActionManageStudents); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "Student has recorded fee payments and cannot be deleted")
		}
		return internalError(err, "failed to delete student")
	}
	s.invalidateClassCounts(ctx)
	return nil
}

// invalidateClassCounts drops cached class lists whose student_count changed.
func (s *StudentService) invalidateClassCounts(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cacheKey(cacheKeyClasses, "*"))
}

func (s *StudentService) find(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) class(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		return nil, internalError(err, "failed to load class")
	}
	return class, nil
}

func (s *StudentService) ensureAdmissionAvailable(ctx context.Context, admission, excludeID string) error {
	exists, err := s.repo.ExistsByAdmissionNumber(ctx, admission, excludeID)
	if err != nil {
		return internalError(err, "failed to check admission number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "Admission number already exists")
	}
	return nil
}
