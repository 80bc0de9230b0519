package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	"github.com/qirllo/school-api/internal/repository"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ClassService manages classes and their homeroom teacher.
type ClassService struct {
	repo      classRepository
	users     userFinder
	cache     *CacheService
	cacheTTL  time.Duration
	authz     Authorizer
	defaults  SchoolDefaults
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, users userFinder, cache *CacheService, cacheTTL time.Duration, authz Authorizer, defaults SchoolDefaults, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, users: users, cache: cache, cacheTTL: cacheTTL, authz: defaultAuthorizer(authz), defaults: defaults, validator: validate, logger: logger}
}

// List returns classes with live student counts. A teacher listing without
// filters sees the classes they lead plus those where they teach a subject.
func (s *ClassService) List(ctx context.Context, caller *models.JWTClaims, filter models.ClassFilter) ([]models.Class, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if caller.IsTeacher() && filter.Level == "" && filter.AcademicYear == "" {
		filter.TeacherScope = caller.UserID
	}

	key := cacheKey(cacheKeyClasses, filter.TeacherScope, filter.Level, filter.AcademicYear)
	var cached []models.Class
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	classes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list classes")
	}
	_ = s.cache.Set(ctx, key, classes, s.cacheTTL)
	return classes, nil
}

// Get returns a class by id.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		return nil, internalError(err, "failed to load class")
	}
	return class, nil
}

// Create adds a class.
func (s *ClassService) Create(ctx context.Context, caller *models.JWTClaims, req models.CreateClassRequest) (*models.Class, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageClasses); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class := &models.Class{}
	if err := s.apply(ctx, class, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, internalError(err, "failed to create class")
	}
	s.invalidate(ctx)
	return class, nil
}

// Update replaces a class definition.
func (s *ClassService) Update(ctx context.Context, caller *models.JWTClaims, id string, req models.UpdateClassRequest) (*models.Class, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageClasses); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, class, models.CreateClassRequest(req)); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, internalError(err, "failed to update class")
	}
	s.invalidate(ctx)
	return class, nil
}

// AssignTeacher sets the homeroom teacher and refreshes the name snapshot.
func (s *ClassService) AssignTeacher(ctx context.Context, caller *models.JWTClaims, id string, req models.AssignTeacherRequest) (*models.Class, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageClasses); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher assignment payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	teacher, err := s.teacher(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}
	class.TeacherID = &teacher.ID
	class.TeacherName = &teacher.FullName
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, internalError(err, "failed to assign teacher")
	}
	s.invalidate(ctx)
	return class, nil
}

// Delete removes a class.
func (s *ClassService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	if err := s.authz.Authorize(caller, policy.ActionManageClasses); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "Class has subjects and cannot be deleted")
		}
		return internalError(err, "failed to delete class")
	}
	s.invalidate(ctx)
	return nil
}

func (s *ClassService) apply(ctx context.Context, class *models.Class, req models.CreateClassRequest) error {
	class.Name = strings.TrimSpace(req.Name)
	class.Level = models.ClassLevel(req.Level)
	class.Section = strings.TrimSpace(req.Section)
	if class.Section == "" {
		class.Section = "A"
	}
	class.AcademicYear = s.defaults.year(req.AcademicYear)
	class.TeacherID = nil
	class.TeacherName = nil
	if req.TeacherID != nil && *req.TeacherID != "" {
		teacher, err := s.teacher(ctx, *req.TeacherID)
		if err != nil {
			return err
		}
		class.TeacherID = &teacher.ID
		class.TeacherName = &teacher.FullName
	}
	return nil
}

func (s *ClassService) teacher(ctx context.Context, id string) (*models.User, error) {
	return findTeacher(ctx, s.users, id)
}

func (s *ClassService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cacheKey(cacheKeyClasses, "*"))
}

func findTeacher(ctx context.Context, users userFinder, id string) (*models.User, error) {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Teacher not found")
		}
		return nil, internalError(err, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Teacher not found")
	}
	return user, nil
}
