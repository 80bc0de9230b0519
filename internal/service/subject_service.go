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

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectService manages the subjects taught in each class.
type SubjectService struct {
	repo      subjectRepository
	classes   classFinder
	users     userFinder
	cache     *CacheService
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, classes classFinder, users userFinder, cache *CacheService, authz Authorizer, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, classes: classes, users: users, cache: cache, authz: defaultAuthorizer(authz), validator: validate, logger: logger}
}

// List returns subjects. Teachers without an explicit teacher filter only see
// their own subjects.
func (s *SubjectService) List(ctx context.Context, caller *models.JWTClaims, filter models.SubjectFilter) ([]models.Subject, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if caller.IsTeacher() && filter.TeacherID == "" {
		filter.TeacherID = caller.UserID
	}
	subjects, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	return subjects, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		return nil, internalError(err, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject to a class.
func (s *SubjectService) Create(ctx context.Context, caller *models.JWTClaims, req models.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageSubjects); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	subject := &models.Subject{}
	if err := s.apply(ctx, subject, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, internalError(err, "failed to create subject")
	}
	s.invalidate(ctx)
	return subject, nil
}

// Update replaces a subject definition.
func (s *SubjectService) Update(ctx context.Context, caller *models.JWTClaims, id string, req models.UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageSubjects); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, subject, models.CreateSubjectRequest(req)); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, internalError(err, "failed to update subject")
	}
	s.invalidate(ctx)
	return subject, nil
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	if err := s.authz.Authorize(caller, policy.ActionManageSubjects); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "Subject has grades and cannot be deleted")
		}
		return internalError(err, "failed to delete subject")
	}
	s.invalidate(ctx)
	return nil
}

func (s *SubjectService) apply(ctx context.Context, subject *models.Subject, req models.CreateSubjectRequest) error {
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		return internalError(err, "failed to load class")
	}
	subject.Name = strings.TrimSpace(req.Name)
	subject.Code = strings.TrimSpace(req.Code)
	subject.ClassID = class.ID
	subject.ClassName = &class.Name
	subject.TeacherID = nil
	subject.TeacherName = nil
	if req.TeacherID != nil && *req.TeacherID != "" {
		teacher, err := findTeacher(ctx, s.users, *req.TeacherID)
		if err != nil {
			return err
		}
		subject.TeacherID = &teacher.ID
		subject.TeacherName = &teacher.FullName
	}
	return nil
}

// invalidate drops class lists, whose teacher scope depends on subjects.
func (s *SubjectService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cacheKey(cacheKeyClasses, "*"))
}
