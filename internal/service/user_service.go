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
	"github.com/qirllo/school-api/pkg/jobs"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	authz     Authorizer
	queue     jobEnqueuer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. queue may be nil, in
// which case invitations are created without an email.
func NewUserService(repo userRepository, authz Authorizer, queue jobEnqueuer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, authz: defaultAuthorizer(authz), queue: queue, audit: audit, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, caller *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageUsers); err != nil {
		return nil, nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 50
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListByRole returns every teacher or parent. Admins and teachers only.
func (s *UserService) ListByRole(ctx context.Context, caller *models.JWTClaims, role models.UserRole) ([]models.User, error) {
	if err := s.authz.Authorize(caller, policy.ActionViewDirectory); err != nil {
		return nil, err
	}
	users, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	return users, nil
}

// Get returns a user by ID to an admin or to the user themselves.
func (s *UserService) Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.User, error) {
	if err := s.authz.Authorize(caller, policy.ActionUpdateProfile, id); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Update changes name and phone of a user.
func (s *UserService) Update(ctx context.Context, caller *models.JWTClaims, id string, req models.UpdateUserRequest) (*models.User, error) {
	if err := s.authz.Authorize(caller, policy.ActionUpdateProfile, id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid user payload")
	}

	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Phone = req.Phone
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, internalError(err, "failed to update user")
	}
	return user, nil
}

// Delete removes a user. Admins cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, caller *models.JWTClaims, id string, meta models.RequestMeta) error {
	if err := s.authz.Authorize(caller, policy.ActionManageUsers); err != nil {
		return err
	}
	if caller.UserID == id {
		return appErrors.Clone(appErrors.ErrBadRequest, "Cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return internalError(err, "failed to delete user")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &caller.UserID,
		Action:     models.AuditActionDelete,
		Resource:   "users",
		ResourceID: &id,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

// Invite creates an account with a generated password and queues an email
// carrying the credentials.
func (s *UserService) Invite(ctx context.Context, caller *models.JWTClaims, req models.InviteUserRequest) (*models.User, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageUsers); err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid invite payload")
	}

	password, err := temporaryPassword()
	if err != nil {
		return nil, internalError(err, "failed to generate password")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	user := &models.User{Email: req.Email, PasswordHash: hash, FullName: req.FullName, Role: req.Role, Phone: req.Phone}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered")
		}
		return nil, internalError(err, "failed to create user")
	}

	if s.queue != nil {
		job := jobs.Job{Type: JobTypeInviteEmail, Payload: InviteEmailPayload{
			Email:             user.Email,
			FullName:          user.FullName,
			Role:              string(user.Role),
			TemporaryPassword: password,
		}}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to queue invite email", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *UserService) find(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}
