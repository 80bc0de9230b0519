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

type settingsRepository interface {
	Get(ctx context.Context) (*models.SchoolSettings, error)
	Save(ctx context.Context, settings *models.SchoolSettings) error
}

type onboardingUserRepository interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// SettingsService reads and updates the school profile and runs first-time
// setup.
type SettingsService struct {
	repo      settingsRepository
	users     onboardingUserRepository
	defaults  SchoolDefaults
	name      string
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService. The name and defaults are
// returned until settings are first saved.
func NewSettingsService(repo settingsRepository, users onboardingUserRepository, name string, defaults SchoolDefaults, authz Authorizer, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, users: users, defaults: defaults, name: name, authz: defaultAuthorizer(authz), validator: validate, logger: logger}
}

// Get returns the school profile.
func (s *SettingsService) Get(ctx context.Context) (*models.SchoolSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SchoolSettings{
				SchoolName:          s.name,
				CurrentTerm:         s.defaults.term(""),
				CurrentAcademicYear: s.defaults.year(""),
			}, nil
		}
		return nil, internalError(err, "failed to load settings")
	}
	return settings, nil
}

// Update replaces the school profile.
func (s *SettingsService) Update(ctx context.Context, caller *models.JWTClaims, req models.UpdateSchoolSettingsRequest) (*models.SchoolSettings, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageSettings); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid settings payload")
	}
	settings := &models.SchoolSettings{
		SchoolName:          req.SchoolName,
		Address:             req.Address,
		Phone:               req.Phone,
		Email:               req.Email,
		CurrentTerm:         req.CurrentTerm,
		CurrentAcademicYear: req.CurrentAcademicYear,
	}
	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, internalError(err, "failed to save settings")
	}
	return settings, nil
}

// OnboardingStatus reports whether an administrator exists and the school
// profile has been saved.
func (s *SettingsService) OnboardingStatus(ctx context.Context) (*models.OnboardingStatus, error) {
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, internalError(err, "failed to count administrators")
	}
	saved := true
	if _, err := s.repo.Get(ctx); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, internalError(err, "failed to load settings")
		}
		saved = false
	}
	return &models.OnboardingStatus{
		IsOnboarded:   admins > 0 && saved,
		HasAdmin:      admins > 0,
		SettingsSaved: saved,
	}, nil
}

// Setup saves the school profile and creates the first administrator. It is
// refused once any administrator exists.
func (s *SettingsService) Setup(ctx context.Context, req models.SchoolSetupRequest) (*models.SchoolSetupResult, error) {
	req.AdminEmail = strings.TrimSpace(req.AdminEmail)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid setup payload")
	}
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, internalError(err, "failed to count administrators")
	}
	if admins > 0 {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "School is already set up. Please log in.")
	}
	if _, err := s.users.FindByEmail(ctx, req.AdminEmail); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check email")
	}
	hash, err := hashPassword(req.AdminPassword)
	if errors.Is(err, errPasswordTooLong) {
		return nil, err
	} else if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	settings := &models.SchoolSettings{
		SchoolName:          strings.TrimSpace(req.SchoolName),
		Address:             req.Address,
		Phone:               req.Phone,
		Email:               req.Email,
		CurrentTerm:         s.defaults.term(req.CurrentTerm),
		CurrentAcademicYear: s.defaults.year(req.CurrentAcademicYear),
	}
	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, internalError(err, "failed to save settings")
	}

	admin := &models.User{
		Email:        req.AdminEmail,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.AdminFullName),
		Role:         models.RoleAdmin,
		Phone:        req.AdminPhone,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered")
		}
		return nil, internalError(err, "failed to create administrator")
	}
	s.logger.Info("school setup completed", zap.String("school", settings.SchoolName), zap.String("admin_id", admin.ID))
	return &models.SchoolSetupResult{Settings: *settings, Admin: *admin}, nil
}
