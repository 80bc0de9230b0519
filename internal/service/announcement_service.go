package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, audiences []string, limit int) ([]models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService publishes school-wide announcements.
type AnnouncementService struct {
	repo      announcementRepository
	cache     *CacheService
	cacheTTL  time.Duration
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, cache *CacheService, cacheTTL time.Duration, authz Authorizer, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, cache: cache, cacheTTL: cacheTTL, authz: defaultAuthorizer(authz), validator: validate, logger: logger}
}

// List returns announcements for the caller's audience, newest first.
func (s *AnnouncementService) List(ctx context.Context, caller *models.JWTClaims) ([]models.Announcement, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	audiences := AudiencesFor(caller.Role)
	key := cacheKey(cacheKeyAnnouncements, audiences[0])

	var cached []models.Announcement
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	items, err := s.repo.List(ctx, audiences, models.AnnouncementLimit)
	if err != nil {
		return nil, internalError(err, "failed to list announcements")
	}
	_ = s.cache.Set(ctx, key, items, s.cacheTTL)
	return items, nil
}

// AudiencesFor returns the audiences a role reads.
func AudiencesFor(role models.UserRole) []string {
	audience := models.AudienceForRole(role)
	if audience == models.AudienceAll {
		return []string{models.AudienceAll}
	}
	return []string{audience, models.AudienceAll}
}

// Create publishes an announcement.
func (s *AnnouncementService) Create(ctx context.Context, caller *models.JWTClaims, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.authz.Authorize(caller, policy.ActionManageAnnouncement); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid announcement payload")
	}
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	announcement := &models.Announcement{
		Title:          req.Title,
		Content:        req.Content,
		TargetAudience: req.TargetAudience,
		Priority:       priority,
		AuthorID:       strPtr(caller.UserID),
		AuthorName:     strPtr(caller.FullName),
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, internalError(err, "failed to create announcement")
	}
	s.invalidate(ctx)
	return announcement, nil
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	if err := s.authz.Authorize(caller, policy.ActionManageAnnouncement); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Announcement not found")
		}
		return internalError(err, "failed to delete announcement")
	}
	s.invalidate(ctx)
	return nil
}

func (s *AnnouncementService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cacheKeyAnnouncements+":*"); err != nil {
		s.logger.Warn("failed to invalidate announcement cache", zap.Error(err))
	}
	_ = s.cache.Invalidate(ctx, cacheKeyDashboard+":*")
}
