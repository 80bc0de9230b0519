package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type dashboardRepository interface {
	AdminStats(ctx context.Context, today models.Date) (*models.AdminDashboardStats, error)
	TeacherStats(ctx context.Context, teacherID string, today models.Date) (*models.TeacherDashboardStats, error)
	ApprovedResultCount(ctx context.Context, studentIDs []string) (int, error)
}

type childLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

type announcementCounter interface {
	Count(ctx context.Context, audiences []string) (int, error)
}

type paymentTotals interface {
	PaidByStudent(ctx context.Context, filter models.PaymentFilter) (map[string]float64, error)
}

// DashboardService builds the role-specific dashboard counters. Counters are
// cached per user; the unread message count is always read fresh.
type DashboardService struct {
	repo          dashboardRepository
	students      childLister
	messages      unreadCounter
	announcements announcementCounter
	payments      paymentTotals
	cache         *CacheService
	cacheTTL      time.Duration
	defaults      SchoolDefaults
	logger        *zap.Logger
	now           func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, students childLister, messages unreadCounter, announcements announcementCounter, payments paymentTotals, cache *CacheService, cacheTTL time.Duration, defaults SchoolDefaults, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:          repo,
		students:      students,
		messages:      messages,
		announcements: announcements,
		payments:      payments,
		cache:         cache,
		cacheTTL:      cacheTTL,
		defaults:      defaults,
		logger:        logger,
		now:           time.Now,
	}
}

// Stats returns the dashboard for the caller's role.
func (s *DashboardService) Stats(ctx context.Context, caller *models.JWTClaims) (interface{}, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	unread, err := s.messages.CountUnread(ctx, caller.UserID)
	if err != nil {
		return nil, internalError(err, "failed to count unread messages")
	}
	key := cacheKey(cacheKeyDashboard, string(caller.Role), caller.UserID)
	today := models.NewDate(s.now())

	switch caller.Role {
	case models.RoleAdmin:
		stats := &models.AdminDashboardStats{}
		if hit, _ := s.cache.Get(ctx, key, stats); !hit {
			if stats, err = s.repo.AdminStats(ctx, today); err != nil {
				return nil, internalError(err, "failed to load dashboard stats")
			}
			_ = s.cache.Set(ctx, key, stats, s.cacheTTL)
		}
		stats.UnreadMessages = unread
		return stats, nil
	case models.RoleTeacher:
		stats := &models.TeacherDashboardStats{}
		if hit, _ := s.cache.Get(ctx, key, stats); !hit {
			if stats, err = s.repo.TeacherStats(ctx, caller.UserID, today); err != nil {
				return nil, internalError(err, "failed to load dashboard stats")
			}
			_ = s.cache.Set(ctx, key, stats, s.cacheTTL)
		}
		stats.UnreadMessages = unread
		return stats, nil
	case models.RoleParent:
		stats := &models.ParentDashboardStats{}
		if hit, _ := s.cache.Get(ctx, key, stats); !hit {
			if stats, err = s.parentStats(ctx, caller.UserID); err != nil {
				return nil, internalError(err, "failed to load dashboard stats")
			}
			_ = s.cache.Set(ctx, key, stats, s.cacheTTL)
		}
		stats.UnreadMessages = unread
		return stats, nil
	}
	return map[string]interface{}{}, nil
}

// parentStats summarises a parent's children. The outstanding balance
// assumes the default fee per child across all recorded payments.
func (s *DashboardService) parentStats(ctx context.Context, parentID string) (*models.ParentDashboardStats, error) {
	children, _, err := s.students.List(ctx, models.StudentFilter{ParentID: parentID, PageSize: 100})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	results, err := s.repo.ApprovedResultCount(ctx, ids)
	if err != nil {
		return nil, err
	}
	announcements, err := s.announcements.Count(ctx, []string{models.AudienceAll, models.AudienceParents})
	if err != nil {
		return nil, err
	}

	var balance float64
	if len(ids) > 0 {
		paid, err := s.payments.PaidByStudent(ctx, models.PaymentFilter{StudentIDs: ids})
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if owed := s.defaults.feeTotal() - paid[id]; owed > 0 {
				balance += owed
			}
		}
	}
	return &models.ParentDashboardStats{
		TotalChildren:    len(children),
		ResultsAvailable: results,
		Announcements:    announcements,
		FeeBalance:       balance,
		Children:         children,
	}, nil
}
