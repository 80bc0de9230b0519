package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

func TestAudiencesFor(t *testing.T) {
	assert.Equal(t, []string{"teachers", "all"}, AudiencesFor(models.RoleTeacher))
	assert.Equal(t, []string{"parents", "all"}, AudiencesFor(models.RoleParent))
	assert.Equal(t, []string{"all"}, AudiencesFor(models.RoleAdmin))
}

func TestAnnouncementServiceListFiltersByAudience(t *testing.T) {
	repo := &fakeAnnouncements{items: []models.Announcement{
		{ID: "a1", Title: "Term begins", TargetAudience: models.AudienceAll},
		{ID: "a2", Title: "Staff meeting", TargetAudience: models.AudienceTeachers},
		{ID: "a3", Title: "PTA", TargetAudience: models.AudienceParents},
	}}
	svc := NewAnnouncementService(repo, nil, 0, nil, nil, nil)
	ctx := context.Background()

	items, err := svc.List(ctx, parentCaller("p1"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a3", items[0].ID)

	items, err = svc.List(ctx, teacherCaller("t1"))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.List(ctx, adminCaller())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].ID)
}

func TestAnnouncementServiceCacheIsInvalidatedOnWrite(t *testing.T) {
	repo := &fakeAnnouncements{}
	cacheRepo := newFakeCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewAnnouncementService(repo, cache, time.Minute, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.List(ctx, parentCaller("p1"))
	require.NoError(t, err)
	_, err = svc.List(ctx, parentCaller("p1"))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	created, err := svc.Create(ctx, adminCaller(), models.CreateAnnouncementRequest{Title: "Sports day", Content: "Friday", TargetAudience: models.AudienceParents})
	require.NoError(t, err)
	assert.Equal(t, "normal", created.Priority)
	assert.Contains(t, cacheRepo.deleted, "announcements:*")
	assert.Contains(t, cacheRepo.deleted, "dashboard:*")

	items, err := svc.List(ctx, parentCaller("p1"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, repo.lists)
}

func TestAnnouncementServiceWritesRequireAdmin(t *testing.T) {
	svc := NewAnnouncementService(&fakeAnnouncements{}, nil, 0, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherCaller("t1"), models.CreateAnnouncementRequest{Title: "x", Content: "y", TargetAudience: "all"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(ctx, adminCaller(), models.CreateAnnouncementRequest{Title: "x", Content: "y", TargetAudience: "everyone"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = svc.Delete(ctx, adminCaller(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
