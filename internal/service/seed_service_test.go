package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qirllo/school-api/internal/models"
)

func TestSeedServiceSeedsOnce(t *testing.T) {
	users := newFakeUsers()
	classes := newFakeClasses()
	subjects := newFakeSubjects()
	students := newFakeStudents()
	grades := newFakeGrades()
	announcements := &fakeAnnouncements{}
	svc := NewSeedService(SeedRepositories{
		Users:         users,
		Classes:       classes,
		Subjects:      subjects,
		Students:      students,
		Grades:        grades,
		Announcements: announcements,
	}, "", "", SchoolDefaults{AcademicYear: "2025/2026"}, nil, nil)
	ctx := context.Background()

	result, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Database seeded successfully", result.Message)
	assert.Equal(t, "admin@qirllo.com", result.AdminEmail)

	assert.Len(t, users.users, 7)
	assert.Len(t, classes.classes, 6)
	assert.Len(t, subjects.subjects, 24)
	assert.Len(t, students.students, 12)
	assert.Len(t, grades.grades, 24)
	assert.Len(t, announcements.items, 2)
	for _, g := range grades.grades {
		assert.Equal(t, models.GradeStatusApproved, g.Status)
		assert.GreaterOrEqual(t, g.TotalScore, 50.0)
	}
	_, err = students.FindByAdmissionNumber(ctx, "QRL/2025/0012")
	assert.NoError(t, err)

	admin, err := users.FindByEmail(ctx, "admin@qirllo.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))

	again, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Database already seeded", again.Message)
	assert.Len(t, users.users, 7)
}
