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

func schoolFixture() (*fakeStudents, *fakeClasses) {
	classes := newFakeClasses(
		&models.Class{ID: "c1", Name: "JSS1 A", Level: models.LevelJSS1, TeacherID: ptr("t1")},
		&models.Class{ID: "c2", Name: "SS2 A", Level: models.LevelSS2},
	)
	students := newFakeStudents(
		&models.Student{ID: "s1", FullName: "Ada", AdmissionNumber: "QRL/2025/0001", ClassID: ptr("c1"), ClassName: ptr("JSS1 A"), Gender: "female", ParentID: ptr("p1")},
		&models.Student{ID: "s2", FullName: "Bola", AdmissionNumber: "QRL/2025/0002", ClassID: ptr("c1"), ClassName: ptr("JSS1 A"), Gender: "male", ParentID: ptr("p2")},
		&models.Student{ID: "s3", FullName: "Chi", AdmissionNumber: "QRL/2025/0003", ClassID: ptr("c2"), ClassName: ptr("SS2 A"), Gender: "female", ParentID: ptr("p1")},
	)
	return students, classes
}

func TestStudentServiceParentListIsForcedToOwnChildren(t *testing.T) {
	students, classes := schoolFixture()
	svc := NewStudentService(students, classes, nil, nil, nil, nil)

	list, page, err := svc.List(context.Background(), parentCaller("p1"), models.StudentFilter{ParentID: "p2"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, "p1", *s.ParentID)
	}
	assert.Equal(t, 2, page.TotalCount)
}

func TestStudentServiceGetForbidsOtherParents(t *testing.T) {
	students, classes := schoolFixture()
	svc := NewStudentService(students, classes, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, parentCaller("p1"), "s2")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	student, err := svc.Get(ctx, parentCaller("p1"), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", student.FullName)

	_, err = svc.Get(ctx, teacherCaller("t1"), "s2")
	assert.NoError(t, err)

	_, err = svc.Get(ctx, adminCaller(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceCreateSnapshotsClassName(t *testing.T) {
	students, classes := schoolFixture()
	cacheRepo := newFakeCache()
	cacheRepo.values["classes:x"] = []models.Class{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewStudentService(students, classes, cache, nil, nil, nil)

	student, err := svc.Create(context.Background(), adminCaller(), models.CreateStudentRequest{
		FullName: "Dayo", AdmissionNumber: " QRL/2025/0004 ", ClassID: "c2", Gender: "male",
	})
	require.NoError(t, err)
	assert.Equal(t, "QRL/2025/0004", student.AdmissionNumber)
	require.NotNil(t, student.ClassName)
	assert.Equal(t, "SS2 A", *student.ClassName)
	assert.Contains(t, cacheRepo.deleted, "classes:*")
	assert.NotContains(t, cacheRepo.values, "classes:x")
}

func TestStudentServiceCreateErrors(t *testing.T) {
	students, classes := schoolFixture()
	svc := NewStudentService(students, classes, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, adminCaller(), models.CreateStudentRequest{FullName: "Dup", AdmissionNumber: "QRL/2025/0001", ClassID: "c1", Gender: "male"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(ctx, adminCaller(), models.CreateStudentRequest{FullName: "Lost", AdmissionNumber: "QRL/2025/0009", ClassID: "nope", Gender: "male"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Create(ctx, teacherCaller("t1"), models.CreateStudentRequest{FullName: "X", AdmissionNumber: "QRL/2025/0010", ClassID: "c1", Gender: "male"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(ctx, adminCaller(), models.CreateStudentRequest{FullName: "X", AdmissionNumber: "QRL/2025/0011", ClassID: "c1", Gender: "other"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceUpdateKeepsOwnAdmissionNumber(t *testing.T) {
	students, classes := schoolFixture()
	svc := NewStudentService(students, classes, nil, nil, nil, nil)

	updated, err := svc.Update(context.Background(), adminCaller(), "s1", models.UpdateStudentRequest{
		FullName: "Ada Lovelace", AdmissionNumber: "QRL/2025/0001", ClassID: "c2", Gender: "female", ParentID: ptr("p1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.FullName)
	assert.Equal(t, "SS2 A", *updated.ClassName)

	_, err = svc.Update(context.Background(), adminCaller(), "s1", models.UpdateStudentRequest{
		FullName: "Ada", AdmissionNumber: "QRL/2025/0002", ClassID: "c1", Gender: "female",
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestStudentServiceDelete(t *testing.T) {
	students, classes := schoolFixture()
	svc := NewStudentService(students, classes, nil, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, adminCaller(), "s1"))
	err := svc.Delete(ctx, adminCaller(), "s1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
