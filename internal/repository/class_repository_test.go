package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
)

var classRowColumns = []string{"id", "name", "level", "section", "teacher_id", "teacher_name", "academic_year", "created_at", "updated_at", "student_count"}

func TestClassListTeacherScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(classRowColumns).
		AddRow("c1", "JSS1 A", "JSS1", "A", "t1", "Teacher One", "2025/2026", now, now, 12)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (c.teacher_id = $1 OR c.id IN (SELECT sb.class_id FROM subjects sb WHERE sb.teacher_id = $1)) ORDER BY c.name ASC")).
		WithArgs("t1").
		WillReturnRows(rows)

	classes, err := repo.List(context.Background(), models.ClassFilter{TeacherScope: "t1"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 12, classes[0].StudentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassFindByLevel(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(classRowColumns).
		AddRow("c2", "SS2 A", "SS2", "A", nil, nil, "2025/2026", now, now, 0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.level = $1 ORDER BY c.created_at LIMIT 1")).
		WithArgs(models.LevelSS2).
		WillReturnRows(rows)

	class, err := repo.FindByLevel(context.Background(), models.LevelSS2)
	require.NoError(t, err)
	assert.Equal(t, "c2", class.ID)
	assert.Nil(t, class.TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectClassIDsByTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT class_id FROM subjects WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id"}).AddRow("c1").AddRow("c2"))

	ids, err := repo.ClassIDsByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
