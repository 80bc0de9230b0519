package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
)

var studentRowColumns = []string{"id", "full_name", "admission_number", "class_id", "class_name", "gender", "date_of_birth", "parent_id", "address", "created_at", "updated_at"}

func TestStudentListByParent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	dob := time.Date(2012, 3, 4, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("s1", "Ada", "QRL/2025/0001", "c1", "JSS1 A", "female", dob, "p1", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE parent_id = $1 ORDER BY full_name ASC LIMIT 1000 OFFSET 0")).
		WithArgs("p1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ParentID: "p1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, students[0].DateOfBirth)
	assert.Equal(t, "2012-03-04", students[0].DateOfBirth.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentExistsByAdmissionNumberExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM students WHERE admission_number = $1 AND id <> $2)")).
		WithArgs("QRL/2025/0001", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsByAdmissionNumber(context.Background(), "QRL/2025/0001", "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentLinkParent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET parent_id = $1")).
		WithArgs("p1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.LinkParent(context.Background(), "p1", []string{"A1", "A2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.LinkParent(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentChildIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE parent_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1").AddRow("s2"))

	ids, err := repo.ChildIDs(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFindByAdmissionNumberNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE admission_number = $1")).
		WithArgs("QRL/2025/0099").
		WillReturnRows(sqlmock.NewRows(studentRowColumns))

	_, err := repo.FindByAdmissionNumber(context.Background(), "QRL/2025/0099")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
