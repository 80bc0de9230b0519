package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
)

func TestSettingsGetMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM school_settings WHERE id = 1")).
		WillReturnError(sql.ErrNoRows)

	settings, err := repo.Get(context.Background())
	assert.Nil(t, settings)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	rows := sqlmock.NewRows([]string{"school_name", "address", "phone", "email", "current_term", "current_academic_year", "updated_at"}).
		AddRow("QIRLLO School", nil, "0800", nil, "second", "2025/2026", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM school_settings WHERE id = 1")).WillReturnRows(rows)

	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", settings.CurrentTerm)
	require.NotNil(t, settings.Phone)
	assert.Equal(t, "0800", *settings.Phone)
	assert.Nil(t, settings.Address)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSaveUpserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings := &models.SchoolSettings{SchoolName: "QIRLLO School", CurrentTerm: "first", CurrentAcademicYear: "2025/2026"}
	require.NoError(t, repo.Save(context.Background(), settings))
	assert.False(t, settings.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subjects")).
		WillReturnError(&pq.Error{Code: "23505"})

	subject := &models.Subject{Name: "Mathematics", Code: "MTH", ClassID: "c1"}
	err := repo.Create(context.Background(), subject)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NotEmpty(t, subject.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "code", "class_id", "class_name", "teacher_id", "teacher_name", "created_at", "updated_at"}).
		AddRow("s1", "English", "ENG", "c1", "JSS1 A", "t1", "Teacher One", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE class_id = $1 ORDER BY name ASC")).
		WithArgs("c1").
		WillReturnRows(rows)

	subjects, err := repo.List(context.Background(), models.SubjectFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "ENG", subjects[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReferencedRows(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		delete func(db *sqlx.DB) error
	}{
		{"class", "DELETE FROM classes WHERE id = $1", func(db *sqlx.DB) error {
			return NewClassRepository(db).Delete(context.Background(), "row-1")
		}},
		{"student", "DELETE FROM students WHERE id = $1", func(db *sqlx.DB) error {
			return NewStudentRepository(db).Delete(context.Background(), "row-1")
		}},
		{"subject", "DELETE FROM subjects WHERE id = $1", func(db *sqlx.DB) error {
			return NewSubjectRepository(db).Delete(context.Background(), "row-1")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()

			mock.ExpectExec(regexp.QuoteMeta(tc.query)).
				WithArgs("row-1").
				WillReturnError(&pq.Error{Code: "23503"})

			err := tc.delete(db)
			assert.True(t, errors.Is(err, ErrReferenced))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
