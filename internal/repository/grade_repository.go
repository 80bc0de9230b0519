package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qirllo/school-api/internal/models"
)

const gradeColumns = `id, student_id, student_name, subject_id, subject_name, term, academic_year, ca_score, exam_score, total_score, grade, comment, status, teacher_id, created_at, updated_at`

// GradeRepository persists grade records keyed by (student, subject, term, academic year).
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert inserts the grade or overwrites the row sharing its natural key. An
// overwritten row keeps its id and creation time and returns to draft.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now
	grade.Status = models.GradeStatusDraft

	query := `INSERT INTO grades (id, student_id, student_name, subject_id, subject_name, term, academic_year, ca_score, exam_score, total_score, grade, comment, status, teacher_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (student_id, subject_id, term, academic_year) DO UPDATE SET
            student_name = EXCLUDED.student_name, subject_name = EXCLUDED.subject_name,
            ca_score = EXCLUDED.ca_score, exam_score = EXCLUDED.exam_score, total_score = EXCLUDED.total_score,
            grade = EXCLUDED.grade, comment = EXCLUDED.comment, status = EXCLUDED.status,
            teacher_id = EXCLUDED.teacher_id, updated_at = EXCLUDED.updated_at
        RETURNING ` + gradeColumns
	row := r.db.QueryRowxContext(ctx, query,
		grade.ID, grade.StudentID, grade.StudentName, grade.SubjectID, grade.SubjectName, grade.Term, grade.AcademicYear,
		grade.CAScore, grade.ExamScore, grade.TotalScore, grade.Grade, grade.Comment, grade.Status, grade.TeacherID,
		grade.CreatedAt, grade.UpdatedAt)
	if err := row.StructScan(grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// FindByID returns a grade by id.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, "SELECT "+gradeColumns+" FROM grades WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get grade: %w", err)
	}
	return &grade, nil
}

// List returns grades matching the filter, newest first.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	conds := gradeConditions(filter, 0)
	grades := make([]models.Grade, 0)
	query := "SELECT " + gradeColumns + " FROM grades" + conds.where() + " ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &grades, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// Transition moves a single grade from one status to another. It reports
// whether the row was in the expected status.
func (r *GradeRepository) Transition(ctx context.Context, id string, from, to models.GradeStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE grades SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("transition grade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition grade rows: %w", err)
	}
	return n > 0, nil
}

// BulkTransition moves every grade matching the filter and currently in from
// to the to status, returning the number of rows changed.
func (r *GradeRepository) BulkTransition(ctx context.Context, filter models.GradeFilter, from, to models.GradeStatus) (int64, error) {
	filter.Status = from
	conds := gradeConditions(filter, 2)
	args := append([]interface{}{to, time.Now().UTC()}, conds.args...)
	res, err := r.db.ExecContext(ctx, "UPDATE grades SET status = $1, updated_at = $2"+conds.where(), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk transition grades: %w", err)
	}
	return res.RowsAffected()
}

func gradeConditions(filter models.GradeFilter, base int) conditions {
	conds := conditions{base: base}
	if filter.StudentIDs != nil {
		conds.add("student_id = ANY($%d)", pq.Array(filter.StudentIDs))
	}
	if filter.SubjectID != "" {
		conds.add("subject_id = $%d", filter.SubjectID)
	}
	if filter.ClassID != "" {
		conds.add("student_id IN (SELECT id FROM students WHERE class_id = $%d)", filter.ClassID)
	}
	if filter.Term != "" {
		conds.add("term = $%d", filter.Term)
	}
	if filter.AcademicYear != "" {
		conds.add("academic_year = $%d", filter.AcademicYear)
	}
	if filter.Status != "" {
		conds.add("status = $%d", filter.Status)
	}
	return conds
}
