package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qirllo/school-api/internal/models"
)

const subjectColumns = `id, name, code, class_id, class_name, teacher_id, teacher_name, created_at, updated_at`

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a new SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects matching the filter.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	var conds conditions
	if filter.ClassID != "" {
		conds.add("class_id = $%d", filter.ClassID)
	}
	if filter.TeacherID != "" {
		conds.add("teacher_id = $%d", filter.TeacherID)
	}
	subjects := make([]models.Subject, 0)
	query := "SELECT " + subjectColumns + " FROM subjects" + conds.where() + " ORDER BY name ASC"
	if err := r.db.SelectContext(ctx, &subjects, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &subject, nil
}

// ClassIDsByTeacher returns the distinct class ids of the teacher's subjects.
func (r *SubjectRepository) ClassIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT class_id FROM subjects WHERE teacher_id = $1`, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher class ids: %w", err)
	}
	return ids, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, name, code, class_id, class_name, teacher_id, teacher_name, created_at, updated_at)
        VALUES (:id, :name, :code, :class_id, :class_name, :teacher_id, :teacher_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return translateWriteErr("create subject", err)
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, class_id = :class_id, class_name = :class_name, teacher_id = :teacher_id,
        teacher_name = :teacher_name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject. It returns sql.ErrNoRows when nothing was deleted.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return translateWriteErr("delete subject", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
