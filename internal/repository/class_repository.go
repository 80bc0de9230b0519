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

const classSelect = `SELECT c.id, c.name, c.level, c.section, c.teacher_id, c.teacher_name, c.academic_year, c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id) AS student_count
        FROM classes c`

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes ordered by name. TeacherScope restricts the result to
// classes the teacher leads or teaches a subject in.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	var conds conditions
	if filter.Level != "" {
		conds.add("c.level = $%d", filter.Level)
	}
	if filter.AcademicYear != "" {
		conds.add("c.academic_year = $%d", filter.AcademicYear)
	}
	if filter.TeacherScope != "" {
		conds.add("(c.teacher_id = $%[1]d OR c.id IN (SELECT sb.class_id FROM subjects sb WHERE sb.teacher_id = $%[1]d))", filter.TeacherScope)
	}

	classes := make([]models.Class, 0)
	if err := r.db.SelectContext(ctx, &classes, classSelect+conds.where()+" ORDER BY c.name ASC", conds.args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID fetches a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, classSelect+" WHERE c.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &class, nil
}

// FindByName fetches a class by its exact name.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, classSelect+" WHERE c.name = $1 ORDER BY c.created_at LIMIT 1", name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get class by name: %w", err)
	}
	return &class, nil
}

// FindByLevel returns the first class created for a level.
func (r *ClassRepository) FindByLevel(ctx context.Context, level models.ClassLevel) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, classSelect+" WHERE c.level = $1 ORDER BY c.created_at LIMIT 1", level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get class by level: %w", err)
	}
	return &class, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, level, section, teacher_id, teacher_name, academic_year, created_at, updated_at)
        VALUES (:id, :name, :level, :section, :teacher_id, :teacher_name, :academic_year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return translateWriteErr("create class", err)
	}
	return nil
}

// Update modifies a class, including its teacher assignment.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, level = :level, section = :section, teacher_id = :teacher_id, teacher_name = :teacher_name,
        academic_year = :academic_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class. It returns sql.ErrNoRows when nothing was deleted.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return translateWriteErr("delete class", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
