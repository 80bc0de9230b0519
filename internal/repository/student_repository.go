package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qirllo/school-api/internal/models"
)

const studentColumns = `id, full_name, admission_number, class_id, class_name, gender, date_of_birth, parent_id, address, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters ordered by name.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var conds conditions
	if filter.ClassID != "" {
		conds.add("class_id = $%d", filter.ClassID)
	}
	if filter.ParentID != "" {
		conds.add("parent_id = $%d", filter.ParentID)
	}
	if filter.IDs != nil {
		conds.add("id = ANY($%d)", pq.Array(filter.IDs))
	}
	if filter.Search != "" {
		conds.add("(LOWER(full_name) LIKE $%[1]d OR LOWER(admission_number) LIKE $%[1]d)", "%"+strings.ToLower(filter.Search)+"%")
	}

	_, size, offset := normalizePage(filter.Page, filter.PageSize, 1000, 1000)
	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY full_name ASC LIMIT %d OFFSET %d", studentColumns, conds.where(), size, offset)

	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// FindByAdmissionNumber returns a student by admission number.
func (r *StudentRepository) FindByAdmissionNumber(ctx context.Context, admission string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE admission_number = $1`, admission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get student by admission number: %w", err)
	}
	return &student, nil
}

// FindByIDs returns the students with the given identifiers.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	students := make([]models.Student, 0, len(ids))
	if len(ids) == 0 {
		return students, nil
	}
	if err := r.db.SelectContext(ctx, &students, `SELECT `+studentColumns+` FROM students WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get students by ids: %w", err)
	}
	return students, nil
}

// ExistsByAdmissionNumber reports whether an admission number is already used.
func (r *StudentRepository) ExistsByAdmissionNumber(ctx context.Context, admission string, excludeID string) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM students WHERE admission_number = $1"
	args := []interface{}{admission}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += ")"
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check admission number: %w", err)
	}
	return exists, nil
}

// ChildIDs returns the ids of students linked to a parent.
func (r *StudentRepository) ChildIDs(ctx context.Context, parentID string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM students WHERE parent_id = $1 ORDER BY full_name`, parentID); err != nil {
		return nil, fmt.Errorf("list child ids: %w", err)
	}
	return ids, nil
}

// Create inserts a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, admission_number, class_id, class_name, gender, date_of_birth, parent_id, address, created_at, updated_at)
        VALUES (:id, :full_name, :admission_number, :class_id, :class_name, :gender, :date_of_birth, :parent_id, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return translateWriteErr("create student", err)
	}
	return nil
}

// Update modifies a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, admission_number = :admission_number, class_id = :class_id, class_name = :class_name,
        gender = :gender, date_of_birth = :date_of_birth, parent_id = :parent_id, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return translateWriteErr("update student", err)
	}
	return nil
}

// LinkParent sets parent_id on every student whose admission number is listed.
func (r *StudentRepository) LinkParent(ctx context.Context, parentID string, admissionNumbers []string) (int64, error) {
	if len(admissionNumbers) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE students SET parent_id = $1, updated_at = $2 WHERE admission_number = ANY($3)`,
		parentID, time.Now().UTC(), pq.Array(admissionNumbers))
	if err != nil {
		return 0, fmt.Errorf("link parent: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a student. It returns sql.ErrNoRows when nothing was deleted.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return translateWriteErr("delete student", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
