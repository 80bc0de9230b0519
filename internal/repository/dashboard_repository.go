package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qirllo/school-api/internal/models"
)

// DashboardRepository aggregates the counters shown on role dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// AdminStats returns school-wide totals. Attendance is counted for the given day.
func (r *DashboardRepository) AdminStats(ctx context.Context, today models.Date) (*models.AdminDashboardStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(*) FROM users WHERE role = 'teacher') AS total_teachers,
        (SELECT COUNT(*) FROM users WHERE role = 'parent') AS total_parents,
        (SELECT COUNT(*) FROM classes) AS total_classes,
        (SELECT COUNT(*) FROM grades WHERE status = 'submitted') AS pending_grades,
        (SELECT COALESCE(SUM(amount), 0) FROM fee_payments) AS fees_collected,
        (SELECT COUNT(*) FROM attendance WHERE date = $1) AS attendance_today`
	var stats models.AdminDashboardStats
	if err := r.db.GetContext(ctx, &stats, query, today); err != nil {
		return nil, fmt.Errorf("admin dashboard stats: %w", err)
	}
	return &stats, nil
}

// TeacherStats returns counters scoped to the classes of the teacher's subjects.
func (r *DashboardRepository) TeacherStats(ctx context.Context, teacherID string, today models.Date) (*models.TeacherDashboardStats, error) {
	const query = `SELECT
        (SELECT COUNT(DISTINCT class_id) FROM subjects WHERE teacher_id = $1) AS total_classes,
        (SELECT COUNT(*) FROM subjects WHERE teacher_id = $1) AS total_subjects,
        (SELECT COUNT(*) FROM students WHERE class_id IN (SELECT class_id FROM subjects WHERE teacher_id = $1)) AS total_students,
        (SELECT COUNT(*) FROM grades WHERE teacher_id = $1 AND status = 'draft') AS draft_grades,
        (SELECT COUNT(*) FROM attendance WHERE date = $2 AND class_id IN (SELECT class_id FROM subjects WHERE teacher_id = $1)) AS attendance_today`
	var stats models.TeacherDashboardStats
	if err := r.db.GetContext(ctx, &stats, query, teacherID, today); err != nil {
		return nil, fmt.Errorf("teacher dashboard stats: %w", err)
	}
	return &stats, nil
}

// ApprovedResultCount counts approved grades for the given students.
func (r *DashboardRepository) ApprovedResultCount(ctx context.Context, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM grades WHERE student_id = ANY($1) AND status = 'approved'`, pq.Array(studentIDs)); err != nil {
		return 0, fmt.Errorf("count approved results: %w", err)
	}
	return count, nil
}
