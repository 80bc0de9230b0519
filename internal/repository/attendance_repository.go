package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qirllo/school-api/internal/models"
)

const attendanceColumns = `id, student_id, student_name, class_id, class_name, date, status, notes, marked_by, created_at, updated_at`

// AttendanceRepository persists daily attendance keyed by (student, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records the attendance row, replacing any row for the same student and date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	query := `INSERT INTO attendance (id, student_id, student_name, class_id, class_name, date, status, notes, marked_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (student_id, date) DO UPDATE SET
            student_name = EXCLUDED.student_name, class_id = EXCLUDED.class_id, class_name = EXCLUDED.class_name,
            status = EXCLUDED.status, notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
        RETURNING ` + attendanceColumns
	row := r.db.QueryRowxContext(ctx, query,
		record.ID, record.StudentID, record.StudentName, record.ClassID, record.ClassName, record.Date, record.Status,
		record.Notes, record.MarkedBy, record.CreatedAt, record.UpdatedAt)
	if err := row.StructScan(record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// List returns attendance rows matching the filter, most recent date first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	var conds conditions
	if filter.StudentIDs != nil {
		conds.add("student_id = ANY($%d)", pq.Array(filter.StudentIDs))
	}
	if filter.ClassIDs != nil {
		conds.add("class_id = ANY($%d)", pq.Array(filter.ClassIDs))
	}
	if filter.Date != nil {
		conds.add("date = $%d", *filter.Date)
	}
	if filter.From != nil {
		conds.add("date >= $%d", *filter.From)
	}
	if filter.To != nil {
		conds.add("date <= $%d", *filter.To)
	}

	records := make([]models.Attendance, 0)
	query := "SELECT " + attendanceColumns + " FROM attendance" + conds.where() + " ORDER BY date DESC, student_name ASC"
	if err := r.db.SelectContext(ctx, &records, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Counts tallies a student's attendance by status over every recorded day.
func (r *AttendanceRepository) Counts(ctx context.Context, studentID string) (models.AttendanceCounts, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'present') AS present,
        COUNT(*) FILTER (WHERE status = 'absent') AS absent,
        COUNT(*) FILTER (WHERE status = 'late') AS late,
        COUNT(*) FILTER (WHERE status = 'excused') AS excused
        FROM attendance WHERE student_id = $1`
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, studentID); err != nil {
		return counts, fmt.Errorf("count attendance: %w", err)
	}
	return counts, nil
}
