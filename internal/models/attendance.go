package models

import "time"

// AttendanceStatus values.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Attendance is one student's status for one day. At most one record exists
// per (student, date).
type Attendance struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName *string          `db:"student_name" json:"student_name,omitempty"`
	ClassID     *string          `db:"class_id" json:"class_id"`
	ClassName   *string          `db:"class_name" json:"class_name,omitempty"`
	Date        Date             `db:"date" json:"date"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Notes       *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy    *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	StudentIDs []string
	ClassIDs   []string
	Date       *Date
	From       *Date
	To         *Date
}

// MarkAttendanceRequest records attendance for one student.
type MarkAttendanceRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	Date      Date             `json:"date" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     *string          `json:"notes"`
}

// BulkAttendanceRecord is one entry inside a bulk request.
type BulkAttendanceRecord struct {
	StudentID string           `json:"student_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     *string          `json:"notes"`
}

// BulkAttendanceRequest records attendance for a class on one date.
type BulkAttendanceRequest struct {
	ClassID string                 `json:"class_id" validate:"required"`
	Date    Date                   `json:"date" validate:"required"`
	Records []BulkAttendanceRecord `json:"records" validate:"required,min=1,dive"`
}

// AttendanceCounts is a per-status tally.
type AttendanceCounts struct {
	Total   int `db:"total" json:"total_days"`
	Present int `db:"present" json:"present"`
	Absent  int `db:"absent" json:"absent"`
	Late    int `db:"late" json:"late"`
	Excused int `db:"excused" json:"excused"`
}

// AttendanceSummary reports a student's attendance rate.
type AttendanceSummary struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	AttendanceCounts
	AttendanceRate float64 `json:"attendance_rate"`
}
