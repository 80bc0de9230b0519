package models

import "time"

// ClassLevel enumerates the six grade levels.
type ClassLevel string

const (
	LevelJSS1 ClassLevel = "JSS1"
	LevelJSS2 ClassLevel = "JSS2"
	LevelJSS3 ClassLevel = "JSS3"
	LevelSS1  ClassLevel = "SS1"
	LevelSS2  ClassLevel = "SS2"
	LevelSS3  ClassLevel = "SS3"
)

// ClassLevels lists levels in ascending order.
var ClassLevels = []ClassLevel{LevelJSS1, LevelJSS2, LevelJSS3, LevelSS1, LevelSS2, LevelSS3}

// Class represents a class group. StudentCount is computed at read time.
type Class struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Level        ClassLevel `db:"level" json:"level"`
	Section      string     `db:"section" json:"section"`
	TeacherID    *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName  *string    `db:"teacher_name" json:"teacher_name,omitempty"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	StudentCount int        `db:"student_count" json:"student_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassFilter narrows class listings. When TeacherScope is set the result is
// the union of classes homeroomed by that teacher and classes where the
// teacher takes a subject.
type ClassFilter struct {
	Level        string
	AcademicYear string
	TeacherScope string
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name         string  `json:"name" validate:"required"`
	Level        string  `json:"level" validate:"required,oneof=JSS1 JSS2 JSS3 SS1 SS2 SS3"`
	Section      string  `json:"section"`
	TeacherID    *string `json:"teacher_id"`
	AcademicYear string  `json:"academic_year"`
}

// UpdateClassRequest is the payload for updating a class.
type UpdateClassRequest CreateClassRequest

// AssignTeacherRequest sets the homeroom teacher of a class.
type AssignTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
}
