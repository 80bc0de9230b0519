package models

import "time"

// Term values.
const (
	TermFirst  = "first"
	TermSecond = "second"
	TermThird  = "third"
)

// GradeStatus tracks the approval lifecycle of a grade.
type GradeStatus string

const (
	GradeStatusDraft     GradeStatus = "draft"
	GradeStatusSubmitted GradeStatus = "submitted"
	GradeStatusApproved  GradeStatus = "approved"
)

// Grade is a student's result for one subject in one term. At most one grade
// exists per (student, subject, term, academic year).
type Grade struct {
	ID           string      `db:"id" json:"id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	StudentName  *string     `db:"student_name" json:"student_name,omitempty"`
	SubjectID    string      `db:"subject_id" json:"subject_id"`
	SubjectName  *string     `db:"subject_name" json:"subject_name,omitempty"`
	Term         string      `db:"term" json:"term"`
	AcademicYear string      `db:"academic_year" json:"academic_year"`
	CAScore      float64     `db:"ca_score" json:"ca_score"`
	ExamScore    float64     `db:"exam_score" json:"exam_score"`
	TotalScore   float64     `db:"total_score" json:"total_score"`
	Grade        string      `db:"grade" json:"grade"`
	Comment      *string     `db:"comment" json:"comment,omitempty"`
	Status       GradeStatus `db:"status" json:"status"`
	TeacherID    *string     `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// LetterGrade maps a total score to its letter. Lower bounds are inclusive.
func LetterGrade(total float64) string {
	switch {
	case total >= 70:
		return "A"
	case total >= 60:
		return "B"
	case total >= 50:
		return "C"
	case total >= 45:
		return "D"
	case total >= 40:
		return "E"
	default:
		return "F"
	}
}

// GradeFilter narrows grade listings and bulk transitions.
type GradeFilter struct {
	StudentIDs   []string
	SubjectID    string
	ClassID      string
	Term         string
	AcademicYear string
	Status       GradeStatus
}

// UpsertGradeRequest enters or overwrites a single grade.
type UpsertGradeRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	SubjectID    string  `json:"subject_id" validate:"required"`
	CAScore      float64 `json:"ca_score" validate:"gte=0,lte=40"`
	ExamScore    float64 `json:"exam_score" validate:"gte=0,lte=60"`
	Term         string  `json:"term" validate:"required,oneof=first second third"`
	AcademicYear string  `json:"academic_year"`
	Comment      *string `json:"comment"`
}

// BulkGradeEntry is one student's scores inside a bulk request.
type BulkGradeEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	CAScore   float64 `json:"ca_score" validate:"gte=0,lte=40"`
	ExamScore float64 `json:"exam_score" validate:"gte=0,lte=60"`
	Comment   *string `json:"comment"`
}

// BulkGradeRequest enters grades for many students in one subject and term.
type BulkGradeRequest struct {
	SubjectID    string           `json:"subject_id" validate:"required"`
	Term         string           `json:"term" validate:"required,oneof=first second third"`
	AcademicYear string           `json:"academic_year"`
	Grades       []BulkGradeEntry `json:"grades" validate:"required,min=1"`
}

// BulkEntryError reports a rejected entry in a bulk request.
type BulkEntryError struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id,omitempty"`
	Error     string `json:"error"`
}

// BulkGradeResult lists saved grades and per-entry failures.
type BulkGradeResult struct {
	Grades []Grade          `json:"grades"`
	Errors []BulkEntryError `json:"errors"`
}

// GradeTransitionRequest selects grades for a bulk status change.
type GradeTransitionRequest struct {
	SubjectID    string `json:"subject_id"`
	ClassID      string `json:"class_id"`
	Term         string `json:"term" validate:"omitempty,oneof=first second third"`
	AcademicYear string `json:"academic_year"`
}

// TransitionResult reports how many grades changed status.
type TransitionResult struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}
