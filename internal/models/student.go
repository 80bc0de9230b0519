package models

import "time"

// Gender values accepted for students.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Student represents a learner record. ClassName is a snapshot of the class
// name taken when the student was written.
type Student struct {
	ID              string    `db:"id" json:"id"`
	FullName        string    `db:"full_name" json:"full_name"`
	AdmissionNumber string    `db:"admission_number" json:"admission_number"`
	ClassID         *string   `db:"class_id" json:"class_id"`
	ClassName       *string   `db:"class_name" json:"class_name,omitempty"`
	Gender          string    `db:"gender" json:"gender"`
	DateOfBirth     *Date     `db:"date_of_birth" json:"date_of_birth,omitempty"`
	ParentID        *string   `db:"parent_id" json:"parent_id,omitempty"`
	Address         *string   `db:"address" json:"address,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter defines supported filters for listing students.
type StudentFilter struct {
	ClassID  string
	ParentID string
	IDs      []string
	Search   string
	Page     int
	PageSize int
}

// CreateStudentRequest is the payload for creating a student.
type CreateStudentRequest struct {
	FullName        string  `json:"full_name" validate:"required"`
	AdmissionNumber string  `json:"admission_number" validate:"required"`
	ClassID         string  `json:"class_id" validate:"required"`
	Gender          string  `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth     *Date   `json:"date_of_birth"`
	ParentID        *string `json:"parent_id"`
	Address         *string `json:"address"`
}

// UpdateStudentRequest is the payload for updating a student.
type UpdateStudentRequest CreateStudentRequest
