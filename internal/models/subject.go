package models

import "time"

// Subject represents a subject taught in a class.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	ClassID     string    `db:"class_id" json:"class_id"`
	ClassName   *string   `db:"class_name" json:"class_name,omitempty"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName *string   `db:"teacher_name" json:"teacher_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter narrows subject listings.
type SubjectFilter struct {
	ClassID   string
	TeacherID string
}

// CreateSubjectRequest is the payload for creating a subject.
type CreateSubjectRequest struct {
	Name      string  `json:"name" validate:"required"`
	Code      string  `json:"code" validate:"required"`
	ClassID   string  `json:"class_id" validate:"required"`
	TeacherID *string `json:"teacher_id"`
}

// UpdateSubjectRequest is the payload for updating a subject.
type UpdateSubjectRequest CreateSubjectRequest
