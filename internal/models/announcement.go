package models

import "time"

// Audience values for announcements.
const (
	AudienceAll      = "all"
	AudienceTeachers = "teachers"
	AudienceParents  = "parents"
	AudienceStudents = "students"
)

// AnnouncementLimit caps announcement listings.
const AnnouncementLimit = 100

// Announcement is a broadcast message targeted at an audience.
type Announcement struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Content        string    `db:"content" json:"content"`
	TargetAudience string    `db:"target_audience" json:"target_audience"`
	Priority       string    `db:"priority" json:"priority"`
	AuthorID       *string   `db:"author_id" json:"author_id,omitempty"`
	AuthorName     *string   `db:"author_name" json:"author_name,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CreateAnnouncementRequest creates an announcement.
type CreateAnnouncementRequest struct {
	Title          string `json:"title" validate:"required"`
	Content        string `json:"content" validate:"required"`
	TargetAudience string `json:"target_audience" validate:"required,oneof=all teachers parents students"`
	Priority       string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

// AudienceForRole maps a caller role to the audience it reads in addition
// to "all".
func AudienceForRole(role UserRole) string {
	switch role {
	case RoleTeacher:
		return AudienceTeachers
	case RoleParent:
		return AudienceParents
	default:
		return AudienceAll
	}
}
