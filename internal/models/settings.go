package models

import "time"

// SchoolSettings is the single-row school profile.
type SchoolSettings struct {
	SchoolName          string    `db:"school_name" json:"school_name"`
	Address             *string   `db:"address" json:"address,omitempty"`
	Phone               *string   `db:"phone" json:"phone,omitempty"`
	Email               *string   `db:"email" json:"email,omitempty"`
	CurrentTerm         string    `db:"current_term" json:"current_term"`
	CurrentAcademicYear string    `db:"current_academic_year" json:"current_academic_year"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// UpdateSchoolSettingsRequest replaces the school profile.
type UpdateSchoolSettingsRequest struct {
	SchoolName          string  `json:"school_name" validate:"required"`
	Address             *string `json:"address"`
	Phone               *string `json:"phone"`
	Email               *string `json:"email" validate:"omitempty,email"`
	CurrentTerm         string  `json:"current_term" validate:"required,oneof=first second third"`
	CurrentAcademicYear string  `json:"current_academic_year" validate:"required"`
}

// OnboardingStatus reports whether first-time setup has been completed.
type OnboardingStatus struct {
	IsOnboarded   bool `json:"is_onboarded"`
	HasAdmin      bool `json:"has_admin"`
	SettingsSaved bool `json:"settings_saved"`
}

// SchoolSetupRequest bootstraps the school profile and its first administrator.
type SchoolSetupRequest struct {
	SchoolName          string  `json:"school_name" validate:"required"`
	Address             *string `json:"address"`
	Phone               *string `json:"phone"`
	Email               *string `json:"email" validate:"omitempty,email"`
	CurrentTerm         string  `json:"current_term" validate:"omitempty,oneof=first second third"`
	CurrentAcademicYear string  `json:"current_academic_year"`
	AdminFullName       string  `json:"admin_full_name" validate:"required"`
	AdminEmail          string  `json:"admin_email" validate:"required,email"`
	AdminPassword       string  `json:"admin_password" validate:"required,min=6,max=72"`
	AdminPhone          *string `json:"admin_phone"`
}

// SchoolSetupResult is returned once setup succeeds.
type SchoolSetupResult struct {
	Settings SchoolSettings `json:"settings"`
	Admin    User           `json:"admin"`
}
