package models

// SeedResult reports the outcome of seeding sample data.
type SeedResult struct {
	Message       string `json:"message"`
	AdminEmail    string `json:"admin_email,omitempty"`
	AdminPassword string `json:"admin_password,omitempty"`
}
