package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/qirllo/school-api/internal/models"
)

// SettingsRepository reads and writes the single school settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings or sql.ErrNoRows when none were saved yet.
func (r *SettingsRepository) Get(ctx context.Context) (*models.SchoolSettings, error) {
	var settings models.SchoolSettings
	const query = `SELECT school_name, address, phone, email, current_term, current_academic_year, updated_at FROM school_settings WHERE id = 1`
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

// Save upserts the settings row.
func (r *SettingsRepository) Save(ctx context.Context, settings *models.SchoolSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO school_settings (id, school_name, address, phone, email, current_term, current_academic_year, updated_at)
        VALUES (1, :school_name, :address, :phone, :email, :current_term, :current_academic_year, :updated_at)
        ON CONFLICT (id) DO UPDATE SET school_name = EXCLUDED.school_name, address = EXCLUDED.address, phone = EXCLUDED.phone,
            email = EXCLUDED.email, current_term = EXCLUDED.current_term, current_academic_year = EXCLUDED.current_academic_year,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
