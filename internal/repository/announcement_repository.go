package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qirllo/school-api/internal/models"
)

const announcementColumns = `id, title, content, target_audience, priority, author_id, author_name, created_at`

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns the newest announcements addressed to any of the audiences.
func (r *AnnouncementRepository) List(ctx context.Context, audiences []string, limit int) ([]models.Announcement, error) {
	if limit <= 0 {
		limit = models.AnnouncementLimit
	}
	items := make([]models.Announcement, 0)
	query := fmt.Sprintf("SELECT %s FROM announcements WHERE target_audience = ANY($1) ORDER BY created_at DESC LIMIT %d", announcementColumns, limit)
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(audiences)); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return items, nil
}

// Count returns how many announcements address any of the audiences.
func (r *AnnouncementRepository) Count(ctx context.Context, audiences []string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM announcements WHERE target_audience = ANY($1)`, pq.Array(audiences)); err != nil {
		return 0, fmt.Errorf("count announcements: %w", err)
	}
	return count, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO announcements (id, title, content, target_audience, priority, author_id, author_name, created_at)
        VALUES (:id, :title, :content, :target_audience, :priority, :author_id, :author_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement. It returns sql.ErrNoRows when nothing was deleted.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
