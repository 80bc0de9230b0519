package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qirllo/school-api/internal/models"
)

const messageColumns = `id, sender_id, sender_name, recipient_id, recipient_name, subject, content, message_type, is_read, read_at, created_at`

// MessageRepository persists direct messages between users.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs a MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, sender_id, sender_name, recipient_id, recipient_name, subject, content, message_type, is_read, read_at, created_at)
        VALUES (:id, :sender_id, :sender_name, :recipient_id, :recipient_name, :subject, :content, :message_type, :is_read, :read_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns a message by id.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.GetContext(ctx, &message, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &message, nil
}

// ListFolder returns the inbox or sent folder of a user, newest first.
func (r *MessageRepository) ListFolder(ctx context.Context, userID, folder string) ([]models.Message, error) {
	column := "recipient_id"
	if folder == models.FolderSent {
		column = "sender_id"
	}
	messages := make([]models.Message, 0)
	query := "SELECT " + messageColumns + " FROM messages WHERE " + column + " = $1 ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &messages, query, userID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags an unread message addressed to the recipient as read. It
// reports whether a row changed.
func (r *MessageRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE, read_at = $1 WHERE id = $2 AND recipient_id = $3 AND is_read = FALSE`,
		at, id, recipientID)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark message read rows: %w", err)
	}
	return n > 0, nil
}

// CountUnread counts unread messages addressed to the user.
func (r *MessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
