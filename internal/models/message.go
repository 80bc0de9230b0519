package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID            string     `db:"id" json:"id"`
	SenderID      string     `db:"sender_id" json:"sender_id"`
	SenderName    *string    `db:"sender_name" json:"sender_name,omitempty"`
	RecipientID   string     `db:"recipient_id" json:"recipient_id"`
	RecipientName *string    `db:"recipient_name" json:"recipient_name,omitempty"`
	Subject       string     `db:"subject" json:"subject"`
	Content       string     `db:"content" json:"content"`
	MessageType   string     `db:"message_type" json:"message_type"`
	IsRead        bool       `db:"is_read" json:"is_read"`
	ReadAt        *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Mailbox folders.
const (
	FolderInbox = "inbox"
	FolderSent  = "sent"
)

// SendMessageRequest sends a message to another user.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Content     string `json:"content" validate:"required"`
	MessageType string `json:"message_type"`
}

// UnreadCount reports unread messages for the caller.
type UnreadCount struct {
	Count int `json:"count"`
}
