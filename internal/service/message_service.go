package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	ListFolder(ctx context.Context, userID, folder string) ([]models.Message, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// MessageService delivers direct messages between users.
type MessageService struct {
	repo      messageRepository
	users     userFinder
	authz     Authorizer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageRepository, users userFinder, authz Authorizer, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, users: users, authz: defaultAuthorizer(authz), validator: validate, logger: logger, now: time.Now}
}

// Send stores a message from the caller to an existing user.
func (s *MessageService) Send(ctx context.Context, caller *models.JWTClaims, req models.SendMessageRequest) (*models.Message, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid message payload")
	}
	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Recipient not found")
		}
		return nil, internalError(err, "failed to load recipient")
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = "direct"
	}
	message := &models.Message{
		SenderID:      caller.UserID,
		SenderName:    strPtr(caller.FullName),
		RecipientID:   recipient.ID,
		RecipientName: &recipient.FullName,
		Subject:       req.Subject,
		Content:       req.Content,
		MessageType:   messageType,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, internalError(err, "failed to send message")
	}
	return message, nil
}

// Folder lists the caller's inbox or sent messages, newest first.
func (s *MessageService) Folder(ctx context.Context, caller *models.JWTClaims, folder string) ([]models.Message, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch folder {
	case "":
		folder = models.FolderInbox
	case models.FolderInbox, models.FolderSent:
	default:
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "folder must be inbox or sent")
	}
	messages, err := s.repo.ListFolder(ctx, caller.UserID, folder)
	if err != nil {
		return nil, internalError(err, "failed to list messages")
	}
	return messages, nil
}

// Get returns a message visible to its sender or recipient. Opening an unread
// message as the recipient marks it read.
func (s *MessageService) Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.Message, error) {
	message, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Message not found")
		}
		return nil, internalError(err, "failed to load message")
	}
	if err := s.authz.Authorize(caller, policy.ActionReadMessage, message.SenderID, message.RecipientID); err != nil {
		return nil, err
	}

	if message.RecipientID == caller.UserID && !message.IsRead {
		at := s.now().UTC()
		updated, err := s.repo.MarkRead(ctx, message.ID, caller.UserID, at)
		if err != nil {
			s.logger.Warn("failed to mark message read", zap.String("message_id", message.ID), zap.Error(err))
		} else if updated {
			message.IsRead = true
			message.ReadAt = &at
		}
	}
	return message, nil
}

// UnreadCount returns how many of the caller's messages are unread.
func (s *MessageService) UnreadCount(ctx context.Context, caller *models.JWTClaims) (*models.UnreadCount, error) {
	if caller == nil {
		return nil, appErrors.ErrUnauthorized
	}
	count, err := s.repo.CountUnread(ctx, caller.UserID)
	if err != nil {
		return nil, internalError(err, "failed to count unread messages")
	}
	return &models.UnreadCount{Count: count}, nil
}
