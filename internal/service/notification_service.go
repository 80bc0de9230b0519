package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qirllo/school-api/pkg/jobs"
	"github.com/qirllo/school-api/pkg/mailer"
)

// JobTypeInviteEmail delivers credentials to an invited user.
const JobTypeInviteEmail = "invite_email"

// InviteEmailPayload is the job payload for JobTypeInviteEmail.
type InviteEmailPayload struct {
	Email             string
	FullName          string
	Role              string
	TemporaryPassword string
}

// NotificationService renders and sends transactional email from queued jobs.
type NotificationService struct {
	mailer     mailer.Mailer
	schoolName string
	loginURL   string
	logger     *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(m mailer.Mailer, schoolName, loginURL string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, schoolName: schoolName, loginURL: loginURL, logger: logger}
}

// HandleInvite is the queue handler for JobTypeInviteEmail.
func (s *NotificationService) HandleInvite(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(InviteEmailPayload)
	if !ok {
		s.logger.Error("invalid invite payload", zap.String("job_id", job.ID))
		return nil
	}
	text := fmt.Sprintf("Hello %s,\n\nAn account with the %s role was created for you at %s.\n\nEmail: %s\nTemporary password: %s\n\nSign in at %s and change your password.\n",
		payload.FullName, payload.Role, s.schoolName, payload.Email, payload.TemporaryPassword, s.loginURL)
	return s.mailer.Send(ctx, mailer.Message{
		ToName:  payload.FullName,
		ToEmail: payload.Email,
		Subject: "Your " + s.schoolName + " account",
		Text:    text,
	})
}
