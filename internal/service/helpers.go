package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/policy"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

// SchoolDefaults are the values applied when requests omit a term, academic
// year or fee structure.
type SchoolDefaults struct {
	AcademicYear string
	Term         string
	FeeTotal     float64
}

func (d SchoolDefaults) year(v string) string {
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if d.AcademicYear != "" {
		return d.AcademicYear
	}
	return "2025/2026"
}

func (d SchoolDefaults) term(v string) string {
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if d.Term != "" {
		return d.Term
	}
	return models.TermFirst
}

func (d SchoolDefaults) feeTotal() float64 {
	if d.FeeTotal > 0 {
		return d.FeeTotal
	}
	return 50000
}

// Authorizer is the policy check consulted by services.
type Authorizer interface {
	Authorize(caller *models.JWTClaims, action policy.Action, owners ...string) error
}

func defaultAuthorizer(a Authorizer) Authorizer {
	if a == nil {
		return policy.New()
	}
	return a
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// bcrypt only accepts passwords up to 72 bytes.
const maxPasswordBytes = 72

var errPasswordTooLong = appErrors.Clone(appErrors.ErrValidation, "password must be at most 72 bytes")

func hashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", errPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func temporaryPassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func recordAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, entry *models.AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.Create(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.String("resource", entry.Resource), zap.Error(err))
	}
}

func titleCase(v string) string {
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}
