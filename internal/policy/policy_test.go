package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

func TestAuthorize(t *testing.T) {
	authz := New()
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	parent := &models.JWTClaims{UserID: "p1", Role: models.RoleParent}

	tests := []struct {
		name    string
		caller  *models.JWTClaims
		action  Action
		owners  []string
		allowed bool
	}{
		{"admin approves", admin, ActionApproveGrades, nil, true},
		{"teacher cannot approve", teacher, ActionApproveGrades, nil, false},
		{"teacher enters grades", teacher, ActionEnterGrades, nil, true},
		{"parent cannot enter grades", parent, ActionEnterGrades, nil, false},
		{"parent views own child", parent, ActionViewStudent, []string{"p1"}, true},
		{"parent views other child", parent, ActionViewStudent, []string{"p2"}, false},
		{"parent without owner", parent, ActionViewBalance, nil, false},
		{"teacher views any balance", teacher, ActionViewBalance, []string{"p9"}, true},
		{"self profile update", parent, ActionUpdateProfile, []string{"p1"}, true},
		{"admin reads foreign message", admin, ActionReadMessage, []string{"t1", "p1"}, false},
		{"recipient reads message", parent, ActionReadMessage, []string{"t1", "p1"}, true},
		{"teacher cannot import", teacher, ActionImport, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := authz.Authorize(tc.caller, tc.action, tc.owners...)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
		})
	}
}

func TestAuthorizeWithoutCaller(t *testing.T) {
	err := New().Authorize(nil, ActionEnterGrades)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestOwnerOf(t *testing.T) {
	id := "p1"
	assert.Equal(t, "p1", OwnerOf(&id))
	assert.Empty(t, OwnerOf(nil))
}
