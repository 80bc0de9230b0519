// Package policy centralizes the role and ownership rules applied by services.
package policy

import (
	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

// Action names an operation guarded by the authorizer.
type Action string

const (
	ActionManageUsers        Action = "users:manage"
	ActionViewDirectory      Action = "users:directory"
	ActionUpdateProfile      Action = "users:update"
	ActionManageStudents     Action = "students:manage"
	ActionViewStudent        Action = "students:view"
	ActionManageClasses      Action = "classes:manage"
	ActionManageSubjects     Action = "subjects:manage"
	ActionEnterGrades        Action = "grades:enter"
	ActionApproveGrades      Action = "grades:approve"
	ActionViewReportCard     Action = "grades:report_card"
	ActionMarkAttendance     Action = "attendance:mark"
	ActionViewAttendance     Action = "attendance:view"
	ActionManageFees         Action = "fees:manage"
	ActionViewBalance        Action = "fees:balance"
	ActionReadMessage        Action = "messages:read"
	ActionManageAnnouncement Action = "announcements:manage"
	ActionImport             Action = "import:run"
	ActionManageSettings     Action = "settings:manage"
)

type rule struct {
	roles      []models.UserRole
	ownerRoles []models.UserRole
	message    string
}

var rules = map[Action]rule{
	ActionManageUsers:        {roles: adminOnly, message: "admin access required"},
	ActionViewDirectory:      {roles: staff, message: "admin or teacher access required"},
	ActionUpdateProfile:      {roles: adminOnly, ownerRoles: everyone, message: "cannot update another user"},
	ActionManageStudents:     {roles: adminOnly, message: "admin access required"},
	ActionViewStudent:        {roles: staff, ownerRoles: parents, message: "access denied to this student"},
	ActionManageClasses:      {roles: adminOnly, message: "admin access required"},
	ActionManageSubjects:     {roles: adminOnly, message: "admin access required"},
	ActionEnterGrades:        {roles: staff, message: "admin or teacher access required"},
	ActionApproveGrades:      {roles: adminOnly, message: "only admins can approve grades"},
	ActionViewReportCard:     {roles: staff, ownerRoles: parents, message: "access denied to this student"},
	ActionMarkAttendance:     {roles: staff, message: "admin or teacher access required"},
	ActionViewAttendance:     {roles: staff, ownerRoles: parents, message: "access denied to this student"},
	ActionManageFees:         {roles: adminOnly, message: "admin access required"},
	ActionViewBalance:        {roles: staff, ownerRoles: parents, message: "access denied to this student"},
	ActionReadMessage:        {ownerRoles: everyone, message: "access denied to this message"},
	ActionManageAnnouncement: {roles: adminOnly, message: "admin access required"},
	ActionImport:             {roles: adminOnly, message: "admin access required"},
	ActionManageSettings:     {roles: adminOnly, message: "admin access required"},
}

var (
	adminOnly = []models.UserRole{models.RoleAdmin}
	staff     = []models.UserRole{models.RoleAdmin, models.RoleTeacher}
	parents   = []models.UserRole{models.RoleParent}
	everyone  = []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleParent}
)

// Authorizer decides whether a caller may perform an action on a resource
// owned by the given user ids.
type Authorizer struct{}

// New returns an Authorizer.
func New() *Authorizer {
	return &Authorizer{}
}

// Authorize returns nil when the caller's role grants the action outright, or
// when the role is granted on owned resources and the caller is one of owners.
// Failures are ErrUnauthorized for a missing caller and ErrForbidden otherwise.
func (a *Authorizer) Authorize(caller *models.JWTClaims, action Action, owners ...string) error {
	if caller == nil || caller.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	r, ok := rules[action]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "unknown action")
	}
	if hasRole(r.roles, caller.Role) {
		return nil
	}
	if hasRole(r.ownerRoles, caller.Role) && contains(owners, caller.UserID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, r.message)
}

// OwnerOf returns the id stored in ref, or an empty string when ref is nil.
func OwnerOf(ref *string) string {
	if ref == nil {
		return ""
	}
	return *ref
}

func hasRole(roles []models.UserRole, role models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v != "" && v == id {
			return true
		}
	}
	return false
}
