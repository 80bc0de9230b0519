package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterGradeBoundaries(t *testing.T) {
	cases := map[float64]string{
		100:  "A",
		70:   "A",
		69.9: "B",
		60:   "B",
		50:   "C",
		45:   "D",
		44.5: "E",
		40:   "E",
		39.9: "F",
		0:    "F",
	}
	for total, want := range cases {
		assert.Equal(t, want, LetterGrade(total), "total=%v", total)
	}
}

func TestAudienceForRole(t *testing.T) {
	assert.Equal(t, AudienceAll, AudienceForRole(RoleAdmin))
	assert.Equal(t, AudienceTeachers, AudienceForRole(RoleTeacher))
	assert.Equal(t, AudienceParents, AudienceForRole(RoleParent))
}

func TestUserRoleValid(t *testing.T) {
	assert.True(t, RoleParent.Valid())
	assert.False(t, UserRole("student").Valid())
}
