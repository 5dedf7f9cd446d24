package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPresent, StatusAbsent, StatusLate} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("excused").Valid())
	assert.False(t, Status("").Valid())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleTeacher.Valid())
	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("admin").Valid())
}

func TestUserJSON_OmitsPasswordHash(t *testing.T) {
	u := User{ID: "u1", Username: "teacher1", PasswordHash: "$2a$secret", Role: RoleTeacher}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "student_id")
}

func TestProfile(t *testing.T) {
	u := User{ID: "u1", Username: "st001", Role: RoleStudent, FullName: "John Smith", Email: "john@student.com", StudentID: "s1"}
	assert.Equal(t, Profile{ID: "u1", Username: "st001", Role: RoleStudent, FullName: "John Smith", Email: "john@student.com"}, u.Profile())
}
