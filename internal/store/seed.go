package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/model"
)

// seedNamespace derives stable ids for the default records, so restarts
// against a fresh store always produce the same ids.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("rollcall.seed"))

// SeedID returns the deterministic id of a seeded record.
func SeedID(kind, name string) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+"/"+name)).String()
}

const (
	SeedTeacherUsername = "teacher1"
	SeedTeacherPassword = "password123"
	SeedStudentPassword = "student123"
)

// PasswordHasher hashes seeded passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Seedable is the write surface needed to seed defaults.
type Seedable interface {
	Users
	Classes
	Students
}

var seedClasses = []struct{ name, grade string }{
	{"Math 101", "Grade 10"},
	{"Science 101", "Grade 10"},
	{"English 101", "Grade 9"},
}

var seedStudents = []struct{ name, code, email string }{
	{"John Smith", "ST001", "john@student.com"},
	{"Emma Johnson", "ST002", "emma@student.com"},
	{"Michael Brown", "ST003", "michael@student.com"},
	{"Sophia Davis", "ST004", "sophia@student.com"},
	{"William Wilson", "ST005", "william@student.com"},
	{"Olivia Miller", "ST006", "olivia@student.com"},
}

// Seed creates the default teacher, three classes and six students (all in
// the first class, each with a login) unless the default teacher exists.
// It reports whether anything was written.
func Seed(ctx context.Context, s Seedable, h PasswordHasher) (bool, error) {
	_, err := s.UserByUsername(ctx, SeedTeacherUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("check seed teacher: %w", err)
	}

	teacherHash, err := h.Hash(SeedTeacherPassword)
	if err != nil {
		return false, err
	}
	teacher := model.User{
		ID:           SeedID("user", SeedTeacherUsername),
		Username:     SeedTeacherUsername,
		PasswordHash: teacherHash,
		Role:         model.RoleTeacher,
		Email:        "teacher@school.com",
		FullName:     "Ms. Sarah Johnson",
	}
	if err := s.CreateUser(ctx, teacher); err != nil {
		return false, err
	}

	classIDs := make([]string, 0, len(seedClasses))
	for _, c := range seedClasses {
		class := model.Class{
			ID:        SeedID("class", c.name),
			Name:      c.name,
			Grade:     c.grade,
			TeacherID: teacher.ID,
			Students:  []string{},
		}
		if err := s.CreateClass(ctx, class); err != nil {
			return false, err
		}
		classIDs = append(classIDs, class.ID)
	}

	for i, st := range seedStudents {
		student := model.Student{
			ID:            SeedID("student", st.code),
			Name:          st.name,
			StudentID:     st.code,
			ClassID:       classIDs[0],
			Email:         st.email,
			ParentContact: fmt.Sprintf("+1234567890%d", i),
		}
		if err := s.CreateStudent(ctx, student); err != nil {
			return false, err
		}
		username := strings.ToLower(st.code)
		studentHash, err := h.Hash(SeedStudentPassword)
		if err != nil {
			return false, err
		}
		login := model.User{
			ID:           SeedID("user", username),
			Username:     username,
			PasswordHash: studentHash,
			Role:         model.RoleStudent,
			Email:        st.email,
			FullName:     st.name,
			StudentID:    student.ID,
		}
		if err := s.CreateUser(ctx, login); err != nil {
			return false, err
		}
	}
	return true, nil
}
