// Package store persists users, classes, students and attendance sheets.
// Postgres, MongoDB and in-memory backends implement the same Store
// interface; callers get one explicitly constructed instance.
package store

import (
	"context"
	"errors"

	"rollcall/internal/model"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Users is the credential store.
type Users interface {
	UserByID(ctx context.Context, id string) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	CreateUser(ctx context.Context, u model.User) error
}

// Classes gives access to classes and their ownership.
type Classes interface {
	CreateClass(ctx context.Context, c model.Class) error
	ClassByID(ctx context.Context, id string) (model.Class, error)
	// OwnedClass returns ErrNotFound unless a class with id exists and is
	// owned by teacherID.
	OwnedClass(ctx context.Context, id, teacherID string) (model.Class, error)
	ClassesByTeacher(ctx context.Context, teacherID string) ([]model.Class, error)
}

// Students gives access to class rosters.
type Students interface {
	// CreateStudent stores s and adds it to its class roster.
	CreateStudent(ctx context.Context, s model.Student) error
	StudentByID(ctx context.Context, id string) (model.Student, error)
	StudentsByClass(ctx context.Context, classID string) ([]model.Student, error)
	CountStudents(ctx context.Context, classIDs []string) (int, error)
}

// Sheets stores attendance records grouped by (class, date).
type Sheets interface {
	// ReplaceSheet atomically deletes every record of (classID, date) and
	// inserts records in their place.
	ReplaceSheet(ctx context.Context, classID, date string, records []model.AttendanceRecord) error
	// ClassAttendance lists a class's records; an empty date means all dates.
	ClassAttendance(ctx context.Context, classID, date string) ([]model.AttendanceRecord, error)
	// StudentAttendance lists a student's records, newest date first.
	StudentAttendance(ctx context.Context, studentID string) ([]model.AttendanceRecord, error)
	AttendanceOnDate(ctx context.Context, classIDs []string, date string) ([]model.AttendanceRecord, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	Users
	Classes
	Students
	Sheets
	Ping(ctx context.Context) error
	Close() error
}
