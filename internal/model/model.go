package model

import "time"

// Role is the access role carried by a user and its session token.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Status is the attendance status of one student on one date.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Valid reports whether s is a supported status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// DateLayout is the calendar-day encoding used for attendance dates.
const DateLayout = "2006-01-02"

// User is a login account. StudentID links a student login to its Student.
type User struct {
	ID           string `json:"id" bson:"_id"`
	Username     string `json:"username" bson:"username"`
	PasswordHash string `json:"-" bson:"password"`
	Role         Role   `json:"role" bson:"role"`
	Email        string `json:"email" bson:"email"`
	FullName     string `json:"full_name" bson:"full_name"`
	StudentID    string `json:"student_id,omitempty" bson:"student_id,omitempty"`
}

// Profile is the public view of a user returned by login and profile calls.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		FullName: u.FullName,
		Email:    u.Email,
	}
}

// Class is owned by exactly one teacher.
type Class struct {
	ID        string   `json:"_id" bson:"_id"`
	Name      string   `json:"name" bson:"name"`
	Grade     string   `json:"grade" bson:"grade"`
	TeacherID string   `json:"teacher_id" bson:"teacher_id"`
	Students  []string `json:"students" bson:"students"`
}

// Student belongs to exactly one class. StudentID is the human readable code
// (e.g. ST001), ID the internal reference.
type Student struct {
	ID            string `json:"_id" bson:"_id"`
	Name          string `json:"name" bson:"name"`
	StudentID     string `json:"student_id" bson:"student_id"`
	ClassID       string `json:"class_id" bson:"class_id"`
	Email         string `json:"email" bson:"email"`
	ParentContact string `json:"parent_contact,omitempty" bson:"parent_contact,omitempty"`
}

// AttendanceRecord is one entry of a class/date attendance sheet.
// StudentName is a snapshot taken when the sheet was written.
type AttendanceRecord struct {
	ID          string    `json:"_id" bson:"_id"`
	StudentID   string    `json:"student_id" bson:"student_id"`
	StudentName string    `json:"student_name" bson:"student_name"`
	ClassID     string    `json:"class_id" bson:"class_id"`
	Date        string    `json:"date" bson:"date"`
	Status      Status    `json:"status" bson:"status"`
	Notes       string    `json:"notes" bson:"notes"`
	MarkedBy    string    `json:"marked_by" bson:"marked_by"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}
