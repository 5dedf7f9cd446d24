package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"rollcall/internal/model"
	"rollcall/internal/store/migrations"
)

// Postgres is the SQL Store. Sheet replacement runs in one transaction that
// holds an advisory lock on the (class, date) pair.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the embedded goose migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, p.db, ".")
}

const userColumns = `id, username, password_hash, role, email, full_name, student_id`

func (p *Postgres) UserByID(ctx context.Context, id string) (model.User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (p *Postgres) UserByUsername(ctx context.Context, username string) (model.User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (p *Postgres) CreateUser(ctx context.Context, u model.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, email, full_name, student_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.PasswordHash, string(u.Role), u.Email, u.FullName, u.StudentID)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	return nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.Email, &u.FullName, &u.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func (p *Postgres) CreateClass(ctx context.Context, c model.Class) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO classes (id, name, grade, teacher_id)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.Grade, c.TeacherID)
	if err != nil {
		return fmt.Errorf("insert class %s: %w", c.Name, err)
	}
	return nil
}

// classSelect aggregates each class roster from students.class_id.
const classSelect = `
	SELECT c.id, c.name, c.grade, c.teacher_id, COALESCE(string_agg(s.id, ',' ORDER BY s.student_id), '')
	FROM classes c
	LEFT JOIN students s ON s.class_id = c.id`

func (p *Postgres) ClassByID(ctx context.Context, id string) (model.Class, error) {
	return p.oneClass(ctx, classSelect+` WHERE c.id = $1 GROUP BY c.id`, id)
}

func (p *Postgres) OwnedClass(ctx context.Context, id, teacherID string) (model.Class, error) {
	return p.oneClass(ctx, classSelect+` WHERE c.id = $1 AND c.teacher_id = $2 GROUP BY c.id`, id, teacherID)
}

func (p *Postgres) ClassesByTeacher(ctx context.Context, teacherID string) ([]model.Class, error) {
	rows, err := p.db.QueryContext(ctx, classSelect+` WHERE c.teacher_id = $1 GROUP BY c.id ORDER BY c.name`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) oneClass(ctx context.Context, query string, args ...any) (model.Class, error) {
	c, err := scanClass(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Class{}, ErrNotFound
	}
	return c, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClass(row scanner) (model.Class, error) {
	var c model.Class
	var roster string
	if err := row.Scan(&c.ID, &c.Name, &c.Grade, &c.TeacherID, &roster); err != nil {
		return model.Class{}, err
	}
	c.Students = []string{}
	if roster != "" {
		c.Students = strings.Split(roster, ",")
	}
	return c, nil
}

const studentColumns = `id, name, student_id, class_id, email, parent_contact`

func (p *Postgres) CreateStudent(ctx context.Context, s model.Student) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO students (id, name, student_id, class_id, email, parent_contact)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.Name, s.StudentID, s.ClassID, s.Email, s.ParentContact)
	if err != nil {
		return fmt.Errorf("insert student %s: %w", s.StudentID, err)
	}
	return nil
}

func (p *Postgres) StudentByID(ctx context.Context, id string) (model.Student, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Student{}, ErrNotFound
	}
	return s, err
}

func (p *Postgres) StudentsByClass(ctx context.Context, classID string) ([]model.Student, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY student_id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) CountStudents(ctx context.Context, classIDs []string) (int, error) {
	if len(classIDs) == 0 {
		return 0, nil
	}
	args := make([]any, len(classIDs))
	for i, id := range classIDs {
		args[i] = id
	}
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students WHERE class_id IN (`+placeholders(1, len(args))+`)`, args...).Scan(&n)
	return n, err
}

func scanStudent(row scanner) (model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.Name, &s.StudentID, &s.ClassID, &s.Email, &s.ParentContact)
	return s, err
}

const attendanceColumns = `id, student_id, student_name, class_id, date, status, notes, marked_by, timestamp`

func (p *Postgres) ReplaceSheet(ctx context.Context, classID, date string, records []model.AttendanceRecord) error {
	return WithTx(ctx, p.db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, classID+"|"+date); err != nil {
			return fmt.Errorf("lock sheet: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE class_id = $1 AND date = $2`, classID, date); err != nil {
			return fmt.Errorf("clear sheet: %w", err)
		}
		for _, r := range records {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO attendance (`+attendanceColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, r.ID, r.StudentID, r.StudentName, r.ClassID, r.Date, string(r.Status), r.Notes, r.MarkedBy, r.Timestamp)
			if err != nil {
				return fmt.Errorf("insert record for %s: %w", r.StudentID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) ClassAttendance(ctx context.Context, classID, date string) ([]model.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE class_id = $1`
	args := []any{classID}
	if date != "" {
		query += ` AND date = $2`
		args = append(args, date)
	}
	return p.queryAttendance(ctx, query+` ORDER BY date, student_name`, args...)
}

func (p *Postgres) StudentAttendance(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return p.queryAttendance(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE student_id = $1 ORDER BY date DESC`, studentID)
}

func (p *Postgres) AttendanceOnDate(ctx context.Context, classIDs []string, date string) ([]model.AttendanceRecord, error) {
	if len(classIDs) == 0 {
		return []model.AttendanceRecord{}, nil
	}
	args := []any{date}
	for _, id := range classIDs {
		args = append(args, id)
	}
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE date = $1 AND class_id IN (` + placeholders(2, len(classIDs)) + `) ORDER BY date, student_name`
	return p.queryAttendance(ctx, query, args...)
}

func (p *Postgres) queryAttendance(ctx context.Context, query string, args ...any) ([]model.AttendanceRecord, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AttendanceRecord{}
	for rows.Next() {
		var r model.AttendanceRecord
		var status string
		if err := rows.Scan(&r.ID, &r.StudentID, &r.StudentName, &r.ClassID, &r.Date, &status, &r.Notes, &r.MarkedBy, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Status = model.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// placeholders renders "$from, $from+1, ..." for n positional arguments.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}
