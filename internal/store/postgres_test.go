package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/model"
)

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

var userRowColumns = []string{"id", "username", "password_hash", "role", "email", "full_name", "student_id"}

func TestPostgres_UserByUsername(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`SELECT id, username, password_hash, role, email, full_name, student_id FROM users WHERE username = \$1`).
		WithArgs("teacher1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("t1", "teacher1", "$2a$hash", "teacher", "t@school.com", "Ms. Sarah Johnson", ""))

	u, err := p.UserByUsername(context.Background(), "teacher1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, u.Role)
	assert.Equal(t, "$2a$hash", u.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UserByID_NotFound(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := p.UserByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_OwnedClass(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`(?s)FROM classes c\s+LEFT JOIN students s ON s.class_id = c.id WHERE c.id = \$1 AND c.teacher_id = \$2 GROUP BY c.id`).
		WithArgs("c1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "grade", "teacher_id", "roster"}).AddRow("c1", "Math 101", "Grade 10", "t1", "s1,s2"))

	c, err := p.OwnedClass(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, c.Students)
}

func TestPostgres_OwnedClass_OtherTeacher(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`WHERE c.id = \$1 AND c.teacher_id = \$2`).
		WithArgs("c1", "t2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "grade", "teacher_id", "roster"}))

	_, err := p.OwnedClass(context.Background(), "c1", "t2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_ClassesByTeacher_EmptyRoster(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`WHERE c.teacher_id = \$1 GROUP BY c.id ORDER BY c.name`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "grade", "teacher_id", "roster"}).
			AddRow("c2", "English 101", "Grade 9", "t1", "").
			AddRow("c1", "Math 101", "Grade 10", "t1", "s1"))

	classes, err := p.ClassesByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, []string{}, classes[0].Students)
	assert.Equal(t, []string{"s1"}, classes[1].Students)
}

func TestPostgres_CountStudents(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE class_id IN \(\$1, \$2\)`).
		WithArgs("c1", "c2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	n, err := p.CountStudents(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = p.CountStudents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceSheet_Commits(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("c1|2025-01-06").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM attendance WHERE class_id = \$1 AND date = \$2`).
		WithArgs("c1", "2025-01-06").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO attendance`).
		WithArgs("r1", "s1", "John", "c1", "2025-01-06", "present", "", "t1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO attendance`).
		WithArgs("r2", "s2", "Emma", "c1", "2025-01-06", "late", "bus", "t1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.ReplaceSheet(context.Background(), "c1", "2025-01-06", []model.AttendanceRecord{
		{ID: "r1", StudentID: "s1", StudentName: "John", ClassID: "c1", Date: "2025-01-06", Status: model.StatusPresent, MarkedBy: "t1", Timestamp: now},
		{ID: "r2", StudentID: "s2", StudentName: "Emma", ClassID: "c1", Date: "2025-01-06", Status: model.StatusLate, Notes: "bus", MarkedBy: "t1", Timestamp: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceSheet_RollsBackOnInsertError(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM attendance`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO attendance`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := p.ReplaceSheet(context.Background(), "c1", "2025-01-06", []model.AttendanceRecord{
		{ID: "r1", StudentID: "s1", ClassID: "c1", Date: "2025-01-06", Status: model.StatusPresent, Timestamp: time.Now()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StudentAttendance(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	ts := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM attendance WHERE student_id = \$1 ORDER BY date DESC`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "student_name", "class_id", "date", "status", "notes", "marked_by", "timestamp"}).
			AddRow("r2", "s1", "John", "c1", "2025-01-07", "absent", "", "t1", ts).
			AddRow("r1", "s1", "John", "c1", "2025-01-06", "present", "", "t1", ts))

	recs, err := p.StudentAttendance(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.StatusAbsent, recs[0].Status)
}

func TestPostgres_AttendanceOnDate_NoClasses(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	recs, err := p.AttendanceOnDate(context.Background(), nil, "2025-01-06")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanUser_PropagatesErrors(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	mock.ExpectQuery(`FROM users`).WillReturnError(sql.ErrConnDone)

	_, err := p.UserByID(context.Background(), "u1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
