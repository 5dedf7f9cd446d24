package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rollcall/internal/model"
)

// Memory is an in-process Store for development and tests. ReplaceSheet is
// atomic under the store mutex.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]model.User
	classes    map[string]model.Class
	students   map[string]model.Student
	attendance []model.AttendanceRecord
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]model.User),
		classes:  make(map[string]model.Class),
		students: make(map[string]model.Student),
	}
}

func (m *Memory) UserByID(_ context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	for _, other := range m.users {
		if other.Username == u.Username {
			return fmt.Errorf("username %s already taken", u.Username)
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) CreateClass(_ context.Context, c model.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[c.ID]; ok {
		return fmt.Errorf("class %s already exists", c.ID)
	}
	c.Students = append([]string{}, c.Students...)
	m.classes[c.ID] = c
	return nil
}

func (m *Memory) ClassByID(_ context.Context, id string) (model.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	if !ok {
		return model.Class{}, ErrNotFound
	}
	return copyClass(c), nil
}

func (m *Memory) OwnedClass(ctx context.Context, id, teacherID string) (model.Class, error) {
	c, err := m.ClassByID(ctx, id)
	if err != nil {
		return model.Class{}, err
	}
	if c.TeacherID != teacherID {
		return model.Class{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ClassesByTeacher(_ context.Context, teacherID string) ([]model.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Class{}
	for _, c := range m.classes {
		if c.TeacherID == teacherID {
			out = append(out, copyClass(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateStudent(_ context.Context, s model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[s.ClassID]
	if !ok {
		return fmt.Errorf("class %s: %w", s.ClassID, ErrNotFound)
	}
	if _, ok := m.students[s.ID]; ok {
		return fmt.Errorf("student %s already exists", s.ID)
	}
	m.students[s.ID] = s
	c.Students = append(c.Students, s.ID)
	m.classes[c.ID] = c
	return nil
}

func (m *Memory) StudentByID(_ context.Context, id string) (model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) StudentsByClass(_ context.Context, classID string) ([]model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Student{}
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (m *Memory) CountStudents(_ context.Context, classIDs []string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in := toSet(classIDs)
	n := 0
	for _, s := range m.students {
		if in[s.ClassID] {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ReplaceSheet(_ context.Context, classID, date string, records []model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attendance[:0:0]
	for _, r := range m.attendance {
		if r.ClassID == classID && r.Date == date {
			continue
		}
		kept = append(kept, r)
	}
	m.attendance = append(kept, records...)
	return nil
}

func (m *Memory) ClassAttendance(_ context.Context, classID, date string) ([]model.AttendanceRecord, error) {
	return m.filterAttendance(func(r model.AttendanceRecord) bool {
		return r.ClassID == classID && (date == "" || r.Date == date)
	}, sheetOrder), nil
}

func (m *Memory) StudentAttendance(_ context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return m.filterAttendance(func(r model.AttendanceRecord) bool {
		return r.StudentID == studentID
	}, func(a, b model.AttendanceRecord) bool { return a.Date > b.Date }), nil
}

func (m *Memory) AttendanceOnDate(_ context.Context, classIDs []string, date string) ([]model.AttendanceRecord, error) {
	in := toSet(classIDs)
	return m.filterAttendance(func(r model.AttendanceRecord) bool {
		return in[r.ClassID] && r.Date == date
	}, sheetOrder), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) filterAttendance(keep func(model.AttendanceRecord) bool, less func(a, b model.AttendanceRecord) bool) []model.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.AttendanceRecord{}
	for _, r := range m.attendance {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// sheetOrder sorts by date, then student name, matching the SQL backends.
func sheetOrder(a, b model.AttendanceRecord) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.StudentName < b.StudentName
}

func copyClass(c model.Class) model.Class {
	c.Students = append([]string{}, c.Students...)
	return c
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
