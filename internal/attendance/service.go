package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/apperr"
	"rollcall/internal/lock"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/store"
)

// Store is the persistence surface the service needs.
type Store interface {
	store.Classes
	store.Students
	store.Sheets
}

// Owners resolves a class only when the user owns it.
type Owners interface {
	AuthorizeOwnership(ctx context.Context, u model.User, classID string) (model.Class, error)
}

// Entry is one student's mark in an attendance sheet.
type Entry struct {
	StudentID string
	Status    model.Status
	Notes     string
}

// Options tune a Service. Zero values are usable.
type Options struct {
	// Strict rejects sheets naming students outside the class roster
	// instead of skipping them.
	Strict   bool
	Location *time.Location
	Logger   logging.Logger
}

// Service writes attendance sheets and answers the read-side queries.
type Service struct {
	st     Store
	owners Owners
	locker lock.Locker
	strict bool
	loc    *time.Location
	log    logging.Logger
	now    func() time.Time
}

// NewService creates a service backed by st.
func NewService(st Store, owners Owners, locker lock.Locker, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Service{
		st:     st,
		owners: owners,
		locker: locker,
		strict: opts.Strict,
		loc:    opts.Location,
		log:    opts.Logger,
		now:    time.Now,
	}
}

// Classes returns the teacher's classes, or the student's own class.
// Students without a linked record get an empty list.
func (s *Service) Classes(ctx context.Context, u model.User) ([]model.Class, error) {
	if u.Role == model.RoleTeacher {
		classes, err := s.st.ClassesByTeacher(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("list classes: %w", err)
		}
		return classes, nil
	}
	if u.StudentID == "" {
		return []model.Class{}, nil
	}
	stu, err := s.st.StudentByID(ctx, u.StudentID)
	if errors.Is(err, store.ErrNotFound) {
		return []model.Class{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}
	c, err := s.st.ClassByID(ctx, stu.ClassID)
	if errors.Is(err, store.ErrNotFound) {
		return []model.Class{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	return []model.Class{c}, nil
}

// ClassStudents lists the roster of a class owned by teacher.
func (s *Service) ClassStudents(ctx context.Context, teacher model.User, classID string) ([]model.Student, error) {
	if _, err := s.owners.AuthorizeOwnership(ctx, teacher, classID); err != nil {
		return nil, err
	}
	students, err := s.st.StudentsByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// MarkAttendance replaces the (classID, date) sheet with entries and returns
// the number of records written. A later entry for the same student wins.
// Ownership is checked before the payload, so non-owners always get
// apperr.ErrNotFound.
func (s *Service) MarkAttendance(ctx context.Context, teacher model.User, classID, date string, entries []Entry) (int, error) {
	if _, err := s.owners.AuthorizeOwnership(ctx, teacher, classID); err != nil {
		return 0, err
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return 0, apperr.New(apperr.ErrInvalidInput, "date must be YYYY-MM-DD")
	}
	for _, e := range entries {
		if !e.Status.Valid() {
			return 0, apperr.New(apperr.ErrInvalidInput, fmt.Sprintf("invalid status %q", e.Status))
		}
	}

	roster, err := s.st.StudentsByClass(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("load roster: %w", err)
	}
	enrolled := make(map[string]model.Student, len(roster))
	for _, stu := range roster {
		enrolled[stu.ID] = stu
	}

	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.StudentID] = i
	}

	now := s.now().UTC()
	records := make([]model.AttendanceRecord, 0, len(last))
	for i, e := range entries {
		if last[e.StudentID] != i {
			continue
		}
		stu, ok := enrolled[e.StudentID]
		if !ok {
			metrics.UnknownStudents.Inc()
			if s.strict {
				return 0, apperr.New(apperr.ErrInvalidInput, fmt.Sprintf("student %s is not in this class", e.StudentID))
			}
			s.log.Warn(ctx, "skipping unknown student", "class_id", classID, "student_id", e.StudentID)
			continue
		}
		records = append(records, model.AttendanceRecord{
			ID:          uuid.NewString(),
			StudentID:   stu.ID,
			StudentName: stu.Name,
			ClassID:     classID,
			Date:        date,
			Status:      e.Status,
			Notes:       e.Notes,
			MarkedBy:    teacher.ID,
			Timestamp:   now,
		})
	}

	release, err := s.locker.Lock(ctx, lock.SheetKey(classID, date))
	if errors.Is(err, lock.ErrBusy) {
		return 0, apperr.New(apperr.ErrConflict, "sheet is being written")
	}
	if err != nil {
		return 0, fmt.Errorf("lock sheet: %w", err)
	}
	defer release()

	if err := s.st.ReplaceSheet(ctx, classID, date, records); err != nil {
		return 0, fmt.Errorf("replace sheet: %w", err)
	}
	metrics.RecordsWritten.Add(float64(len(records)))
	s.log.Info(ctx, "attendance marked", "class_id", classID, "date", date, "records", len(records))
	return len(records), nil
}

// ClassAttendance lists a class's records for date, or for every date when
// date is empty.
func (s *Service) ClassAttendance(ctx context.Context, teacher model.User, classID, date string) ([]model.AttendanceRecord, error) {
	if _, err := s.owners.AuthorizeOwnership(ctx, teacher, classID); err != nil {
		return nil, err
	}
	if date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			return nil, apperr.New(apperr.ErrInvalidInput, "date must be YYYY-MM-DD")
		}
	}
	recs, err := s.st.ClassAttendance(ctx, classID, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return recs, nil
}

func (s *Service) studentOf(ctx context.Context, u model.User) (model.Student, error) {
	if u.StudentID == "" {
		return model.Student{}, apperr.New(apperr.ErrNotFound, "student record not found")
	}
	stu, err := s.st.StudentByID(ctx, u.StudentID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Student{}, apperr.New(apperr.ErrNotFound, "student record not found")
	}
	if err != nil {
		return model.Student{}, fmt.Errorf("load student: %w", err)
	}
	return stu, nil
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}
