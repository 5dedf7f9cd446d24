package attendance

import (
	"context"
	"fmt"
	"math"

	"rollcall/internal/model"
)

// Statistics summarizes a student's attendance history.
type Statistics struct {
	TotalDays            int     `json:"total_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	LateDays             int     `json:"late_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// Report is a student's own attendance view.
type Report struct {
	Student    model.Student            `json:"student"`
	Records    []model.AttendanceRecord `json:"attendance_records"`
	Statistics Statistics               `json:"statistics"`
}

// TeacherStats is the teacher dashboard for the current day.
type TeacherStats struct {
	TotalClasses          int  `json:"total_classes"`
	TotalStudents         int  `json:"total_students"`
	PresentToday          int  `json:"present_today"`
	AbsentToday           int  `json:"absent_today"`
	AttendanceMarkedToday bool `json:"attendance_marked_today"`
}

// StudentStats is the student dashboard.
type StudentStats struct {
	TotalDays            int     `json:"total_days"`
	PresentDays          int     `json:"present_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// Percentage returns present/total as a percentage rounded to one decimal,
// half to even.
// Late does not count as present.
func Percentage(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(present)/float64(total)*1000) / 10
}

// Summarize counts records by status.
func Summarize(records []model.AttendanceRecord) Statistics {
	var st Statistics
	for _, r := range records {
		switch r.Status {
		case model.StatusPresent:
			st.PresentDays++
		case model.StatusAbsent:
			st.AbsentDays++
		case model.StatusLate:
			st.LateDays++
		}
	}
	st.TotalDays = len(records)
	st.AttendancePercentage = Percentage(st.PresentDays, st.TotalDays)
	return st
}

// StudentReport returns the student's records, newest first, with totals.
func (s *Service) StudentReport(ctx context.Context, u model.User) (Report, error) {
	stu, err := s.studentOf(ctx, u)
	if err != nil {
		return Report{}, err
	}
	recs, err := s.st.StudentAttendance(ctx, stu.ID)
	if err != nil {
		return Report{}, fmt.Errorf("list attendance: %w", err)
	}
	if recs == nil {
		recs = []model.AttendanceRecord{}
	}
	return Report{Student: stu, Records: recs, Statistics: Summarize(recs)}, nil
}

// TeacherDashboard aggregates today's attendance over the teacher's classes.
func (s *Service) TeacherDashboard(ctx context.Context, teacher model.User) (TeacherStats, error) {
	classes, err := s.st.ClassesByTeacher(ctx, teacher.ID)
	if err != nil {
		return TeacherStats{}, fmt.Errorf("list classes: %w", err)
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}

	total, err := s.st.CountStudents(ctx, ids)
	if err != nil {
		return TeacherStats{}, fmt.Errorf("count students: %w", err)
	}
	recs, err := s.st.AttendanceOnDate(ctx, ids, s.today())
	if err != nil {
		return TeacherStats{}, fmt.Errorf("today's attendance: %w", err)
	}
	sum := Summarize(recs)
	return TeacherStats{
		TotalClasses:          len(classes),
		TotalStudents:         total,
		PresentToday:          sum.PresentDays,
		AbsentToday:           sum.AbsentDays,
		AttendanceMarkedToday: len(recs) > 0,
	}, nil
}

// StudentDashboard summarizes the student's whole history.
func (s *Service) StudentDashboard(ctx context.Context, u model.User) (StudentStats, error) {
	stu, err := s.studentOf(ctx, u)
	if err != nil {
		return StudentStats{}, err
	}
	recs, err := s.st.StudentAttendance(ctx, stu.ID)
	if err != nil {
		return StudentStats{}, fmt.Errorf("list attendance: %w", err)
	}
	sum := Summarize(recs)
	return StudentStats{
		TotalDays:            sum.TotalDays,
		PresentDays:          sum.PresentDays,
		AttendancePercentage: sum.AttendancePercentage,
	}, nil
}
