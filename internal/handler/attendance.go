package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/model"
)

type entryRequest struct {
	StudentID string       `json:"student_id" binding:"required"`
	Status    model.Status `json:"status" binding:"required"`
	Notes     string       `json:"notes"`
}

type markRequest struct {
	ClassID        string         `json:"class_id" binding:"required"`
	Date           string         `json:"date" binding:"required"`
	AttendanceData []entryRequest `json:"attendance_data" binding:"required,dive"`
}

func (h *Handler) classes(c *gin.Context) {
	classes, err := h.att.Classes(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(classes))
}

func (h *Handler) classStudents(c *gin.Context) {
	students, err := h.att.ClassStudents(c.Request.Context(), auth.CurrentUser(c), c.Param("class_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(students))
}

func (h *Handler) markAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entries := make([]attendance.Entry, 0, len(req.AttendanceData))
	for _, e := range req.AttendanceData {
		entries = append(entries, attendance.Entry{StudentID: e.StudentID, Status: e.Status, Notes: e.Notes})
	}
	n, err := h.att.MarkAttendance(c.Request.Context(), auth.CurrentUser(c), req.ClassID, req.Date, entries)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance marked successfully", "records": n})
}

func (h *Handler) classAttendance(c *gin.Context) {
	recs, err := h.att.ClassAttendance(c.Request.Context(), auth.CurrentUser(c), c.Param("class_id"), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(recs))
}

func (h *Handler) studentAttendance(c *gin.Context) {
	report, err := h.att.StudentReport(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) dashboard(c *gin.Context) {
	u := auth.CurrentUser(c)
	var (
		stats any
		err   error
	)
	if u.Role == model.RoleTeacher {
		stats, err = h.att.TeacherDashboard(c.Request.Context(), u)
	} else {
		stats, err = h.att.StudentDashboard(c.Request.Context(), u)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
