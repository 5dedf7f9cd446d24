// Package handler exposes the attendance API over gin.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/apperr"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/logging"
	"rollcall/internal/model"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether an optional dependency is healthy.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

type Handler struct {
	guard *auth.Guard
	att   *attendance.Service
	store Pinger
	redis HealthChecker
	log   logging.Logger
}

// New builds a Handler. redis may be nil when no Redis is configured.
func New(guard *auth.Guard, att *attendance.Service, store Pinger, redis HealthChecker, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{guard: guard, att: att, store: store, redis: redis, log: log}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Student Attendance System API"})
	})
	api.POST("/auth/login", h.login)

	authed := api.Group("", auth.RequireUser(h.guard))
	authed.GET("/user/profile", h.profile)
	authed.GET("/classes", h.classes)
	authed.GET("/dashboard/stats", h.dashboard)

	teacher := authed.Group("", auth.RequireRole(h.guard, model.RoleTeacher))
	teacher.GET("/classes/:class_id/students", h.classStudents)
	teacher.POST("/attendance", h.markAttendance)
	teacher.GET("/attendance/:class_id", h.classAttendance)

	student := authed.Group("", auth.RequireRole(h.guard, model.RoleStudent))
	student.GET("/student/attendance", h.studentAttendance)
}

func (h *Handler) health(c *gin.Context) {
	ctx := c.Request.Context()
	storeHealthy := h.store.Ping(ctx) == nil
	redisHealthy := h.redis == nil || h.redis.Healthy(ctx)
	status := http.StatusOK
	state := "ok"
	if !storeHealthy || !redisHealthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "store": storeHealthy, "redis": redisHealthy})
}

// fail writes err as {"error": msg}; internal errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
