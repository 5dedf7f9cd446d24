package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/apperr"
	"rollcall/internal/auth"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	User        model.Profile `json:"user"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.guard.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		h.fail(c, err)
		return
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, loginResponse{
		AccessToken: sess.Token,
		TokenType:   "bearer",
		User:        sess.User.Profile(),
	})
}

func (h *Handler) profile(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c).Profile())
}
