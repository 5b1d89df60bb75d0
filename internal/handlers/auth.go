package handlers

import (
	"net/http"
	"strings"

	"ber-tracker/internal/middleware"
	"ber-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type loginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if !h.bind(c, &form) {
		return
	}

	var user models.User
	if err := h.db.Where("username = ?", strings.TrimSpace(form.Username)).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if err := middleware.StartSession(c, &user); err != nil {
		h.log.Error().Err(err).Msg("failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	h.log.Info().Str("username", user.Username).Msg("login")
	c.JSON(http.StatusOK, models.Actor{ID: user.Username, Role: user.Role})
}

func (h *Handler) Logout(c *gin.Context) {
	_ = middleware.EndSession(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, actor(c))
}
