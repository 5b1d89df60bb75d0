package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/database"
	"ber-tracker/internal/models"
	"ber-tracker/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (h *Handler) filter(c *gin.Context) (reporting.Filter, error) {
	from, err := parseDate("from", c.Query("from"))
	if err != nil {
		return reporting.Filter{}, err
	}
	to, err := parseDate("to", c.Query("to"))
	if err != nil {
		return reporting.Filter{}, err
	}
	return reporting.Filter{From: from, To: to, Manager: strings.TrimSpace(c.Query("manager"))}, nil
}

// report wraps a filtered admin listing.
func report[T any](h *Handler, run func(c *gin.Context, a models.Actor, f reporting.Filter) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := h.filter(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		rows, err := run(c, actor(c), f)
		if err != nil {
			h.fail(c, err)
			return
		}
		if rows == nil {
			rows = []T{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

func (h *Handler) DashboardMetrics(c *gin.Context) {
	d, err := h.reports.DashboardMetrics(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) ApprovedProjects() gin.HandlerFunc {
	return report(h, func(c *gin.Context, a models.Actor, f reporting.Filter) ([]models.Project, error) {
		return h.reports.ApprovedProjects(c.Request.Context(), a, f)
	})
}

func (h *Handler) ApprovedBudgets() gin.HandlerFunc {
	return report(h, func(c *gin.Context, a models.Actor, f reporting.Filter) ([]reporting.BudgetRow, error) {
		return h.reports.ApprovedBudgets(c.Request.Context(), a, f)
	})
}

func (h *Handler) ProductionData() gin.HandlerFunc {
	return report(h, func(c *gin.Context, a models.Actor, f reporting.Filter) ([]reporting.ProductionRow, error) {
		return h.reports.ProductionData(c.Request.Context(), a, f)
	})
}

func (h *Handler) BudgetChanges() gin.HandlerFunc {
	return report(h, func(c *gin.Context, a models.Actor, f reporting.Filter) ([]models.BudgetChange, error) {
		return h.reports.BudgetChanges(c.Request.Context(), a, f)
	})
}

func (h *Handler) AuditTrail(c *gin.Context) {
	var entityID uuid.UUID
	if v := c.Query("entity_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.fail(c, apperr.InvalidInput("entity_id", "must be a uuid"))
			return
		}
		entityID = id
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.reports.AuditTrail(c.Request.Context(), actor(c), c.Query("entity"), entityID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

type userForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Role     string `form:"role" json:"role"`
}

// AddUser creates a user or manager account. Admins are only seeded.
func (h *Handler) AddUser(c *gin.Context) {
	var form userForm
	if !h.bind(c, &form) {
		return
	}
	form.Username = strings.TrimSpace(form.Username)
	role := models.UserRole(form.Role)

	switch {
	case len(form.Username) < 3:
		h.fail(c, apperr.InvalidInput("username", "must be at least 3 characters"))
		return
	case len(form.Password) < 6:
		h.fail(c, apperr.InvalidInput("password", "must be at least 6 characters"))
		return
	case role != models.RoleUser && role != models.RoleManager:
		h.fail(c, apperr.InvalidInput("role", "must be user or manager"))
		return
	}

	var count int64
	if err := h.db.Unscoped().Model(&models.User{}).Where("username = ?", form.Username).Count(&count).Error; err != nil {
		h.fail(c, apperr.Internal("failed to check username", err))
		return
	}
	if count > 0 {
		h.fail(c, apperr.InvalidInput("username", "already exists"))
		return
	}

	user, err := database.CreateUser(h.db, form.Username, form.Password, role)
	if err != nil {
		h.fail(c, apperr.Internal("failed to create user", err))
		return
	}
	h.auditUser(c, "create", user.Username+" as "+string(role))
	c.JSON(http.StatusCreated, models.Actor{ID: user.Username, Role: user.Role})
}

func (h *Handler) ChangeRole(c *gin.Context) {
	var form userForm
	if !h.bind(c, &form) {
		return
	}
	role := models.UserRole(form.Role)
	if !role.Valid() {
		h.fail(c, apperr.InvalidInput("role", "must be user, manager or admin"))
		return
	}
	if err := database.SetUserRole(h.db, strings.TrimSpace(form.Username), role); err != nil {
		h.fail(c, userErr(err))
		return
	}
	h.auditUser(c, "change_role", form.Username+" to "+string(role))
	c.JSON(http.StatusOK, gin.H{"status": "role updated"})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	var form userForm
	if !h.bind(c, &form) {
		return
	}
	username := strings.TrimSpace(form.Username)
	if username == "" {
		h.fail(c, apperr.InvalidInput("username", "is required"))
		return
	}
	if username == actor(c).ID {
		h.fail(c, apperr.InvalidInput("username", "cannot delete your own account"))
		return
	}
	if err := database.DeleteUser(h.db, username); err != nil {
		h.fail(c, userErr(err))
		return
	}
	h.auditUser(c, "delete", username)
	c.JSON(http.StatusOK, gin.H{"status": "user deleted"})
}

func (h *Handler) auditUser(c *gin.Context, action, details string) {
	if err := database.CreateAuditLog(h.db, actor(c).ID, "user", uuid.Nil, action, details); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("failed to write user audit log")
	}
}

func userErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("user")
	}
	return apperr.Internal("failed to update user", err)
}
