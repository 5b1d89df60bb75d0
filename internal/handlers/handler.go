// Package handlers exposes the workflow and reports as JSON endpoints.
// Identity comes from the session via middleware.InjectActor; every
// business rule lives in workflow or reporting.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/middleware"
	"ber-tracker/internal/models"
	"ber-tracker/internal/reporting"
	"ber-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	wf      *workflow.Service
	reports *reporting.Reporter
	log     zerolog.Logger
}

func New(db *gorm.DB, wf *workflow.Service, reports *reporting.Reporter, log zerolog.Logger) *Handler {
	return &Handler{
		db:      db,
		wf:      wf,
		reports: reports,
		log:     log.With().Str("handler", "http").Logger(),
	}
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:        http.StatusBadRequest,
	apperr.CodeAuthorization:     http.StatusForbidden,
	apperr.CodePrecondition:      http.StatusPreconditionFailed,
	apperr.CodeInvalidState:      http.StatusConflict,
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeLimitExceeded:     http.StatusUnprocessableEntity,
	apperr.CodeInsufficientFunds: http.StatusUnprocessableEntity,
	apperr.CodeInternal:          http.StatusInternalServerError,
}

func StatusOf(err error) int {
	if s, ok := statusByCode[apperr.CodeOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error", "code", "field"}. Causes of internal errors
// stay in the log.
func (h *Handler) fail(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected handler error")
		ae = apperr.Internal("internal error", err)
	}
	body := gin.H{"error": ae.Error(), "code": ae.Code}
	if ae.Field != "" {
		body["field"] = ae.Field
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusOf(ae), body)
}

func actor(c *gin.Context) models.Actor {
	a, _ := middleware.CurrentActor(c)
	return a
}

// bind decodes a JSON or form body; decode failures are validation errors.
func (h *Handler) bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBind(dest); err != nil {
		h.fail(c, apperr.New(apperr.CodeValidation, "malformed request body"))
		return false
	}
	return true
}

func (h *Handler) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.fail(c, apperr.New(apperr.CodeValidation, "malformed request body"))
		return false
	}
	return true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts "2006-01-02" or RFC 3339.
func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.InvalidInput(field, "must be a date (YYYY-MM-DD)")
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
