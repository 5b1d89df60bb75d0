package handlers

import (
	"context"
	"net/http"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) MyProjects(c *gin.Context) {
	projects, err := h.wf.MyProjects(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// children serves GET /<parent>-<children>/:id lookups.
func children[T any](h *Handler, list func(ctx context.Context, id uuid.UUID, a models.Actor) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			h.fail(c, apperr.InvalidInput("id", "must be a uuid"))
			return
		}
		out, err := list(c.Request.Context(), id, actor(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		if out == nil {
			out = []T{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) ProjectTasks() gin.HandlerFunc { return children(h, h.wf.TasksOfProject) }

func (h *Handler) TaskWorkElements() gin.HandlerFunc { return children(h, h.wf.WorkElementsOfTask) }

func (h *Handler) WorkElementBudgets() gin.HandlerFunc {
	return children(h, h.wf.ApprovedBudgetsOfWorkElement)
}

func (h *Handler) BudgetAFEs() gin.HandlerFunc { return children(h, h.wf.AFEsOfBudget) }

func (h *Handler) AFEInvoices() gin.HandlerFunc { return children(h, h.wf.InvoicesOfAFE) }
