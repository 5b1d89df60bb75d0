package handlers

import (
	"net/http"

	"ber-tracker/internal/models"
	"ber-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type decisionRequest struct {
	ID     uuid.UUID     `json:"id"`
	Status models.Status `json:"status"`
}

// Decide serves POST /update-<kind>.
func (h *Handler) Decide(kind workflow.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if !h.bindJSON(c, &req) {
			return
		}
		rec, err := h.wf.Decide(c.Request.Context(), kind, req.ID, req.Status, actor(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// Pending serves GET /pending-<kind>s.
func (h *Handler) Pending(kind workflow.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := h.wf.ListPending(c.Request.Context(), kind, actor(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

type invoiceRef struct {
	ID uuid.UUID `json:"id" form:"id"`
}

func (h *Handler) CancelInvoice(c *gin.Context) {
	var req invoiceRef
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.wf.CancelInvoice(c.Request.Context(), req.ID, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) ReinstateInvoice(c *gin.Context) {
	var req invoiceRef
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.wf.ReinstateInvoice(c.Request.Context(), req.ID, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
