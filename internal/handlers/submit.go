package handlers

import (
	"net/http"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// created wraps a submit call: bind, run, answer 201 with the new record.
func created[In any](h *Handler, run func(c *gin.Context, in In) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if !h.bindJSON(c, &in) {
			return
		}
		rec, err := run(c, in)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

func (h *Handler) SubmitProject() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in workflow.ProjectInput) (any, error) {
		return h.wf.SubmitProject(c.Request.Context(), in, actor(c))
	})
}

func (h *Handler) SubmitTask() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in workflow.TaskInput) (any, error) {
		return h.wf.SubmitTask(c.Request.Context(), in, actor(c))
	})
}

func (h *Handler) SubmitWorkElement() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in workflow.WorkElementInput) (any, error) {
		return h.wf.SubmitWorkElement(c.Request.Context(), in, actor(c))
	})
}

func (h *Handler) SubmitBudget() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in workflow.BudgetInput) (any, error) {
		return h.wf.SubmitBudget(c.Request.Context(), in, actor(c))
	})
}

func (h *Handler) SubmitBudgetChange() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in workflow.BudgetChangeInput) (any, error) {
		return h.wf.SubmitBudgetChange(c.Request.Context(), in, actor(c))
	})
}

func (h *Handler) SubmitAFE() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in workflow.AFEInput) (any, error) {
		return h.wf.SubmitAFE(c.Request.Context(), in, actor(c))
	})
}

// productionRequest takes production_date as a plain date.
type productionRequest struct {
	ProjectID       uuid.UUID       `json:"project_id"`
	PricePerBarrel  decimal.Decimal `json:"price_per_barrel"`
	NumberOfBarrels int64           `json:"number_of_barrels"`
	Cost            decimal.Decimal `json:"cost"`
	ProductionDate  string          `json:"production_date"`
}

func (h *Handler) SubmitProduction() gin.HandlerFunc {
	return created(h, func(c *gin.Context, in productionRequest) (any, error) {
		date, err := parseDate("production_date", in.ProductionDate)
		if err != nil {
			return nil, err
		}
		if date == nil {
			return nil, apperr.InvalidInput("production_date", "is required")
		}
		return h.wf.SubmitProduction(c.Request.Context(), workflow.ProductionInput{
			ProjectID:       in.ProjectID,
			PricePerBarrel:  in.PricePerBarrel,
			NumberOfBarrels: in.NumberOfBarrels,
			Cost:            in.Cost,
			ProductionDate:  *date,
		}, actor(c))
	})
}
