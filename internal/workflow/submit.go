package workflow

import (
	"context"
	"strings"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type entity interface {
	EntityID() uuid.UUID
}

// submit runs build and inserts what it returns in one transaction. build
// validates input and checks ancestor preconditions; it must not write.
func (s *Service) submit(ctx context.Context, kind Kind, actor models.Actor, build func(tx *gorm.DB) (entity, error)) error {
	return s.submitThen(ctx, kind, actor, build, nil)
}

// submitThen is submit with a hook that runs after the insert, inside the
// same transaction.
func (s *Service) submitThen(ctx context.Context, kind Kind, actor models.Actor, build func(tx *gorm.DB) (entity, error), after func(tx *gorm.DB) error) error {
	op := "submit_" + string(kind)
	if err := requireActor(actor); err != nil {
		return s.fail(op, err)
	}

	var created entity
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		rec, err := build(tx)
		if err != nil {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			return apperr.Internal("failed to save "+kind.Label(), err)
		}
		created = rec
		if after != nil {
			if err := after(tx); err != nil {
				return err
			}
		}
		return s.audit(tx, actor, kind, rec.EntityID(), "submit", "")
	})
	if err != nil {
		return s.fail(op, err)
	}

	s.metrics.Submissions.WithLabelValues(string(kind)).Inc()
	s.log.Info().
		Str("kind", string(kind)).
		Str("id", created.EntityID().String()).
		Str("actor", actor.ID).
		Msg("submitted")
	return nil
}

func pending(actor models.Actor) models.Approval {
	return models.Approval{Status: models.StatusPending, SubmittedBy: actor.ID}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.InvalidInput(field, "is required")
	}
	return nil
}

func requiredID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.InvalidInput(field, "is required")
	}
	return nil
}

// maxAmount is the smallest magnitude a numeric(18,2) column cannot hold.
var maxAmount = decimal.New(1, 16)

func inRange(field string, d decimal.Decimal) error {
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return apperr.InvalidInput(field, "exceeds 16 integer digits")
	}
	return nil
}

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) SubmitProject(ctx context.Context, in ProjectInput, actor models.Actor) (*models.Project, error) {
	var p *models.Project
	err := s.submit(ctx, KindProject, actor, func(tx *gorm.DB) (entity, error) {
		if err := required("name", in.Name); err != nil {
			return nil, err
		}
		if err := required("description", in.Description); err != nil {
			return nil, err
		}
		p = &models.Project{
			Approval:    pending(actor),
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

type TaskInput struct {
	ProjectID   uuid.UUID `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// SubmitTask requires the project to be approved and submitted by actor.
func (s *Service) SubmitTask(ctx context.Context, in TaskInput, actor models.Actor) (*models.Task, error) {
	var t *models.Task
	err := s.submit(ctx, KindTask, actor, func(tx *gorm.DB) (entity, error) {
		if err := requiredID("project_id", in.ProjectID); err != nil {
			return nil, err
		}
		if err := required("name", in.Name); err != nil {
			return nil, err
		}
		p, err := loadProject(tx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if p.Status != models.StatusApproved || p.SubmittedBy != actor.ID {
			return nil, apperr.Precondition("project is not approved or not owned by you, cannot add task")
		}
		t = &models.Task{
			ProjectID:   p.ID,
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			SubmittedBy: actor.ID,
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

type WorkElementInput struct {
	TaskID      uuid.UUID `json:"task_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

func (s *Service) SubmitWorkElement(ctx context.Context, in WorkElementInput, actor models.Actor) (*models.WorkElement, error) {
	var we *models.WorkElement
	err := s.submit(ctx, KindWorkElement, actor, func(tx *gorm.DB) (entity, error) {
		if err := requiredID("task_id", in.TaskID); err != nil {
			return nil, err
		}
		if err := required("name", in.Name); err != nil {
			return nil, err
		}
		t, p, err := projectOfTask(tx, in.TaskID)
		if err != nil {
			return nil, err
		}
		if err := requireApproved(p, "work element"); err != nil {
			return nil, err
		}
		we = &models.WorkElement{
			TaskID:      t.ID,
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			SubmittedBy: actor.ID,
		}
		return we, nil
	})
	if err != nil {
		return nil, err
	}
	return we, nil
}

type BudgetInput struct {
	WorkElementID uuid.UUID       `json:"work_element_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

func (s *Service) SubmitBudget(ctx context.Context, in BudgetInput, actor models.Actor) (*models.Budget, error) {
	var b *models.Budget
	err := s.submit(ctx, KindBudget, actor, func(tx *gorm.DB) (entity, error) {
		if err := requiredID("work_element_id", in.WorkElementID); err != nil {
			return nil, err
		}
		if in.Amount.IsNegative() {
			return nil, apperr.InvalidInput("amount", "cannot be negative")
		}
		if err := inRange("amount", in.Amount); err != nil {
			return nil, err
		}
		we, p, err := projectOfWorkElement(tx, in.WorkElementID)
		if err != nil {
			return nil, err
		}
		if err := requireApproved(p, "budget"); err != nil {
			return nil, err
		}
		b = &models.Budget{
			Approval:      pending(actor),
			WorkElementID: we.ID,
			Amount:        models.NewMoney(in.Amount.Round(2)),
			Description:   strings.TrimSpace(in.Description),
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

type BudgetChangeInput struct {
	BCRNumber                string          `json:"bcr_number"`
	SourceBudgetID           uuid.UUID       `json:"source_budget_id"`
	DestinationWorkElementID uuid.UUID       `json:"destination_work_element_id"`
	TransferAmount           decimal.Decimal `json:"transfer_amount"`
	Reason                   string          `json:"reason"`
}

func (s *Service) SubmitBudgetChange(ctx context.Context, in BudgetChangeInput, actor models.Actor) (*models.BudgetChange, error) {
	var bc *models.BudgetChange
	err := s.submit(ctx, KindBudgetChange, actor, func(tx *gorm.DB) (entity, error) {
		if err := required("bcr_number", in.BCRNumber); err != nil {
			return nil, err
		}
		if err := requiredID("source_budget_id", in.SourceBudgetID); err != nil {
			return nil, err
		}
		if err := requiredID("destination_work_element_id", in.DestinationWorkElementID); err != nil {
			return nil, err
		}
		if !in.TransferAmount.IsPositive() {
			return nil, apperr.InvalidInput("transfer_amount", "must be greater than 0")
		}
		if err := inRange("transfer_amount", in.TransferAmount); err != nil {
			return nil, err
		}
		number := strings.TrimSpace(in.BCRNumber)

		var dup int64
		if err := tx.Model(&models.BudgetChange{}).Where("bcr_number = ?", number).Count(&dup).Error; err != nil {
			return nil, apperr.Internal("failed to check bcr number", err)
		}
		if dup > 0 {
			return nil, apperr.InvalidInput("bcr_number", "already exists")
		}

		src, p, err := projectOfBudget(tx, in.SourceBudgetID)
		if err != nil {
			return nil, err
		}
		if err := requireApproved(p, "budget change"); err != nil {
			return nil, err
		}
		if src.Status != models.StatusApproved {
			return nil, apperr.Precondition("source budget is not approved")
		}
		if src.WorkElementID == in.DestinationWorkElementID {
			return nil, apperr.InvalidInput("destination_work_element_id", "must differ from the source budget's work element")
		}
		var dest models.WorkElement
		if err := load(tx, &dest, in.DestinationWorkElementID, "destination work element"); err != nil {
			return nil, err
		}

		bc = &models.BudgetChange{
			Approval:                 pending(actor),
			BCRNumber:                number,
			SourceBudgetID:           src.ID,
			DestinationWorkElementID: dest.ID,
			TransferAmount:           models.NewMoney(in.TransferAmount.Round(2)),
			Reason:                   strings.TrimSpace(in.Reason),
		}
		return bc, nil
	})
	if err != nil {
		return nil, err
	}
	return bc, nil
}

type AFEInput struct {
	BudgetID            uuid.UUID       `json:"budget_id"`
	AFENumber           string          `json:"afe_number"`
	Title               string          `json:"afe_title"`
	Description         string          `json:"description"`
	ActivityDescription string          `json:"activity_description"`
	Unit                string          `json:"unit"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	// Amount defaults to Quantity × UnitPrice when zero.
	Amount decimal.Decimal `json:"amount"`
}

func (in AFEInput) amount() decimal.Decimal {
	if !in.Amount.IsZero() {
		return in.Amount.Round(2)
	}
	return in.Quantity.Mul(in.UnitPrice).Round(2)
}

func (s *Service) SubmitAFE(ctx context.Context, in AFEInput, actor models.Actor) (*models.AFE, error) {
	var a *models.AFE
	err := s.submit(ctx, KindAFE, actor, func(tx *gorm.DB) (entity, error) {
		if err := requiredID("budget_id", in.BudgetID); err != nil {
			return nil, err
		}
		if err := required("afe_title", in.Title); err != nil {
			return nil, err
		}
		if in.Quantity.IsNegative() || in.UnitPrice.IsNegative() {
			return nil, apperr.InvalidInput("quantity", "quantity and unit price cannot be negative")
		}
		amount := in.amount()
		if !amount.IsPositive() {
			return nil, apperr.InvalidInput("amount", "must be greater than 0")
		}
		if err := inRange("amount", amount); err != nil {
			return nil, err
		}
		b, p, err := projectOfBudget(tx, in.BudgetID)
		if err != nil {
			return nil, err
		}
		if err := requireApproved(p, "AFE"); err != nil {
			return nil, err
		}
		if b.Status != models.StatusApproved {
			return nil, apperr.Precondition("budget is not approved, cannot submit AFE")
		}
		a = &models.AFE{
			Approval:            pending(actor),
			BudgetID:            b.ID,
			AFENumber:           strings.TrimSpace(in.AFENumber),
			Title:               strings.TrimSpace(in.Title),
			Description:         strings.TrimSpace(in.Description),
			ActivityDescription: strings.TrimSpace(in.ActivityDescription),
			Unit:                strings.TrimSpace(in.Unit),
			Quantity:            models.NewMoney(in.Quantity),
			UnitPrice:           models.NewMoney(in.UnitPrice),
			Amount:              models.NewMoney(amount),
			TotalInvoiced:       models.NewMoney(decimal.Zero),
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

type ProductionInput struct {
	ProjectID       uuid.UUID       `json:"project_id"`
	PricePerBarrel  decimal.Decimal `json:"price_per_barrel"`
	NumberOfBarrels int64           `json:"number_of_barrels"`
	Cost            decimal.Decimal `json:"cost"`
	ProductionDate  time.Time       `json:"production_date"`
}

func (s *Service) SubmitProduction(ctx context.Context, in ProductionInput, actor models.Actor) (*models.Production, error) {
	var pr *models.Production
	err := s.submit(ctx, KindProduction, actor, func(tx *gorm.DB) (entity, error) {
		if err := requiredID("project_id", in.ProjectID); err != nil {
			return nil, err
		}
		if in.NumberOfBarrels <= 0 {
			return nil, apperr.InvalidInput("number_of_barrels", "must be greater than 0")
		}
		if in.PricePerBarrel.IsNegative() {
			return nil, apperr.InvalidInput("price_per_barrel", "cannot be negative")
		}
		if in.Cost.IsNegative() {
			return nil, apperr.InvalidInput("cost", "cannot be negative")
		}
		if err := inRange("price_per_barrel", in.PricePerBarrel); err != nil {
			return nil, err
		}
		if err := inRange("cost", in.Cost); err != nil {
			return nil, err
		}
		if in.ProductionDate.IsZero() {
			return nil, apperr.InvalidInput("production_date", "is required")
		}
		p, err := loadProject(tx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if p.Status != models.StatusApproved {
			return nil, apperr.Precondition("project is not approved, cannot add production data")
		}
		pr = &models.Production{
			ProjectID:       p.ID,
			PricePerBarrel:  models.NewMoney(in.PricePerBarrel.Round(2)),
			NumberOfBarrels: in.NumberOfBarrels,
			Cost:            models.NewMoney(in.Cost.Round(2)),
			ProductionDate:  in.ProductionDate.UTC().Truncate(24 * time.Hour),
			SubmittedBy:     actor.ID,
		}
		return pr, nil
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}
