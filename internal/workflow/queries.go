package workflow

import (
	"context"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListPending returns every pending record of kind, oldest first.
func (s *Service) ListPending(ctx context.Context, kind Kind, actor models.Actor) (any, error) {
	op := "list_pending_" + string(kind)
	if err := requireDecider(actor); err != nil {
		return nil, s.fail(op, err)
	}

	var dest any
	switch kind {
	case KindProject:
		dest = &[]models.Project{}
	case KindBudget:
		dest = &[]models.Budget{}
	case KindBudgetChange:
		dest = &[]models.BudgetChange{}
	case KindAFE:
		dest = &[]models.AFE{}
	case KindInvoice:
		dest = &[]models.Invoice{}
	default:
		return nil, s.fail(op, apperr.InvalidInput("kind", kind.Label()+" has no approval queue"))
	}

	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("created_at asc, id asc").
		Find(dest).Error
	if err != nil {
		return nil, s.fail(op, apperr.Internal("failed to list pending "+kind.Label(), err))
	}
	return dest, nil
}

// MyProjects lists the projects actor submitted, newest first.
func (s *Service) MyProjects(ctx context.Context, actor models.Actor) ([]models.Project, error) {
	if err := requireActor(actor); err != nil {
		return nil, s.fail("my_projects", err)
	}
	var out []models.Project
	err := s.db.WithContext(ctx).
		Where("submitted_by = ?", actor.ID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, s.fail("my_projects", apperr.Internal("failed to list projects", err))
	}
	return out, nil
}

func (s *Service) TasksOfProject(ctx context.Context, projectID uuid.UUID, actor models.Actor) ([]models.Task, error) {
	var out []models.Task
	err := s.children(ctx, "tasks_of_project", actor, &models.Project{}, projectID, "project", &out, func(q *gorm.DB) *gorm.DB {
		return q.Where("project_id = ?", projectID)
	})
	return out, err
}

func (s *Service) WorkElementsOfTask(ctx context.Context, taskID uuid.UUID, actor models.Actor) ([]models.WorkElement, error) {
	var out []models.WorkElement
	err := s.children(ctx, "work_elements_of_task", actor, &models.Task{}, taskID, "task", &out, func(q *gorm.DB) *gorm.DB {
		return q.Where("task_id = ?", taskID)
	})
	return out, err
}

// ApprovedBudgetsOfWorkElement feeds the BCR and AFE forms, which only
// accept approved budgets.
func (s *Service) ApprovedBudgetsOfWorkElement(ctx context.Context, weID uuid.UUID, actor models.Actor) ([]models.Budget, error) {
	var out []models.Budget
	err := s.children(ctx, "budgets_of_work_element", actor, &models.WorkElement{}, weID, "work element", &out, func(q *gorm.DB) *gorm.DB {
		return q.Where("work_element_id = ? AND status = ?", weID, models.StatusApproved)
	})
	return out, err
}

func (s *Service) AFEsOfBudget(ctx context.Context, budgetID uuid.UUID, actor models.Actor) ([]models.AFE, error) {
	var out []models.AFE
	err := s.children(ctx, "afes_of_budget", actor, &models.Budget{}, budgetID, "budget", &out, func(q *gorm.DB) *gorm.DB {
		return q.Where("budget_id = ?", budgetID)
	})
	return out, err
}

func (s *Service) InvoicesOfAFE(ctx context.Context, afeID uuid.UUID, actor models.Actor) ([]models.Invoice, error) {
	var out []models.Invoice
	err := s.children(ctx, "invoices_of_afe", actor, &models.AFE{}, afeID, "AFE", &out, func(q *gorm.DB) *gorm.DB {
		return q.Where("afe_id = ?", afeID)
	})
	return out, err
}

// children checks the parent exists, then runs scope against dest ordered
// by creation.
func (s *Service) children(ctx context.Context, op string, actor models.Actor, parent any, parentID uuid.UUID, label string, dest any, scope func(*gorm.DB) *gorm.DB) error {
	if err := requireActor(actor); err != nil {
		return s.fail(op, err)
	}
	db := s.db.WithContext(ctx)
	if err := load(db, parent, parentID, label); err != nil {
		return s.fail(op, err)
	}
	if err := scope(db).Order("created_at asc, id asc").Find(dest).Error; err != nil {
		return s.fail(op, apperr.Internal("failed to list "+label+" children", err))
	}
	return nil
}

// Get loads one record of kind by id.
func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID, actor models.Actor) (any, error) {
	op := "get_" + string(kind)
	if err := requireActor(actor); err != nil {
		return nil, s.fail(op, err)
	}

	var dest any
	switch kind {
	case KindProject:
		dest = &models.Project{}
	case KindTask:
		dest = &models.Task{}
	case KindWorkElement:
		dest = &models.WorkElement{}
	case KindBudget:
		dest = &models.Budget{}
	case KindBudgetChange:
		dest = &models.BudgetChange{}
	case KindAFE:
		dest = &models.AFE{}
	case KindInvoice:
		dest = &models.Invoice{}
	case KindProduction:
		dest = &models.Production{}
	default:
		return nil, s.fail(op, apperr.InvalidInput("kind", "unknown kind"))
	}
	if err := load(s.db.WithContext(ctx), dest, id, kind.Label()); err != nil {
		return nil, s.fail(op, err)
	}
	return dest, nil
}
