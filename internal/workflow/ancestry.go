package workflow

import (
	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The helpers below walk child → project. They are only used at creation
// time; later transitions never re-check the project.

func requireApproved(p *models.Project, what string) error {
	if p.Status != models.StatusApproved {
		return apperr.Precondition("associated project is not approved, cannot submit " + what)
	}
	return nil
}

func loadProject(tx *gorm.DB, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := load(tx, &p, id, "project"); err != nil {
		return nil, err
	}
	return &p, nil
}

func projectOfTask(tx *gorm.DB, taskID uuid.UUID) (*models.Task, *models.Project, error) {
	var t models.Task
	if err := load(tx, &t, taskID, "task"); err != nil {
		return nil, nil, err
	}
	p, err := loadProject(tx, t.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return &t, p, nil
}

func projectOfWorkElement(tx *gorm.DB, weID uuid.UUID) (*models.WorkElement, *models.Project, error) {
	var we models.WorkElement
	if err := load(tx, &we, weID, "work element"); err != nil {
		return nil, nil, err
	}
	_, p, err := projectOfTask(tx, we.TaskID)
	if err != nil {
		return nil, nil, err
	}
	return &we, p, nil
}

func projectOfBudget(tx *gorm.DB, budgetID uuid.UUID) (*models.Budget, *models.Project, error) {
	var b models.Budget
	if err := load(tx, &b, budgetID, "budget"); err != nil {
		return nil, nil, err
	}
	_, p, err := projectOfWorkElement(tx, b.WorkElementID)
	if err != nil {
		return nil, nil, err
	}
	return &b, p, nil
}

// projectOfAFE locks the AFE row since every caller goes on to touch its
// running total.
func projectOfAFE(tx *gorm.DB, afeID uuid.UUID) (*models.AFE, *models.Project, error) {
	var a models.AFE
	if err := lock(tx, &a, afeID, "AFE"); err != nil {
		return nil, nil, err
	}
	_, p, err := projectOfBudget(tx, a.BudgetID)
	if err != nil {
		return nil, nil, err
	}
	return &a, p, nil
}
