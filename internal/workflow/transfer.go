package workflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// transferEffect moves bc.TransferAmount from the source budget into the
// destination work element's oldest approved budget, creating that budget
// when none exists. Source and destination rows are locked in id order so
// two BCRs crossing the same pair of budgets cannot deadlock each other.
func (s *Service) transferEffect(tx *gorm.DB, bc *models.BudgetChange, decision models.Status, actor models.Actor, now time.Time) error {
	if decision != models.StatusApproved {
		return nil
	}

	destID, err := destinationBudgetID(tx, bc.DestinationWorkElementID, bc.SourceBudgetID)
	if err != nil {
		return err
	}

	ids := []uuid.UUID{bc.SourceBudgetID}
	if destID != uuid.Nil {
		ids = append(ids, destID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	locked := make(map[uuid.UUID]*models.Budget, len(ids))
	for _, id := range ids {
		label := "destination budget"
		if id == bc.SourceBudgetID {
			label = "source budget"
		}
		var b models.Budget
		if err := lock(tx, &b, id, label); err != nil {
			return err
		}
		locked[id] = &b
	}

	src := locked[bc.SourceBudgetID]
	remaining := src.Amount.Sub(bc.TransferAmount.Decimal)
	if remaining.IsNegative() {
		return apperr.InsufficientFunds(fmt.Sprintf(
			"source budget holds %s, cannot transfer %s", src.Amount.StringFixed(2), bc.TransferAmount.StringFixed(2)))
	}
	src.Amount = models.NewMoney(remaining)
	if err := tx.Model(src).Update("amount", src.Amount).Error; err != nil {
		return apperr.Internal("failed to update source budget", err)
	}

	dest, ok := locked[destID]
	if ok {
		credited := dest.Amount.Add(bc.TransferAmount.Decimal)
		if credited.GreaterThanOrEqual(maxAmount) {
			return apperr.LimitExceeded(fmt.Sprintf(
				"destination budget cannot hold %s more", bc.TransferAmount.StringFixed(2)))
		}
		dest.Amount = models.NewMoney(credited)
		if err := tx.Model(dest).Update("amount", dest.Amount).Error; err != nil {
			return apperr.Internal("failed to update destination budget", err)
		}
	} else {
		approvedBy := actor.ID
		dest = &models.Budget{
			Approval: models.Approval{
				Status:      models.StatusApproved,
				SubmittedBy: bc.SubmittedBy,
				ApprovedBy:  &approvedBy,
				ApprovedAt:  &now,
			},
			WorkElementID: bc.DestinationWorkElementID,
			Amount:        bc.TransferAmount,
			Description:   "Created by BCR " + bc.BCRNumber,
		}
		if err := tx.Create(dest).Error; err != nil {
			return apperr.Internal("failed to create destination budget", err)
		}
	}

	bc.DestinationBudgetID = &dest.ID
	return s.audit(tx, actor, KindBudget, dest.ID, "transfer_in",
		fmt.Sprintf("BCR %s: +%s from budget %s", bc.BCRNumber, bc.TransferAmount.StringFixed(2), src.ID))
}

// destinationBudgetID returns the oldest approved budget of the work
// element, or uuid.Nil when it has none.
func destinationBudgetID(tx *gorm.DB, workElementID, sourceID uuid.UUID) (uuid.UUID, error) {
	var b models.Budget
	err := tx.Select("id").
		Where("work_element_id = ? AND status = ? AND id <> ?", workElementID, models.StatusApproved, sourceID).
		Order("created_at asc, id asc").
		First(&b).Error
	switch {
	case err == nil:
		return b.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return uuid.Nil, nil
	default:
		return uuid.Nil, apperr.Internal("failed to look up destination budget", err)
	}
}
