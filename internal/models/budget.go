package models

import (
	"github.com/google/uuid"
)

type Budget struct {
	Base
	Approval

	WorkElementID uuid.UUID    `gorm:"type:uuid;not null;index" json:"work_element_id"`
	WorkElement   *WorkElement `json:"-"`

	// Amount moves with approved BCR transfers and approved invoices.
	Amount      Money  `gorm:"not null;default:0" json:"amount"`
	Description string `gorm:"type:text" json:"description"`
}

// BudgetChange is a BCR: a request to move TransferAmount out of
// SourceBudgetID into the destination work element's approved budget.
type BudgetChange struct {
	Base
	Approval

	BCRNumber                string    `gorm:"size:64;not null;uniqueIndex" json:"bcr_number"`
	SourceBudgetID           uuid.UUID `gorm:"type:uuid;not null;index" json:"source_budget_id"`
	DestinationWorkElementID uuid.UUID `gorm:"type:uuid;not null;index" json:"destination_work_element_id"`
	TransferAmount           Money     `gorm:"not null" json:"transfer_amount"`
	Reason                   string    `gorm:"type:text" json:"reason"`

	// DestinationBudgetID is resolved when the BCR is approved.
	DestinationBudgetID *uuid.UUID `gorm:"type:uuid" json:"destination_budget_id,omitempty"`
}
