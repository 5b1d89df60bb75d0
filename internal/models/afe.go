package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AFE is a committed spending ceiling under a budget. TotalInvoiced is a
// cache of the afe_offsets ledger and is only written together with an
// offset row.
type AFE struct {
	Base
	Approval

	BudgetID uuid.UUID `gorm:"type:uuid;not null;index" json:"budget_id"`
	Budget   *Budget   `json:"-"`

	AFENumber           string `gorm:"size:64;index" json:"afe_number"`
	Title               string `gorm:"size:255;not null" json:"afe_title"`
	Description         string `gorm:"type:text" json:"description"`
	ActivityDescription string `gorm:"type:text" json:"activity_description"`
	Unit                string `gorm:"size:32" json:"unit"`
	Quantity            Money  `gorm:"precision:18;scale:4;not null;default:0" json:"quantity"`
	UnitPrice           Money  `gorm:"not null;default:0" json:"unit_price"`
	Amount              Money  `gorm:"not null" json:"amount"`
	TotalInvoiced       Money  `gorm:"not null;default:0" json:"total_invoiced"`
}

func (AFE) TableName() string { return "afes" }

// Remaining is the uninvoiced part of the ceiling.
func (a *AFE) Remaining() decimal.Decimal {
	return a.Amount.Sub(a.TotalInvoiced.Decimal)
}

type Invoice struct {
	Base
	Approval

	AFEID uuid.UUID `gorm:"column:afe_id;type:uuid;not null;index" json:"afe_id"`
	AFE   *AFE      `gorm:"foreignKey:AFEID" json:"-"`

	InvoiceNumber  string     `gorm:"size:64;not null;index" json:"invoice_number"`
	Title          string     `gorm:"size:255" json:"invoice_title"`
	InvoiceDate    *time.Time `gorm:"type:date" json:"invoice_date,omitempty"`
	Amount         Money      `gorm:"not null" json:"amount"`
	Description    string     `gorm:"type:text" json:"description"`
	Vendor         string     `gorm:"size:255" json:"vendor"`
	UserDepartment string     `gorm:"size:255" json:"user_department"`
	ContractNumber string     `gorm:"size:64" json:"contract_number"`
	FilePath       *string    `gorm:"size:512" json:"file_path,omitempty"`

	CancelledBy *string    `gorm:"size:50" json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// IsOpen reports whether the invoice counts against its AFE ceiling.
func (i *Invoice) IsOpen() bool {
	return i.Status == StatusPending || i.Status == StatusApproved
}

func (i *Invoice) MarkCancelled(by string, at time.Time) {
	i.Status = StatusCancelled
	i.CancelledBy = &by
	i.CancelledAt = &at
}

func (i *Invoice) MarkReinstated() {
	i.Status = StatusPending
	i.CancelledBy = nil
	i.CancelledAt = nil
}

type OffsetReason string

const (
	OffsetSubmit    OffsetReason = "submit"
	OffsetCancel    OffsetReason = "cancel"
	OffsetReinstate OffsetReason = "reinstate"
	OffsetDecline   OffsetReason = "decline"
)

// AFEOffset is one append-only entry of the invoice offset ledger.
type AFEOffset struct {
	Base
	AFEID     uuid.UUID    `gorm:"column:afe_id;type:uuid;not null;index" json:"afe_id"`
	InvoiceID uuid.UUID    `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Delta     Money        `gorm:"not null" json:"delta"`
	Reason    OffsetReason `gorm:"type:varchar(20);not null" json:"reason"`
	Actor     string       `gorm:"size:50;not null" json:"actor"`
}

func (AFEOffset) TableName() string { return "afe_offsets" }
