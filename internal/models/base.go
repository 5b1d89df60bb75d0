package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// Base replaces gorm.Model for workflow records: ids are generated uuids.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Base) EntityID() uuid.UUID { return b.ID }

// Approval carries the pending → approved|declined bookkeeping shared by
// every record a manager signs off on.
type Approval struct {
	Status      Status     `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	SubmittedBy string     `gorm:"size:50;not null;index" json:"submitted_by"`
	ApprovedBy  *string    `gorm:"size:50;index" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

func (a *Approval) CurrentStatus() Status { return a.Status }

func (a *Approval) MarkDecided(status Status, by string, at time.Time) {
	a.Status = status
	a.ApprovedBy = &by
	a.ApprovedAt = &at
}

// Approvable is implemented by every record kind the approval state machine
// transitions.
type Approvable interface {
	EntityID() uuid.UUID
	CurrentStatus() Status
	MarkDecided(status Status, by string, at time.Time)
}
