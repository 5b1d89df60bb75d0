package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Actor string `gorm:"size:50;not null;index" json:"actor"`

	Entity   string    `gorm:"size:50;not null" json:"entity"` // "project", "budget_change", "invoice"
	EntityID uuid.UUID `gorm:"type:uuid;index" json:"entity_id"`
	Action   string    `gorm:"size:50;not null" json:"action"` // "submit", "approved", "cancel"
	Details  string    `gorm:"type:text" json:"details"`
}
