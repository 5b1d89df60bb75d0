package database

import (
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateAuditLog writes one audit row through tx so it commits or rolls back
// with the change it describes.
func CreateAuditLog(tx *gorm.DB, actor, entity string, entityID uuid.UUID, action, details string) error {
	record := models.AuditLog{
		Actor:    actor,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	return tx.Create(&record).Error
}

func ListAuditLogs(db *gorm.DB, entity string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	q := db.Order("id desc")
	if entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if entityID != uuid.Nil {
		q = q.Where("entity_id = ?", entityID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []models.AuditLog
	err := q.Find(&logs).Error
	return logs, err
}
