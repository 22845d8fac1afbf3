package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID            uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	ActorID       uuid.UUID              `json:"actorId" gorm:"type:uuid;index"`
	Action        string                 `json:"action" gorm:"not null"`
	EntityType    string                 `json:"entityType" gorm:"not null;index:idx_audit_entity"`
	EntityID      uuid.UUID              `json:"entityId" gorm:"type:uuid;not null;index:idx_audit_entity"`
	PreviousState string                 `json:"previousState,omitempty" gorm:"column:previous_state"`
	NewState      string                 `json:"newState,omitempty" gorm:"column:new_state"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
