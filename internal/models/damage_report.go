package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DamageStatus string

const (
	DamageStatusOpen     DamageStatus = "open"
	DamageStatusResolved DamageStatus = "resolved"
)

type DamageReport struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	VehicleID   uuid.UUID    `json:"vehicleId" gorm:"type:uuid;not null;index"`
	ShiftID     *uuid.UUID   `json:"shiftId,omitempty" gorm:"type:uuid"`
	ReportedBy  uuid.UUID    `json:"reportedBy" gorm:"type:uuid;not null"`
	Description string       `json:"description" gorm:"not null"`
	Status      DamageStatus `json:"status" gorm:"not null;default:'open'"`
	ResolvedBy  *uuid.UUID   `json:"resolvedBy,omitempty" gorm:"type:uuid"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// TableName specifies the table name
func (DamageReport) TableName() string {
	return "damage_reports"
}

func (d *DamageReport) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
