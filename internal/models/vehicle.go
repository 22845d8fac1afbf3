package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "available"
	VehicleStatusAssigned    VehicleStatus = "assigned"
	VehicleStatusInUse       VehicleStatus = "in_use"
	VehicleStatusDamaged     VehicleStatus = "damaged"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
)

// Locked reports whether the status forbids handing the vehicle to a driver.
func (s VehicleStatus) Locked() bool {
	return s == VehicleStatusDamaged || s == VehicleStatusMaintenance
}

type Vehicle struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	PlateNumber string        `json:"plateNumber" gorm:"column:plate_number;uniqueIndex;not null"`
	Make        string        `json:"make"`
	Model       string        `json:"model"`
	Status      VehicleStatus `json:"status" gorm:"not null;default:'available'"`
	IsActive    bool          `json:"isActive" gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// TableName specifies the table name
func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
