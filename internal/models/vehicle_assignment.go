package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleAssignment binds one vehicle to one driver for one shift. The partial
// unique indexes keep at most one active row per vehicle and per driver.
type VehicleAssignment struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	VehicleID  uuid.UUID  `json:"vehicleId" gorm:"type:uuid;not null;index:idx_assignment_active_vehicle,unique,where:active = true"`
	DriverID   uuid.UUID  `json:"driverId" gorm:"type:uuid;not null;index:idx_assignment_active_driver,unique,where:active = true"`
	ShiftID    uuid.UUID  `json:"shiftId" gorm:"type:uuid;not null;index"`
	Active     bool       `json:"active" gorm:"not null;default:true"`
	AssignedAt time.Time  `json:"assignedAt" gorm:"not null"`
	AssignedBy uuid.UUID  `json:"assignedBy" gorm:"type:uuid"`
	ReleasedAt *time.Time `json:"releasedAt,omitempty"`
	ReleasedBy *uuid.UUID `json:"releasedBy,omitempty" gorm:"type:uuid"`
}

// TableName specifies the table name
func (VehicleAssignment) TableName() string {
	return "vehicle_assignments"
}

func (a *VehicleAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	return nil
}
