package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Driver is the operational profile of a driver account. Drivers are
// deactivated, never deleted.
type Driver struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string    `json:"name" gorm:"not null"`
	LicenseNumber    string    `json:"licenseNumber" gorm:"column:license_number"`
	IdentityVerified bool      `json:"identityVerified" gorm:"column:identity_verified;not null;default:false"`
	IsActive         bool      `json:"isActive" gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Driver) TableName() string {
	return "drivers"
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
