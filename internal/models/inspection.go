package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InspectionStatus string

const (
	InspectionStatusInProgress InspectionStatus = "in_progress"
	InspectionStatusCompleted  InspectionStatus = "completed"
)

type PhotoDirection string

const (
	DirectionFront PhotoDirection = "front"
	DirectionBack  PhotoDirection = "back"
	DirectionLeft  PhotoDirection = "left"
	DirectionRight PhotoDirection = "right"
)

// RequiredDirections is the photo set of a full inspection.
var RequiredDirections = []PhotoDirection{DirectionFront, DirectionBack, DirectionLeft, DirectionRight}

func (d PhotoDirection) Valid() bool {
	for _, r := range RequiredDirections {
		if d == r {
			return true
		}
	}
	return false
}

type Inspection struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	ShiftID     uuid.UUID         `json:"shiftId" gorm:"type:uuid;not null;index"`
	DriverID    uuid.UUID         `json:"driverId" gorm:"type:uuid;not null"`
	VehicleID   *uuid.UUID        `json:"vehicleId,omitempty" gorm:"type:uuid"`
	Status      InspectionStatus  `json:"status" gorm:"not null"`
	Notes       string            `json:"notes,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Photos      []InspectionPhoto `json:"photos" gorm:"foreignKey:InspectionID"`
}

// TableName specifies the table name
func (Inspection) TableName() string {
	return "inspections"
}

func (i *Inspection) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// MissingDirections lists the required photo directions not yet covered.
func (i *Inspection) MissingDirections() []PhotoDirection {
	have := make(map[PhotoDirection]bool, len(i.Photos))
	for _, p := range i.Photos {
		have[p.Direction] = true
	}
	var missing []PhotoDirection
	for _, d := range RequiredDirections {
		if !have[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

type InspectionPhoto struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	InspectionID uuid.UUID      `json:"inspectionId" gorm:"type:uuid;not null;index"`
	Direction    PhotoDirection `json:"direction" gorm:"not null"`
	URL          string         `json:"url" gorm:"not null"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// TableName specifies the table name
func (InspectionPhoto) TableName() string {
	return "inspection_photos"
}

func (p *InspectionPhoto) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
