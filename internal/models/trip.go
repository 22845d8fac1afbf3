package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TripStatus string

const (
	TripStatusAssigned   TripStatus = "ASSIGNED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// OpenTripStatuses are the non-terminal trip statuses.
var OpenTripStatuses = []TripStatus{TripStatusAssigned, TripStatusInProgress}

type Location struct {
	Address string  `json:"address" validate:"max=255"`
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
}

type Trip struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	DriverID            uuid.UUID  `json:"driverId" gorm:"type:uuid;not null;index"`
	ShiftID             uuid.UUID  `json:"shiftId" gorm:"type:uuid;not null;index"`
	VehicleID           uuid.UUID  `json:"vehicleId" gorm:"type:uuid;not null"`
	Status              TripStatus `json:"status" gorm:"not null;index"`
	Version             int64      `json:"version" gorm:"not null;default:0"`
	Pickup              Location   `json:"pickup" gorm:"embedded;embeddedPrefix:pickup_"`
	Dropoff             Location   `json:"dropoff" gorm:"embedded;embeddedPrefix:dropoff_"`
	EstimatedDistanceKm float64    `json:"estimatedDistanceKm" gorm:"column:estimated_distance_km"`
	Price               float64    `json:"price" gorm:"not null"`
	ScheduledTime       *time.Time `json:"scheduledTime,omitempty"`
	ActualStartTime     *time.Time `json:"actualStartTime,omitempty"`
	ActualEndTime       *time.Time `json:"actualEndTime,omitempty"`
	CancellationReason  string     `json:"cancellationReason,omitempty" gorm:"column:cancellation_reason"`
	CancelledBy         *uuid.UUID `json:"cancelledBy,omitempty" gorm:"type:uuid"`
	CreatedBy           uuid.UUID  `json:"createdBy" gorm:"type:uuid"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// TableName specifies the table name
func (Trip) TableName() string {
	return "trips"
}

func (t *Trip) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *Trip) IsOpen() bool {
	return t.Status == TripStatusAssigned || t.Status == TripStatusInProgress
}
