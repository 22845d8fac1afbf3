package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShiftStatus string

const (
	ShiftStatusPendingVerification ShiftStatus = "pending_verification"
	ShiftStatusActive              ShiftStatus = "active"
	ShiftStatusClosed              ShiftStatus = "closed"
)

// OpenShiftStatuses are the non-terminal shift statuses.
var OpenShiftStatuses = []ShiftStatus{ShiftStatusPendingVerification, ShiftStatusActive}

// VerificationStatus is the biometric check outcome computed upstream.
type VerificationStatus string

const (
	VerificationPending      VerificationStatus = "PENDING"
	VerificationVerified     VerificationStatus = "VERIFIED"
	VerificationFailedMatch  VerificationStatus = "FAILED_MATCH"
	VerificationManualReview VerificationStatus = "MANUAL_REVIEW"
)

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationPending, VerificationVerified, VerificationFailedMatch, VerificationManualReview:
		return true
	}
	return false
}

const (
	CloseReasonDriver        = "driver_closed"
	CloseReasonAdminOverride = "admin_override"
)

// Shift is a driver's work session. Version guards every update.
type Shift struct {
	ID                 uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	DriverID           uuid.UUID          `json:"driverId" gorm:"type:uuid;not null;index;index:idx_shifts_open_driver,unique,where:status <> 'closed'"`
	VehicleID          *uuid.UUID         `json:"vehicleId,omitempty" gorm:"type:uuid"`
	Status             ShiftStatus        `json:"status" gorm:"not null;index"`
	VerificationStatus VerificationStatus `json:"verificationStatus" gorm:"column:verification_status;not null;default:'PENDING'"`
	Version            int64              `json:"version" gorm:"not null;default:0"`
	StartedAt          *time.Time         `json:"startedAt,omitempty"`
	ClosedAt           *time.Time         `json:"closedAt,omitempty"`
	CloseReason        string             `json:"closeReason,omitempty" gorm:"column:close_reason"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// TableName specifies the table name
func (Shift) TableName() string {
	return "shifts"
}

func (s *Shift) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Shift) IsOpen() bool {
	return s.Status == ShiftStatusPendingVerification || s.Status == ShiftStatusActive
}
