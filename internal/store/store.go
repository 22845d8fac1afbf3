// Package store declares the persistence contract of the lifecycle engine.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a write loses a race: a unique index
	// violation or a serialization failure.
	ErrConflict = errors.New("store: write conflict")
)

// ShiftUpdate lists the columns a conditional shift write may set. Zero
// values are left untouched. Version is always incremented.
type ShiftUpdate struct {
	Status             models.ShiftStatus
	VerificationStatus models.VerificationStatus
	VehicleID          *uuid.UUID
	StartedAt          *time.Time
	ClosedAt           *time.Time
	CloseReason        string
}

// TripUpdate lists the columns a conditional trip write may set. Zero values
// are left untouched. Version is always incremented.
type TripUpdate struct {
	Status             models.TripStatus
	ActualStartTime    *time.Time
	ActualEndTime      *time.Time
	CancellationReason string
	CancelledBy        *uuid.UUID
}

// AuditFilter narrows an audit trail query. Results are oldest first.
type AuditFilter struct {
	EntityType string
	EntityID   uuid.UUID
	Since      time.Time
	Limit      int
}

// Repository is the set of reads and writes available both inside and
// outside a transaction.
type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUserFCMToken(ctx context.Context, id uuid.UUID, token string) error

	GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	CreateDriver(ctx context.Context, d *models.Driver) error
	SaveDriver(ctx context.Context, d *models.Driver) error

	GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	// LockVehicle reads the vehicle and holds a row lock until the enclosing
	// transaction ends.
	LockVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	UpdateVehicleStatus(ctx context.Context, id uuid.UUID, status models.VehicleStatus) error

	GetShift(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	FindOpenShiftByDriver(ctx context.Context, driverID uuid.UUID) (*models.Shift, error)
	CreateShift(ctx context.Context, s *models.Shift) error
	// UpdateShiftIfVersion applies u only when the stored version matches.
	UpdateShiftIfVersion(ctx context.Context, id uuid.UUID, version int64, u ShiftUpdate) (bool, error)
	// UpdateShiftIfStatus applies u only when the stored status is one of allowed.
	UpdateShiftIfStatus(ctx context.Context, id uuid.UUID, allowed []models.ShiftStatus, u ShiftUpdate) (bool, error)

	GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	FindOpenTripByDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error)
	// ListTripsByShift returns the shift's trips, oldest first, optionally
	// restricted to statuses.
	ListTripsByShift(ctx context.Context, shiftID uuid.UUID, statuses ...models.TripStatus) ([]models.Trip, error)
	CreateTrip(ctx context.Context, t *models.Trip) error
	UpdateTripIfVersion(ctx context.Context, id uuid.UUID, version int64, u TripUpdate) (bool, error)
	UpdateTripIfStatus(ctx context.Context, id uuid.UUID, allowed []models.TripStatus, u TripUpdate) (bool, error)

	GetAssignment(ctx context.Context, id uuid.UUID) (*models.VehicleAssignment, error)
	FindActiveAssignmentByVehicle(ctx context.Context, vehicleID uuid.UUID) (*models.VehicleAssignment, error)
	FindActiveAssignmentByDriver(ctx context.Context, driverID uuid.UUID) (*models.VehicleAssignment, error)
	FindActiveAssignmentByShift(ctx context.Context, shiftID uuid.UUID) (*models.VehicleAssignment, error)
	CreateAssignment(ctx context.Context, a *models.VehicleAssignment) error
	// ReleaseAssignment flips an active assignment to inactive. It reports
	// false when the assignment was not active.
	ReleaseAssignment(ctx context.Context, id uuid.UUID, releasedBy uuid.UUID, at time.Time) (bool, error)

	GetInspection(ctx context.Context, id uuid.UUID) (*models.Inspection, error)
	// FindLatestCompletedInspection returns the newest completed inspection of
	// the shift by the driver, created strictly after the given time when set.
	FindLatestCompletedInspection(ctx context.Context, shiftID, driverID uuid.UUID, after *time.Time) (*models.Inspection, error)
	CreateInspection(ctx context.Context, i *models.Inspection) error
	AddInspectionPhoto(ctx context.Context, p *models.InspectionPhoto) error
	CompleteInspection(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	GetDamageReport(ctx context.Context, id uuid.UUID) (*models.DamageReport, error)
	CreateDamageReport(ctx context.Context, d *models.DamageReport) error
	ResolveDamageReport(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, at time.Time) (bool, error)
	CountOpenDamageReports(ctx context.Context, vehicleID uuid.UUID) (int64, error)

	InsertAuditLog(ctx context.Context, l *models.AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}

// Store is a Repository that can also run a function atomically. When fn
// returns an error every write made through its Repository is discarded.
type Store interface {
	Repository
	RunInTransaction(ctx context.Context, fn func(repo Repository) error) error
}
