package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

// Preconditions are the read-only business checks that gate lifecycle
// transitions. Each check returns the records it loaded so callers do not
// fetch them twice.
type Preconditions struct {
	repo store.Repository
}

func NewPreconditions(repo store.Repository) Preconditions {
	return Preconditions{repo: repo}
}

type ActivationCheck struct {
	Shift      *models.Shift
	Driver     *models.Driver
	Assignment *models.VehicleAssignment
	Inspection *models.Inspection
}

type ClosureCheck struct {
	Inspection *models.Inspection
}

type TripAssignmentCheck struct {
	Driver     *models.Driver
	Shift      *models.Shift
	Assignment *models.VehicleAssignment
}

type TripStartCheck struct {
	Trip       *models.Trip
	Shift      *models.Shift
	Driver     *models.Driver
	Assignment *models.VehicleAssignment
	Inspection *models.Inspection
}

func (p Preconditions) ShiftActivation(ctx context.Context, shiftID, driverID uuid.UUID) (*ActivationCheck, error) {
	shift, err := p.repo.GetShift(ctx, shiftID)
	if err != nil {
		return nil, loadErr(err, "shift", shiftID)
	}
	driver, err := p.repo.GetDriver(ctx, driverID)
	if err != nil {
		return nil, loadErr(err, "driver", driverID)
	}
	if !driver.IdentityVerified {
		return nil, apperrors.Forbidden(apperrors.CodeIdentityNotVerified, "driver identity has not been verified")
	}
	if shift.VerificationStatus != models.VerificationVerified {
		return nil, apperrors.Forbidden(apperrors.CodeBiometricFailed,
			fmt.Sprintf("biometric verification is %s", shift.VerificationStatus))
	}

	assignment, err := p.activeAssignment(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	inspection, err := p.completedInspection(ctx, shiftID, driverID, nil)
	if err != nil {
		return nil, err
	}

	return &ActivationCheck{Shift: shift, Driver: driver, Assignment: assignment, Inspection: inspection}, nil
}

// ShiftClosure requires an end-of-shift inspection taken after startedAt and
// no open trip on the shift. A shift that never started needs no inspection.
func (p Preconditions) ShiftClosure(ctx context.Context, shiftID, driverID uuid.UUID, startedAt *time.Time) (*ClosureCheck, error) {
	check := &ClosureCheck{}
	if startedAt != nil {
		inspection, err := p.completedInspection(ctx, shiftID, driverID, startedAt)
		if err != nil {
			return nil, err
		}
		check.Inspection = inspection
	}

	open, err := p.repo.ListTripsByShift(ctx, shiftID, models.OpenTripStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list open trips: %w", err)
	}
	if len(open) > 0 {
		return nil, apperrors.Conflict(apperrors.CodeActiveTripExists, "shift still has an open trip",
			map[string]interface{}{"tripId": open[0].ID.String()})
	}
	return check, nil
}

func (p Preconditions) TripAssignment(ctx context.Context, driverID uuid.UUID) (*TripAssignmentCheck, error) {
	driver, err := p.repo.GetDriver(ctx, driverID)
	if err != nil {
		return nil, loadErr(err, "driver", driverID)
	}

	shift, err := p.repo.FindOpenShiftByDriver(ctx, driverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find open shift: %w", err)
	}
	if shift == nil || shift.Status != models.ShiftStatusActive {
		return nil, apperrors.Conflict(apperrors.CodeNoActiveShift, "driver has no active shift", nil)
	}

	trip, err := p.repo.FindOpenTripByDriver(ctx, driverID)
	switch {
	case err == nil:
		return nil, apperrors.Conflict(apperrors.CodeActiveTripExists, "driver already has an open trip",
			map[string]interface{}{"tripId": trip.ID.String()})
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find open trip: %w", err)
	}

	assignment, err := p.activeAssignment(ctx, shift.ID)
	if err != nil {
		return nil, err
	}
	return &TripAssignmentCheck{Driver: driver, Shift: shift, Assignment: assignment}, nil
}

func (p Preconditions) TripStart(ctx context.Context, tripID, driverID uuid.UUID) (*TripStartCheck, error) {
	trip, err := p.repo.GetTrip(ctx, tripID)
	if err != nil {
		return nil, loadErr(err, "trip", tripID)
	}
	if trip.DriverID != driverID {
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "trip is assigned to another driver")
	}

	shift, err := p.repo.GetShift(ctx, trip.ShiftID)
	if err != nil {
		return nil, loadErr(err, "shift", trip.ShiftID)
	}
	if shift.Status != models.ShiftStatusActive {
		return nil, apperrors.Conflict(apperrors.CodeNoActiveShift, "trip's shift is not active", nil)
	}

	driver, err := p.repo.GetDriver(ctx, driverID)
	if err != nil {
		return nil, loadErr(err, "driver", driverID)
	}
	if !driver.IdentityVerified {
		return nil, apperrors.Forbidden(apperrors.CodeIdentityNotVerified, "driver identity has not been verified")
	}

	assignment, err := p.activeAssignment(ctx, shift.ID)
	if err != nil {
		return nil, err
	}
	inspection, err := p.completedInspection(ctx, shift.ID, driverID, nil)
	if err != nil {
		return nil, err
	}

	return &TripStartCheck{Trip: trip, Shift: shift, Driver: driver, Assignment: assignment, Inspection: inspection}, nil
}

func (p Preconditions) activeAssignment(ctx context.Context, shiftID uuid.UUID) (*models.VehicleAssignment, error) {
	a, err := p.repo.FindActiveAssignmentByShift(ctx, shiftID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Conflict(apperrors.CodeNoVehicleAssigned, "no vehicle is assigned to the shift", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find active assignment: %w", err)
	}
	return a, nil
}

func (p Preconditions) completedInspection(ctx context.Context, shiftID, driverID uuid.UUID, after *time.Time) (*models.Inspection, error) {
	inspection, err := p.repo.FindLatestCompletedInspection(ctx, shiftID, driverID, after)
	if errors.Is(err, store.ErrNotFound) {
		msg := "a completed vehicle inspection is required"
		if after != nil {
			msg = "a completed end-of-shift inspection is required"
		}
		return nil, apperrors.Conflict(apperrors.CodeInspectionRequired, msg, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find inspection: %w", err)
	}

	if missing := inspection.MissingDirections(); len(missing) > 0 {
		return nil, apperrors.Conflict(apperrors.CodeInspectionPhotosRequired, "inspection is missing photos",
			map[string]interface{}{
				"inspectionId": inspection.ID.String(),
				"missing":      missing,
				"photoCount":   len(inspection.Photos),
			})
	}
	return inspection, nil
}
