package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// AssignmentCoordinator pairs one vehicle with one driver for one shift.
type AssignmentCoordinator struct {
	deps Dependencies
	log  *logger.Logger
}

func vehicleLocked(v *models.Vehicle) error {
	if v.Status.Locked() || !v.IsActive {
		return apperrors.Conflict(apperrors.CodeVehicleLocked, "vehicle is not available for assignment",
			map[string]interface{}{"vehicleId": v.ID.String(), "status": string(v.Status), "isActive": v.IsActive})
	}
	return nil
}

func assignableShift(shift *models.Shift, driverID uuid.UUID) error {
	if shift.DriverID != driverID {
		return apperrors.Forbidden(apperrors.CodeForbidden, "shift belongs to another driver")
	}
	if ShiftTransitions.IsTerminal(shift.Status) {
		return apperrors.Conflict(apperrors.CodeInvalidStateTransition, "cannot assign a vehicle to a closed shift",
			map[string]interface{}{"from": string(shift.Status)})
	}
	return nil
}

func (c *AssignmentCoordinator) Assign(ctx context.Context, vehicleID, driverID, shiftID, actorID uuid.UUID) (*models.VehicleAssignment, error) {
	st := c.deps.Store

	vehicle, err := st.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, loadErr(err, "vehicle", vehicleID)
	}
	if err := vehicleLocked(vehicle); err != nil {
		return nil, err
	}
	openDamage, err := st.CountOpenDamageReports(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("count damage reports: %w", err)
	}
	if openDamage > 0 {
		return nil, apperrors.Conflict(apperrors.CodeVehicleHasOpenDamage, "vehicle has unresolved damage reports",
			map[string]interface{}{"vehicleId": vehicleID.String(), "openReports": openDamage})
	}

	shift, err := st.GetShift(ctx, shiftID)
	if err != nil {
		return nil, loadErr(err, "shift", shiftID)
	}
	if err := assignableShift(shift, driverID); err != nil {
		return nil, err
	}

	var assignment *models.VehicleAssignment
	err = st.RunInTransaction(ctx, func(repo store.Repository) error {
		// The shift may have closed since the read above.
		current, err := repo.GetShift(ctx, shiftID)
		if err != nil {
			return loadErr(err, "shift", shiftID)
		}
		if err := assignableShift(current, driverID); err != nil {
			return err
		}

		locked, err := repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return loadErr(err, "vehicle", vehicleID)
		}
		if err := vehicleLocked(locked); err != nil {
			return err
		}

		existing, err := repo.FindActiveAssignmentByVehicle(ctx, vehicleID)
		switch {
		case err == nil:
			return apperrors.Conflict(apperrors.CodeVehicleAlreadyAssigned, "vehicle is already assigned",
				map[string]interface{}{"assignmentId": existing.ID.String(), "driverId": existing.DriverID.String()})
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("find vehicle assignment: %w", err)
		}

		existing, err = repo.FindActiveAssignmentByDriver(ctx, driverID)
		switch {
		case err == nil:
			return apperrors.Conflict(apperrors.CodeDriverAlreadyHasVehicle, "driver already has a vehicle",
				map[string]interface{}{"assignmentId": existing.ID.String(), "vehicleId": existing.VehicleID.String()})
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("find driver assignment: %w", err)
		}

		assignment = &models.VehicleAssignment{
			VehicleID:  vehicleID,
			DriverID:   driverID,
			ShiftID:    shiftID,
			Active:     true,
			AssignedAt: c.deps.Now(),
			AssignedBy: actorID,
		}
		if err := repo.CreateAssignment(ctx, assignment); err != nil {
			return err
		}
		if err := repo.UpdateVehicleStatus(ctx, vehicleID, models.VehicleStatusAssigned); err != nil {
			return fmt.Errorf("update vehicle status: %w", err)
		}

		c.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionVehicleAssigned,
			EntityType:    audit.EntityAssignment,
			EntityID:      assignment.ID,
			PreviousState: string(locked.Status),
			NewState:      string(models.VehicleStatusAssigned),
			Metadata: map[string]interface{}{
				"vehicleId": vehicleID.String(),
				"driverId":  driverID.String(),
				"shiftId":   shiftID.String(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "assign vehicle")
	}

	c.log.LogLifecycleEvent(audit.EntityAssignment, assignment.ID, audit.ActionVehicleAssigned,
		map[string]interface{}{"vehicle_id": vehicleID.String(), "driver_id": driverID.String()})

	n := notify.Notification{
		Type:    notify.TypeVehicleAssigned,
		Title:   "Vehicle assigned",
		Message: fmt.Sprintf("Vehicle %s has been assigned for your shift", vehicle.PlateNumber),
		Data: map[string]interface{}{
			"assignmentId": assignment.ID.String(),
			"vehicleId":    vehicleID.String(),
			"shiftId":      shiftID.String(),
		},
	}
	c.deps.Notify.NotifyDriver(ctx, driverID, n)
	c.deps.Notify.NotifyAdmins(ctx, n)

	return assignment, nil
}

// Release ends an active assignment and returns the vehicle to the pool.
func (c *AssignmentCoordinator) Release(ctx context.Context, assignmentID, actorID uuid.UUID) (*models.VehicleAssignment, error) {
	var released *models.VehicleAssignment
	err := c.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		a, err := repo.GetAssignment(ctx, assignmentID)
		if err != nil {
			return loadErr(err, "vehicle assignment", assignmentID)
		}
		if !a.Active {
			return apperrors.NotFound("active vehicle assignment", assignmentID)
		}
		released, err = c.release(ctx, repo, a, actorID)
		if err != nil {
			return err
		}
		if released == nil {
			return apperrors.NotFound("active vehicle assignment", assignmentID)
		}
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "release vehicle")
	}

	c.afterRelease(ctx, released)
	return released, nil
}

// releaseForShift releases the shift's active assignment inside the caller's
// transaction. It returns nil when the shift holds no vehicle.
func (c *AssignmentCoordinator) releaseForShift(ctx context.Context, repo store.Repository, shiftID, actorID uuid.UUID) (*models.VehicleAssignment, error) {
	a, err := repo.FindActiveAssignmentByShift(ctx, shiftID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find shift assignment: %w", err)
	}
	return c.release(ctx, repo, a, actorID)
}

func (c *AssignmentCoordinator) release(ctx context.Context, repo store.Repository, a *models.VehicleAssignment, actorID uuid.UUID) (*models.VehicleAssignment, error) {
	now := c.deps.Now()
	ok, err := repo.ReleaseAssignment(ctx, a.ID, actorID, now)
	if err != nil {
		return nil, fmt.Errorf("release assignment: %w", err)
	}
	if !ok {
		return nil, nil
	}

	status := models.VehicleStatusAvailable
	openDamage, err := repo.CountOpenDamageReports(ctx, a.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("count damage reports: %w", err)
	}
	if openDamage > 0 {
		status = models.VehicleStatusDamaged
	}
	if err := repo.UpdateVehicleStatus(ctx, a.VehicleID, status); err != nil {
		return nil, fmt.Errorf("update vehicle status: %w", err)
	}

	c.deps.Audit.Record(ctx, repo, audit.Event{
		ActorID:       actorID,
		Action:        audit.ActionVehicleReleased,
		EntityType:    audit.EntityAssignment,
		EntityID:      a.ID,
		PreviousState: "active",
		NewState:      "released",
		Metadata: map[string]interface{}{
			"vehicleId":     a.VehicleID.String(),
			"shiftId":       a.ShiftID.String(),
			"vehicleStatus": string(status),
		},
	})

	out := *a
	out.Active = false
	out.ReleasedAt = &now
	out.ReleasedBy = &actorID
	return &out, nil
}

func (c *AssignmentCoordinator) afterRelease(ctx context.Context, a *models.VehicleAssignment) {
	c.log.LogLifecycleEvent(audit.EntityAssignment, a.ID, audit.ActionVehicleReleased,
		map[string]interface{}{"vehicle_id": a.VehicleID.String()})

	n := notify.Notification{
		Type:    notify.TypeVehicleReleased,
		Title:   "Vehicle released",
		Message: "The vehicle assignment has ended",
		Data: map[string]interface{}{
			"assignmentId": a.ID.String(),
			"vehicleId":    a.VehicleID.String(),
		},
	}
	c.deps.Notify.NotifyDriver(ctx, a.DriverID, n)
	c.deps.Notify.NotifyAdmins(ctx, n)
}
