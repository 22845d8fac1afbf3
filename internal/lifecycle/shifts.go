package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

type ShiftManager struct {
	deps        Dependencies
	assignments *AssignmentCoordinator
	log         *logger.Logger
}

func (m *ShiftManager) Get(ctx context.Context, shiftID uuid.UUID) (*models.Shift, error) {
	shift, err := m.deps.Store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, loadErr(err, "shift", shiftID)
	}
	return shift, nil
}

// ownShift loads the shift and checks it belongs to driverID.
func (m *ShiftManager) ownShift(ctx context.Context, shiftID, driverID uuid.UUID) (*models.Shift, error) {
	shift, err := m.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.DriverID != driverID {
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "shift belongs to another driver")
	}
	return shift, nil
}

func (m *ShiftManager) Create(ctx context.Context, driverID, actorID uuid.UUID) (*models.Shift, error) {
	driver, err := m.deps.Store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, loadErr(err, "driver", driverID)
	}
	if !driver.IsActive {
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "driver is deactivated")
	}

	var shift *models.Shift
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		existing, err := repo.FindOpenShiftByDriver(ctx, driverID)
		switch {
		case err == nil:
			return apperrors.Conflict(apperrors.CodeActiveShiftExists, "driver already has an open shift",
				map[string]interface{}{"shiftId": existing.ID.String()})
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("find open shift: %w", err)
		}

		shift = &models.Shift{
			DriverID:           driverID,
			Status:             models.ShiftStatusPendingVerification,
			VerificationStatus: models.VerificationPending,
		}
		if err := repo.CreateShift(ctx, shift); err != nil {
			return err
		}

		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:    actorID,
			Action:     audit.ActionShiftCreated,
			EntityType: audit.EntityShift,
			EntityID:   shift.ID,
			NewState:   string(shift.Status),
			Metadata:   map[string]interface{}{"driverId": driverID.String()},
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "create shift")
	}

	m.log.LogLifecycleEvent(audit.EntityShift, shift.ID, audit.ActionShiftCreated, nil)

	n := notify.Notification{
		Type:    notify.TypeShiftStarted,
		Title:   "Shift started",
		Message: fmt.Sprintf("%s started a shift", driver.Name),
		Data:    shiftData(shift),
	}
	m.deps.Notify.NotifyAdmins(ctx, n)
	if actorID != driverID {
		m.deps.Notify.NotifyDriver(ctx, driverID, notify.Notification{
			Type:    notify.TypeShiftStarted,
			Title:   "Shift opened",
			Message: "A shift has been opened for you",
			Data:    shiftData(shift),
		})
	}
	return shift, nil
}

// RecordVerification stores the upstream biometric outcome on a shift that
// is still pending verification.
func (m *ShiftManager) RecordVerification(ctx context.Context, shiftID uuid.UUID, result models.VerificationStatus, actorID uuid.UUID) (*models.Shift, error) {
	if !result.Valid() {
		return nil, apperrors.Validation("unknown verification status", map[string]interface{}{"status": string(result)})
	}
	shift, err := m.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != models.ShiftStatusPendingVerification {
		return nil, apperrors.Conflict(apperrors.CodeInvalidStateTransition, "verification can only change on a pending shift",
			map[string]interface{}{"from": string(shift.Status)})
	}

	var updated *models.Shift
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		ok, err := repo.UpdateShiftIfVersion(ctx, shiftID, shift.Version, store.ShiftUpdate{VerificationStatus: result})
		if err != nil {
			return err
		}
		if !ok {
			return concurrentModification("record verification")
		}

		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionShiftVerification,
			EntityType:    audit.EntityShift,
			EntityID:      shiftID,
			PreviousState: string(shift.VerificationStatus),
			NewState:      string(result),
		})

		updated, err = repo.GetShift(ctx, shiftID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "record verification")
	}

	if result == models.VerificationFailedMatch || result == models.VerificationManualReview {
		m.deps.Notify.NotifyAdmins(ctx, notify.Notification{
			Type:    notify.TypeVerificationReview,
			Title:   "Biometric check needs attention",
			Message: fmt.Sprintf("Biometric verification result: %s", result),
			Data:    shiftData(updated),
		})
	}
	return updated, nil
}

func (m *ShiftManager) Activate(ctx context.Context, shiftID, driverID, actorID uuid.UUID) (*models.Shift, error) {
	shift, err := m.ownShift(ctx, shiftID, driverID)
	if err != nil {
		return nil, err
	}
	if err := ShiftTransitions.Check(shift.Status, models.ShiftStatusActive); err != nil {
		return nil, err
	}

	var updated *models.Shift
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		check, err := NewPreconditions(repo).ShiftActivation(ctx, shiftID, driverID)
		if err != nil {
			return err
		}

		now := m.deps.Now()
		vehicleID := check.Assignment.VehicleID
		ok, err := repo.UpdateShiftIfVersion(ctx, shiftID, shift.Version, store.ShiftUpdate{
			Status:    models.ShiftStatusActive,
			StartedAt: &now,
			VehicleID: &vehicleID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return concurrentModification("activate shift")
		}
		if err := repo.UpdateVehicleStatus(ctx, vehicleID, models.VehicleStatusInUse); err != nil {
			return fmt.Errorf("update vehicle status: %w", err)
		}

		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionShiftActivated,
			EntityType:    audit.EntityShift,
			EntityID:      shiftID,
			PreviousState: string(shift.Status),
			NewState:      string(models.ShiftStatusActive),
			Metadata: map[string]interface{}{
				"vehicleId":    vehicleID.String(),
				"inspectionId": check.Inspection.ID.String(),
			},
		})

		updated, err = repo.GetShift(ctx, shiftID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "activate shift")
	}

	m.log.LogLifecycleEvent(audit.EntityShift, shiftID, audit.ActionShiftActivated, nil)

	n := notify.Notification{
		Type:    notify.TypeShiftActivated,
		Title:   "Shift active",
		Message: "Shift is now active",
		Data:    shiftData(updated),
	}
	m.deps.Notify.NotifyAdmins(ctx, n)
	if actorID != driverID {
		m.deps.Notify.NotifyDriver(ctx, driverID, n)
	}
	return updated, nil
}

func (m *ShiftManager) Close(ctx context.Context, shiftID, driverID, actorID uuid.UUID) (*models.Shift, error) {
	shift, err := m.ownShift(ctx, shiftID, driverID)
	if err != nil {
		return nil, err
	}
	if err := ShiftTransitions.Check(shift.Status, models.ShiftStatusClosed); err != nil {
		return nil, err
	}

	var (
		updated  *models.Shift
		released *models.VehicleAssignment
	)
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		if _, err := NewPreconditions(repo).ShiftClosure(ctx, shiftID, driverID, shift.StartedAt); err != nil {
			return err
		}

		now := m.deps.Now()
		ok, err := repo.UpdateShiftIfVersion(ctx, shiftID, shift.Version, store.ShiftUpdate{
			Status:      models.ShiftStatusClosed,
			ClosedAt:    &now,
			CloseReason: models.CloseReasonDriver,
		})
		if err != nil {
			return err
		}
		if !ok {
			return concurrentModification("close shift")
		}

		released, err = m.assignments.releaseForShift(ctx, repo, shiftID, actorID)
		if err != nil {
			return err
		}

		meta := map[string]interface{}{"closeReason": models.CloseReasonDriver}
		if released != nil {
			meta["releasedAssignmentId"] = released.ID.String()
		}
		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionShiftClosed,
			EntityType:    audit.EntityShift,
			EntityID:      shiftID,
			PreviousState: string(shift.Status),
			NewState:      string(models.ShiftStatusClosed),
			Metadata:      meta,
		})

		updated, err = repo.GetShift(ctx, shiftID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "close shift")
	}

	m.log.LogLifecycleEvent(audit.EntityShift, shiftID, audit.ActionShiftClosed, nil)
	if released != nil {
		m.assignments.afterRelease(ctx, released)
	}

	m.deps.Notify.NotifyAdmins(ctx, notify.Notification{
		Type:    notify.TypeShiftClosed,
		Title:   "Shift closed",
		Message: "Driver closed their shift",
		Data:    shiftData(updated),
	})
	return updated, nil
}

// AdminClose force-closes a shift. Preconditions are skipped but a closed
// shift still cannot be closed again. Open trips on the shift are cancelled.
func (m *ShiftManager) AdminClose(ctx context.Context, shiftID, actorID uuid.UUID, reason string) (*models.Shift, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("a reason is required to force-close a shift",
			map[string]interface{}{"reason": "is required"})
	}

	shift, err := m.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if err := ShiftTransitions.Check(shift.Status, models.ShiftStatusClosed); err != nil {
		return nil, err
	}

	var (
		updated   *models.Shift
		released  *models.VehicleAssignment
		cancelled []uuid.UUID
	)
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		cancelled = nil

		open, err := repo.ListTripsByShift(ctx, shiftID, models.OpenTripStatuses...)
		if err != nil {
			return fmt.Errorf("list open trips: %w", err)
		}

		now := m.deps.Now()
		for _, trip := range open {
			ok, err := repo.UpdateTripIfStatus(ctx, trip.ID, models.OpenTripStatuses, store.TripUpdate{
				Status:             models.TripStatusCancelled,
				CancellationReason: fmt.Sprintf("shift closed by admin: %s", reason),
				CancelledBy:        &actorID,
			})
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			cancelled = append(cancelled, trip.ID)

			m.deps.Audit.RecordOverride(ctx, repo, audit.Event{
				ActorID:       actorID,
				Action:        audit.ActionTripCancelled,
				EntityType:    audit.EntityTrip,
				EntityID:      trip.ID,
				PreviousState: string(trip.Status),
				NewState:      string(models.TripStatusCancelled),
				Metadata:      map[string]interface{}{"shiftId": shiftID.String()},
			}, reason)
		}

		ok, err := repo.UpdateShiftIfStatus(ctx, shiftID, models.OpenShiftStatuses, store.ShiftUpdate{
			Status:      models.ShiftStatusClosed,
			ClosedAt:    &now,
			CloseReason: models.CloseReasonAdminOverride,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ShiftTransitions.Check(models.ShiftStatusClosed, models.ShiftStatusClosed)
		}

		released, err = m.assignments.releaseForShift(ctx, repo, shiftID, actorID)
		if err != nil {
			return err
		}

		meta := map[string]interface{}{"cancelledTripCount": len(cancelled)}
		if released != nil {
			meta["releasedAssignmentId"] = released.ID.String()
		}
		m.deps.Audit.RecordOverride(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionShiftAdminClosed,
			EntityType:    audit.EntityShift,
			EntityID:      shiftID,
			PreviousState: string(shift.Status),
			NewState:      string(models.ShiftStatusClosed),
			Metadata:      meta,
		}, reason)

		updated, err = repo.GetShift(ctx, shiftID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "admin close shift")
	}

	m.log.WithActor(actorID).LogLifecycleEvent(audit.EntityShift, shiftID, audit.ActionShiftAdminClosed,
		map[string]interface{}{"cancelled_trips": len(cancelled), "reason": reason})
	if released != nil {
		m.assignments.afterRelease(ctx, released)
	}

	data := shiftData(updated)
	data["reason"] = reason
	data["cancelledTripCount"] = len(cancelled)
	m.deps.Notify.NotifyDriver(ctx, updated.DriverID, notify.Notification{
		Type:    notify.TypeShiftAdminClosed,
		Title:   "Shift closed by admin",
		Message: fmt.Sprintf("Your shift was closed by an administrator: %s", reason),
		Data:    data,
	})
	m.deps.Notify.NotifyAdmins(ctx, notify.Notification{
		Type:    notify.TypeShiftAdminClosed,
		Title:   "Shift force-closed",
		Message: fmt.Sprintf("Shift closed by admin override, %d trip(s) cancelled", len(cancelled)),
		Data:    data,
	})
	return updated, nil
}

func shiftData(s *models.Shift) map[string]interface{} {
	data := map[string]interface{}{
		"shiftId":  s.ID.String(),
		"driverId": s.DriverID.String(),
		"status":   string(s.Status),
	}
	if s.VehicleID != nil {
		data["vehicleId"] = s.VehicleID.String()
	}
	return data
}
