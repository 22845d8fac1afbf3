package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
	"github.com/chachabrian/mooveit-fleet/pkg/utils"
)

type TripManager struct {
	deps Dependencies
	log  *logger.Logger
}

type TripRequest struct {
	DriverID      uuid.UUID       `json:"driverId" validate:"required"`
	Pickup        models.Location `json:"pickup"`
	Dropoff       models.Location `json:"dropoff"`
	Price         float64         `json:"price" validate:"gte=0"`
	ScheduledTime *time.Time      `json:"scheduledTime,omitempty"`
}

func (m *TripManager) Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	trip, err := m.deps.Store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, loadErr(err, "trip", tripID)
	}
	return trip, nil
}

func (m *TripManager) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]models.Trip, error) {
	if _, err := m.deps.Store.GetShift(ctx, shiftID); err != nil {
		return nil, loadErr(err, "shift", shiftID)
	}
	trips, err := m.deps.Store.ListTripsByShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	if trips == nil {
		trips = []models.Trip{}
	}
	return trips, nil
}

func (m *TripManager) ownTrip(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	trip, err := m.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID != driverID {
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "trip is assigned to another driver")
	}
	return trip, nil
}

func (m *TripManager) Assign(ctx context.Context, req TripRequest, actorID uuid.UUID) (*models.Trip, error) {
	if err := utils.ValidateStruct("invalid trip request", &req); err != nil {
		return nil, err
	}

	var trip *models.Trip
	err := m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		check, err := NewPreconditions(repo).TripAssignment(ctx, req.DriverID)
		if err != nil {
			return err
		}

		distance := utils.HaversineDistance(req.Pickup.Lat, req.Pickup.Lng, req.Dropoff.Lat, req.Dropoff.Lng)
		trip = &models.Trip{
			DriverID:            req.DriverID,
			ShiftID:             check.Shift.ID,
			VehicleID:           check.Assignment.VehicleID,
			Status:              models.TripStatusAssigned,
			Pickup:              req.Pickup,
			Dropoff:             req.Dropoff,
			EstimatedDistanceKm: utils.RoundTo(distance, 2),
			Price:               req.Price,
			ScheduledTime:       req.ScheduledTime,
			CreatedBy:           actorID,
		}
		if err := repo.CreateTrip(ctx, trip); err != nil {
			return err
		}

		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:    actorID,
			Action:     audit.ActionTripAssigned,
			EntityType: audit.EntityTrip,
			EntityID:   trip.ID,
			NewState:   string(trip.Status),
			Metadata: map[string]interface{}{
				"shiftId":   trip.ShiftID.String(),
				"vehicleId": trip.VehicleID.String(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "assign trip")
	}

	m.log.LogLifecycleEvent(audit.EntityTrip, trip.ID, audit.ActionTripAssigned, nil)

	m.deps.Notify.NotifyDriver(ctx, trip.DriverID, notify.Notification{
		Type:    notify.TypeTripAssigned,
		Title:   "New trip",
		Message: fmt.Sprintf("Pickup at %s", trip.Pickup.Address),
		Data:    tripData(trip),
	})
	m.deps.Notify.NotifyAdmins(ctx, notify.Notification{
		Type:    notify.TypeTripAssigned,
		Title:   "Trip assigned",
		Message: "A trip was assigned to a driver",
		Data:    tripData(trip),
	})
	return trip, nil
}

func (m *TripManager) Start(ctx context.Context, tripID, driverID, actorID uuid.UUID) (*models.Trip, error) {
	trip, err := m.ownTrip(ctx, tripID, driverID)
	if err != nil {
		return nil, err
	}
	if err := TripTransitions.Check(trip.Status, models.TripStatusInProgress); err != nil {
		return nil, err
	}

	var updated *models.Trip
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		if _, err := NewPreconditions(repo).TripStart(ctx, tripID, driverID); err != nil {
			return err
		}

		now := m.deps.Now()
		ok, err := repo.UpdateTripIfVersion(ctx, tripID, trip.Version, store.TripUpdate{
			Status:          models.TripStatusInProgress,
			ActualStartTime: &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return concurrentModification("start trip")
		}

		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionTripStarted,
			EntityType:    audit.EntityTrip,
			EntityID:      tripID,
			PreviousState: string(trip.Status),
			NewState:      string(models.TripStatusInProgress),
		})

		updated, err = repo.GetTrip(ctx, tripID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "start trip")
	}

	m.log.LogLifecycleEvent(audit.EntityTrip, tripID, audit.ActionTripStarted, nil)
	m.deps.Notify.NotifyAdmins(ctx, notify.Notification{
		Type:    notify.TypeTripStarted,
		Title:   "Trip started",
		Message: "Driver started the trip",
		Data:    tripData(updated),
	})
	return updated, nil
}

func (m *TripManager) Complete(ctx context.Context, tripID, driverID, actorID uuid.UUID) (*models.Trip, error) {
	trip, err := m.ownTrip(ctx, tripID, driverID)
	if err != nil {
		return nil, err
	}
	if err := TripTransitions.Check(trip.Status, models.TripStatusCompleted); err != nil {
		return nil, err
	}

	var updated *models.Trip
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		now := m.deps.Now()
		ok, err := repo.UpdateTripIfVersion(ctx, tripID, trip.Version, store.TripUpdate{
			Status:        models.TripStatusCompleted,
			ActualEndTime: &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return concurrentModification("complete trip")
		}

		meta := map[string]interface{}{}
		if trip.ActualStartTime != nil {
			meta["durationMinutes"] = int(now.Sub(*trip.ActualStartTime).Minutes())
		}
		m.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionTripCompleted,
			EntityType:    audit.EntityTrip,
			EntityID:      tripID,
			PreviousState: string(trip.Status),
			NewState:      string(models.TripStatusCompleted),
			Metadata:      meta,
		})

		updated, err = repo.GetTrip(ctx, tripID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "complete trip")
	}

	m.log.LogLifecycleEvent(audit.EntityTrip, tripID, audit.ActionTripCompleted, nil)

	n := notify.Notification{
		Type:    notify.TypeTripCompleted,
		Title:   "Trip completed",
		Message: "The trip has been completed",
		Data:    tripData(updated),
	}
	m.deps.Notify.NotifyAdmins(ctx, n)
	m.deps.Notify.NotifyDriver(ctx, updated.DriverID, n)
	return updated, nil
}

// Cancel cancels a trip. Only an admin may cancel a trip in progress; an
// assigned trip may also be cancelled by its driver.
func (m *TripManager) Cancel(ctx context.Context, tripID, actorID uuid.UUID, role models.Role, reason string) (*models.Trip, error) {
	trip, err := m.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := TripTransitions.Check(trip.Status, models.TripStatusCancelled); err != nil {
		return nil, err
	}

	isAdmin := role == models.RoleAdmin
	switch {
	case trip.Status == models.TripStatusInProgress && !isAdmin:
		return nil, apperrors.Forbidden(apperrors.CodeAdminOverrideRequired, "only an admin can cancel a trip in progress")
	case trip.Status == models.TripStatusAssigned && !isAdmin && actorID != trip.DriverID:
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "only the assigned driver or an admin can cancel this trip")
	}
	override := isAdmin && trip.Status == models.TripStatusInProgress
	reason = strings.TrimSpace(reason)
	if override && reason == "" {
		return nil, apperrors.Validation("a reason is required to cancel a trip in progress",
			map[string]interface{}{"reason": "is required"})
	}

	var updated *models.Trip
	err = m.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		ok, err := repo.UpdateTripIfVersion(ctx, tripID, trip.Version, store.TripUpdate{
			Status:             models.TripStatusCancelled,
			CancellationReason: reason,
			CancelledBy:        &actorID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return concurrentModification("cancel trip")
		}

		e := audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionTripCancelled,
			EntityType:    audit.EntityTrip,
			EntityID:      tripID,
			PreviousState: string(trip.Status),
			NewState:      string(models.TripStatusCancelled),
			Metadata:      map[string]interface{}{"shiftId": trip.ShiftID.String()},
		}
		if override {
			m.deps.Audit.RecordOverride(ctx, repo, e, reason)
		} else {
			e.Metadata["reason"] = reason
			m.deps.Audit.Record(ctx, repo, e)
		}

		updated, err = repo.GetTrip(ctx, tripID)
		return err
	})
	if err != nil {
		return nil, writeErr(err, "cancel trip")
	}

	m.log.WithActor(actorID).LogLifecycleEvent(audit.EntityTrip, tripID, audit.ActionTripCancelled,
		map[string]interface{}{"override": override})

	data := tripData(updated)
	data["reason"] = reason
	n := notify.Notification{
		Type:    notify.TypeTripCancelled,
		Title:   "Trip cancelled",
		Message: reason,
		Data:    data,
	}
	if isAdmin {
		m.deps.Notify.NotifyDriver(ctx, updated.DriverID, n)
	}
	m.deps.Notify.NotifyAdmins(ctx, n)
	return updated, nil
}

func tripData(t *models.Trip) map[string]interface{} {
	return map[string]interface{}{
		"tripId":   t.ID.String(),
		"shiftId":  t.ShiftID.String(),
		"driverId": t.DriverID.String(),
		"status":   string(t.Status),
	}
}
