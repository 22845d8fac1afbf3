// Package audit records lifecycle state changes in the append-only audit trail.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// Actions written by the lifecycle engine.
const (
	ActionShiftCreated        = "SHIFT_CREATED"
	ActionShiftVerification   = "SHIFT_VERIFICATION"
	ActionShiftActivated      = "SHIFT_ACTIVATED"
	ActionShiftClosed         = "SHIFT_CLOSED"
	ActionShiftAdminClosed    = "SHIFT_ADMIN_CLOSED"
	ActionTripAssigned        = "TRIP_ASSIGNED"
	ActionTripStarted         = "TRIP_STARTED"
	ActionTripCompleted       = "TRIP_COMPLETED"
	ActionTripCancelled       = "TRIP_CANCELLED"
	ActionVehicleAssigned     = "VEHICLE_ASSIGNED"
	ActionVehicleReleased     = "VEHICLE_RELEASED"
	ActionDriverCreated       = "DRIVER_CREATED"
	ActionDriverVerified      = "DRIVER_IDENTITY_VERIFIED"
	ActionDriverDeactivated   = "DRIVER_DEACTIVATED"
	ActionVehicleCreated      = "VEHICLE_CREATED"
	ActionVehicleMaintenance  = "VEHICLE_MAINTENANCE"
	ActionDamageReported      = "DAMAGE_REPORTED"
	ActionDamageResolved      = "DAMAGE_RESOLVED"
	ActionInspectionCompleted = "INSPECTION_COMPLETED"
)

// Entity types.
const (
	EntityShift      = "shift"
	EntityTrip       = "trip"
	EntityAssignment = "vehicle_assignment"
	EntityDriver     = "driver"
	EntityVehicle    = "vehicle"
	EntityDamage     = "damage_report"
	EntityInspection = "inspection"
)

type Event struct {
	ActorID       uuid.UUID
	Action        string
	EntityType    string
	EntityID      uuid.UUID
	PreviousState string
	NewState      string
	Metadata      map[string]interface{}
}

// Sink receives audit events. repo is the transactional handle the entry
// joins, so the entry commits or rolls back with the business write. A
// failure to record is logged and never returned.
type Sink interface {
	Record(ctx context.Context, repo store.Repository, e Event)
	RecordOverride(ctx context.Context, repo store.Repository, e Event, reason string)
}

type Recorder struct {
	log *logger.Logger
}

func NewRecorder(log *logger.Logger) *Recorder {
	return &Recorder{log: log.WithField("component", "audit")}
}

func (r *Recorder) Record(ctx context.Context, repo store.Repository, e Event) {
	entry := &models.AuditLog{
		ActorID:       e.ActorID,
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		PreviousState: e.PreviousState,
		NewState:      e.NewState,
		Metadata:      e.Metadata,
	}
	if err := repo.InsertAuditLog(ctx, entry); err != nil {
		r.log.WithError(err).WithFields(map[string]interface{}{
			"action":      e.Action,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID.String(),
		}).Warn("Failed to write audit entry")
	}
}

// RecordOverride records an administrative override. The metadata carries
// override=true and the supplied reason.
func (r *Recorder) RecordOverride(ctx context.Context, repo store.Repository, e Event, reason string) {
	meta := make(map[string]interface{}, len(e.Metadata)+2)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta["override"] = true
	meta["reason"] = reason
	e.Metadata = meta
	r.Record(ctx, repo, e)
}
