// Package notify delivers fire-and-forget notifications to admins and drivers.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeShiftStarted       = "shift_started"
	TypeVerificationReview = "shift_verification_review"
	TypeShiftActivated     = "shift_activated"
	TypeShiftClosed        = "shift_closed"
	TypeShiftAdminClosed   = "shift_admin_closed"
	TypeTripAssigned       = "trip_assigned"
	TypeTripStarted        = "trip_started"
	TypeTripCompleted      = "trip_completed"
	TypeTripCancelled      = "trip_cancelled"
	TypeVehicleAssigned    = "vehicle_assigned"
	TypeVehicleReleased    = "vehicle_released"
	TypeDamageReported     = "damage_reported"
)

type Notification struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Sink delivers notifications. Implementations must not block the caller
// and must not report delivery failures.
type Sink interface {
	NotifyAdmins(ctx context.Context, n Notification)
	NotifyDriver(ctx context.Context, driverID uuid.UUID, n Notification)
}

type Nop struct{}

func (Nop) NotifyAdmins(context.Context, Notification) {}
func (Nop) NotifyDriver(context.Context, uuid.UUID, Notification) {}

// Fanout sends every notification to each sink in order.
type Fanout []Sink

func (f Fanout) NotifyAdmins(ctx context.Context, n Notification) {
	for _, s := range f {
		s.NotifyAdmins(ctx, n)
	}
}

func (f Fanout) NotifyDriver(ctx context.Context, driverID uuid.UUID, n Notification) {
	for _, s := range f {
		s.NotifyDriver(ctx, driverID, n)
	}
}
