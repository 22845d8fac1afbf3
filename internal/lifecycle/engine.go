// Package lifecycle implements the shift and trip lifecycles and the
// exclusive pairing of vehicles with drivers.
//
// Every state change follows the same path: load, check ownership, check the
// transition table, run the preconditions, then write with a compare-and-swap
// on the version column inside one transaction together with its dependent
// writes and audit entry. Notifications go out after commit.
package lifecycle

import (
	"time"

	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

type Dependencies struct {
	Store  store.Store
	Audit  audit.Sink
	Notify notify.Sink
	Log    *logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Dependencies) withDefaults() {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Audit == nil {
		d.Audit = audit.NewRecorder(d.Log)
	}
	if d.Notify == nil {
		d.Notify = notify.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

type Engine struct {
	Shifts      *ShiftManager
	Trips       *TripManager
	Assignments *AssignmentCoordinator
}

func New(d Dependencies) *Engine {
	d.withDefaults()
	assignments := &AssignmentCoordinator{deps: d, log: d.Log.WithField("component", "assignments")}
	return &Engine{
		Assignments: assignments,
		Shifts:      &ShiftManager{deps: d, assignments: assignments, log: d.Log.WithField("component", "shifts")},
		Trips:       &TripManager{deps: d, log: d.Log.WithField("component", "trips")},
	}
}
