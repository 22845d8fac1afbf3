// Package fleet manages the records the lifecycle engine depends on: driver
// accounts, vehicles, damage reports and pre-shift inspections.
package fleet

import (
	"errors"
	"fmt"
	"time"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/services"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

type Dependencies struct {
	Store  store.Store
	Audit  audit.Sink
	Notify notify.Sink
	Photos services.PhotoStorage
	Log    *logger.Logger
	Now    func() time.Time
}

type Service struct {
	deps Dependencies
	log  *logger.Logger
}

func NewService(d Dependencies) *Service {
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
	return &Service{deps: d, log: d.Log.WithField("component", "fleet")}
}

func loadErr(err error, entity string, id interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return fmt.Errorf("load %s: %w", entity, err)
}

// createErr maps a unique violation on insert to ALREADY_EXISTS.
func createErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return apperrors.Conflict(apperrors.CodeAlreadyExists, entity+" already exists", nil)
	}
	return fmt.Errorf("create %s: %w", entity, err)
}

func writeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return apperrors.Conflict(apperrors.CodeConcurrentModification,
			"the record was modified by another request, reload and retry",
			map[string]interface{}{"operation": op})
	}
	return fmt.Errorf("%s: %w", op, err)
}
