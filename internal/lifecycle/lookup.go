package lifecycle

import (
	"errors"
	"fmt"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

// loadErr turns a store lookup failure into a NotFound domain error or a
// wrapped infrastructure error.
func loadErr(err error, entity string, id interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return fmt.Errorf("load %s: %w", entity, err)
}

// writeErr maps a lost write race to CONCURRENT_MODIFICATION. Domain errors
// pass through untouched.
func writeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return concurrentModification(op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func concurrentModification(op string) error {
	return apperrors.Conflict(
		apperrors.CodeConcurrentModification,
		"the record was modified by another request, reload and retry",
		map[string]interface{}{"operation": op},
	)
}
