package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chachabrian/mooveit-fleet/internal/models"
)

func TestShiftTransitionsMatchTable(t *testing.T) {
	all := []models.ShiftStatus{models.ShiftStatusPendingVerification, models.ShiftStatusActive, models.ShiftStatusClosed}
	allowed := map[[2]models.ShiftStatus]bool{
		{models.ShiftStatusPendingVerification, models.ShiftStatusActive}: true,
		{models.ShiftStatusPendingVerification, models.ShiftStatusClosed}: true,
		{models.ShiftStatusActive, models.ShiftStatusClosed}:              true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.ShiftStatus{from, to}], ShiftTransitions.IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, ShiftTransitions.IsTerminal(models.ShiftStatusClosed))
}

func TestTripTransitionsMatchTable(t *testing.T) {
	all := []models.TripStatus{models.TripStatusAssigned, models.TripStatusInProgress, models.TripStatusCompleted, models.TripStatusCancelled}
	allowed := map[[2]models.TripStatus]bool{
		{models.TripStatusAssigned, models.TripStatusInProgress}:   true,
		{models.TripStatusAssigned, models.TripStatusCancelled}:    true,
		{models.TripStatusInProgress, models.TripStatusCompleted}: true,
		{models.TripStatusInProgress, models.TripStatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.TripStatus{from, to}], TripTransitions.IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, TripTransitions.IsTerminal(models.TripStatusCompleted))
	assert.True(t, TripTransitions.IsTerminal(models.TripStatusCancelled))
}
