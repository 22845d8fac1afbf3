package lifecycle

import (
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/statemachine"
)

var ShiftTransitions = statemachine.New(map[models.ShiftStatus][]models.ShiftStatus{
	models.ShiftStatusPendingVerification: {models.ShiftStatusActive, models.ShiftStatusClosed},
	models.ShiftStatusActive:              {models.ShiftStatusClosed},
}, models.ShiftStatusClosed)

var TripTransitions = statemachine.New(map[models.TripStatus][]models.TripStatus{
	models.TripStatusAssigned:   {models.TripStatusInProgress, models.TripStatusCancelled},
	models.TripStatusInProgress: {models.TripStatusCompleted, models.TripStatusCancelled},
}, models.TripStatusCompleted, models.TripStatusCancelled)
