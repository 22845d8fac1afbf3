package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/lifecycle"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

func AssignTrip(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lifecycle.TripRequest
		if !bindJSON(c, log, &req) {
			return
		}

		trip, err := engine.Trips.Assign(c.Request.Context(), req, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, trip)
	}
}

func StartTrip(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		userID := middleware.UserID(c)

		trip, err := engine.Trips.Start(c.Request.Context(), tripID, userID, userID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func CompleteTrip(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		userID := middleware.UserID(c)

		trip, err := engine.Trips.Complete(c.Request.Context(), tripID, userID, userID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

// CancelTrip cancels for either role; the manager applies the role rules.
func CancelTrip(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		var input struct {
			Reason string `json:"reason"`
		}
		if c.Request.ContentLength != 0 && !bindJSON(c, log, &input) {
			return
		}

		trip, err := engine.Trips.Cancel(c.Request.Context(), tripID, middleware.UserID(c), middleware.Role(c), input.Reason)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func GetTrip(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := paramID(c, log, "id")
		if !ok {
			return
		}

		trip, err := engine.Trips.Get(c.Request.Context(), tripID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		if !canSee(c, trip.DriverID) {
			respondError(c, log, apperrors.Forbidden(apperrors.CodeForbidden, "trip belongs to another driver"))
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func ListShiftTrips(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}

		shift, err := engine.Shifts.Get(c.Request.Context(), shiftID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		if !canSee(c, shift.DriverID) {
			respondError(c, log, apperrors.Forbidden(apperrors.CodeForbidden, "shift belongs to another driver"))
			return
		}

		trips, err := engine.Trips.ListByShift(c.Request.Context(), shiftID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"trips": trips, "count": len(trips)})
	}
}
