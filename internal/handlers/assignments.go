package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/lifecycle"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
	"github.com/chachabrian/mooveit-fleet/pkg/utils"
)

type AssignVehicleInput struct {
	VehicleID uuid.UUID `json:"vehicleId" validate:"required"`
	DriverID  uuid.UUID `json:"driverId" validate:"required"`
	ShiftID   uuid.UUID `json:"shiftId" validate:"required"`
}

func AssignVehicle(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input AssignVehicleInput
		if !bindJSON(c, log, &input) {
			return
		}
		if err := utils.ValidateStruct("invalid assignment", &input); err != nil {
			respondError(c, log, err)
			return
		}

		a, err := engine.Assignments.Assign(c.Request.Context(), input.VehicleID, input.DriverID, input.ShiftID, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func ReleaseVehicle(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}

		a, err := engine.Assignments.Release(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}
