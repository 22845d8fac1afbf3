package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-fleet/internal/fleet"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

func CreateDriver(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fleet.CreateDriverRequest
		if !bindJSON(c, log, &req) {
			return
		}

		d, err := svc.CreateDriver(c.Request.Context(), req, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

func VerifyDriverIdentity(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		d, err := svc.VerifyIdentity(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func DeactivateDriver(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		d, err := svc.Deactivate(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func CreateVehicle(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fleet.CreateVehicleRequest
		if !bindJSON(c, log, &req) {
			return
		}

		v, err := svc.CreateVehicle(c.Request.Context(), req, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

// SetVehicleMaintenance takes {"maintenance": true|false}.
func SetVehicleMaintenance(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		var input struct {
			Maintenance bool `json:"maintenance"`
		}
		if !bindJSON(c, log, &input) {
			return
		}

		v, err := svc.SetMaintenance(c.Request.Context(), id, input.Maintenance, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func ReportDamage(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		var input struct {
			Description string `json:"description"`
		}
		if !bindJSON(c, log, &input) {
			return
		}

		report, err := svc.ReportDamage(c.Request.Context(), id, input.Description, middleware.UserID(c), middleware.Role(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, report)
	}
}

func ResolveDamage(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		report, err := svc.ResolveDamage(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func StartInspection(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		var input struct {
			Notes string `json:"notes"`
		}
		if c.Request.ContentLength != 0 && !bindJSON(c, log, &input) {
			return
		}

		insp, err := svc.StartInspection(c.Request.Context(), shiftID, middleware.UserID(c), input.Notes)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, insp)
	}
}

// UploadInspectionPhoto takes a multipart form with "direction" and "photo".
func UploadInspectionPhoto(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		file, err := c.FormFile("photo")
		if err != nil {
			respondError(c, log, validationErr("photo file is required", "photo", err))
			return
		}
		src, err := file.Open()
		if err != nil {
			respondError(c, log, err)
			return
		}
		defer src.Close()

		direction := models.PhotoDirection(c.PostForm("direction"))
		photo, err := svc.AddPhoto(c.Request.Context(), id, middleware.UserID(c), direction, file.Filename, src)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, photo)
	}
}

func CompleteInspection(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		insp, err := svc.CompleteInspection(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, insp)
	}
}

// GetAuditTrail lists an entity's audit entries, oldest first. ?limit caps
// the page size.
func GetAuditTrail(svc *fleet.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entityID, ok := paramID(c, log, "entityId")
		if !ok {
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				respondError(c, log, validationErr("limit must be a number", "limit", err))
				return
			}
			limit = n
		}

		logs, err := svc.AuditTrail(c.Request.Context(), c.Param("entityType"), entityID, limit)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": logs, "count": len(logs)})
	}
}
