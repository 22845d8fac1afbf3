package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-fleet/internal/config"
	"github.com/chachabrian/mooveit-fleet/internal/fleet"
	"github.com/chachabrian/mooveit-fleet/internal/lifecycle"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/services"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

type Deps struct {
	Store    store.Store
	Engine   *lifecycle.Engine
	Fleet    *fleet.Service
	Hub      *services.Hub
	Security *config.SecurityConfig
	Log      *logger.Logger
	// UploadDir is served under /uploads when photos are stored locally.
	UploadDir string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	log := d.Log
	auth := middleware.AuthMiddleware(d.Security.JWTSecret)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	driverOnly := middleware.RequireRole(models.RoleDriver)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", Register(d.Store, d.Security, log))
			authGroup.POST("/login", Login(d.Store, d.Security, log))
		}

		if d.Hub != nil {
			api.GET("/ws", auth, WebSocketHandler(d.Hub))
		}

		protected := api.Group("/")
		protected.Use(auth)
		{
			users := protected.Group("/users")
			{
				users.GET("/me", GetProfile(d.Store, log))
				users.PUT("/me/fcm-token", UpdateFCMToken(d.Store, log))
			}

			shifts := protected.Group("/shifts")
			{
				shifts.POST("", CreateShift(d.Engine, log))
				shifts.GET("/:id", GetShift(d.Engine, log))
				shifts.GET("/:id/trips", ListShiftTrips(d.Engine, log))
				shifts.POST("/:id/verification", adminOnly, RecordVerification(d.Engine, log))
				shifts.POST("/:id/activate", driverOnly, ActivateShift(d.Engine, log))
				shifts.POST("/:id/close", driverOnly, CloseShift(d.Engine, log))
				shifts.POST("/:id/inspections", driverOnly, StartInspection(d.Fleet, log))
			}

			trips := protected.Group("/trips")
			{
				trips.GET("/:id", GetTrip(d.Engine, log))
				trips.POST("/:id/start", driverOnly, StartTrip(d.Engine, log))
				trips.POST("/:id/complete", driverOnly, CompleteTrip(d.Engine, log))
				trips.POST("/:id/cancel", CancelTrip(d.Engine, log))
			}

			inspections := protected.Group("/inspections")
			inspections.Use(driverOnly)
			{
				inspections.POST("/:id/photos", UploadInspectionPhoto(d.Fleet, log))
				inspections.POST("/:id/complete", CompleteInspection(d.Fleet, log))
			}

			protected.POST("/vehicles/:id/damage", ReportDamage(d.Fleet, log))

			admin := protected.Group("/admin")
			admin.Use(adminOnly)
			{
				admin.POST("/shifts/:id/close", AdminCloseShift(d.Engine, log))
				admin.POST("/trips", AssignTrip(d.Engine, log))
				admin.POST("/assignments", AssignVehicle(d.Engine, log))
				admin.POST("/assignments/:id/release", ReleaseVehicle(d.Engine, log))
				admin.POST("/drivers", CreateDriver(d.Fleet, log))
				admin.POST("/drivers/:id/verify-identity", VerifyDriverIdentity(d.Fleet, log))
				admin.POST("/drivers/:id/deactivate", DeactivateDriver(d.Fleet, log))
				admin.POST("/vehicles", CreateVehicle(d.Fleet, log))
				admin.POST("/vehicles/:id/maintenance", SetVehicleMaintenance(d.Fleet, log))
				admin.POST("/damage/:id/resolve", ResolveDamage(d.Fleet, log))
				admin.GET("/audit/:entityType/:entityId", GetAuditTrail(d.Fleet, log))
			}
		}
	}
}
