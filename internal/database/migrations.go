package database

import (
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Driver{},
		&models.Vehicle{},
		&models.Shift{},
		&models.Trip{},
		&models.VehicleAssignment{},
		&models.Inspection{},
		&models.InspectionPhoto{},
		&models.DamageReport{},
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}

	// Status columns are plain text; keep them within the known sets.
	checks := []struct {
		table, name, expr string
	}{
		{"users", "users_role_check", "role IN ('admin', 'driver')"},
		{"vehicles", "vehicles_status_check", "status IN ('available', 'assigned', 'in_use', 'damaged', 'maintenance')"},
		{"shifts", "shifts_status_check", "status IN ('pending_verification', 'active', 'closed')"},
		{"shifts", "shifts_verification_status_check", "verification_status IN ('PENDING', 'VERIFIED', 'FAILED_MATCH', 'MANUAL_REVIEW')"},
		{"trips", "trips_status_check", "status IN ('ASSIGNED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')"},
		{"inspection_photos", "inspection_photos_direction_check", "direction IN ('front', 'back', 'left', 'right')"},
		{"damage_reports", "damage_reports_status_check", "status IN ('open', 'resolved')"},
	}
	for _, c := range checks {
		if err := db.Exec(`ALTER TABLE ` + c.table + ` DROP CONSTRAINT IF EXISTS ` + c.name).Error; err != nil {
			return err
		}
		if err := db.Exec(`ALTER TABLE ` + c.table + ` ADD CONSTRAINT ` + c.name + ` CHECK (` + c.expr + `)`).Error; err != nil {
			return err
		}
	}

	// The audit trail is append-only.
	rules := []string{
		`CREATE OR REPLACE RULE audit_logs_no_update AS ON UPDATE TO audit_logs DO INSTEAD NOTHING`,
		`CREATE OR REPLACE RULE audit_logs_no_delete AS ON DELETE TO audit_logs DO INSTEAD NOTHING`,
	}
	for _, rule := range rules {
		if err := db.Exec(rule).Error; err != nil {
			return err
		}
	}
	return nil
}
