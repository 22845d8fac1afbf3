package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

// ReportDamage opens a damage report. An available vehicle is taken out of
// the pool at once; an assigned one becomes damaged when it is released.
// Drivers may only report on the vehicle they currently hold.
func (s *Service) ReportDamage(ctx context.Context, vehicleID uuid.UUID, description string, actorID uuid.UUID, role models.Role) (*models.DamageReport, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.Validation("invalid damage report", map[string]interface{}{"description": "is required"})
	}

	var report *models.DamageReport
	var vehicle *models.Vehicle
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		v, err := repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return loadErr(err, "vehicle", vehicleID)
		}
		vehicle = v

		report = &models.DamageReport{
			VehicleID:   vehicleID,
			ReportedBy:  actorID,
			Description: description,
			Status:      models.DamageStatusOpen,
		}

		a, err := repo.FindActiveAssignmentByVehicle(ctx, vehicleID)
		switch {
		case err == nil:
			report.ShiftID = &a.ShiftID
			if role == models.RoleDriver && a.DriverID != actorID {
				return apperrors.Forbidden(apperrors.CodeForbidden, "vehicle is assigned to another driver")
			}
		case errors.Is(err, store.ErrNotFound):
			if role == models.RoleDriver {
				return apperrors.Forbidden(apperrors.CodeForbidden, "vehicle is not assigned to you")
			}
		default:
			return fmt.Errorf("find vehicle assignment: %w", err)
		}

		if err := repo.CreateDamageReport(ctx, report); err != nil {
			return fmt.Errorf("create damage report: %w", err)
		}
		if v.Status == models.VehicleStatusAvailable {
			if err := repo.UpdateVehicleStatus(ctx, vehicleID, models.VehicleStatusDamaged); err != nil {
				return fmt.Errorf("update vehicle status: %w", err)
			}
			vehicle.Status = models.VehicleStatusDamaged
		}

		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:    actorID,
			Action:     audit.ActionDamageReported,
			EntityType: audit.EntityDamage,
			EntityID:   report.ID,
			NewState:   string(models.DamageStatusOpen),
			Metadata: map[string]interface{}{
				"vehicleId":     vehicleID.String(),
				"vehicleStatus": string(vehicle.Status),
			},
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "report damage")
	}

	s.deps.Notify.NotifyAdmins(ctx, notify.Notification{
		Type:    notify.TypeDamageReported,
		Title:   "Damage reported",
		Message: fmt.Sprintf("Damage reported on %s: %s", vehicle.PlateNumber, description),
		Data: map[string]interface{}{
			"reportId":  report.ID.String(),
			"vehicleId": vehicleID.String(),
		},
	})
	return report, nil
}

// ResolveDamage closes a report. The vehicle goes back to available once no
// open report remains, unless it is held by a driver.
func (s *Service) ResolveDamage(ctx context.Context, reportID, actorID uuid.UUID) (*models.DamageReport, error) {
	var out *models.DamageReport
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		report, err := repo.GetDamageReport(ctx, reportID)
		if err != nil {
			return loadErr(err, "damage report", reportID)
		}
		v, err := repo.LockVehicle(ctx, report.VehicleID)
		if err != nil {
			return loadErr(err, "vehicle", report.VehicleID)
		}

		now := s.deps.Now()
		ok, err := repo.ResolveDamageReport(ctx, reportID, actorID, now)
		if err != nil {
			return fmt.Errorf("resolve damage report: %w", err)
		}
		if !ok {
			return apperrors.Conflict(apperrors.CodeInvalidStateTransition, "damage report is already resolved",
				map[string]interface{}{"from": string(report.Status)})
		}

		remaining, err := repo.CountOpenDamageReports(ctx, report.VehicleID)
		if err != nil {
			return fmt.Errorf("count damage reports: %w", err)
		}
		vehicleStatus := v.Status
		if remaining == 0 && v.Status == models.VehicleStatusDamaged {
			vehicleStatus = models.VehicleStatusAvailable
			if err := repo.UpdateVehicleStatus(ctx, v.ID, vehicleStatus); err != nil {
				return fmt.Errorf("update vehicle status: %w", err)
			}
		}

		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionDamageResolved,
			EntityType:    audit.EntityDamage,
			EntityID:      reportID,
			PreviousState: string(models.DamageStatusOpen),
			NewState:      string(models.DamageStatusResolved),
			Metadata: map[string]interface{}{
				"vehicleId":     v.ID.String(),
				"vehicleStatus": string(vehicleStatus),
				"openReports":   remaining,
			},
		})

		report.Status = models.DamageStatusResolved
		report.ResolvedBy = &actorID
		report.ResolvedAt = &now
		out = report
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "resolve damage")
	}
	return out, nil
}
