package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/services"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

// StartInspection opens a walk-around inspection on the driver's own open
// shift. The vehicle is taken from the shift's active assignment, if any.
func (s *Service) StartInspection(ctx context.Context, shiftID, driverID uuid.UUID, notes string) (*models.Inspection, error) {
	shift, err := s.deps.Store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, loadErr(err, "shift", shiftID)
	}
	if shift.DriverID != driverID {
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "shift belongs to another driver")
	}
	if !shift.IsOpen() {
		return nil, apperrors.Conflict(apperrors.CodeInvalidStateTransition, "shift is closed",
			map[string]interface{}{"from": string(shift.Status)})
	}

	insp := &models.Inspection{
		ShiftID:  shiftID,
		DriverID: driverID,
		Status:   models.InspectionStatusInProgress,
		Notes:    notes,
	}
	a, err := s.deps.Store.FindActiveAssignmentByShift(ctx, shiftID)
	switch {
	case err == nil:
		insp.VehicleID = &a.VehicleID
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find shift assignment: %w", err)
	}

	if err := s.deps.Store.CreateInspection(ctx, insp); err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}
	insp.Photos = []models.InspectionPhoto{}
	return insp, nil
}

func (s *Service) GetInspection(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	insp, err := s.deps.Store.GetInspection(ctx, id)
	if err != nil {
		return nil, loadErr(err, "inspection", id)
	}
	return insp, nil
}

// AddPhoto uploads one photo for a direction. A second photo for the same
// direction is kept; completeness counts distinct directions. Photos may
// still be added after completion while the shift is open, so a driver
// turned away for a missing side can photograph it and retry.
func (s *Service) AddPhoto(ctx context.Context, inspectionID, driverID uuid.UUID, direction models.PhotoDirection, filename string, r io.Reader) (*models.InspectionPhoto, error) {
	if !direction.Valid() {
		return nil, apperrors.Validation("invalid photo direction", map[string]interface{}{
			"direction": string(direction),
			"allowed":   models.RequiredDirections,
		})
	}
	if s.deps.Photos == nil {
		return nil, errors.New("photo storage is not configured")
	}

	insp, err := s.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	if insp.DriverID != driverID {
		return nil, apperrors.Forbidden(apperrors.CodeForbidden, "inspection belongs to another driver")
	}
	shift, err := s.deps.Store.GetShift(ctx, insp.ShiftID)
	if err != nil {
		return nil, loadErr(err, "shift", insp.ShiftID)
	}
	if !shift.IsOpen() {
		return nil, apperrors.Conflict(apperrors.CodeInvalidStateTransition, "shift is closed",
			map[string]interface{}{"from": string(shift.Status)})
	}

	url, err := s.deps.Photos.Save(ctx, "inspections/"+inspectionID.String(), filename, r)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPhoto) {
			return nil, apperrors.Validation(err.Error(), map[string]interface{}{"photo": filename})
		}
		return nil, fmt.Errorf("store photo: %w", err)
	}

	photo := &models.InspectionPhoto{InspectionID: inspectionID, Direction: direction, URL: url}
	if err := s.deps.Store.AddInspectionPhoto(ctx, photo); err != nil {
		return nil, loadErr(err, "inspection", inspectionID)
	}
	return photo, nil
}

// CompleteInspection marks the inspection done. Missing photos do not block
// completion; shift activation and close check them.
func (s *Service) CompleteInspection(ctx context.Context, inspectionID, driverID uuid.UUID) (*models.Inspection, error) {
	var out *models.Inspection
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		insp, err := repo.GetInspection(ctx, inspectionID)
		if err != nil {
			return loadErr(err, "inspection", inspectionID)
		}
		if insp.DriverID != driverID {
			return apperrors.Forbidden(apperrors.CodeForbidden, "inspection belongs to another driver")
		}

		now := s.deps.Now()
		ok, err := repo.CompleteInspection(ctx, inspectionID, now)
		if err != nil {
			return fmt.Errorf("complete inspection: %w", err)
		}
		if !ok {
			return apperrors.Conflict(apperrors.CodeInvalidStateTransition, "inspection is already completed",
				map[string]interface{}{"from": string(insp.Status)})
		}

		missing := insp.MissingDirections()
		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       driverID,
			Action:        audit.ActionInspectionCompleted,
			EntityType:    audit.EntityInspection,
			EntityID:      inspectionID,
			PreviousState: string(models.InspectionStatusInProgress),
			NewState:      string(models.InspectionStatusCompleted),
			Metadata: map[string]interface{}{
				"shiftId":    insp.ShiftID.String(),
				"photoCount": len(insp.Photos),
				"missing":    missing,
			},
		})

		insp.Status = models.InspectionStatusCompleted
		insp.CompletedAt = &now
		out = insp
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "complete inspection")
	}
	if missing := out.MissingDirections(); len(missing) > 0 {
		s.log.WithFields(map[string]interface{}{
			"inspection_id": out.ID.String(),
			"missing":       missing,
		}).Info("inspection completed without full photo set")
	}
	return out, nil
}
