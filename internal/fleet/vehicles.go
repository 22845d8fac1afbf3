package fleet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/utils"
)

type CreateVehicleRequest struct {
	PlateNumber string `json:"plateNumber" validate:"required,max=20"`
	Make        string `json:"make" validate:"max=50"`
	Model       string `json:"model" validate:"max=50"`
}

func (s *Service) CreateVehicle(ctx context.Context, req CreateVehicleRequest, actorID uuid.UUID) (*models.Vehicle, error) {
	plate := strings.ToUpper(strings.Join(strings.Fields(req.PlateNumber), " "))
	req.PlateNumber = plate
	if err := utils.ValidateStruct("invalid vehicle", &req); err != nil {
		return nil, err
	}

	v := &models.Vehicle{
		PlateNumber: plate,
		Make:        req.Make,
		Model:       req.Model,
		Status:      models.VehicleStatusAvailable,
		IsActive:    true,
	}
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		if err := repo.CreateVehicle(ctx, v); err != nil {
			return createErr(err, "vehicle")
		}
		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:    actorID,
			Action:     audit.ActionVehicleCreated,
			EntityType: audit.EntityVehicle,
			EntityID:   v.ID,
			NewState:   string(v.Status),
			Metadata:   map[string]interface{}{"plateNumber": plate},
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "create vehicle")
	}
	return v, nil
}

func (s *Service) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	v, err := s.deps.Store.GetVehicle(ctx, id)
	if err != nil {
		return nil, loadErr(err, "vehicle", id)
	}
	return v, nil
}

// SetMaintenance moves an available vehicle into maintenance, or back out of
// it. Any other starting status is rejected.
func (s *Service) SetMaintenance(ctx context.Context, vehicleID uuid.UUID, on bool, actorID uuid.UUID) (*models.Vehicle, error) {
	from, to := models.VehicleStatusAvailable, models.VehicleStatusMaintenance
	if !on {
		from, to = to, from
	}

	var out *models.Vehicle
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		v, err := repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return loadErr(err, "vehicle", vehicleID)
		}
		if v.Status != from {
			return apperrors.Conflict(apperrors.CodeInvalidStateTransition,
				fmt.Sprintf("vehicle must be %s", from),
				map[string]interface{}{"from": string(v.Status), "to": string(to)})
		}
		if err := repo.UpdateVehicleStatus(ctx, vehicleID, to); err != nil {
			return fmt.Errorf("update vehicle status: %w", err)
		}
		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        audit.ActionVehicleMaintenance,
			EntityType:    audit.EntityVehicle,
			EntityID:      vehicleID,
			PreviousState: string(from),
			NewState:      string(to),
		})
		v.Status = to
		out = v
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "set vehicle maintenance")
	}
	return out, nil
}
