package fleet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

var auditEntities = map[string]bool{
	audit.EntityShift:      true,
	audit.EntityTrip:       true,
	audit.EntityAssignment: true,
	audit.EntityDriver:     true,
	audit.EntityVehicle:    true,
	audit.EntityDamage:     true,
	audit.EntityInspection: true,
}

// AuditTrail returns the entity's audit entries, oldest first.
func (s *Service) AuditTrail(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if !auditEntities[entityType] {
		return nil, apperrors.Validation("unknown entity type", map[string]interface{}{"entityType": entityType})
	}
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	logs, err := s.deps.Store.ListAuditLogs(ctx, store.AuditFilter{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
