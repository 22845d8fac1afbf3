package fleet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/utils"
)

type CreateDriverRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	Name          string `json:"name" validate:"required,max=100"`
	PhoneNumber   string `json:"phoneNumber" validate:"omitempty,max=20"`
	LicenseNumber string `json:"licenseNumber" validate:"required,max=50"`
}

func (r *CreateDriverRequest) normalise() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
}

// CreateDriver creates the login account and the driver profile under one id.
// New drivers start unverified.
func (s *Service) CreateDriver(ctx context.Context, req CreateDriverRequest, actorID uuid.UUID) (*models.Driver, error) {
	req.normalise()
	if err := utils.ValidateStruct("invalid driver", &req); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:          uuid.New(),
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Role:        models.RoleDriver,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	driver := &models.Driver{
		ID:            user.ID,
		Name:          req.Name,
		LicenseNumber: req.LicenseNumber,
		IsActive:      true,
	}
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		if err := repo.CreateUser(ctx, user); err != nil {
			return createErr(err, "user")
		}
		if err := repo.CreateDriver(ctx, driver); err != nil {
			return createErr(err, "driver")
		}
		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:    actorID,
			Action:     audit.ActionDriverCreated,
			EntityType: audit.EntityDriver,
			EntityID:   driver.ID,
			NewState:   "active",
			Metadata:   map[string]interface{}{"email": user.Email},
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "create driver")
	}

	s.log.LogLifecycleEvent(audit.EntityDriver, driver.ID, audit.ActionDriverCreated, nil)
	return driver, nil
}

func (s *Service) GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	d, err := s.deps.Store.GetDriver(ctx, id)
	if err != nil {
		return nil, loadErr(err, "driver", id)
	}
	return d, nil
}

// VerifyIdentity marks the driver's identity documents as checked.
func (s *Service) VerifyIdentity(ctx context.Context, driverID, actorID uuid.UUID) (*models.Driver, error) {
	return s.updateDriver(ctx, driverID, actorID, audit.ActionDriverVerified, func(d *models.Driver) (string, string, bool) {
		if d.IdentityVerified {
			return "", "", false
		}
		d.IdentityVerified = true
		return "unverified", "verified", true
	})
}

// Deactivate stops the driver from opening new shifts. Open shifts are left
// for an admin to close.
func (s *Service) Deactivate(ctx context.Context, driverID, actorID uuid.UUID) (*models.Driver, error) {
	return s.updateDriver(ctx, driverID, actorID, audit.ActionDriverDeactivated, func(d *models.Driver) (string, string, bool) {
		if !d.IsActive {
			return "", "", false
		}
		d.IsActive = false
		return "active", "inactive", true
	})
}

// updateDriver applies change and audits it. change reports false when the
// driver is already in the target state, which makes the call a no-op.
func (s *Service) updateDriver(ctx context.Context, driverID, actorID uuid.UUID, action string,
	change func(*models.Driver) (from, to string, changed bool)) (*models.Driver, error) {
	var out *models.Driver
	err := s.deps.Store.RunInTransaction(ctx, func(repo store.Repository) error {
		d, err := repo.GetDriver(ctx, driverID)
		if err != nil {
			return loadErr(err, "driver", driverID)
		}
		out = d
		from, to, changed := change(d)
		if !changed {
			return nil
		}
		if err := repo.SaveDriver(ctx, d); err != nil {
			return fmt.Errorf("save driver: %w", err)
		}
		s.deps.Audit.Record(ctx, repo, audit.Event{
			ActorID:       actorID,
			Action:        action,
			EntityType:    audit.EntityDriver,
			EntityID:      d.ID,
			PreviousState: from,
			NewState:      to,
		})
		return nil
	})
	if err != nil {
		return nil, writeErr(err, "update driver")
	}
	return out, nil
}
