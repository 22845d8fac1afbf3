package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping integration test")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	require.NoError(t, RunMigrations(db))
	return NewStore(db)
}

func TestShiftCompareAndSwap(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	shift := &models.Shift{DriverID: uuid.New(), Status: models.ShiftStatusPendingVerification, VerificationStatus: models.VerificationPending}
	require.NoError(t, s.CreateShift(ctx, shift))

	now := time.Now()
	ok, err := s.UpdateShiftIfVersion(ctx, shift.ID, 0, store.ShiftUpdate{Status: models.ShiftStatusActive, StartedAt: &now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateShiftIfVersion(ctx, shift.ID, 0, store.ShiftUpdate{Status: models.ShiftStatusClosed})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, models.ShiftStatusActive, got.Status)
}

func TestOpenShiftUniqueIndex(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	driverID := uuid.New()

	require.NoError(t, s.CreateShift(ctx, &models.Shift{DriverID: driverID, Status: models.ShiftStatusPendingVerification, VerificationStatus: models.VerificationPending}))
	err := s.CreateShift(ctx, &models.Shift{DriverID: driverID, Status: models.ShiftStatusPendingVerification, VerificationStatus: models.VerificationPending})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestActiveAssignmentUniqueIndex(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	vehicleID := uuid.New()

	require.NoError(t, s.CreateAssignment(ctx, &models.VehicleAssignment{VehicleID: vehicleID, DriverID: uuid.New(), ShiftID: uuid.New(), Active: true}))
	err := s.CreateAssignment(ctx, &models.VehicleAssignment{VehicleID: vehicleID, DriverID: uuid.New(), ShiftID: uuid.New(), Active: true})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestTransactionRollsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v := &models.Vehicle{PlateNumber: "T-" + uuid.NewString()[:8], IsActive: true}
	require.NoError(t, s.CreateVehicle(ctx, v))

	err := s.RunInTransaction(ctx, func(repo store.Repository) error {
		if err := repo.UpdateVehicleStatus(ctx, v.ID, models.VehicleStatusAssigned); err != nil {
			return err
		}
		return store.ErrConflict
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusAvailable, got.Status)
}

func TestAuditMetadataRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := uuid.New()

	err := s.RunInTransaction(ctx, func(repo store.Repository) error {
		return repo.InsertAuditLog(ctx, &models.AuditLog{
			ActorID: uuid.New(), Action: "TRIP_CANCELLED", EntityType: "trip", EntityID: id,
			Metadata: map[string]interface{}{"override": true, "reason": "flat tyre"},
		})
	})
	require.NoError(t, err)

	logs, err := s.ListAuditLogs(ctx, store.AuditFilter{EntityType: "trip", EntityID: id})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, true, logs[0].Metadata["override"])
	assert.Equal(t, "flat tyre", logs[0].Metadata["reason"])
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetTrip(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
