package fleet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/audit"
	"github.com/chachabrian/mooveit-fleet/internal/lifecycle"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/services"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

type adminInbox struct {
	mu    sync.Mutex
	types []string
}

func (a *adminInbox) NotifyAdmins(_ context.Context, n notify.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.types = append(a.types, n.Type)
}

func (a *adminInbox) NotifyDriver(context.Context, uuid.UUID, notify.Notification) {}

type memPhotos struct {
	saved map[string][]byte
}

func (m *memPhotos) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", services.ErrInvalidPhoto
	}
	url := "https://photos.test/" + folder + "/" + filename
	m.saved[url] = b
	return url, nil
}

type fleetFixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Memory
	inbox  *adminInbox
	photos *memPhotos
	svc    *Service
	engine *lifecycle.Engine
	admin  uuid.UUID
}

func newFleetFixture(t *testing.T) *fleetFixture {
	f := &fleetFixture{
		t:      t,
		ctx:    context.Background(),
		store:  store.NewMemory(),
		inbox:  &adminInbox{},
		photos: &memPhotos{saved: map[string][]byte{}},
		admin:  uuid.New(),
	}
	f.svc = NewService(Dependencies{Store: f.store, Notify: f.inbox, Photos: f.photos})
	f.engine = lifecycle.New(lifecycle.Dependencies{Store: f.store})
	return f
}

func (f *fleetFixture) driver() *models.Driver {
	d, err := f.svc.CreateDriver(f.ctx, CreateDriverRequest{
		Email:         uuid.NewString()[:8] + "@mooveit.test",
		Password:      "s3cret-pass",
		Name:          "Peter Otieno",
		LicenseNumber: "DL-1234",
	}, f.admin)
	require.NoError(f.t, err)
	return d
}

func (f *fleetFixture) vehicle() *models.Vehicle {
	v, err := f.svc.CreateVehicle(f.ctx, CreateVehicleRequest{PlateNumber: "kd" + uuid.NewString()[:5], Make: "Toyota", Model: "Probox"}, f.admin)
	require.NoError(f.t, err)
	return v
}

func (f *fleetFixture) vehicleStatus(id uuid.UUID) models.VehicleStatus {
	v, err := f.store.GetVehicle(f.ctx, id)
	require.NoError(f.t, err)
	return v.Status
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	assert.Equal(t, code, e.Code)
}

func TestCreateDriver(t *testing.T) {
	f := newFleetFixture(t)

	d, err := f.svc.CreateDriver(f.ctx, CreateDriverRequest{
		Email:         "  Mary@MooveIt.test ",
		Password:      "long-enough",
		Name:          "Mary Akinyi",
		LicenseNumber: "DL-77",
	}, f.admin)
	require.NoError(t, err)
	assert.True(t, d.IsActive)
	assert.False(t, d.IdentityVerified)

	u, err := f.store.GetUser(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "mary@mooveit.test", u.Email)
	assert.Equal(t, models.RoleDriver, u.Role)
	assert.NoError(t, u.CheckPassword("long-enough"))

	logs, err := f.svc.AuditTrail(f.ctx, audit.EntityDriver, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionDriverCreated, logs[0].Action)

	_, err = f.svc.CreateDriver(f.ctx, CreateDriverRequest{
		Email: "mary@mooveit.test", Password: "long-enough", Name: "Dup", LicenseNumber: "DL-78",
	}, f.admin)
	requireCode(t, err, apperrors.CodeAlreadyExists)
}

func TestCreateDriverValidation(t *testing.T) {
	f := newFleetFixture(t)

	_, err := f.svc.CreateDriver(f.ctx, CreateDriverRequest{Email: "nope", Password: "short"}, f.admin)
	requireCode(t, err, apperrors.CodeValidation)
	e, _ := apperrors.As(err)
	assert.Contains(t, e.Details, "email")
	assert.Contains(t, e.Details, "password")
	assert.Contains(t, e.Details, "name")
	assert.Contains(t, e.Details, "licenseNumber")
	assert.Equal(t, "must be a valid email address", e.Details["email"])
	assert.Equal(t, "must be at least 8 characters", e.Details["password"])
}

func TestVerifyAndDeactivateDriver(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()

	got, err := f.svc.VerifyIdentity(f.ctx, d.ID, f.admin)
	require.NoError(t, err)
	assert.True(t, got.IdentityVerified)

	// Repeating is a no-op and writes no second entry.
	_, err = f.svc.VerifyIdentity(f.ctx, d.ID, f.admin)
	require.NoError(t, err)
	logs, err := f.svc.AuditTrail(f.ctx, audit.EntityDriver, d.ID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	got, err = f.svc.Deactivate(f.ctx, d.ID, f.admin)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.Deactivate(f.ctx, uuid.New(), f.admin)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestCreateVehicleNormalisesPlate(t *testing.T) {
	f := newFleetFixture(t)

	v, err := f.svc.CreateVehicle(f.ctx, CreateVehicleRequest{PlateNumber: " kdq  123a "}, f.admin)
	require.NoError(t, err)
	assert.Equal(t, "KDQ 123A", v.PlateNumber)
	assert.Equal(t, models.VehicleStatusAvailable, v.Status)

	_, err = f.svc.CreateVehicle(f.ctx, CreateVehicleRequest{PlateNumber: "KDQ 123A"}, f.admin)
	requireCode(t, err, apperrors.CodeAlreadyExists)

	_, err = f.svc.CreateVehicle(f.ctx, CreateVehicleRequest{PlateNumber: "   "}, f.admin)
	requireCode(t, err, apperrors.CodeValidation)
}

func TestMaintenanceToggle(t *testing.T) {
	f := newFleetFixture(t)
	v := f.vehicle()

	got, err := f.svc.SetMaintenance(f.ctx, v.ID, true, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusMaintenance, got.Status)

	_, err = f.svc.SetMaintenance(f.ctx, v.ID, true, f.admin)
	requireCode(t, err, apperrors.CodeInvalidStateTransition)

	got, err = f.svc.SetMaintenance(f.ctx, v.ID, false, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusAvailable, got.Status)
}

func TestMaintenanceRejectsAssignedVehicle(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	v := f.vehicle()
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	_, err = f.engine.Assignments.Assign(f.ctx, v.ID, d.ID, shift.ID, f.admin)
	require.NoError(t, err)

	_, err = f.svc.SetMaintenance(f.ctx, v.ID, true, f.admin)
	requireCode(t, err, apperrors.CodeInvalidStateTransition)
	assert.Equal(t, models.VehicleStatusAssigned, f.vehicleStatus(v.ID))
}

func TestDamageOnAvailableVehicle(t *testing.T) {
	f := newFleetFixture(t)
	v := f.vehicle()

	first, err := f.svc.ReportDamage(f.ctx, v.ID, "cracked windscreen", f.admin, models.RoleAdmin)
	require.NoError(t, err)
	assert.Nil(t, first.ShiftID)
	assert.Equal(t, models.VehicleStatusDamaged, f.vehicleStatus(v.ID))
	assert.Equal(t, []string{notify.TypeDamageReported}, f.inbox.types)

	second, err := f.svc.ReportDamage(f.ctx, v.ID, "flat tyre", f.admin, models.RoleAdmin)
	require.NoError(t, err)

	_, err = f.svc.ResolveDamage(f.ctx, first.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusDamaged, f.vehicleStatus(v.ID), "one report still open")

	resolved, err := f.svc.ResolveDamage(f.ctx, second.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.DamageStatusResolved, resolved.Status)
	assert.Equal(t, models.VehicleStatusAvailable, f.vehicleStatus(v.ID))

	_, err = f.svc.ResolveDamage(f.ctx, second.ID, f.admin)
	requireCode(t, err, apperrors.CodeInvalidStateTransition)
}

func TestDamageOnAssignedVehicle(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	other := f.driver()
	v := f.vehicle()
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	a, err := f.engine.Assignments.Assign(f.ctx, v.ID, d.ID, shift.ID, f.admin)
	require.NoError(t, err)

	_, err = f.svc.ReportDamage(f.ctx, v.ID, "dent", other.ID, models.RoleDriver)
	requireCode(t, err, apperrors.CodeForbidden)

	report, err := f.svc.ReportDamage(f.ctx, v.ID, "dent on rear door", d.ID, models.RoleDriver)
	require.NoError(t, err)
	require.NotNil(t, report.ShiftID)
	assert.Equal(t, shift.ID, *report.ShiftID)
	assert.Equal(t, models.VehicleStatusAssigned, f.vehicleStatus(v.ID))

	// Resolving while held leaves the assignment status alone.
	_, err = f.svc.ResolveDamage(f.ctx, report.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusAssigned, f.vehicleStatus(v.ID))

	_, err = f.svc.ReportDamage(f.ctx, v.ID, "scratched bumper", d.ID, models.RoleDriver)
	require.NoError(t, err)
	_, err = f.engine.Assignments.Release(f.ctx, a.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusDamaged, f.vehicleStatus(v.ID))
}

func TestDriverCannotReportUnassignedVehicle(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	v := f.vehicle()

	_, err := f.svc.ReportDamage(f.ctx, v.ID, "dent", d.ID, models.RoleDriver)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.ReportDamage(f.ctx, v.ID, "  ", f.admin, models.RoleAdmin)
	requireCode(t, err, apperrors.CodeValidation)
}

func TestInspectionFlow(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	v := f.vehicle()
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	_, err = f.engine.Assignments.Assign(f.ctx, v.ID, d.ID, shift.ID, f.admin)
	require.NoError(t, err)

	_, err = f.svc.StartInspection(f.ctx, shift.ID, uuid.New(), "")
	requireCode(t, err, apperrors.CodeForbidden)

	insp, err := f.svc.StartInspection(f.ctx, shift.ID, d.ID, "pre-shift")
	require.NoError(t, err)
	require.NotNil(t, insp.VehicleID)
	assert.Equal(t, v.ID, *insp.VehicleID)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, d.ID, "roof", "roof.jpg", strings.NewReader("x"))
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, d.ID, models.DirectionFront, "front.jpg", bytes.NewReader(nil))
	requireCode(t, err, apperrors.CodeValidation)

	for _, dir := range models.RequiredDirections {
		p, err := f.svc.AddPhoto(f.ctx, insp.ID, d.ID, dir, string(dir)+".jpg", strings.NewReader("jpeg"))
		require.NoError(t, err)
		assert.Contains(t, f.photos.saved, p.URL)
	}

	done, err := f.svc.CompleteInspection(f.ctx, insp.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusCompleted, done.Status)
	assert.Empty(t, done.MissingDirections())

	_, err = f.svc.CompleteInspection(f.ctx, insp.ID, d.ID)
	requireCode(t, err, apperrors.CodeInvalidStateTransition)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, d.ID, models.DirectionBack, "back.jpg", strings.NewReader("jpeg"))
	requireCode(t, err, apperrors.CodeInvalidStateTransition)

	logs, err := f.svc.AuditTrail(f.ctx, audit.EntityInspection, insp.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionInspectionCompleted, logs[0].Action)
}

func TestStartInspectionOnClosedShift(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	_, err = f.engine.Shifts.Close(f.ctx, shift.ID, d.ID, d.ID)
	require.NoError(t, err)

	_, err = f.svc.StartInspection(f.ctx, shift.ID, d.ID, "")
	requireCode(t, err, apperrors.CodeInvalidStateTransition)
}

type failingPhotos struct{}

func (failingPhotos) Save(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestAddPhotoStorageFailureIsInfrastructure(t *testing.T) {
	f := newFleetFixture(t)
	f.svc = NewService(Dependencies{Store: f.store, Photos: failingPhotos{}})
	d := f.driver()
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	insp, err := f.svc.StartInspection(f.ctx, shift.ID, d.ID, "")
	require.NoError(t, err)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, d.ID, models.DirectionLeft, "left.jpg", strings.NewReader("jpeg"))
	require.Error(t, err)
	_, isDomain := apperrors.As(err)
	assert.False(t, isDomain)
}

func TestAuditTrailRejectsUnknownEntity(t *testing.T) {
	f := newFleetFixture(t)
	_, err := f.svc.AuditTrail(f.ctx, "parcel", uuid.New(), 10)
	requireCode(t, err, apperrors.CodeValidation)

	logs, err := f.svc.AuditTrail(f.ctx, audit.EntityShift, uuid.New(), 10)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
}

func TestActivateAfterAddingMissingPhoto(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	v := f.vehicle()
	_, err := f.svc.VerifyIdentity(f.ctx, d.ID, f.admin)
	require.NoError(t, err)
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	_, err = f.engine.Shifts.RecordVerification(f.ctx, shift.ID, models.VerificationVerified, f.admin)
	require.NoError(t, err)
	_, err = f.engine.Assignments.Assign(f.ctx, v.ID, d.ID, shift.ID, f.admin)
	require.NoError(t, err)

	insp, err := f.svc.StartInspection(f.ctx, shift.ID, d.ID, "")
	require.NoError(t, err)
	for _, dir := range []models.PhotoDirection{models.DirectionFront, models.DirectionBack, models.DirectionLeft} {
		_, err := f.svc.AddPhoto(f.ctx, insp.ID, d.ID, dir, string(dir)+".jpg", strings.NewReader("jpeg"))
		require.NoError(t, err)
	}
	_, err = f.svc.CompleteInspection(f.ctx, insp.ID, d.ID)
	require.NoError(t, err)

	_, err = f.engine.Shifts.Activate(f.ctx, shift.ID, d.ID, d.ID)
	requireCode(t, err, apperrors.CodeInspectionPhotosRequired)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, d.ID, models.DirectionRight, "right.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	active, err := f.engine.Shifts.Activate(f.ctx, shift.ID, d.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusActive, active.Status)
}

func TestAddPhotoRejectedOnClosedShift(t *testing.T) {
	f := newFleetFixture(t)
	d := f.driver()
	shift, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(t, err)
	insp, err := f.svc.StartInspection(f.ctx, shift.ID, d.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Shifts.AdminClose(f.ctx, shift.ID, f.admin, "no vehicle available")
	require.NoError(t, err)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, d.ID, models.DirectionFront, "front.jpg", strings.NewReader("jpeg"))
	requireCode(t, err, apperrors.CodeInvalidStateTransition)

	_, err = f.svc.AddPhoto(f.ctx, insp.ID, uuid.New(), models.DirectionFront, "front.jpg", strings.NewReader("jpeg"))
	requireCode(t, err, apperrors.CodeForbidden)
}
