package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

type recordingNotifier struct {
	mu      sync.Mutex
	admins  []notify.Notification
	drivers map[uuid.UUID][]notify.Notification
}

func (r *recordingNotifier) NotifyAdmins(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins = append(r.admins, n)
}

func (r *recordingNotifier) NotifyDriver(_ context.Context, id uuid.UUID, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drivers == nil {
		r.drivers = map[uuid.UUID][]notify.Notification{}
	}
	r.drivers[id] = append(r.drivers[id], n)
}

func (r *recordingNotifier) driverTypes(id uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.drivers[id] {
		out = append(out, n.Type)
	}
	return out
}

func (r *recordingNotifier) adminTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.admins {
		out = append(out, n.Type)
	}
	return out
}

// barrierStore holds every transaction until n of them have arrived, so
// concurrent callers all finish their reads before any of them writes.
type barrierStore struct {
	*store.Memory
	wg *sync.WaitGroup
}

func newBarrierStore(m *store.Memory, n int) *barrierStore {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return &barrierStore{Memory: m, wg: wg}
}

func (b *barrierStore) RunInTransaction(ctx context.Context, fn func(store.Repository) error) error {
	b.wg.Done()
	b.wg.Wait()
	return b.Memory.RunInTransaction(ctx, fn)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	mem    *store.Memory
	engine *Engine
	notes  *recordingNotifier
	admin  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	notes := &recordingNotifier{}
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		mem:    mem,
		engine: New(Dependencies{Store: mem, Notify: notes}),
		notes:  notes,
		admin:  uuid.New(),
	}
}

// withStore rebuilds the engine over st, sharing the fixture's data.
func (f *fixture) withStore(st store.Store) *Engine {
	return New(Dependencies{Store: st, Notify: f.notes})
}

func (f *fixture) driver(verified bool) *models.Driver {
	f.t.Helper()
	d := &models.Driver{Name: "Jane Wanjiku", LicenseNumber: "DL-" + uuid.NewString()[:8], IdentityVerified: verified, IsActive: true}
	require.NoError(f.t, f.mem.CreateDriver(f.ctx, d))
	return d
}

func (f *fixture) vehicle() *models.Vehicle {
	f.t.Helper()
	v := &models.Vehicle{PlateNumber: "KD" + uuid.NewString()[:6], Make: "Toyota", Model: "Probox", IsActive: true}
	require.NoError(f.t, f.mem.CreateVehicle(f.ctx, v))
	return v
}

func (f *fixture) inspection(shiftID, driverID uuid.UUID, directions ...models.PhotoDirection) *models.Inspection {
	f.t.Helper()
	i := &models.Inspection{ShiftID: shiftID, DriverID: driverID, Status: models.InspectionStatusInProgress}
	require.NoError(f.t, f.mem.CreateInspection(f.ctx, i))
	for _, d := range directions {
		f.photo(i.ID, d)
	}
	ok, err := f.mem.CompleteInspection(f.ctx, i.ID, time.Now())
	require.NoError(f.t, err)
	require.True(f.t, ok)
	return i
}

func (f *fixture) photo(inspectionID uuid.UUID, d models.PhotoDirection) {
	f.t.Helper()
	require.NoError(f.t, f.mem.AddInspectionPhoto(f.ctx, &models.InspectionPhoto{
		InspectionID: inspectionID, Direction: d, URL: "https://photos.test/" + string(d),
	}))
}

// pendingShift creates a verified driver with an open, biometrically
// verified shift and an assigned vehicle, but no inspection.
func (f *fixture) pendingShift() (*models.Driver, *models.Vehicle, *models.Shift) {
	f.t.Helper()
	d := f.driver(true)
	v := f.vehicle()

	s, err := f.engine.Shifts.Create(f.ctx, d.ID, d.ID)
	require.NoError(f.t, err)
	s, err = f.engine.Shifts.RecordVerification(f.ctx, s.ID, models.VerificationVerified, f.admin)
	require.NoError(f.t, err)
	_, err = f.engine.Assignments.Assign(f.ctx, v.ID, d.ID, s.ID, f.admin)
	require.NoError(f.t, err)
	return d, v, s
}

func (f *fixture) activeShift() (*models.Driver, *models.Vehicle, *models.Shift) {
	f.t.Helper()
	d, v, s := f.pendingShift()
	f.inspection(s.ID, d.ID, models.RequiredDirections...)
	s, err := f.engine.Shifts.Activate(f.ctx, s.ID, d.ID, d.ID)
	require.NoError(f.t, err)
	return d, v, s
}

func (f *fixture) assignTrip(driverID uuid.UUID) *models.Trip {
	f.t.Helper()
	trip, err := f.engine.Trips.Assign(f.ctx, TripRequest{
		DriverID: driverID,
		Pickup:   models.Location{Address: "Kenyatta Avenue", Lat: -1.2864, Lng: 36.8172},
		Dropoff:  models.Location{Address: "JKIA", Lat: -1.3192, Lng: 36.9278},
		Price:    1500,
	}, f.admin)
	require.NoError(f.t, err)
	return trip
}

func (f *fixture) auditFor(entityType string, id uuid.UUID) []models.AuditLog {
	f.t.Helper()
	logs, err := f.mem.ListAuditLogs(f.ctx, store.AuditFilter{EntityType: entityType, EntityID: id})
	require.NoError(f.t, err)
	return logs
}

func requireCode(t *testing.T, err error, code apperrors.Code) *apperrors.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, code, e.Code, e.Message)
	return e
}
