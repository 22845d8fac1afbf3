package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/models"
)

// Memory is an in-process Store. A single mutex serializes every call and
// every transaction, so transactions are trivially serializable. A failed
// transaction restores the snapshot taken when it began.
type Memory struct {
	*memRepo

	mu     sync.Mutex
	tables *tables
}

type tables struct {
	users       map[uuid.UUID]models.User
	drivers     map[uuid.UUID]models.Driver
	vehicles    map[uuid.UUID]models.Vehicle
	shifts      map[uuid.UUID]models.Shift
	trips       map[uuid.UUID]models.Trip
	assignments map[uuid.UUID]models.VehicleAssignment
	inspections map[uuid.UUID]models.Inspection
	photos      map[uuid.UUID][]models.InspectionPhoto
	damage      map[uuid.UUID]models.DamageReport
	audit       []models.AuditLog
}

func newTables() *tables {
	return &tables{
		users:       map[uuid.UUID]models.User{},
		drivers:     map[uuid.UUID]models.Driver{},
		vehicles:    map[uuid.UUID]models.Vehicle{},
		shifts:      map[uuid.UUID]models.Shift{},
		trips:       map[uuid.UUID]models.Trip{},
		assignments: map[uuid.UUID]models.VehicleAssignment{},
		inspections: map[uuid.UUID]models.Inspection{},
		photos:      map[uuid.UUID][]models.InspectionPhoto{},
		damage:      map[uuid.UUID]models.DamageReport{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	photos := make(map[uuid.UUID][]models.InspectionPhoto, len(t.photos))
	for k, v := range t.photos {
		photos[k] = append([]models.InspectionPhoto(nil), v...)
	}
	return &tables{
		users:       cloneMap(t.users),
		drivers:     cloneMap(t.drivers),
		vehicles:    cloneMap(t.vehicles),
		shifts:      cloneMap(t.shifts),
		trips:       cloneMap(t.trips),
		assignments: cloneMap(t.assignments),
		inspections: cloneMap(t.inspections),
		photos:      photos,
		damage:      cloneMap(t.damage),
		audit:       append([]models.AuditLog(nil), t.audit...),
	}
}

func NewMemory() *Memory {
	m := &Memory{tables: newTables()}
	m.memRepo = &memRepo{m: m}
	return m
}

func (m *Memory) RunInTransaction(ctx context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.tables.clone()
	defer func() {
		if p := recover(); p != nil {
			m.tables = snapshot
			panic(p)
		}
	}()

	if err := fn(&memRepo{m: m, inTx: true}); err != nil {
		m.tables = snapshot
		return err
	}
	return nil
}

type memRepo struct {
	m    *Memory
	inTx bool
}

// lock takes the store mutex unless the caller already holds it through
// RunInTransaction.
func (r *memRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.m.mu.Lock()
	return r.m.mu.Unlock
}

func (r *memRepo) t() *tables { return r.m.tables }

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func (r *memRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer r.lock()()
	u, ok := r.t().users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.lock()()
	for _, u := range r.t().users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) CreateUser(ctx context.Context, u *models.User) error {
	defer r.lock()()
	for _, existing := range r.t().users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	r.t().users[u.ID] = *u
	return nil
}

func (r *memRepo) UpdateUserFCMToken(ctx context.Context, id uuid.UUID, token string) error {
	defer r.lock()()
	u, ok := r.t().users[id]
	if !ok {
		return ErrNotFound
	}
	u.FCMToken = token
	stamp(nil, &u.UpdatedAt)
	r.t().users[id] = u
	return nil
}

func (r *memRepo) GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	defer r.lock()()
	d, ok := r.t().drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *memRepo) CreateDriver(ctx context.Context, d *models.Driver) error {
	defer r.lock()()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if _, ok := r.t().drivers[d.ID]; ok {
		return ErrConflict
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)
	r.t().drivers[d.ID] = *d
	return nil
}

func (r *memRepo) SaveDriver(ctx context.Context, d *models.Driver) error {
	defer r.lock()()
	if _, ok := r.t().drivers[d.ID]; !ok {
		return ErrNotFound
	}
	stamp(nil, &d.UpdatedAt)
	r.t().drivers[d.ID] = *d
	return nil
}

func (r *memRepo) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	defer r.lock()()
	v, ok := r.t().vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (r *memRepo) LockVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	return r.GetVehicle(ctx, id)
}

func (r *memRepo) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	defer r.lock()()
	for _, existing := range r.t().vehicles {
		if existing.PlateNumber == v.PlateNumber {
			return ErrConflict
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = models.VehicleStatusAvailable
	}
	stamp(&v.CreatedAt, &v.UpdatedAt)
	r.t().vehicles[v.ID] = *v
	return nil
}

func (r *memRepo) UpdateVehicleStatus(ctx context.Context, id uuid.UUID, status models.VehicleStatus) error {
	defer r.lock()()
	v, ok := r.t().vehicles[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	stamp(nil, &v.UpdatedAt)
	r.t().vehicles[id] = v
	return nil
}

func (r *memRepo) GetShift(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	defer r.lock()()
	s, ok := r.t().shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memRepo) findOpenShift(driverID uuid.UUID) (*models.Shift, bool) {
	for _, s := range r.t().shifts {
		if s.DriverID == driverID && s.IsOpen() {
			s := s
			return &s, true
		}
	}
	return nil, false
}

func (r *memRepo) FindOpenShiftByDriver(ctx context.Context, driverID uuid.UUID) (*models.Shift, error) {
	defer r.lock()()
	if s, ok := r.findOpenShift(driverID); ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (r *memRepo) CreateShift(ctx context.Context, s *models.Shift) error {
	defer r.lock()()
	if s.IsOpen() {
		if _, ok := r.findOpenShift(s.DriverID); ok {
			return ErrConflict
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.VerificationStatus == "" {
		s.VerificationStatus = models.VerificationPending
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	r.t().shifts[s.ID] = *s
	return nil
}

func applyShift(s *models.Shift, u ShiftUpdate) {
	if u.Status != "" {
		s.Status = u.Status
	}
	if u.VerificationStatus != "" {
		s.VerificationStatus = u.VerificationStatus
	}
	if u.VehicleID != nil {
		s.VehicleID = u.VehicleID
	}
	if u.StartedAt != nil {
		s.StartedAt = u.StartedAt
	}
	if u.ClosedAt != nil {
		s.ClosedAt = u.ClosedAt
	}
	if u.CloseReason != "" {
		s.CloseReason = u.CloseReason
	}
	s.Version++
	stamp(nil, &s.UpdatedAt)
}

func (r *memRepo) UpdateShiftIfVersion(ctx context.Context, id uuid.UUID, version int64, u ShiftUpdate) (bool, error) {
	defer r.lock()()
	s, ok := r.t().shifts[id]
	if !ok || s.Version != version {
		return false, nil
	}
	applyShift(&s, u)
	r.t().shifts[id] = s
	return true, nil
}

func (r *memRepo) UpdateShiftIfStatus(ctx context.Context, id uuid.UUID, allowed []models.ShiftStatus, u ShiftUpdate) (bool, error) {
	defer r.lock()()
	s, ok := r.t().shifts[id]
	if !ok || !containsStatus(allowed, s.Status) {
		return false, nil
	}
	applyShift(&s, u)
	r.t().shifts[id] = s
	return true, nil
}

func containsStatus[S comparable](set []S, s S) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (r *memRepo) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	defer r.lock()()
	t, ok := r.t().trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *memRepo) findOpenTrip(driverID uuid.UUID) (*models.Trip, bool) {
	for _, t := range r.t().trips {
		if t.DriverID == driverID && t.IsOpen() {
			t := t
			return &t, true
		}
	}
	return nil, false
}

func (r *memRepo) FindOpenTripByDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	defer r.lock()()
	if t, ok := r.findOpenTrip(driverID); ok {
		return t, nil
	}
	return nil, ErrNotFound
}

func (r *memRepo) ListTripsByShift(ctx context.Context, shiftID uuid.UUID, statuses ...models.TripStatus) ([]models.Trip, error) {
	defer r.lock()()
	var out []models.Trip
	for _, t := range r.t().trips {
		if t.ShiftID != shiftID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) CreateTrip(ctx context.Context, t *models.Trip) error {
	defer r.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	stamp(&t.CreatedAt, &t.UpdatedAt)
	r.t().trips[t.ID] = *t
	return nil
}

func applyTrip(t *models.Trip, u TripUpdate) {
	if u.Status != "" {
		t.Status = u.Status
	}
	if u.ActualStartTime != nil {
		t.ActualStartTime = u.ActualStartTime
	}
	if u.ActualEndTime != nil {
		t.ActualEndTime = u.ActualEndTime
	}
	if u.CancellationReason != "" {
		t.CancellationReason = u.CancellationReason
	}
	if u.CancelledBy != nil {
		t.CancelledBy = u.CancelledBy
	}
	t.Version++
	stamp(nil, &t.UpdatedAt)
}

func (r *memRepo) UpdateTripIfVersion(ctx context.Context, id uuid.UUID, version int64, u TripUpdate) (bool, error) {
	defer r.lock()()
	t, ok := r.t().trips[id]
	if !ok || t.Version != version {
		return false, nil
	}
	applyTrip(&t, u)
	r.t().trips[id] = t
	return true, nil
}

func (r *memRepo) UpdateTripIfStatus(ctx context.Context, id uuid.UUID, allowed []models.TripStatus, u TripUpdate) (bool, error) {
	defer r.lock()()
	t, ok := r.t().trips[id]
	if !ok || !containsStatus(allowed, t.Status) {
		return false, nil
	}
	applyTrip(&t, u)
	r.t().trips[id] = t
	return true, nil
}

func (r *memRepo) GetAssignment(ctx context.Context, id uuid.UUID) (*models.VehicleAssignment, error) {
	defer r.lock()()
	a, ok := r.t().assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *memRepo) findActiveAssignment(match func(models.VehicleAssignment) bool) (*models.VehicleAssignment, error) {
	for _, a := range r.t().assignments {
		if a.Active && match(a) {
			a := a
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) FindActiveAssignmentByVehicle(ctx context.Context, vehicleID uuid.UUID) (*models.VehicleAssignment, error) {
	defer r.lock()()
	return r.findActiveAssignment(func(a models.VehicleAssignment) bool { return a.VehicleID == vehicleID })
}

func (r *memRepo) FindActiveAssignmentByDriver(ctx context.Context, driverID uuid.UUID) (*models.VehicleAssignment, error) {
	defer r.lock()()
	return r.findActiveAssignment(func(a models.VehicleAssignment) bool { return a.DriverID == driverID })
}

func (r *memRepo) FindActiveAssignmentByShift(ctx context.Context, shiftID uuid.UUID) (*models.VehicleAssignment, error) {
	defer r.lock()()
	return r.findActiveAssignment(func(a models.VehicleAssignment) bool { return a.ShiftID == shiftID })
}

func (r *memRepo) CreateAssignment(ctx context.Context, a *models.VehicleAssignment) error {
	defer r.lock()()
	if a.Active {
		_, err := r.findActiveAssignment(func(x models.VehicleAssignment) bool {
			return x.VehicleID == a.VehicleID || x.DriverID == a.DriverID
		})
		if err == nil {
			return ErrConflict
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	r.t().assignments[a.ID] = *a
	return nil
}

func (r *memRepo) ReleaseAssignment(ctx context.Context, id uuid.UUID, releasedBy uuid.UUID, at time.Time) (bool, error) {
	defer r.lock()()
	a, ok := r.t().assignments[id]
	if !ok || !a.Active {
		return false, nil
	}
	a.Active = false
	a.ReleasedAt = &at
	a.ReleasedBy = &releasedBy
	r.t().assignments[id] = a
	return true, nil
}

func (r *memRepo) withPhotos(i models.Inspection) *models.Inspection {
	i.Photos = append([]models.InspectionPhoto(nil), r.t().photos[i.ID]...)
	return &i
}

func (r *memRepo) GetInspection(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	defer r.lock()()
	i, ok := r.t().inspections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.withPhotos(i), nil
}

func (r *memRepo) FindLatestCompletedInspection(ctx context.Context, shiftID, driverID uuid.UUID, after *time.Time) (*models.Inspection, error) {
	defer r.lock()()
	var latest *models.Inspection
	for _, i := range r.t().inspections {
		if i.ShiftID != shiftID || i.DriverID != driverID || i.Status != models.InspectionStatusCompleted {
			continue
		}
		if after != nil && !i.CreatedAt.After(*after) {
			continue
		}
		if latest == nil || i.CreatedAt.After(latest.CreatedAt) {
			i := i
			latest = &i
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return r.withPhotos(*latest), nil
}

func (r *memRepo) CreateInspection(ctx context.Context, i *models.Inspection) error {
	defer r.lock()()
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	stamp(&i.CreatedAt, nil)
	row := *i
	row.Photos = nil
	r.t().inspections[i.ID] = row
	return nil
}

func (r *memRepo) AddInspectionPhoto(ctx context.Context, p *models.InspectionPhoto) error {
	defer r.lock()()
	if _, ok := r.t().inspections[p.InspectionID]; !ok {
		return ErrNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stamp(&p.CreatedAt, nil)
	r.t().photos[p.InspectionID] = append(r.t().photos[p.InspectionID], *p)
	return nil
}

func (r *memRepo) CompleteInspection(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	defer r.lock()()
	i, ok := r.t().inspections[id]
	if !ok || i.Status == models.InspectionStatusCompleted {
		return false, nil
	}
	i.Status = models.InspectionStatusCompleted
	i.CompletedAt = &at
	r.t().inspections[id] = i
	return true, nil
}

func (r *memRepo) GetDamageReport(ctx context.Context, id uuid.UUID) (*models.DamageReport, error) {
	defer r.lock()()
	d, ok := r.t().damage[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *memRepo) CreateDamageReport(ctx context.Context, d *models.DamageReport) error {
	defer r.lock()()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DamageStatusOpen
	}
	stamp(&d.CreatedAt, nil)
	r.t().damage[d.ID] = *d
	return nil
}

func (r *memRepo) ResolveDamageReport(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	defer r.lock()()
	d, ok := r.t().damage[id]
	if !ok || d.Status != models.DamageStatusOpen {
		return false, nil
	}
	d.Status = models.DamageStatusResolved
	d.ResolvedBy = &resolvedBy
	d.ResolvedAt = &at
	r.t().damage[id] = d
	return true, nil
}

func (r *memRepo) CountOpenDamageReports(ctx context.Context, vehicleID uuid.UUID) (int64, error) {
	defer r.lock()()
	var n int64
	for _, d := range r.t().damage {
		if d.VehicleID == vehicleID && d.Status == models.DamageStatusOpen {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) InsertAuditLog(ctx context.Context, l *models.AuditLog) error {
	defer r.lock()()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	stamp(&l.CreatedAt, nil)
	r.t().audit = append(r.t().audit, *l)
	return nil
}

func (r *memRepo) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	defer r.lock()()
	var out []models.AuditLog
	for _, l := range r.t().audit {
		if f.EntityType != "" && l.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != uuid.Nil && l.EntityID != f.EntityID {
			continue
		}
		if !f.Since.IsZero() && l.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, l)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
