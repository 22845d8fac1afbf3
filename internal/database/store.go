package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
)

// Store is the postgres implementation of store.Store. Transactions run at
// serializable isolation; a serialization failure or unique violation is
// reported as store.ErrConflict.
type Store struct {
	*repo
}

func NewStore(db *gorm.DB) *Store {
	return &Store{repo: &repo{db: db}}
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(store.Repository) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repo{db: tx, inTx: true})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translate(err)
}

type repo struct {
	db   *gorm.DB
	inTx bool
}

// translate maps driver errors onto the store sentinels. Other errors,
// including domain errors returned by a transaction body, pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return store.ErrConflict
		}
	}
	return err
}

func first[T any](db *gorm.DB, query interface{}, args ...interface{}) (*T, error) {
	var v T
	if err := db.Where(query, args...).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func affected(res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return first[models.User](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](r.db.WithContext(ctx), "LOWER(email) = LOWER(?)", email)
}

func (r *repo) CreateUser(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *repo) UpdateUserFCMToken(ctx context.Context, id uuid.UUID, token string) error {
	ok, err := affected(r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token))
	if err == nil && !ok {
		return store.ErrNotFound
	}
	return err
}

func (r *repo) GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	return first[models.Driver](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) CreateDriver(ctx context.Context, d *models.Driver) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

func (r *repo) SaveDriver(ctx context.Context, d *models.Driver) error {
	ok, err := affected(r.db.WithContext(ctx).Model(&models.Driver{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
		"name":              d.Name,
		"license_number":    d.LicenseNumber,
		"identity_verified": d.IdentityVerified,
		"is_active":         d.IsActive,
		"updated_at":        time.Now(),
	}))
	if err == nil && !ok {
		return store.ErrNotFound
	}
	return err
}

func (r *repo) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	return first[models.Vehicle](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) LockVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	return first[models.Vehicle](r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *repo) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.Status == "" {
		v.Status = models.VehicleStatusAvailable
	}
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r *repo) UpdateVehicleStatus(ctx context.Context, id uuid.UUID, status models.VehicleStatus) error {
	ok, err := affected(r.db.WithContext(ctx).Model(&models.Vehicle{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}))
	if err == nil && !ok {
		return store.ErrNotFound
	}
	return err
}

func (r *repo) GetShift(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return first[models.Shift](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) FindOpenShiftByDriver(ctx context.Context, driverID uuid.UUID) (*models.Shift, error) {
	return first[models.Shift](r.db.WithContext(ctx), "driver_id = ? AND status IN ?", driverID, models.OpenShiftStatuses)
}

func (r *repo) CreateShift(ctx context.Context, s *models.Shift) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func shiftColumns(u store.ShiftUpdate) map[string]interface{} {
	cols := map[string]interface{}{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if u.Status != "" {
		cols["status"] = u.Status
	}
	if u.VerificationStatus != "" {
		cols["verification_status"] = u.VerificationStatus
	}
	if u.VehicleID != nil {
		cols["vehicle_id"] = *u.VehicleID
	}
	if u.StartedAt != nil {
		cols["started_at"] = *u.StartedAt
	}
	if u.ClosedAt != nil {
		cols["closed_at"] = *u.ClosedAt
	}
	if u.CloseReason != "" {
		cols["close_reason"] = u.CloseReason
	}
	return cols
}

func (r *repo) UpdateShiftIfVersion(ctx context.Context, id uuid.UUID, version int64, u store.ShiftUpdate) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.Shift{}).
		Where("id = ? AND version = ?", id, version).
		Updates(shiftColumns(u)))
}

func (r *repo) UpdateShiftIfStatus(ctx context.Context, id uuid.UUID, allowed []models.ShiftStatus, u store.ShiftUpdate) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.Shift{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(shiftColumns(u)))
}

func (r *repo) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	return first[models.Trip](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) FindOpenTripByDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	return first[models.Trip](r.db.WithContext(ctx), "driver_id = ? AND status IN ?", driverID, models.OpenTripStatuses)
}

func (r *repo) ListTripsByShift(ctx context.Context, shiftID uuid.UUID, statuses ...models.TripStatus) ([]models.Trip, error) {
	q := r.db.WithContext(ctx).Where("shift_id = ?", shiftID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var trips []models.Trip
	if err := q.Order("created_at ASC").Find(&trips).Error; err != nil {
		return nil, translate(err)
	}
	return trips, nil
}

func (r *repo) CreateTrip(ctx context.Context, t *models.Trip) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func tripColumns(u store.TripUpdate) map[string]interface{} {
	cols := map[string]interface{}{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if u.Status != "" {
		cols["status"] = u.Status
	}
	if u.ActualStartTime != nil {
		cols["actual_start_time"] = *u.ActualStartTime
	}
	if u.ActualEndTime != nil {
		cols["actual_end_time"] = *u.ActualEndTime
	}
	if u.CancellationReason != "" {
		cols["cancellation_reason"] = u.CancellationReason
	}
	if u.CancelledBy != nil {
		cols["cancelled_by"] = *u.CancelledBy
	}
	return cols
}

func (r *repo) UpdateTripIfVersion(ctx context.Context, id uuid.UUID, version int64, u store.TripUpdate) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("id = ? AND version = ?", id, version).
		Updates(tripColumns(u)))
}

func (r *repo) UpdateTripIfStatus(ctx context.Context, id uuid.UUID, allowed []models.TripStatus, u store.TripUpdate) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(tripColumns(u)))
}

func (r *repo) GetAssignment(ctx context.Context, id uuid.UUID) (*models.VehicleAssignment, error) {
	return first[models.VehicleAssignment](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) FindActiveAssignmentByVehicle(ctx context.Context, vehicleID uuid.UUID) (*models.VehicleAssignment, error) {
	return first[models.VehicleAssignment](r.db.WithContext(ctx), "vehicle_id = ? AND active = ?", vehicleID, true)
}

func (r *repo) FindActiveAssignmentByDriver(ctx context.Context, driverID uuid.UUID) (*models.VehicleAssignment, error) {
	return first[models.VehicleAssignment](r.db.WithContext(ctx), "driver_id = ? AND active = ?", driverID, true)
}

func (r *repo) FindActiveAssignmentByShift(ctx context.Context, shiftID uuid.UUID) (*models.VehicleAssignment, error) {
	return first[models.VehicleAssignment](r.db.WithContext(ctx), "shift_id = ? AND active = ?", shiftID, true)
}

func (r *repo) CreateAssignment(ctx context.Context, a *models.VehicleAssignment) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r *repo) ReleaseAssignment(ctx context.Context, id uuid.UUID, releasedBy uuid.UUID, at time.Time) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.VehicleAssignment{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":      false,
			"released_at": at,
			"released_by": releasedBy,
		}))
}

func (r *repo) GetInspection(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	return first[models.Inspection](r.db.WithContext(ctx).Preload("Photos"), "id = ?", id)
}

func (r *repo) FindLatestCompletedInspection(ctx context.Context, shiftID, driverID uuid.UUID, after *time.Time) (*models.Inspection, error) {
	q := r.db.WithContext(ctx).Preload("Photos").
		Where("shift_id = ? AND driver_id = ? AND status = ?", shiftID, driverID, models.InspectionStatusCompleted)
	if after != nil {
		q = q.Where("created_at > ?", *after)
	}
	var i models.Inspection
	if err := q.Order("created_at DESC").First(&i).Error; err != nil {
		return nil, translate(err)
	}
	return &i, nil
}

func (r *repo) CreateInspection(ctx context.Context, i *models.Inspection) error {
	return translate(r.db.WithContext(ctx).Omit("Photos").Create(i).Error)
}

func (r *repo) AddInspectionPhoto(ctx context.Context, p *models.InspectionPhoto) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *repo) CompleteInspection(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.Inspection{}).
		Where("id = ? AND status <> ?", id, models.InspectionStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.InspectionStatusCompleted,
			"completed_at": at,
		}))
}

func (r *repo) GetDamageReport(ctx context.Context, id uuid.UUID) (*models.DamageReport, error) {
	return first[models.DamageReport](r.db.WithContext(ctx), "id = ?", id)
}

func (r *repo) CreateDamageReport(ctx context.Context, d *models.DamageReport) error {
	if d.Status == "" {
		d.Status = models.DamageStatusOpen
	}
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

func (r *repo) ResolveDamageReport(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	return affected(r.db.WithContext(ctx).Model(&models.DamageReport{}).
		Where("id = ? AND status = ?", id, models.DamageStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.DamageStatusResolved,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		}))
}

func (r *repo) CountOpenDamageReports(ctx context.Context, vehicleID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.DamageReport{}).
		Where("vehicle_id = ? AND status = ?", vehicleID, models.DamageStatusOpen).
		Count(&n).Error
	return n, translate(err)
}

// InsertAuditLog writes the entry under a savepoint when inside a
// transaction, so a failed insert does not abort the enclosing work.
func (r *repo) InsertAuditLog(ctx context.Context, l *models.AuditLog) error {
	db := r.db.WithContext(ctx)
	if !r.inTx {
		return translate(db.Create(l).Error)
	}

	const savepoint = "audit_entry"
	if err := db.SavePoint(savepoint).Error; err != nil {
		return err
	}
	if err := db.Create(l).Error; err != nil {
		db.RollbackTo(savepoint)
		return translate(err)
	}
	return nil
}

func (r *repo) ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	q := r.db.WithContext(ctx)
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != uuid.Nil {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var logs []models.AuditLog
	if err := q.Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, translate(err)
	}
	return logs, nil
}
