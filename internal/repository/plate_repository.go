package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

const maxPageSize = 100

type PlateRepository struct {
	db *gorm.DB
}

func NewPlateRepository(db *gorm.DB) *PlateRepository {
	return &PlateRepository{db: db}
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (Violation) TableName() string {
	return "violations"
}

func (Snapshot) TableName() string {
	return "vehicle_snapshots"
}

type Vehicle struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlateNumber   string    `gorm:"not null"`
	PlateKey      string    `gorm:"not null;uniqueIndex"`
	OwnerName     string
	OwnerIDNumber string
	VehicleType   string
	Make          string
	Model         string
	Color         string
	Year          int
	UnitType      string
	Building      string
	Apartment     string
	StickerNumber string
	StickerStatus string
	StickerDate   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Violation struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	VehicleID     *uuid.UUID `gorm:"type:uuid"`
	Plate         string     `gorm:"not null"`
	PlateKey      string     `gorm:"not null"`
	ViolationType string     `gorm:"not null"`
	ViolationDate time.Time  `gorm:"not null"`
	FineAmount    float64
	OfficerName   string
	Location      string
	ImageURL      string
	Processed     bool
	CreatedAt     time.Time
}

type Snapshot struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SnapshotRef     string
	CameraID        string
	CapturedAt      time.Time `gorm:"not null"`
	PlateText       string
	PlateKey        string
	PlateValid      bool
	PlateConfidence *float64
	MakesModels     datatypes.JSON
	Colors          datatypes.JSON
	BBox            datatypes.JSON `gorm:"column:bbox"`
	RawResponse     datatypes.JSON
	ImageURL        string
	ImageData       []byte
	ImageMime       string
	ImageSize       int64
	ImageSHA256     string `gorm:"column:image_sha256"`
	Meta            datatypes.JSON
	CreatedAt       time.Time
}

type ViolationFilter struct {
	VehicleID *uuid.UUID
	PlateKey  *string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// GetVehicleByKey returns nil, nil when no vehicle is registered under key.
func (r *PlateRepository) GetVehicleByKey(ctx context.Context, key string) (*Vehicle, error) {
	var vehicle Vehicle
	err := r.db.WithContext(ctx).Where("plate_key = ?", key).First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// SearchVehicles matches key against plate keys and text against plate
// numbers and owner names.
func (r *PlateRepository) SearchVehicles(ctx context.Context, key, text string, limit int) ([]Vehicle, error) {
	keyPattern := "%" + strings.TrimSpace(key) + "%"
	textPattern := "%" + strings.TrimSpace(text) + "%"
	var vehicles []Vehicle
	err := r.db.WithContext(ctx).
		Where("plate_key LIKE ? OR plate_number LIKE ? OR owner_name LIKE ?", keyPattern, textPattern, textPattern).
		Order("plate_key").
		Limit(clampLimit(limit)).
		Find(&vehicles).Error
	return vehicles, err
}

// GetVehicle returns nil, nil when the vehicle does not exist.
func (r *PlateRepository) GetVehicle(ctx context.Context, id uuid.UUID) (*Vehicle, error) {
	var vehicle Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *PlateRepository) ListVehicles(ctx context.Context, limit, offset int) ([]Vehicle, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit))
	if offset > 0 {
		query = query.Offset(offset)
	}
	var vehicles []Vehicle
	err := query.Find(&vehicles).Error
	return vehicles, err
}

// UpsertVehicle inserts the vehicle or overwrites the row with the same
// plate key, then returns the stored row.
func (r *PlateRepository) UpsertVehicle(ctx context.Context, vehicle *Vehicle) (*Vehicle, error) {
	if vehicle.PlateKey == "" {
		return nil, fmt.Errorf("plate key is required")
	}
	now := time.Now().UTC()
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "plate_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plate_number", "owner_name", "owner_id_number", "vehicle_type",
			"make", "model", "color", "year", "unit_type", "building",
			"apartment", "sticker_number", "sticker_status", "sticker_date",
			"updated_at",
		}),
	}).Create(vehicle).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert vehicle: %w", err)
	}

	stored, err := r.GetVehicleByKey(ctx, vehicle.PlateKey)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("vehicle %s vanished after upsert", vehicle.PlateKey)
	}
	return stored, nil
}

func (r *PlateRepository) CreateViolation(ctx context.Context, violation *Violation) error {
	if violation.ID == uuid.Nil {
		violation.ID = uuid.New()
	}
	if violation.ViolationDate.IsZero() {
		violation.ViolationDate = time.Now().UTC()
	}
	violation.CreatedAt = time.Now().UTC()

	if err := r.db.WithContext(ctx).Create(violation).Error; err != nil {
		return fmt.Errorf("failed to create violation: %w", err)
	}
	return nil
}

func (r *PlateRepository) ListViolations(ctx context.Context, filter ViolationFilter) ([]Violation, error) {
	query := r.db.WithContext(ctx).Model(&Violation{})

	if filter.VehicleID != nil {
		query = query.Where("vehicle_id = ?", *filter.VehicleID)
	}
	if filter.PlateKey != nil {
		query = query.Where("plate_key = ?", *filter.PlateKey)
	}
	if filter.From != nil {
		query = query.Where("violation_date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("violation_date <= ?", filter.To.UTC())
	}

	query = query.Order("violation_date DESC").Limit(clampLimit(filter.Limit))
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var violations []Violation
	err := query.Find(&violations).Error
	return violations, err
}

func (r *PlateRepository) MarkViolationProcessed(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&Violation{}).
		Where("id = ?", id).
		Update("processed", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark violation processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PlateRepository) CreateSnapshot(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}
	snapshot.CreatedAt = time.Now().UTC()

	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the newest snapshots without their image bytes.
func (r *PlateRepository) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	var snapshots []Snapshot
	err := r.db.WithContext(ctx).
		Omit("image_data").
		Order("captured_at DESC").
		Limit(clampLimit(limit)).
		Find(&snapshots).Error
	return snapshots, err
}

// GetSnapshot returns nil, nil when the snapshot does not exist.
func (r *PlateRepository) GetSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	var snapshot Snapshot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

type TypeCount struct {
	ViolationType string
	Count         int64
}

type ViolatorCount struct {
	VehicleID      uuid.UUID
	PlateNumber    string
	OwnerName      string
	ViolationCount int64
}

type MonthCount struct {
	Month string
	Count int64
}

type Stats struct {
	TotalVehicles   int64
	TotalViolations int64
	OpenViolations  int64
	TotalSnapshots  int64
	TotalFines      float64
	ByType          []TypeCount
	TopViolators    []ViolatorCount
	Monthly         []MonthCount
}

// Stats aggregates the registry. Monthly counts cover violations on or after
// since and are newest first.
func (r *PlateRepository) Stats(ctx context.Context, since time.Time, topLimit int) (*Stats, error) {
	db := r.db.WithContext(ctx)
	stats := &Stats{}

	if err := db.Model(&Vehicle{}).Count(&stats.TotalVehicles).Error; err != nil {
		return nil, fmt.Errorf("count vehicles: %w", err)
	}
	if err := db.Model(&Violation{}).Count(&stats.TotalViolations).Error; err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}
	if err := db.Model(&Violation{}).Where("processed = ?", false).Count(&stats.OpenViolations).Error; err != nil {
		return nil, fmt.Errorf("count open violations: %w", err)
	}
	if err := db.Model(&Snapshot{}).Count(&stats.TotalSnapshots).Error; err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if err := db.Model(&Violation{}).Select("COALESCE(SUM(fine_amount), 0)").Row().Scan(&stats.TotalFines); err != nil {
		return nil, fmt.Errorf("sum fines: %w", err)
	}

	err := db.Model(&Violation{}).
		Select("violation_type, COUNT(*) AS count").
		Group("violation_type").
		Order("count DESC, violation_type").
		Scan(&stats.ByType).Error
	if err != nil {
		return nil, fmt.Errorf("count violations by type: %w", err)
	}

	err = db.Table("violations").
		Select("vehicles.id AS vehicle_id, vehicles.plate_number, vehicles.owner_name, COUNT(violations.id) AS violation_count").
		Joins("JOIN vehicles ON vehicles.id = violations.vehicle_id").
		Group("vehicles.id, vehicles.plate_number, vehicles.owner_name").
		Order("violation_count DESC, vehicles.plate_number").
		Limit(clampLimit(topLimit)).
		Scan(&stats.TopViolators).Error
	if err != nil {
		return nil, fmt.Errorf("top violators: %w", err)
	}

	// month bucketing differs between postgres and sqlite, so it happens here
	var dates []time.Time
	err = db.Model(&Violation{}).
		Where("violation_date >= ?", since.UTC()).
		Pluck("violation_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("violation dates: %w", err)
	}
	stats.Monthly = countByMonth(dates)

	return stats, nil
}

func countByMonth(dates []time.Time) []MonthCount {
	counts := make(map[string]int64)
	for _, d := range dates {
		counts[d.UTC().Format("2006-01")]++
	}
	months := make([]MonthCount, 0, len(counts))
	for month, n := range counts {
		months = append(months, MonthCount{Month: month, Count: n})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month > months[j].Month })
	return months
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
