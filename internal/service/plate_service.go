package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plate-service/internal/config"
	"plate-service/internal/domain/recognition"
	"plate-service/internal/events"
	"plate-service/internal/plate"
	"plate-service/internal/repository"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrBelowThreshold = errors.New("plate confidence below threshold")
)

// Recognizer reads the most likely plate from an image.
type Recognizer interface {
	ReadPlate(ctx context.Context, image []byte, filename string) (*recognition.Reading, error)
}

// ImageStore uploads images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type PlateService struct {
	repo       *repository.PlateRepository
	recognizer Recognizer
	store      ImageStore
	publisher  events.Publisher
	violation  config.ViolationConfig
	storeMode  string
	fetcher    *fetcher
	log        zerolog.Logger
}

// NewPlateService wires the service. recognizer and store may be nil for
// binaries that only validate or import; publisher defaults to events.Nop.
func NewPlateService(
	repo *repository.PlateRepository,
	recognizer Recognizer,
	store ImageStore,
	publisher events.Publisher,
	cfg *config.Config,
	log zerolog.Logger,
) *PlateService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PlateService{
		repo:       repo,
		recognizer: recognizer,
		store:      store,
		publisher:  publisher,
		violation:  cfg.Violation,
		storeMode:  cfg.Storage.Mode,
		fetcher:    newFetcher(cfg.Recognizer.Timeout),
		log:        log,
	}
}

func (s *PlateService) ValidatePlate(raw string) plate.Result {
	result := plate.Validate(raw)
	s.log.Debug().
		Str("plate", raw).
		Bool("valid", result.Valid).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("plate validated")
	return result
}

func (s *PlateService) Suggest(raw string) []string {
	return plate.SuggestCorrections(raw)
}

// ProcessReading validates a recognized plate, looks it up in the registry
// and, for registered vehicles, records a violation when asked to.
func (s *PlateService) ProcessReading(ctx context.Context, reading *recognition.Reading, opts recognition.ProcessOptions) (*recognition.ProcessResult, error) {
	if reading == nil || strings.TrimSpace(reading.Plate) == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	validation := s.ValidatePlate(reading.Plate)
	key := plate.LookupKey(reading.Plate)

	result := &recognition.ProcessResult{
		Plate:      reading.Plate,
		Key:        key,
		Validation: validation,
	}

	vehicle, err := s.repo.GetVehicleByKey(ctx, key)
	if err != nil {
		s.log.Error().Err(err).Str("plate_key", key).Msg("failed to look up vehicle")
		return nil, fmt.Errorf("failed to look up vehicle: %w", err)
	}
	if vehicle == nil {
		s.log.Info().
			Str("plate", reading.Plate).
			Str("plate_key", key).
			Msg("vehicle not registered")
		return result, nil
	}

	result.Registered = true
	result.VehicleID = &vehicle.ID
	result.OwnerName = vehicle.OwnerName

	s.log.Info().
		Str("plate", reading.Plate).
		Str("vehicle_id", vehicle.ID.String()).
		Str("owner", vehicle.OwnerName).
		Msg("registered vehicle recognized")

	if !opts.RecordViolation {
		return result, nil
	}

	occurred := reading.CapturedAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	violation := &repository.Violation{
		VehicleID:     &vehicle.ID,
		Plate:         reading.Plate,
		PlateKey:      key,
		ViolationType: s.violation.Type,
		ViolationDate: occurred.UTC(),
		FineAmount:    s.violation.FineAmount,
		OfficerName:   s.violation.OfficerName,
		Location:      opts.Location,
		ImageURL:      opts.ImageURL,
	}
	if err := s.repo.CreateViolation(ctx, violation); err != nil {
		s.log.Error().Err(err).Str("plate_key", key).Msg("failed to record violation")
		return nil, fmt.Errorf("failed to record violation: %w", err)
	}
	result.ViolationID = &violation.ID

	s.log.Info().
		Str("violation_id", violation.ID.String()).
		Str("plate", reading.Plate).
		Float64("fine_amount", violation.FineAmount).
		Msg("violation recorded")

	event := events.ViolationEvent{
		ViolationID:   violation.ID.String(),
		VehicleID:     vehicle.ID.String(),
		Plate:         violation.Plate,
		PlateKey:      key,
		OwnerName:     vehicle.OwnerName,
		ViolationType: violation.ViolationType,
		FineAmount:    violation.FineAmount,
		Location:      violation.Location,
		ImageURL:      violation.ImageURL,
		OccurredAt:    violation.ViolationDate,
	}
	if err := s.publisher.PublishViolation(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("violation_id", event.ViolationID).Msg("failed to publish violation event")
	}

	return result, nil
}

// RecognizeImage reads the plate on an uploaded image, stores the image when
// an object store is configured and processes the reading.
func (s *PlateService) RecognizeImage(ctx context.Context, image []byte, filename string, opts recognition.ProcessOptions) (*recognition.ProcessResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	if s.recognizer == nil {
		return nil, fmt.Errorf("plate recognizer is not configured")
	}

	reading, err := s.recognizer.ReadPlate(ctx, image, filename)
	if err != nil {
		return nil, s.classifyRecognizerError(err)
	}

	if s.store != nil && opts.ImageURL == "" {
		img := describeImage(image)
		url, err := s.store.Upload(ctx, img.key(), img.reader(), img.size, img.mime)
		if err != nil {
			s.log.Warn().Err(err).Str("plate", reading.Plate).Msg("failed to upload image, continuing without it")
		} else {
			opts.ImageURL = url
		}
	}

	return s.ProcessReading(ctx, reading, opts)
}

func (s *PlateService) classifyRecognizerError(err error) error {
	if isNoPlate(err) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.log.Error().Err(err).Msg("plate recognizer request failed")
	return fmt.Errorf("plate recognition failed: %w", err)
}

type VehicleInput struct {
	PlateNumber   string `json:"plate_number" binding:"required"`
	OwnerName     string `json:"owner_name"`
	OwnerIDNumber string `json:"owner_id_number"`
	VehicleType   string `json:"vehicle_type"`
	Make          string `json:"make"`
	Model         string `json:"model"`
	Color         string `json:"color"`
	Year          int    `json:"year"`
	UnitType      string `json:"unit_type"`
	Building      string `json:"building"`
	Apartment     string `json:"apartment"`
	StickerNumber string `json:"sticker_number"`
	StickerStatus string `json:"sticker_status"`
	StickerDate   string `json:"sticker_date"`
}

// UpsertVehicle registers a vehicle under the canonical key of its plate.
// Plates that do not validate, or that contain letters outside the scheme,
// are rejected.
func (s *PlateService) UpsertVehicle(ctx context.Context, input VehicleInput) (*VehicleInfo, error) {
	key, err := registrationKey(input.PlateNumber)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.UpsertVehicle(ctx, &repository.Vehicle{
		PlateNumber:   strings.TrimSpace(input.PlateNumber),
		PlateKey:      key,
		OwnerName:     strings.TrimSpace(input.OwnerName),
		OwnerIDNumber: strings.TrimSpace(input.OwnerIDNumber),
		VehicleType:   input.VehicleType,
		Make:          input.Make,
		Model:         input.Model,
		Color:         input.Color,
		Year:          input.Year,
		UnitType:      input.UnitType,
		Building:      input.Building,
		Apartment:     input.Apartment,
		StickerNumber: input.StickerNumber,
		StickerStatus: input.StickerStatus,
		StickerDate:   input.StickerDate,
	})
	if err != nil {
		s.log.Error().Err(err).Str("plate_key", key).Msg("failed to upsert vehicle")
		return nil, err
	}

	s.log.Info().
		Str("vehicle_id", stored.ID.String()).
		Str("plate_key", key).
		Msg("vehicle registered")

	info := toVehicleInfo(*stored)
	return &info, nil
}

func registrationKey(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: plate number is required", ErrInvalidInput)
	}
	result := plate.Validate(raw)
	if !result.Valid {
		return "", fmt.Errorf("%w: %s", ErrInvalidInput, result.Message)
	}
	key, ok := plate.Key(raw)
	if !ok {
		return "", fmt.Errorf("%w: plate contains letters outside the Saudi scheme", ErrInvalidInput)
	}
	return key, nil
}

// FindVehicles returns the vehicle registered under the query's key, or
// falls back to a substring search. Plate fragments such as "أب" are
// transliterated before they are matched against keys.
func (s *PlateService) FindVehicles(ctx context.Context, query string) ([]VehicleInfo, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", ErrInvalidInput)
	}
	key := plate.LookupKey(query)

	exact, err := s.repo.GetVehicleByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	if exact != nil {
		return []VehicleInfo{toVehicleInfo(*exact)}, nil
	}

	searchKey := key
	if partial, ok := plate.PartialKey(query); ok {
		searchKey = partial
	}
	vehicles, err := s.repo.SearchVehicles(ctx, searchKey, strings.TrimSpace(query), 20)
	if err != nil {
		return nil, fmt.Errorf("failed to search vehicles: %w", err)
	}
	result := make([]VehicleInfo, 0, len(vehicles))
	for _, v := range vehicles {
		result = append(result, toVehicleInfo(v))
	}
	return result, nil
}

func (s *PlateService) ListVehicles(ctx context.Context, limit, offset int) ([]VehicleInfo, error) {
	if offset < 0 {
		offset = 0
	}
	vehicles, err := s.repo.ListVehicles(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	result := make([]VehicleInfo, 0, len(vehicles))
	for _, v := range vehicles {
		result = append(result, toVehicleInfo(v))
	}
	return result, nil
}

func (s *PlateService) GetVehicle(ctx context.Context, rawID string) (*VehicleInfo, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vehicle id", ErrInvalidInput)
	}
	vehicle, err := s.repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, id)
	}
	info := toVehicleInfo(*vehicle)
	return &info, nil
}

func (s *PlateService) ListViolations(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]ViolationInfo, error) {
	filter := repository.ViolationFilter{Limit: limit, Offset: offset}

	if plateQuery != nil {
		if key := plate.LookupKey(*plateQuery); key != "" {
			filter.PlateKey = &key
		}
	}
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		filter.From = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		filter.To = &t
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	violations, err := s.repo.ListViolations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}

	result := make([]ViolationInfo, 0, len(violations))
	for _, v := range violations {
		result = append(result, toViolationInfo(v))
	}
	return result, nil
}

func (s *PlateService) MarkViolationProcessed(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("%w: invalid violation id", ErrInvalidInput)
	}
	if err := s.repo.MarkViolationProcessed(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: violation %s", ErrNotFound, id)
		}
		return err
	}
	s.log.Info().Str("violation_id", id.String()).Msg("violation marked processed")
	return nil
}

type VehicleInfo struct {
	ID            string    `json:"id"`
	PlateNumber   string    `json:"plate_number"`
	PlateKey      string    `json:"plate_key"`
	OwnerName     string    `json:"owner_name,omitempty"`
	OwnerIDNumber string    `json:"owner_id_number,omitempty"`
	VehicleType   string    `json:"vehicle_type,omitempty"`
	Make          string    `json:"make,omitempty"`
	Model         string    `json:"model,omitempty"`
	Color         string    `json:"color,omitempty"`
	Year          int       `json:"year,omitempty"`
	UnitType      string    `json:"unit_type,omitempty"`
	Building      string    `json:"building,omitempty"`
	Apartment     string    `json:"apartment,omitempty"`
	StickerNumber string    `json:"sticker_number,omitempty"`
	StickerStatus string    `json:"sticker_status,omitempty"`
	StickerDate   string    `json:"sticker_date,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ViolationInfo struct {
	ID            string    `json:"id"`
	VehicleID     *string   `json:"vehicle_id,omitempty"`
	Plate         string    `json:"plate"`
	PlateKey      string    `json:"plate_key"`
	ViolationType string    `json:"violation_type"`
	ViolationDate time.Time `json:"violation_date"`
	FineAmount    float64   `json:"fine_amount"`
	OfficerName   string    `json:"officer_name,omitempty"`
	Location      string    `json:"location,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Processed     bool      `json:"processed"`
}

func toVehicleInfo(v repository.Vehicle) VehicleInfo {
	return VehicleInfo{
		ID:            v.ID.String(),
		PlateNumber:   v.PlateNumber,
		PlateKey:      v.PlateKey,
		OwnerName:     v.OwnerName,
		OwnerIDNumber: v.OwnerIDNumber,
		VehicleType:   v.VehicleType,
		Make:          v.Make,
		Model:         v.Model,
		Color:         v.Color,
		Year:          v.Year,
		UnitType:      v.UnitType,
		Building:      v.Building,
		Apartment:     v.Apartment,
		StickerNumber: v.StickerNumber,
		StickerStatus: v.StickerStatus,
		StickerDate:   v.StickerDate,
		UpdatedAt:     v.UpdatedAt,
	}
}

func toViolationInfo(v repository.Violation) ViolationInfo {
	var vehicleID *string
	if v.VehicleID != nil {
		id := v.VehicleID.String()
		vehicleID = &id
	}
	return ViolationInfo{
		ID:            v.ID.String(),
		VehicleID:     vehicleID,
		Plate:         v.Plate,
		PlateKey:      v.PlateKey,
		ViolationType: v.ViolationType,
		ViolationDate: v.ViolationDate,
		FineAmount:    v.FineAmount,
		OfficerName:   v.OfficerName,
		Location:      v.Location,
		ImageURL:      v.ImageURL,
		Processed:     v.Processed,
	}
}
