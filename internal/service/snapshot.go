package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/datatypes"

	"plate-service/internal/config"
	"plate-service/internal/plate"
	"plate-service/internal/recognizer"
	"plate-service/internal/repository"
	"plate-service/internal/storage"
)

const maxImageSize = 20 << 20

type IngestOptions struct {
	// ConfidenceThreshold overrides the configured threshold when set.
	ConfidenceThreshold *float64
	CameraID            string
}

// IngestSnapshot fetches an image from a URL or local path, stores it,
// reads its plate and records a snapshot row. Readings scored below the
// confidence threshold are rejected with ErrBelowThreshold.
func (s *PlateService) IngestSnapshot(ctx context.Context, source string, opts IngestOptions) (uuid.UUID, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return uuid.Nil, fmt.Errorf("%w: image source is required", ErrInvalidInput)
	}
	if s.recognizer == nil {
		return uuid.Nil, fmt.Errorf("plate recognizer is not configured")
	}

	data, err := s.fetcher.fetch(ctx, source)
	if err != nil {
		return uuid.Nil, err
	}
	img := describeImage(data)

	snapshot := &repository.Snapshot{
		ImageMime:   img.mime,
		ImageSize:   img.size,
		ImageSHA256: img.sha256,
	}

	switch s.storeMode {
	case config.StoreDB:
		snapshot.ImageData = data
	default:
		if s.store == nil {
			return uuid.Nil, storage.ErrNotConfigured
		}
		url, err := s.store.Upload(ctx, img.key(), img.reader(), img.size, img.mime)
		if err != nil {
			return uuid.Nil, fmt.Errorf("store image: %w", err)
		}
		snapshot.ImageURL = url
	}

	filename := sourceName(source)
	reading, err := s.recognizer.ReadPlate(ctx, data, filename)
	if err != nil {
		return uuid.Nil, s.classifyRecognizerError(err)
	}

	threshold := s.violation.ConfidenceThreshold
	if opts.ConfidenceThreshold != nil {
		threshold = *opts.ConfidenceThreshold
	}
	if reading.Score < threshold {
		s.log.Info().
			Str("source", source).
			Str("plate", reading.Plate).
			Float64("score", reading.Score).
			Float64("threshold", threshold).
			Msg("reading below confidence threshold, skipped")
		return uuid.Nil, fmt.Errorf("%w: %.3f < %.3f", ErrBelowThreshold, reading.Score, threshold)
	}

	validation := s.ValidatePlate(reading.Plate)
	score := reading.Score

	snapshot.SnapshotRef = reading.SnapshotRef
	snapshot.CameraID = firstNonEmpty(opts.CameraID, reading.CameraID)
	snapshot.CapturedAt = reading.CapturedAt.UTC()
	snapshot.PlateText = reading.Plate
	snapshot.PlateKey = plate.LookupKey(reading.Plate)
	snapshot.PlateValid = validation.Valid
	snapshot.PlateConfidence = &score

	var encodeErr error
	encode := func(v interface{}) datatypes.JSON {
		raw, err := json.Marshal(v)
		if err != nil && encodeErr == nil {
			encodeErr = err
		}
		return datatypes.JSON(raw)
	}
	snapshot.MakesModels = encode([]map[string]string{{"make": reading.Vehicle.Make, "model": reading.Vehicle.Model}})
	snapshot.Colors = encode([]map[string]string{{"color": reading.Vehicle.Color}})
	snapshot.BBox = encode(reading.Box)
	snapshot.RawResponse = encode(reading.Raw)
	snapshot.Meta = encode(map[string]interface{}{
		"source":       source,
		"filename":     filename,
		"vehicle_type": reading.Vehicle.Type,
		"region":       reading.Region,
		"warnings":     len(validation.Warnings),
	})
	if encodeErr != nil {
		return uuid.Nil, fmt.Errorf("encode snapshot fields: %w", encodeErr)
	}

	if err := s.repo.CreateSnapshot(ctx, snapshot); err != nil {
		s.log.Error().Err(err).Str("source", source).Msg("failed to save snapshot")
		return uuid.Nil, err
	}

	s.log.Info().
		Str("snapshot_id", snapshot.ID.String()).
		Str("plate", reading.Plate).
		Bool("valid", validation.Valid).
		Float64("score", score).
		Str("sha256", img.sha256).
		Msg("snapshot saved")

	return snapshot.ID, nil
}

func isNoPlate(err error) bool {
	return errors.Is(err, recognizer.ErrNoPlate)
}

type imageInfo struct {
	data   []byte
	mime   string
	size   int64
	sha256 string
}

func describeImage(data []byte) imageInfo {
	sum := sha256.Sum256(data)
	return imageInfo{
		data:   data,
		mime:   mimetype.Detect(data).String(),
		size:   int64(len(data)),
		sha256: hex.EncodeToString(sum[:]),
	}
}

func (i imageInfo) key() string {
	return storage.SnapshotKey(i.sha256, i.mime)
}

func (i imageInfo) reader() io.Reader {
	return bytes.NewReader(i.data)
}

type fetcher struct {
	client *http.Client
}

func newFetcher(timeout time.Duration) *fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &fetcher{client: &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

func (f *fetcher) fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.fetchURL(ctx, source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if info.Size() > maxImageSize {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrInvalidInput, maxImageSize)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	return data, nil
}

func (f *fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrInvalidInput, maxImageSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	return data, nil
}

func sourceName(source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		trimmed := strings.SplitN(source, "?", 2)[0]
		if base := path.Base(trimmed); base != "" && base != "/" && base != "." {
			return base
		}
		return "image.jpg"
	}
	return filepath.Base(source)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type SnapshotInfo struct {
	ID              string    `json:"id"`
	SnapshotRef     string    `json:"snapshot_ref,omitempty"`
	CameraID        string    `json:"camera_id,omitempty"`
	CapturedAt      time.Time `json:"captured_at"`
	PlateText       string    `json:"plate_text"`
	PlateKey        string    `json:"plate_key"`
	PlateValid      bool      `json:"plate_valid"`
	PlateConfidence *float64  `json:"plate_confidence,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	ImageMime       string    `json:"image_mime,omitempty"`
	ImageSize       int64     `json:"image_size"`
	ImageSHA256     string    `json:"image_sha256,omitempty"`
	HasImageData    bool      `json:"has_image_data"`
}

// ListSnapshots returns the newest snapshots without image bytes.
func (s *PlateService) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	snapshots, err := s.repo.ListSnapshots(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	result := make([]SnapshotInfo, 0, len(snapshots))
	for _, snap := range snapshots {
		info := SnapshotInfo{
			ID:              snap.ID.String(),
			SnapshotRef:     snap.SnapshotRef,
			CameraID:        snap.CameraID,
			CapturedAt:      snap.CapturedAt,
			PlateText:       snap.PlateText,
			PlateKey:        snap.PlateKey,
			PlateValid:      snap.PlateValid,
			PlateConfidence: snap.PlateConfidence,
			ImageURL:        snap.ImageURL,
			ImageMime:       snap.ImageMime,
			ImageSize:       snap.ImageSize,
			ImageSHA256:     snap.ImageSHA256,
			// the list query omits image_data, so an image without URL is stored inline
			HasImageData: snap.ImageURL == "" && snap.ImageSize > 0,
		}
		result = append(result, info)
	}
	return result, nil
}

// SnapshotImage is either inline bytes (db mode) or the object URL (s3 mode).
type SnapshotImage struct {
	Data  []byte
	Mime  string
	URL   string
	Plate string
}

func (s *PlateService) SnapshotImage(ctx context.Context, rawID string) (*SnapshotImage, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid snapshot id", ErrInvalidInput)
	}
	snap, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot %s", ErrNotFound, id)
	}

	switch {
	case len(snap.ImageData) > 0:
		mime := snap.ImageMime
		if mime == "" {
			mime = mimetype.Detect(snap.ImageData).String()
		}
		return &SnapshotImage{Data: snap.ImageData, Mime: mime, Plate: snap.PlateText}, nil
	case snap.ImageURL != "":
		return &SnapshotImage{URL: snap.ImageURL, Mime: snap.ImageMime, Plate: snap.PlateText}, nil
	default:
		return nil, fmt.Errorf("%w: snapshot %s has no image", ErrNotFound, id)
	}
}
