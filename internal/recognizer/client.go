package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"plate-service/internal/config"
	"plate-service/internal/domain/recognition"
)

var (
	ErrNotConfigured = errors.New("plate recognizer is not configured")
	ErrNoPlate       = errors.New("no plate found in image")
)

// APIError is a non-2xx answer from the plate-reader API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plate recognizer returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	httpClient *http.Client
	url        string
	token      string
	regions    string
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
	log        zerolog.Logger
}

func NewClient(cfg config.RecognizerConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url:        cfg.URL,
		token:      cfg.APIKey,
		regions:    cfg.Regions,
		maxRetries: retries,
		baseDelay:  time.Second,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

// ReadPlate uploads one image and returns the top plate reading. Transport
// errors, 429 and 5xx answers are retried with exponential backoff.
func (c *Client) ReadPlate(ctx context.Context, image []byte, filename string) (*recognition.Reading, error) {
	if c == nil || c.url == "" || c.token == "" {
		return nil, ErrNotConfigured
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if filename == "" {
		filename = "image.jpg"
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.baseDelay * time.Duration(1<<(attempt-1))
			c.log.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Int("max_attempts", c.maxRetries).
				Dur("backoff", wait).
				Msg("retrying plate recognizer request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.post(ctx, image, filename)
		if err == nil {
			return parseResponse(body)
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("plate recognizer failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, image []byte, filename string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("upload", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if c.regions != "" {
		if err := form.WriteField("regions", c.regions); err != nil {
			return nil, fmt.Errorf("write regions: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

type apiResponse struct {
	Filename  string      `json:"filename"`
	UUID      string      `json:"uuid"`
	CameraID  *string     `json:"camera_id"`
	Timestamp string      `json:"timestamp"`
	Results   []apiResult `json:"results"`
}

type apiResult struct {
	Plate  string          `json:"plate"`
	Score  float64         `json:"score"`
	Box    recognition.Box `json:"box"`
	Region struct {
		Code string `json:"code"`
	} `json:"region"`
	Vehicle struct {
		Type string `json:"type"`
	} `json:"vehicle"`
	ModelMake []struct {
		Make  string `json:"make"`
		Model string `json:"model"`
	} `json:"model_make"`
	Color []struct {
		Color string `json:"color"`
	} `json:"color"`
}

func parseResponse(body []byte) (*recognition.Reading, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, ErrNoPlate
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode raw response: %w", err)
	}

	top := resp.Results[0]
	reading := &recognition.Reading{
		Plate:       strings.TrimSpace(top.Plate),
		Score:       top.Score,
		Region:      top.Region.Code,
		Box:         top.Box,
		SnapshotRef: firstNonEmpty(resp.UUID, resp.Filename),
		CapturedAt:  parseTimestamp(resp.Timestamp),
		Raw:         raw,
	}
	if resp.CameraID != nil {
		reading.CameraID = *resp.CameraID
	}
	reading.Vehicle.Type = top.Vehicle.Type
	if len(top.ModelMake) > 0 {
		reading.Vehicle.Make = top.ModelMake[0].Make
		reading.Vehicle.Model = top.ModelMake[0].Model
	}
	if len(top.Color) > 0 {
		reading.Vehicle.Color = top.Color[0].Color
	}
	return reading, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
