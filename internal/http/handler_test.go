package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plate-service/internal/auth"
	"plate-service/internal/config"
	"plate-service/internal/db"
	"plate-service/internal/domain/recognition"
	"plate-service/internal/http/middleware"
	"plate-service/internal/model"
	"plate-service/internal/repository"
	"plate-service/internal/service"
)

type stubRecognizer struct {
	plate string
}

func (s stubRecognizer) ReadPlate(ctx context.Context, image []byte, filename string) (*recognition.Reading, error) {
	return &recognition.Reading{Plate: s.plate, Score: 0.9, CapturedAt: time.Now().UTC()}, nil
}

type testServer struct {
	router *gin.Engine
	parser *auth.Parser
	svc    *service.PlateService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment: "test",
		DB:          config.DBConfig{Driver: config.DriverSQLite, DSN: ":memory:"},
		Storage:     config.StorageConfig{Mode: config.StoreDB},
		Violation:   config.ViolationConfig{Type: "parking", FineAmount: 1000},
	}
	database, err := db.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	svc := service.NewPlateService(repository.NewPlateRepository(database), stubRecognizer{plate: "ab1234"}, nil, nil, cfg, zerolog.Nop())
	parser := auth.NewParser("test-secret")
	router := NewRouter(NewHandler(svc, zerolog.Nop()), middleware.Auth(parser), cfg.Environment, database, zerolog.Nop())
	return &testServer{router: router, parser: parser, svc: svc}
}

func (s *testServer) token(t *testing.T, role model.UserRole) string {
	t.Helper()
	token, err := s.parser.Issue(model.Principal{UserID: uuid.New(), Role: role},
		jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if into != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d", path, w.Code)
		}
	}
}

func TestValidatePlate(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		plate       string
		lang        string
		wantValid   bool
		wantMessage string
	}{
		{name: "valid english", plate: "أب1234", wantValid: true, wantMessage: "valid plate"},
		{name: "valid arabic", plate: "أب1234", lang: "ar-SA,ar;q=0.9", wantValid: true, wantMessage: "لوحة صحيحة"},
		{name: "invalid digits", plate: "أب12345", lang: "en-US", wantMessage: "invalid digit count: got 5"},
		{name: "unsupported language falls back", plate: "1234", lang: "fr", wantMessage: "no letters found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodPost, "/api/v1/plates/validate", map[string]string{"plate": tt.plate})
			if tt.lang != "" {
				req.Header.Set("Accept-Language", tt.lang)
			}
			w := s.do(req)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var view validationView
			decode(t, w, &view)
			if view.Valid != tt.wantValid || view.Message != tt.wantMessage {
				t.Errorf("got valid=%v message=%q, want %v %q", view.Valid, view.Message, tt.wantValid, tt.wantMessage)
			}
		})
	}
}

func TestValidatePlateLocalizesIssues(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(http.MethodPost, "/api/v1/plates/validate?lang=ar", map[string]string{"plate": "ثخذ123"}))
	var view validationView
	decode(t, w, &view)
	if view.Valid || view.Language != "ar" || len(view.Errors) != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Errors[0].Code != "disallowed_letter" || !strings.Contains(view.Errors[0].Message, "ث") {
		t.Errorf("unexpected error: %+v", view.Errors[0])
	}
}

func TestValidatePlateRequiresBody(t *testing.T) {
	s := newTestServer(t)
	w := s.do(jsonRequest(http.MethodPost, "/api/v1/plates/validate", map[string]string{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSuggestAndLetters(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(http.MethodPost, "/api/v1/plates/suggest", map[string]string{"plate": "JX 55"}))
	var suggest struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, w, &suggest)
	if len(suggest.Suggestions) != 1 || suggest.Suggestions[0] != "حص 55" {
		t.Errorf("suggestions = %v", suggest.Suggestions)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/plates/letters", nil))
	var letters []map[string]string
	decode(t, w, &letters)
	if len(letters) != 17 {
		t.Errorf("expected 17 letters, got %d", len(letters))
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(http.MethodPost, "/api/v1/vehicles", map[string]string{"plate_number": "AB1"}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}

	req := jsonRequest(http.MethodPost, "/api/v1/vehicles", map[string]string{"plate_number": "AB1"})
	req.Header.Set("Authorization", "Bearer "+s.token(t, model.UserRoleViewer))
	if w := s.do(req); w.Code != http.StatusForbidden {
		t.Errorf("viewer: status = %d", w.Code)
	}
}

func TestVehicleAndRecognitionFlow(t *testing.T) {
	s := newTestServer(t)
	admin := "Bearer " + s.token(t, model.UserRoleAdmin)

	req := jsonRequest(http.MethodPost, "/api/v1/vehicles", map[string]string{"plate_number": "أ ب 1234", "owner_name": "سالم"})
	req.Header.Set("Authorization", admin)
	w := s.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body = %s", w.Code, w.Body.String())
	}

	req = jsonRequest(http.MethodPost, "/api/v1/vehicles", map[string]string{"plate_number": "ث 12"})
	req.Header.Set("Authorization", admin)
	if w := s.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("invalid plate: status = %d", w.Code)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?plate=AB1234", nil))
	var vehicles []service.VehicleInfo
	decode(t, w, &vehicles)
	if len(vehicles) != 1 || vehicles[0].OwnerName != "سالم" {
		t.Fatalf("vehicles = %+v", vehicles)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, _ := form.CreateFormFile("upload", "gate.jpg")
	_, _ = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	_ = form.WriteField("location", "B2")
	_ = form.Close()

	req = httptest.NewRequest(http.MethodPost, "/api/v1/recognitions", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", admin)
	w = s.do(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("recognition status = %d, body = %s", w.Code, w.Body.String())
	}
	var result recognition.ProcessResult
	decode(t, w, &result)
	if !result.Registered || result.ViolationID == nil {
		t.Fatalf("unexpected recognition result: %+v", result)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/violations?plate=AB1234", nil))
	var violations []service.ViolationInfo
	decode(t, w, &violations)
	if len(violations) != 1 || violations[0].Location != "B2" {
		t.Fatalf("violations = %+v", violations)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/violations/"+result.ViolationID.String()+"/processed", nil)
	req.Header.Set("Authorization", admin)
	if w := s.do(req); w.Code != http.StatusOK {
		t.Errorf("processed status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/violations/"+uuid.NewString()+"/processed", nil)
	req.Header.Set("Authorization", admin)
	if w := s.do(req); w.Code != http.StatusNotFound {
		t.Errorf("unknown violation status = %d", w.Code)
	}
}

func TestListViolationsBadTime(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/violations?from=yesterday", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if env := decode(t, w, nil); env.Error == "" {
		t.Error("expected error message")
	}
}

func TestListAndGetVehicles(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, p := range []string{"أ ب 1234", "ك ل 99"} {
		if _, err := s.svc.UpsertVehicle(ctx, service.VehicleInput{PlateNumber: p}); err != nil {
			t.Fatalf("register %s: %v", p, err)
		}
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?limit=10", nil))
	var vehicles []service.VehicleInfo
	decode(t, w, &vehicles)
	if w.Code != http.StatusOK || len(vehicles) != 2 {
		t.Fatalf("list status = %d, vehicles = %+v", w.Code, vehicles)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?plate="+url.QueryEscape("أب"), nil))
	var found []service.VehicleInfo
	decode(t, w, &found)
	if len(found) != 1 || found[0].PlateKey != "AB1234" {
		t.Errorf("arabic fragment search = %+v", found)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/"+vehicles[0].ID, nil))
	var one service.VehicleInfo
	decode(t, w, &one)
	if w.Code != http.StatusOK || one.ID != vehicles[0].ID {
		t.Errorf("get status = %d, vehicle = %+v", w.Code, one)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "unknown id", path: "/api/v1/vehicles/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "bad id", path: "/api/v1/vehicles/not-a-uuid", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(httptest.NewRequest(http.MethodGet, tt.path, nil)); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.svc.UpsertVehicle(ctx, service.VehicleInput{PlateNumber: "AB1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := s.svc.ProcessReading(ctx, &recognition.Reading{Plate: "AB1234"}, recognition.ProcessOptions{RecordViolation: true})
	if err != nil {
		t.Fatalf("ProcessReading: %v", err)
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats?top=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var stats service.StatsInfo
	decode(t, w, &stats)
	if stats.TotalVehicles != 1 || stats.TotalViolations != 1 || stats.TotalFines != 1000 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.ByType) != 1 || stats.ByType[0].ViolationType != "parking" {
		t.Errorf("ByType = %+v", stats.ByType)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	path := filepath.Join(t.TempDir(), "gate.jpg")
	if err := os.WriteFile(path, jpeg, 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	id, err := s.svc.IngestSnapshot(ctx, path, service.IngestOptions{})
	if err != nil {
		t.Fatalf("IngestSnapshot: %v", err)
	}

	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}

	viewer := "Bearer " + s.token(t, model.UserRoleViewer)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots?limit=5", nil)
	req.Header.Set("Authorization", viewer)
	w := s.do(req)
	var snapshots []service.SnapshotInfo
	decode(t, w, &snapshots)
	if len(snapshots) != 1 || snapshots[0].ID != id.String() {
		t.Fatalf("snapshots = %+v", snapshots)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/"+id.String()+"/image", nil)
	req.Header.Set("Authorization", viewer)
	w = s.do(req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" || !bytes.Equal(w.Body.Bytes(), jpeg) {
		t.Errorf("image: status = %d, type = %q, size = %d", w.Code, w.Header().Get("Content-Type"), w.Body.Len())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/"+uuid.NewString()+"/image", nil)
	req.Header.Set("Authorization", viewer)
	if w := s.do(req); w.Code != http.StatusNotFound {
		t.Errorf("unknown snapshot: status = %d", w.Code)
	}
}
