package recognition

import (
	"time"

	"github.com/google/uuid"

	"plate-service/internal/plate"
)

type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

type VehicleAttributes struct {
	Type  string `json:"type,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Color string `json:"color,omitempty"`
}

// Reading is the best plate candidate returned by the plate-reader API for one image.
type Reading struct {
	Plate       string                 `json:"plate"`
	Score       float64                `json:"score"`
	Region      string                 `json:"region,omitempty"`
	Box         Box                    `json:"box"`
	Vehicle     VehicleAttributes      `json:"vehicle"`
	CameraID    string                 `json:"camera_id,omitempty"`
	SnapshotRef string                 `json:"snapshot_ref,omitempty"`
	CapturedAt  time.Time              `json:"captured_at"`
	Raw         map[string]interface{} `json:"-"`
}

type ProcessOptions struct {
	RecordViolation bool
	ImageURL        string
	Location        string
}

type ProcessResult struct {
	Plate       string       `json:"plate"`
	Key         string       `json:"key"`
	Validation  plate.Result `json:"validation"`
	Registered  bool         `json:"registered"`
	VehicleID   *uuid.UUID   `json:"vehicle_id,omitempty"`
	OwnerName   string       `json:"owner_name,omitempty"`
	ViolationID *uuid.UUID   `json:"violation_id,omitempty"`
}
