package db

import (
	"fmt"

	"gorm.io/gorm"

	"plate-service/internal/config"
)

var postgresStatements = []string{
	// vehicles: the residents' registry, keyed by the canonical Latin plate key
	`CREATE TABLE IF NOT EXISTS vehicles (
		id              UUID PRIMARY KEY,
		plate_number    TEXT NOT NULL,
		plate_key       TEXT NOT NULL,
		owner_name      TEXT,
		owner_id_number TEXT,
		vehicle_type    TEXT,
		make            TEXT,
		model           TEXT,
		color           TEXT,
		year            INT,
		unit_type       TEXT,
		building        TEXT,
		apartment       TEXT,
		sticker_number  TEXT,
		sticker_status  TEXT,
		sticker_date    TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_vehicles_plate_key ON vehicles(plate_key);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_plate_number ON vehicles(plate_number);`,

	`CREATE TABLE IF NOT EXISTS violations (
		id              UUID PRIMARY KEY,
		vehicle_id      UUID REFERENCES vehicles(id) ON DELETE SET NULL,
		plate           TEXT NOT NULL,
		plate_key       TEXT NOT NULL,
		violation_type  TEXT NOT NULL,
		violation_date  TIMESTAMPTZ NOT NULL,
		fine_amount     NUMERIC(10,2) NOT NULL DEFAULT 0,
		officer_name    TEXT,
		location        TEXT,
		image_url       TEXT,
		processed       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_vehicle_id ON violations(vehicle_id);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_plate_key_date ON violations(plate_key, violation_date DESC);`,

	`CREATE TABLE IF NOT EXISTS vehicle_snapshots (
		id               UUID PRIMARY KEY,
		snapshot_ref     TEXT,
		camera_id        TEXT,
		captured_at      TIMESTAMPTZ NOT NULL,
		plate_text       TEXT,
		plate_key        TEXT,
		plate_valid      BOOLEAN NOT NULL DEFAULT FALSE,
		plate_confidence NUMERIC(5,4),
		makes_models     JSONB,
		colors           JSONB,
		bbox             JSONB,
		raw_response     JSONB,
		image_url        TEXT,
		image_data       BYTEA,
		image_mime       TEXT,
		image_size       BIGINT,
		image_sha256     TEXT,
		meta             JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_snapshots_captured_at ON vehicle_snapshots(captured_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_snapshots_plate_key ON vehicle_snapshots(plate_key);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_snapshots_sha ON vehicle_snapshots(image_sha256);`,
}

// SQLite has no UUID, JSONB or TIMESTAMPTZ; ids and JSON are stored as text.
var sqliteStatements = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id              TEXT PRIMARY KEY,
		plate_number    TEXT NOT NULL,
		plate_key       TEXT NOT NULL,
		owner_name      TEXT,
		owner_id_number TEXT,
		vehicle_type    TEXT,
		make            TEXT,
		model           TEXT,
		color           TEXT,
		year            INTEGER,
		unit_type       TEXT,
		building        TEXT,
		apartment       TEXT,
		sticker_number  TEXT,
		sticker_status  TEXT,
		sticker_date    TEXT,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_vehicles_plate_key ON vehicles(plate_key);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_plate_number ON vehicles(plate_number);`,

	`CREATE TABLE IF NOT EXISTS violations (
		id              TEXT PRIMARY KEY,
		vehicle_id      TEXT REFERENCES vehicles(id) ON DELETE SET NULL,
		plate           TEXT NOT NULL,
		plate_key       TEXT NOT NULL,
		violation_type  TEXT NOT NULL,
		violation_date  DATETIME NOT NULL,
		fine_amount     REAL NOT NULL DEFAULT 0,
		officer_name    TEXT,
		location        TEXT,
		image_url       TEXT,
		processed       BOOLEAN NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_vehicle_id ON violations(vehicle_id);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_plate_key_date ON violations(plate_key, violation_date DESC);`,

	`CREATE TABLE IF NOT EXISTS vehicle_snapshots (
		id               TEXT PRIMARY KEY,
		snapshot_ref     TEXT,
		camera_id        TEXT,
		captured_at      DATETIME NOT NULL,
		plate_text       TEXT,
		plate_key        TEXT,
		plate_valid      BOOLEAN NOT NULL DEFAULT 0,
		plate_confidence REAL,
		makes_models     TEXT,
		colors           TEXT,
		bbox             TEXT,
		raw_response     TEXT,
		image_url        TEXT,
		image_data       BLOB,
		image_mime       TEXT,
		image_size       INTEGER,
		image_sha256     TEXT,
		meta             TEXT,
		created_at       DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_snapshots_captured_at ON vehicle_snapshots(captured_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_snapshots_plate_key ON vehicle_snapshots(plate_key);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_snapshots_sha ON vehicle_snapshots(image_sha256);`,
}

func runMigrations(db *gorm.DB, driver string) error {
	statements := postgresStatements
	if driver == config.DriverSQLite {
		statements = sqliteStatements
	}
	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
