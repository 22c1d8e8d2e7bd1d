package db

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"plate-service/internal/config"
)

// New opens the configured database, tunes the pool and applies the
// bootstrap DDL.
func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	if err := cfg.RequireDB(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DB.DSN)
	default:
		dialector = postgres.Open(cfg.DB.DSN)
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(cfg.Environment, log),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DB.Driver, err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.DB.Driver == config.DriverSQLite {
		// one connection keeps :memory: databases alive and serializes writers
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	if err := runMigrations(database, cfg.DB.Driver); err != nil {
		return nil, err
	}

	log.Info().Str("driver", cfg.DB.Driver).Msg("database ready")
	return database, nil
}

func HealthCheck(ctx context.Context, database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// gormWriter forwards gorm's log lines to zerolog.
type gormWriter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.WithLevel(w.level).Str("component", "gorm").Msgf(format, args...)
}

// newGormLogger logs every statement in development and only slow queries
// and errors elsewhere. Lookups that find nothing are not errors.
func newGormLogger(env string, log zerolog.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	writer := gormWriter{log: log, level: zerolog.WarnLevel}
	if env == "development" {
		level = gormlogger.Info
		writer.level = zerolog.DebugLevel
	}
	return gormlogger.New(writer, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
