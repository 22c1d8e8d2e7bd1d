// Command sticker-import loads the residents' sticker workbook into the
// vehicle registry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"plate-service/internal/config"
	"plate-service/internal/db"
	"plate-service/internal/events"
	"plate-service/internal/importer"
	"plate-service/internal/logger"
	"plate-service/internal/repository"
	"plate-service/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sticker-import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "path to the .xlsx sticker registry")
	sheet := fs.String("sheet", "", "sheet name (default: first sheet)")
	dryRun := fs.Bool("dry-run", false, "validate rows without writing")
	report := fs.String("report", "", "write the import report as JSON to this path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *file == "" {
		fmt.Fprintln(stderr, "usage: sticker-import -file stickers.xlsx [-sheet name] [-dry-run] [-report out.json]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	log := logger.NewWithWriter(stderr, cfg.Environment, cfg.LogLevel)

	parsed, err := importer.ReadStickersFile(*file, *sheet)
	if err != nil {
		if errors.Is(err, importer.ErrPlateColumnMissing) && parsed != nil {
			log.Error().Strs("missing_headers", parsed.MissingHeaders).Msg("sheet has no plate column")
		}
		log.Error().Err(err).Str("file", *file).Msg("failed to read sticker workbook")
		return 1
	}
	if len(parsed.MissingHeaders) > 0 {
		log.Warn().Strs("missing_headers", parsed.MissingHeaders).Msg("some columns are missing")
	}
	log.Info().Str("sheet", parsed.Name).Int("rows", len(parsed.Rows)).Msg("workbook read")

	var repo *repository.PlateRepository
	if !*dryRun {
		database, err := db.New(cfg, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect database")
			return 1
		}
		repo = repository.NewPlateRepository(database)
	}

	svc := service.NewPlateService(repo, nil, nil, events.Nop{}, cfg, log)
	result, err := svc.ImportStickers(context.Background(), parsed.Rows, *dryRun)
	if err != nil {
		log.Error().Err(err).Msg("import failed")
		return 1
	}

	for _, skipped := range result.Skipped {
		log.Warn().
			Int("row", skipped.Row).
			Str("plate", skipped.Plate).
			Str("reason", skipped.Reason).
			Msg("row skipped")
	}

	if *report != "" {
		if err := writeReport(*report, result); err != nil {
			log.Error().Err(err).Str("path", *report).Msg("failed to write report")
			return 1
		}
	}

	fmt.Fprintf(stdout, "Imported: %d/%d (skipped %d)\n", result.Imported, result.Total, len(result.Skipped))
	return 0
}

func writeReport(path string, report *service.ImportReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
