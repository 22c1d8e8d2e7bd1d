package service

import (
	"context"
	"errors"
	"fmt"

	"plate-service/internal/importer"
	"plate-service/internal/repository"
)

type SkippedRow struct {
	Row    int    `json:"row"`
	Plate  string `json:"plate"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Total    int          `json:"total"`
	Imported int          `json:"imported"`
	Skipped  []SkippedRow `json:"skipped"`
}

// ImportStickers registers every sticker row whose plate validates. With
// dryRun set nothing is written and Imported counts what would be.
func (s *PlateService) ImportStickers(ctx context.Context, rows []importer.StickerRow, dryRun bool) (*ImportReport, error) {
	report := &ImportReport{Total: len(rows), Skipped: []SkippedRow{}}

	for _, row := range rows {
		key, err := registrationKey(row.PlateNumber)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedRow{
				Row:    row.Row,
				Plate:  row.PlateNumber,
				Reason: reason(err),
			})
			continue
		}

		if !dryRun {
			_, err := s.repo.UpsertVehicle(ctx, &repository.Vehicle{
				PlateNumber:   row.PlateNumber,
				PlateKey:      key,
				OwnerName:     row.OwnerName,
				OwnerIDNumber: row.OwnerIDNumber,
				VehicleType:   row.VehicleType,
				UnitType:      row.UnitType,
				Building:      row.Building,
				Apartment:     row.Apartment,
				StickerStatus: row.Status,
				StickerDate:   row.StickerDate,
			})
			if err != nil {
				return report, fmt.Errorf("row %d: %w", row.Row, err)
			}
		}
		report.Imported++
	}

	s.log.Info().
		Int("total", report.Total).
		Int("imported", report.Imported).
		Int("skipped", len(report.Skipped)).
		Bool("dry_run", dryRun).
		Msg("sticker import finished")

	return report, nil
}

func reason(err error) string {
	msg := err.Error()
	prefix := ErrInvalidInput.Error() + ": "
	if errors.Is(err, ErrInvalidInput) && len(msg) > len(prefix) {
		return msg[len(prefix):]
	}
	return msg
}
