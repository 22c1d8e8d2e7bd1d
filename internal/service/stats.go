package service

import (
	"context"
	"fmt"
	"time"
)

const (
	statsMonths     = 12
	defaultTopLimit = 10
)

type TypeCount struct {
	ViolationType string `json:"violation_type"`
	Count         int64  `json:"count"`
}

type ViolatorCount struct {
	VehicleID      string `json:"vehicle_id"`
	PlateNumber    string `json:"plate_number"`
	OwnerName      string `json:"owner_name,omitempty"`
	ViolationCount int64  `json:"violation_count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type StatsInfo struct {
	TotalVehicles   int64           `json:"total_vehicles"`
	TotalViolations int64           `json:"total_violations"`
	OpenViolations  int64           `json:"open_violations"`
	TotalSnapshots  int64           `json:"total_snapshots"`
	TotalFines      float64         `json:"total_fines"`
	ByType          []TypeCount     `json:"by_type"`
	TopViolators    []ViolatorCount `json:"top_violators"`
	Monthly         []MonthCount    `json:"monthly"`
}

// Stats summarizes the registry: totals, violations by type, the vehicles
// with most violations and monthly counts for the last twelve months.
func (s *PlateService) Stats(ctx context.Context, topLimit int) (*StatsInfo, error) {
	if topLimit <= 0 {
		topLimit = defaultTopLimit
	}
	since := time.Now().UTC().AddDate(0, -statsMonths, 0)

	stats, err := s.repo.Stats(ctx, since, topLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute stats")
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	info := &StatsInfo{
		TotalVehicles:   stats.TotalVehicles,
		TotalViolations: stats.TotalViolations,
		OpenViolations:  stats.OpenViolations,
		TotalSnapshots:  stats.TotalSnapshots,
		TotalFines:      stats.TotalFines,
		ByType:          make([]TypeCount, 0, len(stats.ByType)),
		TopViolators:    make([]ViolatorCount, 0, len(stats.TopViolators)),
		Monthly:         make([]MonthCount, 0, len(stats.Monthly)),
	}
	for _, t := range stats.ByType {
		info.ByType = append(info.ByType, TypeCount{ViolationType: t.ViolationType, Count: t.Count})
	}
	for _, v := range stats.TopViolators {
		info.TopViolators = append(info.TopViolators, ViolatorCount{
			VehicleID:      v.VehicleID.String(),
			PlateNumber:    v.PlateNumber,
			OwnerName:      v.OwnerName,
			ViolationCount: v.ViolationCount,
		})
	}
	for _, m := range stats.Monthly {
		info.Monthly = append(info.Monthly, MonthCount{Month: m.Month, Count: m.Count})
	}
	return info, nil
}
