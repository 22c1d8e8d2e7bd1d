// Package importer reads the residents' parking-sticker registry that
// building management keeps as an Excel workbook.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrPlateColumnMissing = errors.New("plate number column not found")

const (
	HeaderOwnerID     = "رقم الهوية"
	HeaderOwnerName   = "اسم الساكن"
	HeaderStatus      = "حالة"
	HeaderStickerDate = "تاريخ الملصق"
	HeaderPlate       = "رقم لوحة السيارة"
	HeaderVehicleType = "نوع المركبة"
	HeaderUnitType    = "نوع الوحدة"
	HeaderBuilding    = "المبنى"
	HeaderApartment   = "شقة"
)

var knownHeaders = []string{
	HeaderOwnerID,
	HeaderOwnerName,
	HeaderStatus,
	HeaderStickerDate,
	HeaderPlate,
	HeaderVehicleType,
	HeaderUnitType,
	HeaderBuilding,
	HeaderApartment,
}

// StickerRow is one resident vehicle. Row is the 1-based spreadsheet row.
type StickerRow struct {
	Row           int
	OwnerIDNumber string
	OwnerName     string
	Status        string
	StickerDate   string
	PlateNumber   string
	VehicleType   string
	UnitType      string
	Building      string
	Apartment     string
}

type Sheet struct {
	Name           string
	Rows           []StickerRow
	MissingHeaders []string
}

func ReadStickersFile(path, sheet string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

func ReadStickers(r io.Reader, sheet string) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

func readSheet(f *excelize.File, sheet string) (*Sheet, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	columns := make(map[string]int, len(rows[0]))
	for i, cell := range rows[0] {
		columns[strings.TrimSpace(cell)] = i
	}

	result := &Sheet{Name: sheet}
	for _, header := range knownHeaders {
		if _, ok := columns[header]; !ok {
			result.MissingHeaders = append(result.MissingHeaders, header)
		}
	}
	if _, ok := columns[HeaderPlate]; !ok {
		return result, ErrPlateColumnMissing
	}

	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		get := func(header string) string {
			idx, ok := columns[header]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		result.Rows = append(result.Rows, StickerRow{
			Row:           i + 2,
			OwnerIDNumber: get(HeaderOwnerID),
			OwnerName:     get(HeaderOwnerName),
			Status:        get(HeaderStatus),
			StickerDate:   get(HeaderStickerDate),
			PlateNumber:   get(HeaderPlate),
			VehicleType:   get(HeaderVehicleType),
			UnitType:      get(HeaderUnitType),
			Building:      get(HeaderBuilding),
			Apartment:     get(HeaderApartment),
		})
	}

	return result, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
