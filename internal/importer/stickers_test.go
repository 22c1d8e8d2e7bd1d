package importer

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	return f
}

func workbookBytes(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := buildWorkbook(t, rows)
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestReadStickers(t *testing.T) {
	buf := workbookBytes(t, [][]interface{}{
		{HeaderOwnerID, HeaderOwnerName, HeaderStatus, HeaderStickerDate, HeaderPlate, HeaderVehicleType, HeaderUnitType, HeaderBuilding, HeaderApartment},
		{"1010101010", "سالم", "فعال", "2024-01-10", "أ ب 1234", "سيدان", "سكني", "12", "4"},
		{"", "", "", "", "", "", "", "", ""},
		{"2020202020", " نورة ", "منتهي", "2023-05-01", "ك ل 99", "", "", "7", ""},
	})

	sheet, err := ReadStickers(buf, "")
	if err != nil {
		t.Fatalf("ReadStickers: %v", err)
	}
	if sheet.Name != "Sheet1" {
		t.Errorf("sheet name = %q", sheet.Name)
	}
	if len(sheet.MissingHeaders) != 0 {
		t.Errorf("unexpected missing headers: %v", sheet.MissingHeaders)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected 2 rows (blank skipped), got %d", len(sheet.Rows))
	}

	first := sheet.Rows[0]
	if first.Row != 2 || first.PlateNumber != "أ ب 1234" || first.OwnerName != "سالم" || first.Apartment != "4" {
		t.Errorf("unexpected first row: %+v", first)
	}
	second := sheet.Rows[1]
	if second.Row != 4 || second.OwnerName != "نورة" || second.Building != "7" {
		t.Errorf("unexpected second row: %+v", second)
	}
}

func TestReadStickersMissingHeaders(t *testing.T) {
	buf := workbookBytes(t, [][]interface{}{
		{HeaderPlate, HeaderOwnerName},
		{"AB 1234", "Fahad"},
	})

	sheet, err := ReadStickers(buf, "")
	if err != nil {
		t.Fatalf("ReadStickers: %v", err)
	}
	if len(sheet.MissingHeaders) != len(knownHeaders)-2 {
		t.Errorf("missing headers = %v", sheet.MissingHeaders)
	}
	if len(sheet.Rows) != 1 || sheet.Rows[0].Building != "" {
		t.Errorf("unexpected rows: %+v", sheet.Rows)
	}
}

func TestReadStickersWithoutPlateColumn(t *testing.T) {
	buf := workbookBytes(t, [][]interface{}{
		{HeaderOwnerName},
		{"Fahad"},
	})

	if _, err := ReadStickers(buf, ""); !errors.Is(err, ErrPlateColumnMissing) {
		t.Fatalf("expected ErrPlateColumnMissing, got %v", err)
	}
}

func TestReadStickersFile(t *testing.T) {
	f := buildWorkbook(t, [][]interface{}{
		{HeaderPlate},
		{"س ص 987"},
	})
	path := filepath.Join(t.TempDir(), "stickers.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.Close()

	sheet, err := ReadStickersFile(path, "Sheet1")
	if err != nil {
		t.Fatalf("ReadStickersFile: %v", err)
	}
	if len(sheet.Rows) != 1 || sheet.Rows[0].PlateNumber != "س ص 987" {
		t.Errorf("unexpected rows: %+v", sheet.Rows)
	}

	if _, err := ReadStickersFile(path, "Missing"); err == nil {
		t.Error("expected error for unknown sheet")
	}
}
