package journal

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

var exportColumns = []string{
	"Booking ID", "Sport", "Slot ID", "Date", "Start", "End", "Price",
	"Name", "Email", "Phone", "Telegram ID", "Status", "Recorded At",
}

// ExportExcel writes the latest limit entries as an XLSX workbook.
func (j *Journal) ExportExcel(ctx context.Context, w io.Writer, limit int) (int, error) {
	entries, err := j.Recent(ctx, limit)
	if err != nil {
		return 0, err
	}
	if err := WriteExcel(w, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// WriteExcel renders entries into a single-sheet workbook.
func WriteExcel(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(exportSheet, "A1", end, style)
	}

	for r, e := range entries {
		row := []any{
			e.BookingID, e.Sport, e.SlotID, e.Date, e.StartTime, e.EndTime, e.Price,
			e.UserName, e.UserEmail, e.UserPhone, e.TelegramID, e.Status,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, val); err != nil {
				return fmt.Errorf("row %d: %w", r+2, err)
			}
		}
	}

	return f.Write(w)
}
