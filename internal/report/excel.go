// Package report renders booking exports.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"turfslot/internal/models"
	"turfslot/internal/slots"
)

// sheet names are capped by Excel.
const maxSheetName = 31

// Writer builds an xlsx workbook sheet by sheet.
type Writer struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// AddSheet adds a new sheet with the given name.
func (w *Writer) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *Writer) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	first := w.currentRow
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil
	}
	startCell, _ := excelize.CoordinatesToCellName(1, first)
	endCell, _ := excelize.CoordinatesToCellName(len(columns), first)
	_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *Writer) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

// Save writes the workbook to wr.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *Writer) Close() error {
	return w.file.Close()
}

var bookingColumns = []string{
	"ID", "Reference", "Sport", "Start", "End", "Slots", "Duration (h)",
	"Price", "Status", "User", "Special requests", "Created at",
}

// WriteDayBookings writes a turf's bookings for one date to out. The first
// sheet lists bookings, the second shows the free runs per sport.
func WriteDayBookings(out io.Writer, turf models.Turf, date string, bookings []models.SlotBooking) error {
	w := NewWriter()
	defer w.Close()

	if err := w.AddSheet("Bookings " + date); err != nil {
		return err
	}
	if err := w.WriteHeader(bookingColumns); err != nil {
		return err
	}

	sorted := append([]models.SlotBooking(nil), bookings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SportID != sorted[j].SportID {
			return sorted[i].SportID < sorted[j].SportID
		}
		return sorted[i].StartSlotValue < sorted[j].StartSlotValue
	})

	booked := make(map[int64]slots.Set)
	for _, b := range sorted {
		if err := w.WriteRow([]any{
			b.ID,
			b.Reference,
			sportName(turf, b),
			b.StartTime,
			b.EndTime,
			b.SlotCount(),
			b.Duration,
			b.TotalPrice,
			models.StatusText(b.Status),
			b.UserID,
			b.SpecialRequests,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
		if !b.IsActive() {
			continue
		}
		if booked[b.SportID] == nil {
			booked[b.SportID] = slots.NewSet()
		}
		booked[b.SportID].AddRange(b.StartSlotValue, b.EndSlotValue)
	}

	if err := w.AddSheet("Free " + date); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Sport", "From", "To", "Slots"}); err != nil {
		return err
	}
	for _, sp := range turf.Sports {
		day := slots.Generate(time.Time{}, booked[sp.ID])
		for _, run := range day.FreeRuns() {
			if err := w.WriteRow([]any{
				sp.Name,
				run[0].StartTime,
				run[len(run)-1].EndTime,
				len(run),
			}); err != nil {
				return err
			}
		}
	}

	return w.Save(out)
}

func sportName(turf models.Turf, b models.SlotBooking) string {
	if b.SportName != "" {
		return b.SportName
	}
	if sp, ok := turf.Sport(b.SportID); ok {
		return sp.Name
	}
	return fmt.Sprintf("sport %d", b.SportID)
}
