package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"slotnik/internal/calendar"
	"slotnik/internal/domain"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Записи"

// Exporter renders the booking schedule to an xlsx grid: slot times down the
// first column, one column per day, client names in the cells.
type Exporter struct {
	engine domain.BookingEngine
	policy calendar.Policy
	path   string
	logger *zerolog.Logger
}

func NewExporter(engine domain.BookingEngine, policy calendar.Policy, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		engine: engine,
		policy: policy,
		path:   path,
		logger: logger,
	}
}

// ExportSchedule writes the schedule grid for [startDay, endDay] and returns
// the file path.
func (e *Exporter) ExportSchedule(ctx context.Context, startDay, endDay time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	from, _ := e.policy.DayRange(startDay)
	_, to := e.policy.DayRange(endDay)

	bookings, err := e.engine.GetBookingsForRange(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}
	slots, err := e.engine.GetPublicSlots(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting slots: %v", err)
	}

	bySlot := make(map[int64]*models.Booking, len(bookings))
	for _, b := range bookings {
		if b.Status == models.StatusBooked {
			bySlot[b.TimeSlot] = b
		}
	}
	blocked := make(map[int64]string)
	for _, s := range slots {
		if s.IsBlocked {
			note := s.Note
			if note == "" {
				note = "блок"
			}
			blocked[s.TimeSlot] = note
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDay.Format("02.01.2006"), endDay.Format("02.01.2006")))

	dateCols := e.writeDateHeaders(f, startDay, endDay)
	slotRows := e.writeSlotColumn(f, startDay)

	loc := e.policy.Location
	for _, b := range bookings {
		if b.Status != models.StatusBooked {
			continue
		}
		e.setGridCell(f, dateCols, slotRows, b.TimeSlot, loc, b.UserSnapshot.DisplayName)
	}
	for instant, note := range blocked {
		e.setGridCell(f, dateCols, slotRows, instant, loc, note)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 18)
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		startDay.Format("2006-01-02"),
		endDay.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("schedule exported")
	return filePath, nil
}

// writeDateHeaders fills row 2 with one column per day and returns day -> column.
func (e *Exporter) writeDateHeaders(f *excelize.File, startDay, endDay time.Time) map[string]int {
	col := 2
	current := startDay
	dateCols := make(map[string]int)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for !current.After(endDay) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, current.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		dateCols[current.Format("2006-01-02")] = col

		col++
		current = current.AddDate(0, 0, 1)
	}
	return dateCols
}

// writeSlotColumn fills column A with the day's slot times and returns
// "15:04" -> row.
func (e *Exporter) writeSlotColumn(f *excelize.File, day time.Time) map[string]int {
	loc := e.policy.Location
	slotRows := make(map[string]int)
	row := 3
	for _, instant := range e.policy.GenerateDailySlots(day) {
		label := time.UnixMilli(instant).In(loc).Format("15:04")
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, label)
		slotRows[label] = row
		row++
	}
	return slotRows
}

func (e *Exporter) setGridCell(f *excelize.File, dateCols, slotRows map[string]int, instant int64, loc *time.Location, value string) {
	t := time.UnixMilli(instant).In(loc)
	col, okCol := dateCols[t.Format("2006-01-02")]
	row, okRow := slotRows[t.Format("15:04")]
	if !okCol || !okRow {
		return
	}
	cell, _ := excelize.CoordinatesToCellName(col, row)
	_ = f.SetCellValue(sheetName, cell, value)
}
