package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"slotnik/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const bookingsSheet = "Bookings"

var errRowNotFound = errors.New("booking row not found")

// SheetsService mirrors bookings into a Google spreadsheet. Row positions are
// cached per booking id to avoid scanning the ID column on every write.
type SheetsService struct {
	service         *sheets.Service
	bookingsSheetID string
	location        *time.Location
	logger          *zerolog.Logger

	cacheMu  sync.RWMutex
	rowCache map[string]int
}

func NewSheetsService(credentialsFile, bookingsSheetID string, loc *time.Location, logger *zerolog.Logger) (*SheetsService, error) {
	ctx := context.Background()

	// Сервисный аккаунт: JWT из файла учетных данных
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	if loc == nil {
		loc = time.Local
	}

	service := &SheetsService{
		service:         srv,
		bookingsSheetID: bookingsSheetID,
		location:        loc,
		logger:          logger,
		rowCache:        make(map[string]int),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.WarmUpCache(ctx); err != nil {
			logger.Warn().Err(err).Msg("sheets cache warmup failed")
		}
	}()

	return service, nil
}

// TestConnection reads one cell to verify access to the spreadsheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.bookingsSheetID, bookingsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// ServiceAccountEmail returns the client email from the credentials file, for
// sharing the spreadsheet with the right account.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.bookingsSheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id != "" && id != "ID" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

func (s *SheetsService) bookingRowValues(booking *models.Booking) []interface{} {
	canceledAt := ""
	if booking.CanceledAt != nil {
		canceledAt = booking.CanceledAt.In(s.location).Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		booking.ID,
		booking.SlotTime(s.location).Format("2006-01-02 15:04"),
		booking.Status,
		booking.UserID,
		booking.UserSnapshot.DisplayName,
		booking.UserSnapshot.Phone,
		strings.Join(booking.Services, ", "),
		booking.CreatedAt.In(s.location).Format("2006-01-02 15:04:05"),
		booking.UpdatedAt.In(s.location).Format("2006-01-02 15:04:05"),
		canceledAt,
	}
}

func (s *SheetsService) appendBooking(ctx context.Context, booking *models.Booking) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{s.bookingRowValues(booking)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.bookingsSheetID, bookingsSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpsertBooking updates an existing booking row or appends a new one.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}

	rowIdx, err := s.FindBookingRow(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.appendBooking(ctx, booking)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:J%d", bookingsSheet, rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{s.bookingRowValues(booking)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.bookingsSheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// UpdateBookingStatus updates the status and updated-at cells of a booking row.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	rowIdx, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!C%d:C%d", bookingsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.bookingsSheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	now := time.Now().In(s.location).Format("2006-01-02 15:04:05")
	updatedRange := fmt.Sprintf("%s!I%d:I%d", bookingsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.bookingsSheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{now}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// FindBookingRow locates the 1-based row index for a booking id in column A.
func (s *SheetsService) FindBookingRow(ctx context.Context, bookingID string) (int, error) {
	if bookingID == "" {
		return 0, fmt.Errorf("booking id is required")
	}

	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.bookingsSheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id == bookingID {
			rowIdx := i + 1 // values are zero-based, sheet rows are 1-based
			s.setCachedRow(bookingID, rowIdx)
			return rowIdx, nil
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache drops the row index cache; the next write rescans the sheet.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}
