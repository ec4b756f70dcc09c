package google

import (
	"io"
	"testing"
	"time"

	"slotnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newOfflineService() *SheetsService {
	logger := zerolog.New(io.Discard)
	return &SheetsService{
		bookingsSheetID: "sheet-1",
		location:        time.UTC,
		logger:          &logger,
		rowCache:        make(map[string]int),
	}
}

func TestBookingRowValues(t *testing.T) {
	s := newOfflineService()

	created := time.Date(2023, 12, 20, 9, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		ID:       "b-1",
		TimeSlot: time.Date(2023, 12, 25, 10, 30, 0, 0, time.UTC).UnixMilli(),
		Status:   models.StatusBooked,
		UserID:   "u-1",
		Services: []string{"cut", "color"},
		UserSnapshot: models.UserSnapshot{
			DisplayName: "Chris",
			Phone:       "0912345678",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}

	row := s.bookingRowValues(booking)
	assert.Len(t, row, 10)
	assert.Equal(t, "b-1", row[0])
	assert.Equal(t, "2023-12-25 10:30", row[1])
	assert.Equal(t, models.StatusBooked, row[2])
	assert.Equal(t, "cut, color", row[6])
	assert.Equal(t, "", row[9])
}

func TestBookingRowValues_CanceledAt(t *testing.T) {
	s := newOfflineService()

	canceled := time.Date(2023, 12, 24, 18, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		ID:         "b-1",
		TimeSlot:   time.Date(2023, 12, 25, 10, 30, 0, 0, time.UTC).UnixMilli(),
		Status:     models.StatusCancelled,
		CanceledAt: &canceled,
		CanceledBy: models.CanceledByUser,
	}

	row := s.bookingRowValues(booking)
	assert.Equal(t, "2023-12-24 18:00:00", row[9])
}

func TestRowCache(t *testing.T) {
	s := newOfflineService()

	_, ok := s.getCachedRow("b-1")
	assert.False(t, ok)

	s.setCachedRow("b-1", 7)
	row, ok := s.getCachedRow("b-1")
	assert.True(t, ok)
	assert.Equal(t, 7, row)

	s.ClearCache()
	_, ok = s.getCachedRow("b-1")
	assert.False(t, ok)
}
