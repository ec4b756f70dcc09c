package domain

import (
	"context"
	"time"

	"slotnik/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingEngine is the transactional core: every mutating call is a single
// all-or-nothing operation against the slot calendar.
type BookingEngine interface {
	CreateBooking(ctx context.Context, profile *models.UserProfile, timeSlot int64, services []string) (string, error)
	CancelBooking(ctx context.Context, userID, bookingID string, timeSlot int64) error
	AdminDeleteBooking(ctx context.Context, bookingID string, timeSlot int64, userID string) error
	BlockSlot(ctx context.Context, timeSlot int64, note string) error
	UnblockSlot(ctx context.Context, timeSlot int64) error
	BlockDay(ctx context.Context, timeSlots []int64, note string) error
	UnblockDay(ctx context.Context, timeSlots []int64) error
	HasBookingsInSlots(ctx context.Context, timeSlots []int64) (bool, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingsForRange(ctx context.Context, from, to int64) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error)
	GetPublicSlots(ctx context.Context, from, to int64) ([]*models.PublicSlot, error)
}

// ProfileStore is the persistence side of user profiles, outside booking
// transactions.
type ProfileStore interface {
	CreateUserProfile(ctx context.Context, profile *models.UserProfile) error
	GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	UpdateUserContact(ctx context.Context, uid, displayName, phone, contactID string) error
	SetUserBlocked(ctx context.Context, uid string, blocked bool) error
	SetUserRole(ctx context.Context, uid, role string) error
	ListUsers(ctx context.Context) ([]*models.UserProfile, error)
}

// SessionProvider supplies the authenticated principal and the latest
// profile snapshot, pulled synchronously at call time.
type SessionProvider interface {
	Current() (models.Principal, bool)
	Profile() *models.UserProfile
	Refresh(ctx context.Context) error
	UpdateContactHint(displayName, phone, contactID string)
}

// ProfileCache is a display-hint cache plus per-user action rate limiting.
// It is never consulted for eligibility decisions.
type ProfileCache interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	SetProfile(ctx context.Context, profile *models.UserProfile) error
	ClearProfile(ctx context.Context, uid string) error
	CheckRateLimit(ctx context.Context, uid string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier pushes booking events to the shop's admin channel.
type Notifier interface {
	BookingCreated(ctx context.Context, booking *models.Booking) error
	BookingCancelled(ctx context.Context, booking *models.Booking, by string) error
}

// TelegramSender is the subset of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SyncWorker schedules asynchronous mirroring of bookings to the spreadsheet.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID string, booking *models.Booking, status string) error
}

// SheetsWriter applies booking changes to the spreadsheet mirror.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
}
