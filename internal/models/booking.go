package models

import "time"

// UserSnapshot is the contact info captured at booking time. It is an
// immutable copy, not a live reference to the profile.
type UserSnapshot struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	ContactID   string `json:"contact_id"`
}

type Booking struct {
	ID           string       `json:"id"`
	TimeSlot     int64        `json:"time_slot"` // epoch milliseconds
	Status       string       `json:"status"`    // booked, cancelled
	UserID       string       `json:"user_id"`
	Services     []string     `json:"services"`
	UserSnapshot UserSnapshot `json:"user_snapshot"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	CanceledAt   *time.Time   `json:"canceled_at,omitempty"`
	CanceledBy   string       `json:"canceled_by,omitempty"` // user, admin
}

// SlotTime returns the booking's slot as a time.Time in the given location.
func (b *Booking) SlotTime(loc *time.Location) time.Time {
	return time.UnixMilli(b.TimeSlot).In(loc)
}

// PublicSlot is the availability lock record keyed by slot instant.
// Its existence is the single source of truth for "this slot is unavailable";
// IsBlocked is true only when the record was placed by an administrative block.
type PublicSlot struct {
	TimeSlot  int64     `json:"time_slot"`
	LockedAt  time.Time `json:"locked_at"`
	IsBlocked bool      `json:"is_blocked"`
	Note      string    `json:"note,omitempty"`
}
