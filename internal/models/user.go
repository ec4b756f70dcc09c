package models

import (
	"fmt"
	"time"
)

// Principal is the authenticated identity supplied by the session provider.
type Principal struct {
	UID         string
	DisplayName string
	Contact     string
}

// UserProfile is the per-user eligibility and quota state. It is mutated only
// inside booking transactions; everything outside the store layer works on
// copies.
type UserProfile struct {
	UID                   string         `json:"uid"`
	DisplayName           string         `json:"display_name"`
	PhoneNumber           string         `json:"phone_number"`
	ContactID             string         `json:"contact_id"`
	Role                  string         `json:"role"` // user, admin
	IsBlocked             bool           `json:"is_blocked"`
	ActiveBookingTimeSlot *int64         `json:"active_booking_time_slot"` // epoch ms, nil when no outstanding booking
	MonthlyCancellations  map[string]int `json:"monthly_cancellations"`    // period key -> count
	TotalBookings         int64          `json:"total_bookings"`
	TotalCancellations    int64          `json:"total_cancellations"`
	FirstBookingAt        *time.Time     `json:"first_booking_at"`
	LastBookingAt         *time.Time     `json:"last_booking_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (p *UserProfile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Clone returns a deep copy safe to mutate without touching the original.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.ActiveBookingTimeSlot != nil {
		v := *p.ActiveBookingTimeSlot
		cp.ActiveBookingTimeSlot = &v
	}
	if p.FirstBookingAt != nil {
		v := *p.FirstBookingAt
		cp.FirstBookingAt = &v
	}
	if p.LastBookingAt != nil {
		v := *p.LastBookingAt
		cp.LastBookingAt = &v
	}
	cp.MonthlyCancellations = make(map[string]int, len(p.MonthlyCancellations))
	for k, v := range p.MonthlyCancellations {
		cp.MonthlyCancellations[k] = v
	}
	return &cp
}

// CancellationsIn returns the self-cancellation count recorded for a period.
func (p *UserProfile) CancellationsIn(periodKey string) int {
	if p == nil || p.MonthlyCancellations == nil {
		return 0
	}
	return p.MonthlyCancellations[periodKey]
}

// PeriodKey formats the monthly quota bucket for a given instant, e.g. "2023_12".
func PeriodKey(t time.Time) string {
	return fmt.Sprintf("%04d_%02d", t.Year(), int(t.Month()))
}
