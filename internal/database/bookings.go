package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotnik/internal/metrics"
	"slotnik/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, time_slot, status, user_id, services,
       snapshot_name, snapshot_phone, snapshot_contact_id,
       created_at, updated_at, canceled_at, canceled_by`

// CreateBooking atomically claims a slot for the user. The slot lock record
// and the fresh profile read happen inside the same transaction as the
// writes, so two concurrent calls for one slot can never both commit.
//
// Eligibility is always evaluated against the stored profile; the
// caller-supplied profile contributes only the display snapshot.
func (db *DB) CreateBooking(ctx context.Context, profile *models.UserProfile, timeSlot int64, services []string) (string, error) {
	if !db.policy.IsValidSlot(timeSlot) {
		return "", ErrInvalidSlot
	}
	if services == nil {
		services = []string{}
	}
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return "", fmt.Errorf("failed to encode services: %w", err)
	}

	id := uuid.NewString()
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		var locked int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM public_slots WHERE time_slot = ?`, timeSlot).Scan(&locked); err != nil {
			return fmt.Errorf("failed to check slot lock: %w", err)
		}
		if locked > 0 {
			metrics.IncSlotConflict()
			return ErrSlotUnavailable
		}

		stored, err := getUserProfileTx(ctx, tx, profile.UID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		if stored.IsBlocked && stored.Role != models.RoleAdmin {
			return ErrUserBlocked
		}

		now := db.now()
		// A stale pointer to a past slot does not block a new booking; it is
		// simply overwritten below.
		if stored.ActiveBookingTimeSlot != nil && *stored.ActiveBookingTimeSlot > now.UnixMilli() {
			return ErrActiveBookingExists
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (id, time_slot, status, user_id, services,
                    snapshot_name, snapshot_phone, snapshot_contact_id, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, timeSlot, models.StatusBooked, profile.UID, string(servicesJSON),
			profile.DisplayName, profile.PhoneNumber, profile.ContactID, now, now,
		); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO public_slots (time_slot, locked_at, is_blocked) VALUES (?, ?, 0)`,
			timeSlot, now,
		); err != nil {
			return fmt.Errorf("failed to lock slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET active_booking_time_slot = ?,
                    total_bookings = total_bookings + 1,
                    last_booking_at = ?,
                    first_booking_at = COALESCE(first_booking_at, ?),
                    updated_at = ?
             WHERE uid = ?`,
			timeSlot, now, now, now, profile.UID,
		); err != nil {
			return fmt.Errorf("failed to update user profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CancelBooking is the self-service cancellation path: ownership, cutoff and
// monthly quota are all enforced against the transaction's own snapshot and
// clock.
func (db *DB) CancelBooking(ctx context.Context, userID, bookingID string, timeSlot int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		booking, err := getBookingTx(ctx, tx, bookingID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		if booking.UserID != userID {
			return ErrUnauthorized
		}
		if booking.Status != models.StatusBooked {
			return ErrInvalidState
		}

		now := db.now()
		// Lead time must strictly exceed the cutoff.
		if booking.TimeSlot-now.UnixMilli() <= db.limits.CancelCutoff.Milliseconds() {
			return ErrCutoffExceeded
		}

		stored, err := getUserProfileTx(ctx, tx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}

		periodKey := models.PeriodKey(now)
		if stored.CancellationsIn(periodKey) >= db.limits.MonthlyCancelLimit {
			return ErrQuotaExceeded
		}

		if err := markCancelled(ctx, tx, bookingID, now, models.CanceledByUser); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM public_slots WHERE time_slot = ?`, timeSlot); err != nil {
			return fmt.Errorf("failed to release slot: %w", err)
		}

		if stored.MonthlyCancellations == nil {
			stored.MonthlyCancellations = make(map[string]int)
		}
		stored.MonthlyCancellations[periodKey]++
		counts, err := json.Marshal(stored.MonthlyCancellations)
		if err != nil {
			return fmt.Errorf("failed to encode cancellation counts: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET active_booking_time_slot = NULL,
                    total_cancellations = total_cancellations + 1,
                    monthly_cancellations = ?,
                    updated_at = ?
             WHERE uid = ?`,
			string(counts), now, userID,
		); err != nil {
			return fmt.Errorf("failed to update user profile: %w", err)
		}
		return nil
	})
}

// AdminDeleteBooking is the administrative override: no cutoff, no quota, and
// the user's cancellation counters stay untouched.
func (db *DB) AdminDeleteBooking(ctx context.Context, bookingID string, timeSlot int64, userID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := getBookingTx(ctx, tx, bookingID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}

		now := db.now()
		if err := markCancelled(ctx, tx, bookingID, now, models.CanceledByAdmin); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM public_slots WHERE time_slot = ?`, timeSlot); err != nil {
			return fmt.Errorf("failed to release slot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET active_booking_time_slot = NULL, updated_at = ? WHERE uid = ?`,
			now, userID,
		); err != nil {
			return fmt.Errorf("failed to clear active booking pointer: %w", err)
		}
		return nil
	})
}

// HasBookingsInSlots reports whether any active booking claims one of the
// given slots. Required guard before bulk unblocking, which deletes lock
// records unconditionally.
func (db *DB) HasBookingsInSlots(ctx context.Context, timeSlots []int64) (bool, error) {
	if len(timeSlots) == 0 {
		return false, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(timeSlots)), ",")
	args := make([]interface{}, 0, len(timeSlots)+1)
	for _, slot := range timeSlots {
		args = append(args, slot)
	}
	args = append(args, models.StatusBooked)

	var count int
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM bookings WHERE time_slot IN (%s) AND status = ?`, placeholders)
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check bookings in slots: %w", err)
	}
	return count > 0, nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// GetBookingsForRange returns bookings whose slot falls in [from, to),
// ordered by slot.
func (db *DB) GetBookingsForRange(ctx context.Context, from, to int64) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE time_slot >= ? AND time_slot < ?
         ORDER BY time_slot, created_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings for range: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// GetUserBookings returns a user's bookings, newest slot first.
func (db *DB) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE user_id = ? ORDER BY time_slot DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func markCancelled(ctx context.Context, tx *sql.Tx, bookingID string, now time.Time, by string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, canceled_at = ?, canceled_by = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, now, by, now, bookingID,
	); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

func getBookingTx(ctx context.Context, tx *sql.Tx, id string) (*models.Booking, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b          models.Booking
		services   string
		phone      sql.NullString
		contactID  sql.NullString
		canceledAt sql.NullTime
		canceledBy sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.TimeSlot, &b.Status, &b.UserID, &services,
		&b.UserSnapshot.DisplayName, &phone, &contactID,
		&b.CreatedAt, &b.UpdatedAt, &canceledAt, &canceledBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(services), &b.Services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	b.UserSnapshot.Phone = phone.String
	b.UserSnapshot.ContactID = contactID.String
	if canceledAt.Valid {
		t := canceledAt.Time
		b.CanceledAt = &t
	}
	b.CanceledBy = canceledBy.String
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
