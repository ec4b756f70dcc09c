package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"slotnik/internal/models"
)

const profileColumns = `uid, display_name, phone_number, contact_id, role, is_blocked,
       active_booking_time_slot, monthly_cancellations,
       total_bookings, total_cancellations,
       first_booking_at, last_booking_at, created_at, updated_at`

// CreateUserProfile persists a profile created lazily on first sign-in.
// A concurrent first sign-in is tolerated: the existing row wins.
func (db *DB) CreateUserProfile(ctx context.Context, profile *models.UserProfile) error {
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	if profile.MonthlyCancellations == nil {
		profile.MonthlyCancellations = make(map[string]int)
	}
	counts, err := json.Marshal(profile.MonthlyCancellations)
	if err != nil {
		return fmt.Errorf("failed to encode cancellation counts: %w", err)
	}

	now := db.now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (uid, display_name, phone_number, contact_id, role, is_blocked,
                active_booking_time_slot, monthly_cancellations,
                total_bookings, total_cancellations, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, NULL, ?, 0, 0, ?, ?)
         ON CONFLICT(uid) DO NOTHING`,
		profile.UID, profile.DisplayName, profile.PhoneNumber, profile.ContactID,
		profile.Role, profile.IsBlocked, string(counts), now, now)
	if err != nil {
		return fmt.Errorf("failed to create user profile: %w", err)
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return nil
}

// GetUserProfile returns the authoritative profile for a user id.
func (db *DB) GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE uid = ?`, uid)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return profile, nil
}

// UpdateUserContact persists new default contact info for a user.
func (db *DB) UpdateUserContact(ctx context.Context, uid, displayName, phone, contactID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, phone_number = ?, contact_id = ?, updated_at = ?
         WHERE uid = ?`,
		displayName, phone, contactID, db.now(), uid)
	if err != nil {
		return fmt.Errorf("failed to update user contact: %w", err)
	}
	return checkProfileUpdated(res)
}

// SetUserBlocked flips the administrative ban flag.
func (db *DB) SetUserBlocked(ctx context.Context, uid string, blocked bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET is_blocked = ?, updated_at = ? WHERE uid = ?`,
		blocked, db.now(), uid)
	if err != nil {
		return fmt.Errorf("failed to set user blocked: %w", err)
	}
	return checkProfileUpdated(res)
}

// SetUserRole promotes or demotes a user. Roles come from the admins list in
// config at sign-in time.
func (db *DB) SetUserRole(ctx context.Context, uid, role string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE uid = ?`,
		role, db.now(), uid)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return checkProfileUpdated(res)
}

// ListUsers returns all profiles ordered by most recent booking activity.
func (db *DB) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM users ORDER BY last_booking_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.UserProfile
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func checkProfileUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func getUserProfileTx(ctx context.Context, tx *sql.Tx, uid string) (*models.UserProfile, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE uid = ?`, uid)
	return scanProfile(row)
}

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	var (
		p          models.UserProfile
		phone      sql.NullString
		contactID  sql.NullString
		activeSlot sql.NullInt64
		counts     string
		firstAt    sql.NullTime
		lastAt     sql.NullTime
	)
	err := row.Scan(
		&p.UID, &p.DisplayName, &phone, &contactID, &p.Role, &p.IsBlocked,
		&activeSlot, &counts,
		&p.TotalBookings, &p.TotalCancellations,
		&firstAt, &lastAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PhoneNumber = phone.String
	p.ContactID = contactID.String
	if activeSlot.Valid {
		v := activeSlot.Int64
		p.ActiveBookingTimeSlot = &v
	}
	if err := json.Unmarshal([]byte(counts), &p.MonthlyCancellations); err != nil {
		return nil, fmt.Errorf("failed to decode cancellation counts: %w", err)
	}
	if p.MonthlyCancellations == nil {
		p.MonthlyCancellations = make(map[string]int)
	}
	if firstAt.Valid {
		t := firstAt.Time
		p.FirstBookingAt = &t
	}
	if lastAt.Valid {
		t := lastAt.Time
		p.LastBookingAt = &t
	}
	return &p, nil
}
