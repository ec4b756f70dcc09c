package database

import (
	"context"
	"database/sql"
	"fmt"

	"slotnik/internal/models"
)

// BlockSlot places an administrative lock on a slot. An existing lock record
// is overwritten, so callers must run the bookings guard first if they care.
func (db *DB) BlockSlot(ctx context.Context, timeSlot int64, note string) error {
	if !db.policy.IsValidSlot(timeSlot) {
		return ErrInvalidSlot
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO public_slots (time_slot, locked_at, is_blocked, note)
         VALUES (?, ?, 1, ?)`,
		timeSlot, db.now(), note)
	if err != nil {
		return fmt.Errorf("failed to block slot: %w", err)
	}
	return nil
}

// UnblockSlot deletes the lock record unconditionally, whether it was placed
// by an admin block or a real booking.
func (db *DB) UnblockSlot(ctx context.Context, timeSlot int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM public_slots WHERE time_slot = ?`, timeSlot)
	if err != nil {
		return fmt.Errorf("failed to unblock slot: %w", err)
	}
	return nil
}

// BlockDay writes lock records for a batch of slots as one all-or-nothing
// batched write. No read-then-write conflict detection applies here.
func (db *DB) BlockDay(ctx context.Context, timeSlots []int64, note string) error {
	for _, slot := range timeSlots {
		if !db.policy.IsValidSlot(slot) {
			return ErrInvalidSlot
		}
	}
	now := db.now()
	return db.runTx(ctx, func(tx *sql.Tx) error {
		for _, slot := range timeSlots {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO public_slots (time_slot, locked_at, is_blocked, note)
                 VALUES (?, ?, 1, ?)`,
				slot, now, note); err != nil {
				return fmt.Errorf("failed to block slot %d: %w", slot, err)
			}
		}
		return nil
	})
}

// UnblockDay deletes the lock records for a batch of slots as one batched
// write, unconditionally.
func (db *DB) UnblockDay(ctx context.Context, timeSlots []int64) error {
	return db.runTx(ctx, func(tx *sql.Tx) error {
		for _, slot := range timeSlots {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM public_slots WHERE time_slot = ?`, slot); err != nil {
				return fmt.Errorf("failed to unblock slot %d: %w", slot, err)
			}
		}
		return nil
	})
}

// GetPublicSlots returns the lock records with slots in [from, to), ordered by
// slot. The presentation layer renders these as unavailable.
func (db *DB) GetPublicSlots(ctx context.Context, from, to int64) ([]*models.PublicSlot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT time_slot, locked_at, is_blocked, note FROM public_slots
         WHERE time_slot >= ? AND time_slot < ? ORDER BY time_slot`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get public slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.PublicSlot
	for rows.Next() {
		var (
			s    models.PublicSlot
			note sql.NullString
		)
		if err := rows.Scan(&s.TimeSlot, &s.LockedAt, &s.IsBlocked, &note); err != nil {
			return nil, fmt.Errorf("failed to scan public slot: %w", err)
		}
		s.Note = note.String
		slots = append(slots, &s)
	}
	return slots, rows.Err()
}
