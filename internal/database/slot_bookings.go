package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"turfslot/internal/models"
)

const bookingColumns = `id, reference, user_id, turf_id, turf_name, sport_id, sport_name, date,
	start_time, end_time, duration, start_slot_value, end_slot_value, total_price,
	status, special_requests, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.SlotBooking, error) {
	var b models.SlotBooking
	err := row.Scan(
		&b.ID, &b.Reference, &b.UserID, &b.TurfID, &b.TurfName, &b.SportID, &b.SportName, &b.Date,
		&b.StartTime, &b.EndTime, &b.Duration, &b.StartSlotValue, &b.EndSlotValue, &b.TotalPrice,
		&b.Status, &b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.StatusText = models.StatusText(b.Status)
	return &b, nil
}

// CreateSlotBooking stores b if no active booking of the same turf, sport and
// date overlaps its slot range. On success b gets its id, reference and timestamps.
func (db *DB) CreateSlotBooking(ctx context.Context, b *models.SlotBooking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var start, end string
	err = tx.QueryRowContext(ctx, `
		SELECT start_time, end_time FROM slot_bookings
		WHERE turf_id = ? AND sport_id = ? AND date = ? AND status != ?
		  AND start_slot_value <= ? AND end_slot_value >= ?
		ORDER BY start_slot_value LIMIT 1`,
		b.TurfID, b.SportID, b.Date, models.StatusCancelled, b.EndSlotValue, b.StartSlotValue,
	).Scan(&start, &end)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s-%s is already booked", ErrSlotConflict, start, end)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check overlap: %w", err)
	}

	now := time.Now()
	b.Reference = uuid.New().String()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.StatusText = models.StatusText(b.Status)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO slot_bookings (
			reference, user_id, turf_id, turf_name, sport_id, sport_name, date,
			start_time, end_time, duration, start_slot_value, end_slot_value, total_price,
			status, special_requests, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.UserID, b.TurfID, b.TurfName, b.SportID, b.SportName, b.Date,
		b.StartTime, b.EndTime, b.Duration, b.StartSlotValue, b.EndSlotValue, b.TotalPrice,
		b.Status, b.SpecialRequests, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.Debug().
		Int64("booking_id", b.ID).
		Int64("turf_id", b.TurfID).
		Str("date", b.Date).
		Int("start_slot", b.StartSlotValue).
		Int("end_slot", b.EndSlotValue).
		Msg("Slot booking stored")
	return nil
}

// ListActiveBookings returns non-cancelled bookings for a turf, sport and date.
func (db *DB) ListActiveBookings(ctx context.Context, turfID, sportID int64, date string) ([]models.SlotBooking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM slot_bookings
		WHERE turf_id = ? AND sport_id = ? AND date = ? AND status != ?
		ORDER BY start_slot_value`,
		turfID, sportID, date, models.StatusCancelled)
}

// ListBookingsOnDate returns every booking of a turf on date, all sports and statuses.
func (db *DB) ListBookingsOnDate(ctx context.Context, turfID int64, date string) ([]models.SlotBooking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM slot_bookings
		WHERE turf_id = ? AND date = ?
		ORDER BY sport_id, start_slot_value`,
		turfID, date)
}

// ListUserBookings returns a user's bookings, newest date first.
func (db *DB) ListUserBookings(ctx context.Context, userID int64) ([]models.SlotBooking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM slot_bookings
		WHERE user_id = ?
		ORDER BY date DESC, start_slot_value`,
		userID)
}

// GetSlotBooking loads one booking by id.
func (db *DB) GetSlotBooking(ctx context.Context, id int64) (*models.SlotBooking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM slot_bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// CancelSlotBooking marks a booking cancelled, freeing its slots. A non-zero
// userID must own the booking.
func (db *DB) CancelSlotBooking(ctx context.Context, id, userID int64) (*models.SlotBooking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM slot_bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	if userID != 0 && b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE slot_bookings SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, now, id,
	); err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	b.Status = models.StatusCancelled
	b.StatusText = models.StatusText(b.Status)
	b.UpdatedAt = now
	return b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.SlotBooking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []models.SlotBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
