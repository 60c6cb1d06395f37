package models

import "time"

// Booking statuses as carried in the numeric status field.
const (
	StatusPending   = 0
	StatusConfirmed = 1
	StatusCancelled = 2
)

// StatusText returns a human-readable status label.
func StatusText(status int) string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SlotBookingRequest is the payload sent to create a slot booking.
type SlotBookingRequest struct {
	TurfID          int64   `json:"turfId"`
	SportID         int64   `json:"sportId"`
	UserID          int64   `json:"userId,omitempty"`
	Date            string  `json:"date"`      // YYYY-MM-DD
	StartTime       string  `json:"startTime"` // HH:MM
	EndTime         string  `json:"endTime"`   // HH:MM
	Duration        float64 `json:"duration"`  // hours
	StartSlotValue  int     `json:"start_slot_value"`
	EndSlotValue    int     `json:"end_slot_value"`
	TotalPrice      float64 `json:"totalPrice"`
	Status          int     `json:"status"`
	SpecialRequests string  `json:"specialRequests"`
	SportType       string  `json:"sportType,omitempty"`
}

// SlotBooking is the server's authoritative booking record.
type SlotBooking struct {
	ID              int64     `json:"id"`
	Reference       string    `json:"reference"`
	UserID          int64     `json:"user_id"`
	TurfID          int64     `json:"turf_id"`
	TurfName        string    `json:"turf_name,omitempty"`
	SportID         int64     `json:"sport_id"`
	SportName       string    `json:"sport_name,omitempty"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Duration        float64   `json:"duration"`
	StartSlotValue  int       `json:"start_slot_value"`
	EndSlotValue    int       `json:"end_slot_value"`
	TotalPrice      float64   `json:"total_price"`
	Status          int       `json:"status"`
	StatusText      string    `json:"status_text"`
	SpecialRequests string    `json:"special_requests"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still occupies its slots.
func (b *SlotBooking) IsActive() bool {
	return b.Status != StatusCancelled
}

// SlotCount returns the number of half-hour slots the booking covers.
func (b *SlotBooking) SlotCount() int {
	return b.EndSlotValue - b.StartSlotValue + 1
}

// OverlapsSlots checks if the booking covers any slot in [start, end].
func (b *SlotBooking) OverlapsSlots(start, end int) bool {
	return b.StartSlotValue <= end && start <= b.EndSlotValue
}
