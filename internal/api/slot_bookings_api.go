package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"turfslot/internal/catalog"
	"turfslot/internal/database"
	"turfslot/internal/events"
	"turfslot/internal/metrics"
	"turfslot/internal/models"
	"turfslot/internal/slots"
)

const (
	dateLayout            = "2006-01-02"
	maxSpecialRequestsLen = 500
	priceTolerance        = 0.01
)

// BookedSlotsRequest is the body of POST /api/v1/slot-bookings/turf/{turfID}.
type BookedSlotsRequest struct {
	SportID int64  `json:"sport_id"`
	Date    string `json:"date"`
}

// BookedSlot is one active booking range on a turf.
type BookedSlot struct {
	ID             int64  `json:"id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	StartSlotValue int    `json:"start_slot_value"`
	EndSlotValue   int    `json:"end_slot_value"`
	Status         int    `json:"status"`
}

// CancelRequest is the optional body of PUT /api/v1/slot-bookings/{id}/cancel.
type CancelRequest struct {
	UserID int64 `json:"user_id"`
}

// handleBookedSlots returns the active booking ranges for a turf, sport and date.
// POST /api/v1/slot-bookings/turf/{turfID}
func (s *HTTPServer) handleBookedSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booked_slots")

	turfID, err := pathID(r, "turfID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid turf id")
		return
	}

	var req BookedSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SportID <= 0 {
		writeError(w, http.StatusBadRequest, "sport_id is required")
		return
	}
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	rows, err := s.store.ListActiveBookings(r.Context(), turfID, req.SportID, req.Date)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("turf_id", turfID).Msg("list booked slots failed")
		writeError(w, http.StatusInternalServerError, "failed to load booked slots")
		return
	}

	out := make([]BookedSlot, 0, len(rows))
	for _, b := range rows {
		out = append(out, BookedSlot{
			ID:             b.ID,
			StartTime:      b.StartTime,
			EndTime:        b.EndTime,
			StartSlotValue: b.StartSlotValue,
			EndSlotValue:   b.EndSlotValue,
			Status:         b.Status,
		})
	}
	writeData(w, http.StatusOK, "", out)
}

// handleCreateBooking validates and stores a slot booking.
// POST /api/v1/slot-bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")
	l := zerolog.Ctx(r.Context())

	var req models.SlotBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !s.limiter.allow(limiterKey(r, req.UserID)) {
		l.Warn().Int64("user_id", req.UserID).Msg("booking rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, "too many booking attempts, try again later")
		return
	}

	booking, err := s.validateCreate(r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateSlotBooking(r.Context(), booking); err != nil {
		if errors.Is(err, database.ErrSlotConflict) {
			l.Info().
				Int64("turf_id", booking.TurfID).
				Str("date", booking.Date).
				Int("start_slot", booking.StartSlotValue).
				Msg("booking conflict")
			writeError(w, http.StatusConflict, conflictMessage(err))
			return
		}
		l.Error().Err(err).Msg("create booking failed")
		writeError(w, http.StatusInternalServerError, "failed to create booking")
		return
	}

	metrics.IncBookingCreated()
	s.bus.Publish(r.Context(), events.Event{Type: events.TypeBookingCreated, Booking: *booking})

	l.Info().
		Int64("booking_id", booking.ID).
		Str("reference", booking.Reference).
		Int64("user_id", booking.UserID).
		Msg("booking created")
	writeData(w, http.StatusCreated, "Booking created successfully", map[string]any{"booking": booking})
}

func (s *HTTPServer) validateCreate(r *http.Request, req *models.SlotBookingRequest) (*models.SlotBooking, error) {
	if req.TurfID <= 0 || req.SportID <= 0 {
		return nil, fmt.Errorf("turfId and sportId are required")
	}
	turf, sport, err := s.catalog.Sport(r.Context(), req.TurfID, req.SportID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrTurfNotFound):
			return nil, fmt.Errorf("unknown turf %d", req.TurfID)
		case errors.Is(err, catalog.ErrSportNotFound):
			return nil, fmt.Errorf("sport %d is not offered on this turf", req.SportID)
		default:
			return nil, err
		}
	}

	date, err := time.ParseInLocation(dateLayout, req.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if date.Before(today) {
		return nil, fmt.Errorf("cannot book a date in the past")
	}
	if date.After(today.Add(s.maxAdvance)) {
		return nil, fmt.Errorf("date is too far in the future")
	}

	if err := slots.ValidateRange(req.StartSlotValue, req.EndSlotValue); err != nil {
		return nil, fmt.Errorf("invalid slot range: %v", err)
	}
	start, _, _ := slots.Bounds(req.StartSlotValue)
	_, end, _ := slots.Bounds(req.EndSlotValue)
	if v, err := slots.ValueOf(req.StartTime); err != nil || v != req.StartSlotValue || req.EndTime != end {
		return nil, fmt.Errorf("startTime and endTime must be %s and %s for the selected slots", start, end)
	}

	n := req.EndSlotValue - req.StartSlotValue + 1
	duration := float64(n) * float64(slots.SlotMinutes) / 60
	if math.Abs(req.Duration-duration) > 1e-9 {
		return nil, fmt.Errorf("duration must be %s", slots.FormatDuration(duration))
	}
	price := duration * sport.RatePerHour
	if math.Abs(req.TotalPrice-price) > priceTolerance {
		return nil, fmt.Errorf("totalPrice must be %.2f", price)
	}

	if req.Status != models.StatusPending && req.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("invalid status %d", req.Status)
	}

	requests := strings.TrimSpace(req.SpecialRequests)
	if utf8.RuneCountInString(requests) > maxSpecialRequestsLen {
		return nil, fmt.Errorf("specialRequests is too long")
	}

	return &models.SlotBooking{
		UserID:          req.UserID,
		TurfID:          turf.ID,
		TurfName:        turf.Name,
		SportID:         sport.ID,
		SportName:       sport.Name,
		Date:            req.Date,
		StartTime:       start,
		EndTime:         end,
		Duration:        duration,
		StartSlotValue:  req.StartSlotValue,
		EndSlotValue:    req.EndSlotValue,
		TotalPrice:      price,
		Status:          req.Status,
		SpecialRequests: requests,
	}, nil
}

// handleCancelBooking cancels a booking, freeing its slots.
// PUT /api/v1/slot-bookings/{id}/cancel
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req CancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	booking, err := s.store.CancelSlotBooking(r.Context(), id, req.UserID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
		return
	case errors.Is(err, database.ErrForbidden):
		writeError(w, http.StatusForbidden, "booking belongs to another user")
		return
	case errors.Is(err, database.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "booking is already cancelled")
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("booking_id", id).Msg("cancel booking failed")
		writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}

	metrics.IncBookingCancelled()
	s.bus.Publish(r.Context(), events.Event{Type: events.TypeBookingCancelled, Booking: *booking})
	writeData(w, http.StatusOK, "Booking cancelled", map[string]any{"booking": booking})
}

// handleUserBookings lists a user's bookings.
// GET /api/v1/users/{userID}/slot-bookings
func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("user_bookings")

	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	rows, err := s.store.ListUserBookings(r.Context(), userID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("list user bookings failed")
		writeError(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}
	if rows == nil {
		rows = []models.SlotBooking{}
	}
	writeData(w, http.StatusOK, "", rows)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func limiterKey(r *http.Request, userID int64) string {
	if userID > 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return "addr:" + host
}

func conflictMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return "Selected slots are no longer available: " + msg
}
