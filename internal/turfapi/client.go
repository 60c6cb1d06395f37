// Package turfapi is the HTTP client the bot uses to talk to the booking API.
package turfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"turfslot/internal/booking"
	"turfslot/internal/models"
	"turfslot/internal/slots"
)

const cachePrefix = "turfslot:"

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// Client calls the turf booking API. Turf lookups may be cached in Redis;
// booked slots never are.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type bookedRange struct {
	ID             int64 `json:"id"`
	StartSlotValue int   `json:"start_slot_value"`
	EndSlotValue   int   `json:"end_slot_value"`
}

// NewClient constructs a client with baseURL, API key and extra header.
func NewClient(baseURL, apiKey, apiExtra string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache enables caching of turf lookups.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListTurfs returns the active turfs.
func (c *Client) ListTurfs(ctx context.Context) ([]models.Turf, error) {
	var turfs []models.Turf
	if c.readCache(ctx, cachePrefix+"turfs", &turfs) {
		return turfs, nil
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/turfs", nil, &turfs); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cachePrefix+"turfs", turfs)
	return turfs, nil
}

// GetTurf returns a single turf.
func (c *Client) GetTurf(ctx context.Context, turfID int64) (*models.Turf, error) {
	key := fmt.Sprintf("%sturf:%d", cachePrefix, turfID)
	var turf models.Turf
	if c.readCache(ctx, key, &turf) {
		return &turf, nil
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/turfs/%d", turfID), nil, &turf); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, turf)
	return &turf, nil
}

// GetBookedSlots returns every booked slot value for the turf, sport and date.
func (c *Client) GetBookedSlots(ctx context.Context, turfID, sportID int64, date time.Time) ([]int, error) {
	body := map[string]any{"sport_id": sportID, "date": date.Format(booking.DateLayout)}
	var ranges []bookedRange
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/slot-bookings/turf/%d", turfID), body, &ranges); err != nil {
		return nil, err
	}

	set := slots.NewSet()
	for _, r := range ranges {
		set.AddRange(r.StartSlotValue, r.EndSlotValue)
	}
	return set.Values(), nil
}

// CreateBooking submits a booking. Failures are returned as *booking.Error
// carrying the server's message.
func (c *Client) CreateBooking(ctx context.Context, req models.SlotBookingRequest) (*models.SlotBooking, error) {
	var out struct {
		Booking *models.SlotBooking `json:"booking"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/slot-bookings", req, &out)
	if err != nil {
		var se *StatusError
		if !errors.As(err, &se) {
			return nil, &booking.Error{Kind: booking.KindGeneric, Err: err}
		}
		kind := booking.KindGeneric
		switch se.Code {
		case http.StatusConflict:
			kind = booking.KindConflict
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			kind = booking.KindValidation
		}
		return nil, &booking.Error{Kind: kind, Message: se.Message, Err: se}
	}
	if out.Booking == nil {
		return nil, errors.New("booking missing from response")
	}
	return out.Booking, nil
}

// CancelBooking cancels a booking owned by userID.
func (c *Client) CancelBooking(ctx context.Context, bookingID, userID int64) (*models.SlotBooking, error) {
	var out struct {
		Booking *models.SlotBooking `json:"booking"`
	}
	body := map[string]int64{"user_id": userID}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/slot-bookings/%d/cancel", bookingID), body, &out); err != nil {
		return nil, err
	}
	return out.Booking, nil
}

// UserBookings lists a user's bookings, newest date first.
func (c *Client) UserBookings(ctx context.Context, userID int64) ([]models.SlotBooking, error) {
	var rows []models.SlotBooking
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/slot-bookings", userID), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// HealthCheck checks if the API is available.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return &StatusError{Code: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}
