package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"turfslot/internal/catalog"
	"turfslot/internal/database"
	"turfslot/internal/events"
	"turfslot/internal/models"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testTurfs() []models.Turf {
	return []models.Turf{
		{
			ID: 1, Name: "Green Arena", Slug: "green-arena", IsActive: true,
			Sports: []models.Sport{
				{ID: 101, TurfID: 1, Name: "Football", RatePerHour: 1200, IsActive: true},
				{ID: 102, TurfID: 1, Name: "Cricket", RatePerHour: 1500, IsActive: true},
				{ID: 103, TurfID: 1, Name: "Tennis", RatePerHour: 800, IsActive: false},
			},
		},
		{ID: 2, Name: "Closed Ground", IsActive: false},
	}
}

func newTestServer(t *testing.T, opts Options) (*HTTPServer, *events.EventBus) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if opts.SubmitBurst == 0 {
		opts.SubmitBurst = 100
		opts.SubmitPerSecond = 100
	}
	bus := events.NewEventBus(&logger)
	s := NewHTTPServer(opts, db, catalog.NewStore(testTurfs()), bus, &logger)
	s.now = func() time.Time { return time.Date(2026, 5, 19, 9, 0, 0, 0, time.Local) }
	return s, bus
}

func validRequest() models.SlotBookingRequest {
	return models.SlotBookingRequest{
		TurfID:         1,
		SportID:        101,
		UserID:         42,
		Date:           "2026-05-20",
		StartTime:      "10:00",
		EndTime:        "11:00",
		Duration:       1,
		StartSlotValue: 20,
		EndSlotValue:   21,
		TotalPrice:     1200,
		Status:         models.StatusConfirmed,
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func createBooking(t *testing.T, h http.Handler, req models.SlotBookingRequest) models.SlotBooking {
	t.Helper()
	rec, resp := do(t, h, http.MethodPost, "/api/v1/slot-bookings", req)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var data struct {
		Booking models.SlotBooking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Booking
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t, Options{APIKeys: []string{"secret"}})
	h := s.Handler()

	rec, _ := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = do(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, Options{APIKeys: []string{"secret", " "}})
	h := s.Handler()

	rec, resp := do(t, h, http.MethodGet, "/api/v1/turfs", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/turfs", nil, "x-api-key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = do(t, h, http.MethodGet, "/api/v1/turfs", nil, "x-api-key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestAuth_NoKeysConfigured(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec, _ := do(t, s.Handler(), http.MethodGet, "/api/v1/turfs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec, _ := do(t, s.Handler(), http.MethodGet, "/healthz", nil, "X-Request-ID", "req-1")
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestListAndGetTurfs(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	rec, resp := do(t, h, http.MethodGet, "/api/v1/turfs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var turfs []models.Turf
	require.NoError(t, json.Unmarshal(resp.Data, &turfs))
	require.Len(t, turfs, 1, "inactive turf hidden")
	assert.Equal(t, "Green Arena", turfs[0].Name)
	assert.Len(t, turfs[0].Sports, 2, "inactive sport hidden")

	rec, resp = do(t, h, http.MethodGet, "/api/v1/turfs/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var turf models.Turf
	require.NoError(t, json.Unmarshal(resp.Data, &turf))
	assert.Equal(t, int64(1), turf.ID)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/turfs/2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/turfs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBooking(t *testing.T) {
	s, bus := newTestServer(t, Options{})
	h := s.Handler()

	var mu sync.Mutex
	var published []events.Event
	bus.Subscribe(events.TypeBookingCreated, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e)
		return nil
	})

	req := validRequest()
	req.SpecialRequests = "  need bibs  "
	b := createBooking(t, h, req)

	assert.NotZero(t, b.ID)
	assert.NotEmpty(t, b.Reference)
	assert.Equal(t, "Green Arena", b.TurfName)
	assert.Equal(t, "Football", b.SportName)
	assert.Equal(t, "need bibs", b.SpecialRequests)
	assert.Equal(t, "confirmed", b.StatusText)

	mu.Lock()
	require.Len(t, published, 1)
	assert.Equal(t, b.ID, published[0].Booking.ID)
	mu.Unlock()
}

func TestCreateBooking_Conflict(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	createBooking(t, h, validRequest())

	overlap := validRequest()
	overlap.UserID = 7
	overlap.StartSlotValue, overlap.EndSlotValue = 21, 22
	overlap.StartTime, overlap.EndTime = "10:30", "11:30"

	rec, resp := do(t, h, http.MethodPost, "/api/v1/slot-bookings", overlap)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "10:00-11:00 is already booked")

	// other sport on the same turf is independent
	cricket := overlap
	cricket.SportID = 102
	cricket.TotalPrice = 1500
	createBooking(t, h, cricket)
}

func TestCreateBooking_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.SlotBookingRequest)
		message string
	}{
		{"unknown turf", func(r *models.SlotBookingRequest) { r.TurfID = 9 }, "unknown turf"},
		{"inactive turf", func(r *models.SlotBookingRequest) { r.TurfID = 2 }, "unknown turf"},
		{"unknown sport", func(r *models.SlotBookingRequest) { r.SportID = 999 }, "not offered"},
		{"inactive sport", func(r *models.SlotBookingRequest) { r.SportID = 103 }, "not offered"},
		{"bad date", func(r *models.SlotBookingRequest) { r.Date = "20-05-2026" }, "invalid date"},
		{"past date", func(r *models.SlotBookingRequest) { r.Date = "2026-05-18" }, "past"},
		{"too far ahead", func(r *models.SlotBookingRequest) { r.Date = "2026-08-01" }, "too far"},
		{"reversed range", func(r *models.SlotBookingRequest) { r.StartSlotValue, r.EndSlotValue = 21, 20 }, "invalid slot range"},
		{"out of range", func(r *models.SlotBookingRequest) { r.EndSlotValue = 48 }, "invalid slot range"},
		{"wrong times", func(r *models.SlotBookingRequest) { r.EndTime = "12:00" }, "must be 10:00 and 11:00"},
		{"start of another slot", func(r *models.SlotBookingRequest) { r.StartTime = "09:30" }, "must be 10:00 and 11:00"},
		{"malformed start time", func(r *models.SlotBookingRequest) { r.StartTime = "10:15" }, "must be 10:00 and 11:00"},
		{"wrong duration", func(r *models.SlotBookingRequest) { r.Duration = 2 }, "duration must be 1 h"},
		{"wrong price", func(r *models.SlotBookingRequest) { r.TotalPrice = 1000 }, "totalPrice must be 1200.00"},
		{"cancelled status", func(r *models.SlotBookingRequest) { r.Status = models.StatusCancelled }, "invalid status"},
		{"requests too long", func(r *models.SlotBookingRequest) { r.SpecialRequests = strings.Repeat("x", 501) }, "too long"},
		{"multibyte requests too long", func(r *models.SlotBookingRequest) { r.SpecialRequests = strings.Repeat("न", 501) }, "too long"},
	}

	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			rec, resp := do(t, h, http.MethodPost, "/api/v1/slot-bookings", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tt.message)
		})
	}
}

func TestCreateBooking_PriceTolerance(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	req := validRequest()
	req.TotalPrice = 1200.004
	b := createBooking(t, s.Handler(), req)
	assert.Equal(t, 1200.0, b.TotalPrice)
}

func TestCreateBooking_RequestsCountedInCharacters(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	req := validRequest()
	req.SpecialRequests = strings.Repeat("न", 500)
	b := createBooking(t, s.Handler(), req)
	assert.Equal(t, req.SpecialRequests, b.SpecialRequests)
}

func TestCreateBooking_UnknownField(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slot-bookings", strings.NewReader(`{"turfId":1,"bogus":true}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBooking_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, Options{SubmitPerSecond: 0.001, SubmitBurst: 1})
	h := s.Handler()

	createBooking(t, h, validRequest())

	next := validRequest()
	next.StartSlotValue, next.EndSlotValue = 30, 31
	next.StartTime, next.EndTime = "15:00", "16:00"
	rec, _ := do(t, h, http.MethodPost, "/api/v1/slot-bookings", next)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	next.UserID = 43
	createBooking(t, h, next)
}

func TestBookedSlots(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	created := createBooking(t, h, validRequest())

	rec, resp := do(t, h, http.MethodPost, "/api/v1/slot-bookings/turf/1",
		BookedSlotsRequest{SportID: 101, Date: "2026-05-20"})
	require.Equal(t, http.StatusOK, rec.Code)
	var booked []BookedSlot
	require.NoError(t, json.Unmarshal(resp.Data, &booked))
	require.Len(t, booked, 1)
	assert.Equal(t, created.ID, booked[0].ID)
	assert.Equal(t, 20, booked[0].StartSlotValue)
	assert.Equal(t, 21, booked[0].EndSlotValue)

	rec, resp = do(t, h, http.MethodPost, "/api/v1/slot-bookings/turf/1",
		BookedSlotsRequest{SportID: 102, Date: "2026-05-20"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	rec, _ = do(t, h, http.MethodPost, "/api/v1/slot-bookings/turf/1", BookedSlotsRequest{Date: "2026-05-20"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/slot-bookings/turf/1", BookedSlotsRequest{SportID: 101, Date: "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelBooking(t *testing.T) {
	s, bus := newTestServer(t, Options{})
	h := s.Handler()

	cancelled := make(chan events.Event, 1)
	bus.Subscribe(events.TypeBookingCancelled, func(_ context.Context, e events.Event) error {
		cancelled <- e
		return nil
	})

	b := createBooking(t, h, validRequest())
	path := "/api/v1/slot-bookings/" + jsonInt(b.ID) + "/cancel"

	rec, _ := do(t, h, http.MethodPut, path, CancelRequest{UserID: 7})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := do(t, h, http.MethodPut, path, CancelRequest{UserID: 42})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	e := <-cancelled
	assert.Equal(t, b.ID, e.Booking.ID)
	assert.Equal(t, models.StatusCancelled, e.Booking.Status)

	rec, _ = do(t, h, http.MethodPut, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/api/v1/slot-bookings/9999/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// cancelled slots can be booked again
	createBooking(t, h, validRequest())
}

func TestUserBookings(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	rec, resp := do(t, h, http.MethodGet, "/api/v1/users/42/slot-bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	createBooking(t, h, validRequest())
	other := validRequest()
	other.UserID = 7
	other.StartSlotValue, other.EndSlotValue = 30, 30
	other.StartTime, other.EndTime = "15:00", "15:30"
	other.Duration, other.TotalPrice = 0.5, 600
	createBooking(t, h, other)

	rec, resp = do(t, h, http.MethodGet, "/api/v1/users/42/slot-bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []models.SlotBooking
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].UserID)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/users/0/slot-bookings", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportDay(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	createBooking(t, h, validRequest())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/turfs/1/bookings/export?date=2026-05-20", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "green-arena_2026-05-20.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Bookings 2026-05-20")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/turfs/1/bookings/export", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/turfs/2/bookings/export?date=2026-05-20", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitLimiterPrune(t *testing.T) {
	l := newSubmitLimiter(1, 1)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	l.limiters["a"].lastSeen = time.Now().Add(-2 * time.Hour)
	assert.Equal(t, 1, l.prune())
	assert.True(t, l.allow("a"))
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
