package turfapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turfslot/internal/api"
	"turfslot/internal/booking"
	"turfslot/internal/catalog"
	"turfslot/internal/database"
	"turfslot/internal/models"
)

type fixture struct {
	client   *Client
	server   *httptest.Server
	turfHits atomic.Int32
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "client.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := catalog.NewStore([]models.Turf{{
		ID: 1, Name: "Green Arena", IsActive: true,
		Sports: []models.Sport{
			{ID: 101, TurfID: 1, Name: "Football", Type: "football", RatePerHour: 1000, IsActive: true},
		},
	}})
	var keys []string
	if apiKey != "" {
		keys = []string{apiKey}
	}
	srv := api.NewHTTPServer(api.Options{APIKeys: keys, SubmitPerSecond: 100, SubmitBurst: 100}, db, store, nil, &logger)

	f := &fixture{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/turfs" {
			f.turfHits.Add(1)
		}
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	f.client = NewClient(f.server.URL+"/", apiKey, "", time.Second)
	return f
}

func tomorrow() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.Local)
}

func request(start, end int) models.SlotBookingRequest {
	run := make([]int, 0, end-start+1)
	for v := start; v <= end; v++ {
		run = append(run, v)
	}
	r, _ := booking.NewTimeRange(run, 1000)
	return models.SlotBookingRequest{
		TurfID:         1,
		SportID:        101,
		UserID:         42,
		Date:           tomorrow().Format(booking.DateLayout),
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Duration:       r.Duration,
		StartSlotValue: r.StartSlotValue,
		EndSlotValue:   r.EndSlotValue,
		TotalPrice:     r.TotalPrice,
		Status:         models.StatusConfirmed,
	}
}

func TestClient_ListTurfsCached(t *testing.T) {
	f := newFixture(t, "secret")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f.client.UseRedisCache(rdb, time.Minute)

	ctx := context.Background()
	turfs, err := f.client.ListTurfs(ctx)
	require.NoError(t, err)
	require.Len(t, turfs, 1)
	assert.Equal(t, "Green Arena", turfs[0].Name)

	turfs, err = f.client.ListTurfs(ctx)
	require.NoError(t, err)
	require.Len(t, turfs, 1)
	assert.Equal(t, int32(1), f.turfHits.Load(), "second call served from cache")
	assert.True(t, mr.Exists(cachePrefix+"turfs"))

	mr.FastForward(2 * time.Minute)
	_, err = f.client.ListTurfs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.turfHits.Load())
}

func TestClient_GetTurf(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	turf, err := f.client.GetTurf(ctx, 1)
	require.NoError(t, err)
	sp, ok := turf.Sport(101)
	require.True(t, ok)
	assert.Equal(t, 1000.0, sp.RatePerHour)

	_, err = f.client.GetTurf(ctx, 5)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "turf not found", se.Message)
}

func TestClient_Unauthorized(t *testing.T) {
	f := newFixture(t, "secret")
	c := NewClient(f.server.URL, "wrong", "", time.Second)
	_, err := c.ListTurfs(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestClient_BookedSlotsExpandRanges(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.client.CreateBooking(ctx, request(20, 23))
	require.NoError(t, err)
	_, err = f.client.CreateBooking(ctx, request(30, 30))
	require.NoError(t, err)

	booked, err := f.client.GetBookedSlots(ctx, 1, 101, tomorrow())
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21, 22, 23, 30}, booked)
}

func TestClient_CreateBookingErrors(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	created, err := f.client.CreateBooking(ctx, request(20, 21))
	require.NoError(t, err)
	assert.NotEmpty(t, created.Reference)

	_, err = f.client.CreateBooking(ctx, request(21, 22))
	require.Error(t, err)
	assert.True(t, booking.IsConflict(err))
	assert.Contains(t, booking.MessageOf(err), "already booked")

	bad := request(24, 25)
	bad.TotalPrice = 1
	_, err = f.client.CreateBooking(ctx, bad)
	assert.Equal(t, booking.KindValidation, booking.KindOf(err))
	assert.Contains(t, booking.MessageOf(err), "totalPrice")
}

func TestClient_CreateBookingTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", "", 200*time.Millisecond)
	_, err := c.CreateBooking(context.Background(), request(20, 21))
	require.Error(t, err)
	assert.Equal(t, booking.KindGeneric, booking.KindOf(err))
}

func TestClient_CancelAndList(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	created, err := f.client.CreateBooking(ctx, request(20, 21))
	require.NoError(t, err)

	rows, err := f.client.UserBookings(ctx, 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = f.client.CancelBooking(ctx, created.ID, 7)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)

	cancelled, err := f.client.CancelBooking(ctx, created.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	booked, err := f.client.GetBookedSlots(ctx, 1, 101, tomorrow())
	require.NoError(t, err)
	assert.Empty(t, booked)
}

func TestClient_HealthCheck(t *testing.T) {
	f := newFixture(t, "secret")
	assert.NoError(t, f.client.HealthCheck(context.Background()))
}

func TestSelectorAgainstAPI(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	turf, err := f.client.GetTurf(ctx, 1)
	require.NoError(t, err)
	sp, _ := turf.Sport(101)

	sel := booking.NewSelector(f.client, f.client, booking.ForUser(42))
	scope := booking.Scope{TurfID: turf.ID, TurfName: turf.Name, Sport: *sp, Date: tomorrow()}
	require.NoError(t, sel.Open(ctx, scope))

	_, err = sel.Click(24)
	require.NoError(t, err)
	_, err = sel.Click(25)
	require.NoError(t, err)

	// someone else books 25 first
	_, err = f.client.CreateBooking(ctx, request(25, 25))
	require.NoError(t, err)

	_, err = sel.Submit(ctx, "")
	require.Error(t, err)
	assert.True(t, booking.IsConflict(err))
	assert.Equal(t, []int{24, 25}, sel.Selected(), "selection kept on conflict")

	require.NoError(t, sel.Refresh(ctx, sel.Generation()))
	assert.Equal(t, []int{24, 25}, sel.Selected(), "refresh keeps the selection")
	assert.True(t, sel.Slots()[25].IsBooked)

	_, err = sel.Submit(ctx, "")
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)

	_, err = sel.Click(28)
	require.NoError(t, err)
	assert.Equal(t, []int{28}, sel.Selected())
	rec, err := sel.Submit(ctx, "floodlights")
	require.NoError(t, err)
	assert.Equal(t, "14:00", rec.StartTime)
	assert.Equal(t, "14:30", rec.EndTime)
	assert.Equal(t, "floodlights", rec.SpecialRequests)
	assert.Equal(t, int64(42), rec.UserID)
}
