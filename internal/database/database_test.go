package database

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turfslot/internal/config"
	"turfslot/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newBooking(userID int64, start, end int) *models.SlotBooking {
	return &models.SlotBooking{
		UserID:         userID,
		TurfID:         1,
		TurfName:       "Green Arena",
		SportID:        101,
		SportName:      "Football",
		Date:           "2026-05-20",
		StartTime:      "10:00",
		EndTime:        "11:00",
		Duration:       float64(end-start+1) / 2,
		StartSlotValue: start,
		EndSlotValue:   end,
		TotalPrice:     1200,
		Status:         models.StatusConfirmed,
	}
}

func TestCreateSlotBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := newBooking(42, 20, 21)
	b.SpecialRequests = "bibs"
	require.NoError(t, db.CreateSlotBooking(ctx, b))

	assert.NotZero(t, b.ID)
	assert.NotEmpty(t, b.Reference)
	assert.False(t, b.CreatedAt.IsZero())

	got, err := db.GetSlotBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)
	assert.Equal(t, "bibs", got.SpecialRequests)
	assert.Equal(t, 20, got.StartSlotValue)
	assert.Equal(t, 21, got.EndSlotValue)
	assert.Equal(t, "confirmed", got.StatusText)
	assert.WithinDuration(t, b.CreatedAt, got.CreatedAt, time.Second)
}

func TestCreateSlotBooking_Overlap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateSlotBooking(ctx, newBooking(1, 20, 23)))

	tests := []struct {
		name     string
		mutate   func(b *models.SlotBooking)
		start    int
		end      int
		conflict bool
	}{
		{name: "same range", start: 20, end: 23, conflict: true},
		{name: "overlap start", start: 18, end: 20, conflict: true},
		{name: "overlap end", start: 23, end: 25, conflict: true},
		{name: "inside", start: 21, end: 22, conflict: true},
		{name: "covering", start: 10, end: 30, conflict: true},
		{name: "adjacent before", start: 18, end: 19, conflict: false},
		{name: "adjacent after", start: 24, end: 24, conflict: false},
		{name: "other date", start: 20, end: 23, mutate: func(b *models.SlotBooking) { b.Date = "2026-05-21" }},
		{name: "other sport", start: 20, end: 23, mutate: func(b *models.SlotBooking) { b.SportID = 102 }},
		{name: "other turf", start: 20, end: 23, mutate: func(b *models.SlotBooking) { b.TurfID = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(2, tt.start, tt.end)
			if tt.mutate != nil {
				tt.mutate(b)
			}
			err := db.CreateSlotBooking(ctx, b)
			if tt.conflict {
				require.ErrorIs(t, err, ErrSlotConflict)
				assert.Contains(t, err.Error(), "10:00-11:00 is already booked")
				return
			}
			require.NoError(t, err)
			// free the range again so later cases only see the base booking
			_, err = db.CancelSlotBooking(ctx, b.ID, 0)
			require.NoError(t, err)
		})
	}
}

func TestCreateSlotBooking_ConcurrentOverlap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
		other     []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := db.CreateSlotBooking(ctx, newBooking(int64(i+1), 20+i%2, 22))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)

	active, err := db.ListActiveBookings(ctx, 1, 101, "2026-05-20")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCancelSlotBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := newBooking(7, 10, 11)
	require.NoError(t, db.CreateSlotBooking(ctx, b))

	_, err := db.CancelSlotBooking(ctx, b.ID, 8)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := db.CancelSlotBooking(ctx, b.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "cancelled", cancelled.StatusText)

	_, err = db.CancelSlotBooking(ctx, b.ID, 7)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = db.CancelSlotBooking(ctx, 9999, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := db.ListActiveBookings(ctx, 1, 101, "2026-05-20")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, db.CreateSlotBooking(ctx, newBooking(9, 10, 11)), "cancelled range is free again")
}

func TestListBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := newBooking(1, 30, 31)
	b := newBooking(1, 10, 11)
	c := newBooking(2, 10, 11)
	c.SportID = 102
	d := newBooking(1, 4, 5)
	d.Date = "2026-05-22"
	for _, bk := range []*models.SlotBooking{a, b, c, d} {
		require.NoError(t, db.CreateSlotBooking(ctx, bk))
	}

	active, err := db.ListActiveBookings(ctx, 1, 101, "2026-05-20")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 10, active[0].StartSlotValue)
	assert.Equal(t, 30, active[1].StartSlotValue)

	onDate, err := db.ListBookingsOnDate(ctx, 1, "2026-05-20")
	require.NoError(t, err)
	assert.Len(t, onDate, 3)

	mine, err := db.ListUserBookings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "2026-05-22", mine[0].Date)

	none, err := db.ListUserBookings(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = db.GetSlotBooking(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, db.Ready(ctx))
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateSlotBooking(ctx, newBooking(1, 1, 2)))

	logger := zerolog.New(io.Discard)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Path: dir, RetentionDays: 1}, &logger)

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)

	snapshot, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer snapshot.Close()

	rows, err := snapshot.ListUserBookings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	old := filepath.Join(dir, backupPrefix+"old.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	past := time.Now().AddDate(0, 0, -3)
	require.NoError(t, os.Chtimes(old, past, past))
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(unrelated, past, past))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestBackupService_Disabled(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.New(io.Discard)
	svc := NewBackupService(db, config.BackupConfig{}, &logger)

	done := make(chan struct{})
	go func() {
		svc.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled backup service should return immediately")
	}
}
