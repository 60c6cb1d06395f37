package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turfslot/internal/config"
	"turfslot/internal/models"
)

func sampleTurfs() []models.Turf {
	return []models.Turf{
		{
			ID: 2, Name: "Skyline", IsActive: true,
			Sports: []models.Sport{{ID: 201, TurfID: 2, Name: "Pickleball", RatePerHour: 600, IsActive: true}},
		},
		{
			ID: 1, Name: "Green Arena", IsActive: true,
			Sports: []models.Sport{
				{ID: 101, TurfID: 1, Name: "Football", RatePerHour: 1200, IsActive: true},
				{ID: 102, TurfID: 1, Name: "Cricket", RatePerHour: 1500, IsActive: false},
			},
		},
		{ID: 3, Name: "Closed", IsActive: false},
	}
}

func TestStore_ListTurfs(t *testing.T) {
	s := NewStore(sampleTurfs())

	turfs, err := s.ListTurfs(context.Background())
	require.NoError(t, err)
	require.Len(t, turfs, 2)
	assert.Equal(t, int64(1), turfs[0].ID)
	assert.Equal(t, int64(2), turfs[1].ID)
	require.Len(t, turfs[0].Sports, 1, "inactive sport hidden")
	assert.Equal(t, 3, s.Len())
}

func TestStore_GetTurfAndSport(t *testing.T) {
	s := NewStore(sampleTurfs())
	ctx := context.Background()

	turf, err := s.GetTurf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Green Arena", turf.Name)

	_, err = s.GetTurf(ctx, 3)
	assert.ErrorIs(t, err, ErrTurfNotFound)
	_, err = s.GetTurf(ctx, 99)
	assert.ErrorIs(t, err, ErrTurfNotFound)

	_, sp, err := s.Sport(ctx, 1, 101)
	require.NoError(t, err)
	assert.Equal(t, float64(1200), sp.RatePerHour)

	_, _, err = s.Sport(ctx, 1, 102)
	assert.ErrorIs(t, err, ErrSportNotFound)
	_, _, err = s.Sport(ctx, 1, 201)
	assert.ErrorIs(t, err, ErrSportNotFound)
}

func TestStore_GetTurfReturnsCopy(t *testing.T) {
	s := NewStore(sampleTurfs())
	turf, err := s.GetTurf(context.Background(), 1)
	require.NoError(t, err)

	turf.Sports[0].RatePerHour = 1

	again, err := s.GetTurf(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1200), again.Sports[0].RatePerHour)
}

func TestStore_ApplyConfig(t *testing.T) {
	s := NewStore(nil)
	active := true

	s.ApplyConfig(&config.TurfsConfig{Turfs: []config.TurfConfig{{
		ID: 5, Name: "Riverside", IsActive: &active,
		Sports: []config.SportConfig{{ID: 501, Name: "Tennis", RatePerHour: 500, IsActive: &active}},
	}}})
	s.ApplyConfig(nil)

	turf, err := s.GetTurf(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Tennis", turf.Sports[0].Name)
	assert.Equal(t, int64(5), turf.Sports[0].TurfID)
}
