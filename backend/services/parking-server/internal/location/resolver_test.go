package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmeter/backend/services/parking-server/internal/models"
	"parkmeter/backend/services/parking-server/internal/repository"
)

type fakePrices struct {
	prices map[string]float64
	err    error
}

func (f fakePrices) Get(_ context.Context, zone string) (*models.ZonePrice, error) {
	if f.err != nil {
		return nil, f.err
	}
	rate, ok := f.prices[zone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.ZonePrice{Zone: zone, FeeRatePerSecond: rate}, nil
}

func TestResolveGrid(t *testing.T) {
	cases := []struct {
		x, y uint8
		zone string
	}{
		{0, 0, ZoneAshkelon},
		{70, 70, ZoneAshkelon},
		{70, 71, ZoneJerusalem},
		{0, 127, ZoneJerusalem},
		{71, 70, ZonePetahTikva},
		{127, 0, ZonePetahTikva},
		{71, 71, ZoneHerzliya},
		{127, 127, ZoneHerzliya},
	}
	for _, tc := range cases {
		zone, err := Resolve(tc.x, tc.y)
		require.NoError(t, err)
		assert.Equal(t, tc.zone, zone, "(%d, %d)", tc.x, tc.y)
	}

	a, _ := Resolve(70, 70)
	b, _ := Resolve(0, 0)
	c, _ := Resolve(71, 70)
	assert.Equal(t, b, a)
	assert.NotEqual(t, a, c)
}

func TestResolveOutOfRange(t *testing.T) {
	for _, xy := range [][2]uint8{{255, 0}, {128, 0}, {0, 128}, {200, 200}} {
		_, err := Resolve(xy[0], xy[1])
		assert.ErrorIs(t, err, ErrUnresolved)
	}
}

func TestPriceFor(t *testing.T) {
	r := NewResolver(fakePrices{prices: map[string]float64{ZoneHerzliya: 0.01}})

	rate, err := r.PriceFor(context.Background(), ZoneHerzliya)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, rate, 1e-12)

	_, err = r.PriceFor(context.Background(), "Eilat")
	assert.ErrorIs(t, err, ErrUnknownZone)

	broken := NewResolver(fakePrices{err: errors.New("disk gone")})
	_, err = broken.PriceFor(context.Background(), ZoneHerzliya)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownZone)
}

func TestDefaultPricesCoverEveryZone(t *testing.T) {
	zones := map[string]bool{}
	for _, p := range DefaultPrices {
		zones[p.Zone] = true
		assert.Greater(t, p.FeeRatePerSecond, 0.0)
		assert.LessOrEqual(t, len(p.Zone), 12)
	}
	for _, z := range []string{ZoneAshkelon, ZoneJerusalem, ZonePetahTikva, ZoneHerzliya} {
		assert.True(t, zones[z], z)
	}
}
