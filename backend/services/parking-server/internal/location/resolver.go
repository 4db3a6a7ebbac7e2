package location

import (
	"context"
	"errors"
	"fmt"

	"parkmeter/backend/services/parking-server/internal/models"
	"parkmeter/backend/services/parking-server/internal/repository"
)

// Zone names of the coordinate grid.
const (
	ZoneAshkelon   = "Ashkelon"
	ZoneJerusalem  = "Jerusalem"
	ZonePetahTikva = "Petah-Tikva"
	ZoneHerzliya   = "Herzliya"
)

const (
	// MaxCoordinate is the largest valid value on either axis.
	MaxCoordinate = 127
	// Midline splits each axis; the low half includes it.
	Midline = 70
)

var (
	// ErrUnresolved is returned for coordinates outside the grid.
	ErrUnresolved = errors.New("location: coordinates unresolved")
	// ErrUnknownZone is returned when a zone has no price.
	ErrUnknownZone = errors.New("location: unknown zone")
)

// DefaultPrices are the per second fee rates the price table is seeded with.
var DefaultPrices = []models.ZonePrice{
	{Zone: ZoneAshkelon, FeeRatePerSecond: 0.006},
	{Zone: ZoneJerusalem, FeeRatePerSecond: 0.012},
	{Zone: ZonePetahTikva, FeeRatePerSecond: 0.008},
	{Zone: ZoneHerzliya, FeeRatePerSecond: 0.010},
}

// PriceRepository is the price table.
type PriceRepository interface {
	Get(ctx context.Context, zone string) (*models.ZonePrice, error)
}

// Resolver maps coordinates to zones and zones to fee rates.
type Resolver struct {
	prices PriceRepository
}

// NewResolver returns resolver.
func NewResolver(prices PriceRepository) *Resolver {
	return &Resolver{prices: prices}
}

// Resolve returns the zone containing (x, y).
func (r *Resolver) Resolve(x, y uint8) (string, error) {
	return Resolve(x, y)
}

// Resolve returns the zone containing (x, y).
func Resolve(x, y uint8) (string, error) {
	if x > MaxCoordinate || y > MaxCoordinate {
		return "", fmt.Errorf("%w: (%d, %d)", ErrUnresolved, x, y)
	}
	switch {
	case x <= Midline && y <= Midline:
		return ZoneAshkelon, nil
	case x <= Midline:
		return ZoneJerusalem, nil
	case y <= Midline:
		return ZonePetahTikva, nil
	default:
		return ZoneHerzliya, nil
	}
}

// PriceFor returns the fee rate per second of a zone.
func (r *Resolver) PriceFor(ctx context.Context, zone string) (float64, error) {
	p, err := r.prices.Get(ctx, zone)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownZone, zone)
	}
	if err != nil {
		return 0, fmt.Errorf("location: price lookup for %q: %w", zone, err)
	}
	return p.FeeRatePerSecond, nil
}
