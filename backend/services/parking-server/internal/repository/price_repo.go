package repository

import (
	"context"
	"database/sql"
	"errors"

	libdb "parkmeter/backend/libs/db"
	"parkmeter/backend/services/parking-server/internal/models"
)

// PriceRepository handles zone price lookups.
type PriceRepository struct {
	db     *sql.DB
	driver string
}

// NewPriceRepository returns repository.
func NewPriceRepository(db *sql.DB, driver string) *PriceRepository {
	return &PriceRepository{db: db, driver: driver}
}

// Get returns the price row of a zone.
func (r *PriceRepository) Get(ctx context.Context, zone string) (*models.ZonePrice, error) {
	const query = `
		SELECT zone, fee_rate_per_second
		FROM zone_prices
		WHERE zone = ?
	`
	var p models.ZonePrice
	err := r.db.QueryRowContext(ctx, libdb.Rebind(r.driver, query), zone).Scan(&p.Zone, &p.FeeRatePerSecond)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SeedDefaults inserts the given prices, leaving zones that already have a row untouched.
func (r *PriceRepository) SeedDefaults(ctx context.Context, prices []models.ZonePrice) error {
	const query = `
		INSERT INTO zone_prices (zone, fee_rate_per_second)
		VALUES (?, ?)
		ON CONFLICT (zone) DO NOTHING
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := libdb.Rebind(r.driver, query)
	for _, p := range prices {
		if _, err := tx.ExecContext(ctx, stmt, p.Zone, p.FeeRatePerSecond); err != nil {
			return err
		}
	}
	return tx.Commit()
}
