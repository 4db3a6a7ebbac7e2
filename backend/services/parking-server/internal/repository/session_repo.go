package repository

import (
	"context"
	"database/sql"
	"errors"

	libdb "parkmeter/backend/libs/db"
	"parkmeter/backend/services/parking-server/internal/models"
)

// ErrNotFound indicates a missing row.
var ErrNotFound = errors.New("repository: not found")

// SessionRepository handles persistence of parking sessions.
type SessionRepository struct {
	db     *sql.DB
	driver string
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB, driver string) *SessionRepository {
	return &SessionRepository{db: db, driver: driver}
}

// Get loads the stored session for a device.
func (r *SessionRepository) Get(ctx context.Context, deviceID string) (*models.StoredSession, error) {
	const query = `
		SELECT device_id, elapsed_seconds, zone
		FROM parking_sessions
		WHERE device_id = ?
	`
	var s models.StoredSession
	err := r.db.QueryRowContext(ctx, libdb.Rebind(r.driver, query), deviceID).Scan(
		&s.DeviceID,
		&s.ElapsedSeconds,
		&s.Zone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert inserts a new row or rewrites an existing one for the same device.
func (r *SessionRepository) Upsert(ctx context.Context, s models.StoredSession) error {
	const query = `
		INSERT INTO parking_sessions (device_id, elapsed_seconds, zone)
		VALUES (?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			elapsed_seconds = EXCLUDED.elapsed_seconds,
			zone = EXCLUDED.zone
	`
	_, err := r.db.ExecContext(ctx, libdb.Rebind(r.driver, query), s.DeviceID, s.ElapsedSeconds, s.Zone)
	return err
}

// UpdateElapsed persists the elapsed time of an existing row.
func (r *SessionRepository) UpdateElapsed(ctx context.Context, deviceID string, elapsedSeconds int64) error {
	const query = `
		UPDATE parking_sessions
		SET elapsed_seconds = ?
		WHERE device_id = ?
	`
	result, err := r.db.ExecContext(ctx, libdb.Rebind(r.driver, query), elapsedSeconds, deviceID)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Delete removes the row of a finished session.
func (r *SessionRepository) Delete(ctx context.Context, deviceID string) error {
	const query = `DELETE FROM parking_sessions WHERE device_id = ?`
	result, err := r.db.ExecContext(ctx, libdb.Rebind(r.driver, query), deviceID)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// List returns every stored session ordered by device.
func (r *SessionRepository) List(ctx context.Context) ([]models.StoredSession, error) {
	const query = `
		SELECT device_id, elapsed_seconds, zone
		FROM parking_sessions
		ORDER BY device_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.StoredSession
	for rows.Next() {
		var s models.StoredSession
		if err := rows.Scan(&s.DeviceID, &s.ElapsedSeconds, &s.Zone); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func expectRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
