package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"parkmeter/backend/services/parking-server/internal/metrics"
	"parkmeter/backend/services/parking-server/internal/models"
	redisstore "parkmeter/backend/services/parking-server/internal/redis"
	"parkmeter/backend/services/parking-server/internal/repository"
)

var (
	// ErrSessionNotFound indicates neither memory nor storage knows the device.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionActive indicates the device is counting time on another connection.
	ErrSessionActive = errors.New("session: active on another connection")
	// ErrStorage wraps every durable storage failure.
	ErrStorage = errors.New("session: storage failure")
)

// Owner identifies the connection driving a session. Zero means none.
type Owner uint64

// SessionRepository is the durable sessions table.
type SessionRepository interface {
	Get(ctx context.Context, deviceID string) (*models.StoredSession, error)
	Upsert(ctx context.Context, s models.StoredSession) error
	UpdateElapsed(ctx context.Context, deviceID string, elapsedSeconds int64) error
	Delete(ctx context.Context, deviceID string) error
}

// PriceLookup resolves the fee rate of a zone.
type PriceLookup interface {
	PriceFor(ctx context.Context, zone string) (float64, error)
}

// ActiveCache mirrors connected sessions outside the process.
type ActiveCache interface {
	Save(ctx context.Context, session redisstore.ActiveSession) error
	Delete(ctx context.Context, deviceID string) error
}

type entry struct {
	session models.Session
	owner   Owner
	// pending marks a disconnected session whose frozen elapsed time
	// has not reached storage yet.
	pending bool
}

// SessionStore owns every session record. All operations are serialized by one
// lock; durable writes happen before the in-memory view changes. Mirror updates
// run inside the same critical section so they land in transition order.
//
// Memory holds connected sessions plus disconnected ones still waiting for a
// durable write. Orphans that made it to storage live only in the table.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*entry

	repo   SessionRepository
	prices PriceLookup
	cache  ActiveCache
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a SessionStore.
type Option func(*SessionStore)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

// WithActiveCache enables mirroring of connected sessions.
func WithActiveCache(cache ActiveCache) Option {
	return func(s *SessionStore) {
		s.cache = cache
	}
}

// NewSessionStore builds store.
func NewSessionStore(repo SessionRepository, prices PriceLookup, logger *zap.Logger, opts ...Option) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*entry),
		repo:     repo,
		prices:   prices,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exists reports whether storage holds a record for the device.
func (s *SessionStore) Exists(ctx context.Context, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.repo.Get(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.storageError("exists", deviceID, err)
	}
	return true, nil
}

// CreateOrResume starts counting time for a device. A stored record is resumed with
// its start rebased so elapsed time continues; otherwise a fresh row is inserted.
// Repeating START on the owning connection returns the running session unchanged.
func (s *SessionStore) CreateOrResume(ctx context.Context, owner Owner, deviceID, zone string, feeRate float64) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, inMemory := s.sessions[deviceID]
	if inMemory && current.session.Connected {
		if current.owner != owner {
			return models.Session{}, fmt.Errorf("%w: %s", ErrSessionActive, deviceID)
		}
		return current.session, nil
	}

	var (
		elapsed int64
		resumed bool
	)
	stored, err := s.repo.Get(ctx, deviceID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return models.Session{}, s.storageError("lookup", deviceID, err)
	default:
		elapsed = stored.ElapsedSeconds
		resumed = true
	}
	if inMemory && current.pending && current.session.ElapsedSeconds > elapsed {
		elapsed = current.session.ElapsedSeconds
		resumed = true
	}

	if err := s.repo.Upsert(ctx, models.StoredSession{DeviceID: deviceID, ElapsedSeconds: elapsed, Zone: zone}); err != nil {
		return models.Session{}, s.storageError("upsert", deviceID, err)
	}

	session := models.Session{
		DeviceID:         deviceID,
		Zone:             zone,
		FeeRatePerSecond: feeRate,
		StartEpoch:       s.now().Unix() - elapsed,
		ElapsedSeconds:   elapsed,
		Connected:        true,
	}
	s.sessions[deviceID] = &entry{session: session, owner: owner}
	s.publishGauge()
	s.mirrorSave(ctx, session)

	kind := "create"
	if resumed {
		kind = "resume"
	}
	metrics.SessionTransitionsTotal.WithLabelValues(kind).Inc()
	s.logger.Info("session started",
		zap.String("device_id", deviceID),
		zap.String("kind", kind),
		zap.String("zone", zone),
		zap.Float64("fee_rate", feeRate),
		zap.Int64("elapsed_seconds", elapsed),
	)
	return session, nil
}

// SnapshotElapsed returns the current elapsed time without altering state.
func (s *SessionStore) SnapshotElapsed(deviceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[deviceID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, deviceID)
	}
	return s.elapsedLocked(e), nil
}

// Flush persists the elapsed time of a connected session, or retries the pending
// write of a disconnected one. It never changes the connected flag.
func (s *SessionStore) Flush(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, deviceID)
	}

	elapsed := s.elapsedLocked(e)
	if err := s.repo.UpdateElapsed(ctx, deviceID, elapsed); err != nil {
		return s.storageError("flush", deviceID, err)
	}
	e.session.ElapsedSeconds = elapsed

	if e.pending {
		delete(s.sessions, deviceID)
		s.logger.Info("pending disconnect persisted",
			zap.String("device_id", deviceID),
			zap.Int64("elapsed_seconds", elapsed),
		)
	}
	return nil
}

// ReconcileTargets lists devices the reconciliation job must flush: every connected
// session and every disconnected one whose write is pending.
func (s *SessionStore) ReconcileTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Finalize computes the final elapsed time and fee of a session and deletes its
// durable record. A session orphaned by an earlier disconnect is closed from storage.
func (s *SessionStore) Finalize(ctx context.Context, owner Owner, deviceID string) (int64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		elapsed int64
		rate    float64
	)
	e, inMemory := s.sessions[deviceID]
	if inMemory && e.session.Connected {
		if e.owner != owner {
			return 0, 0, fmt.Errorf("%w: %s", ErrSessionActive, deviceID)
		}
		elapsed = s.elapsedLocked(e)
		rate = e.session.FeeRatePerSecond
	} else {
		stored, err := s.repo.Get(ctx, deviceID)
		if errors.Is(err, repository.ErrNotFound) {
			return 0, 0, fmt.Errorf("%w: %s", ErrSessionNotFound, deviceID)
		}
		if err != nil {
			return 0, 0, s.storageError("lookup", deviceID, err)
		}
		elapsed = stored.ElapsedSeconds
		if inMemory && e.session.ElapsedSeconds > elapsed {
			elapsed = e.session.ElapsedSeconds
		}
		rate, err = s.prices.PriceFor(ctx, stored.Zone)
		if err != nil {
			return 0, 0, err
		}
	}

	if err := s.repo.Delete(ctx, deviceID); err != nil {
		return 0, 0, s.storageError("delete", deviceID, err)
	}
	delete(s.sessions, deviceID)
	s.publishGauge()
	s.mirrorDelete(ctx, deviceID)

	fee := rate * float64(elapsed)
	metrics.SessionTransitionsTotal.WithLabelValues("finalize").Inc()
	s.logger.Info("session finalized",
		zap.String("device_id", deviceID),
		zap.Int64("elapsed_seconds", elapsed),
		zap.Float64("fee", fee),
	)
	return elapsed, fee, nil
}

// MarkDisconnected stops the clock of a session whose connection went away without
// a clean close and persists the frozen elapsed time. The durable record stays.
// When the write fails the session is kept as pending for the reconciliation job
// and the storage error is returned.
func (s *SessionStore) MarkDisconnected(ctx context.Context, owner Owner, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[deviceID]
	if !ok || !e.session.Connected {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, deviceID)
	}
	if e.owner != owner {
		return fmt.Errorf("%w: %s", ErrSessionActive, deviceID)
	}

	elapsed := s.elapsedLocked(e)
	e.session.ElapsedSeconds = elapsed
	e.session.Connected = false
	e.owner = 0
	s.publishGauge()
	s.mirrorDelete(ctx, deviceID)
	metrics.SessionTransitionsTotal.WithLabelValues("disconnect").Inc()

	if err := s.repo.UpdateElapsed(ctx, deviceID, elapsed); err != nil {
		e.pending = true
		return s.storageError("disconnect", deviceID, err)
	}
	delete(s.sessions, deviceID)

	s.logger.Info("session disconnected",
		zap.String("device_id", deviceID),
		zap.Int64("elapsed_seconds", elapsed),
	)
	return nil
}

// Get returns a copy of the in-memory session of a device.
func (s *SessionStore) Get(deviceID string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[deviceID]
	if !ok {
		return models.Session{}, false
	}
	session := e.session
	if session.Connected {
		session.ElapsedSeconds = s.elapsedLocked(e)
	}
	return session, true
}

// elapsedLocked never moves backwards, even if the wall clock does.
func (s *SessionStore) elapsedLocked(e *entry) int64 {
	if !e.session.Connected {
		return e.session.ElapsedSeconds
	}
	elapsed := s.now().Unix() - e.session.StartEpoch
	if elapsed < e.session.ElapsedSeconds {
		return e.session.ElapsedSeconds
	}
	return elapsed
}

func (s *SessionStore) publishGauge() {
	var connected int
	for _, e := range s.sessions {
		if e.session.Connected {
			connected++
		}
	}
	metrics.ActiveSessions.Set(float64(connected))
}

func (s *SessionStore) storageError(op, deviceID string, err error) error {
	metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
	s.logger.Error("session storage failure",
		zap.String("op", op),
		zap.String("device_id", deviceID),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, deviceID, err)
}

func (s *SessionStore) mirrorSave(ctx context.Context, session models.Session) {
	if s.cache == nil {
		return
	}
	err := s.cache.Save(ctx, redisstore.ActiveSession{
		DeviceID:         session.DeviceID,
		Zone:             session.Zone,
		FeeRatePerSecond: session.FeeRatePerSecond,
		StartEpoch:       session.StartEpoch,
	})
	if err != nil {
		s.logger.Warn("failed to cache active session", zap.String("device_id", session.DeviceID), zap.Error(err))
	}
}

func (s *SessionStore) mirrorDelete(ctx context.Context, deviceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, deviceID); err != nil {
		s.logger.Warn("failed to delete active session cache", zap.String("device_id", deviceID), zap.Error(err))
	}
}
