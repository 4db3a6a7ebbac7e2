package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveSession is the mirrored view of a connected session.
type ActiveSession struct {
	DeviceID         string  `json:"device_id"`
	Zone             string  `json:"zone"`
	FeeRatePerSecond float64 `json:"fee_rate_per_second"`
	StartEpoch       int64   `json:"start_epoch"`
}

// Store mirrors active sessions into redis for fast external lookup.
// The durable table stays authoritative.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(deviceID string) string {
	return fmt.Sprintf("parking:active:%s", deviceID)
}

// Save caches session.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.DeviceID), data, s.ttl).Err()
}

// Get returns cached session, or nil when the device is not mirrored.
func (s *Store) Get(ctx context.Context, deviceID string) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, s.key(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes cached session.
func (s *Store) Delete(ctx context.Context, deviceID string) error {
	err := s.client.Del(ctx, s.key(deviceID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
