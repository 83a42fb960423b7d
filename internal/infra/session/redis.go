package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
)

const keyPrefix = "shopbot:session:"

// maxUpdateAttempts bounds optimistic retries when another turn of the
// same session commits between WATCH and EXEC.
const maxUpdateAttempts = 5

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps session state as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a store on client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// Name identifies the backend in health reports.
func (s *RedisStore) Name() string { return "redis" }

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	return s.get(ctx, s.client, sessionID)
}

func (s *RedisStore) Save(ctx context.Context, state *domain.SessionState) error {
	data, err := s.encode(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+state.SessionID, data, s.ttl).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Update runs fn inside a WATCH/MULTI transaction and retries when the key
// changed underneath it.
func (s *RedisStore) Update(ctx context.Context, sessionID string, fn func(*domain.SessionState) error) (*domain.SessionState, error) {
	key := keyPrefix + sessionID
	var result *domain.SessionState

	txf := func(tx *redis.Tx) error {
		state, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		data, err := s.encode(state)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = state
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("redis: session update conflict, retrying",
				zap.String("session", sessionID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return nil, err
	}
	return nil, &domain.ErrExternalService{
		Service: "redis",
		Err:     fmt.Errorf("session %s: too many concurrent updates", sessionID),
	}
}

func (s *RedisStore) get(ctx context.Context, c getter, sessionID string) (*domain.SessionState, error) {
	data, err := c.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return &domain.SessionState{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}

	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("redis: dropping undecodable session state",
			zap.String("session", sessionID),
			zap.Error(err),
		)
		return &domain.SessionState{SessionID: sessionID}, nil
	}
	state.SessionID = sessionID
	return &state, nil
}

func (s *RedisStore) encode(state *domain.SessionState) ([]byte, error) {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}
