package history

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix          = "chat:"
	DefaultMaxMessages = 20 // 10 user/model exchanges

	pingTimeout = 3 * time.Second
)

// storeState is an explicit connected/degraded tag. Call sites go
// through state() instead of checking the client for nil.
type storeState struct {
	degraded bool
	reason   string
}

// RedisStore keeps one Redis list per session. It is shared by all
// request handlers; the go-redis client handles its own pooling.
type RedisStore struct {
	client      *redis.Client
	maxMessages int64

	mu    sync.RWMutex
	state storeState
}

// NewRedisStore connects to Redis and verifies the connection with a
// ping. A failed ping puts the store into degraded mode instead of
// failing construction; the process keeps serving with reduced
// functionality until a later Reconnect succeeds.
func NewRedisStore(ctx context.Context, addr, password string, db, maxMessages int) *RedisStore {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	s := &RedisStore{
		client:      redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		maxMessages: int64(maxMessages),
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.client.Ping(pingCtx).Err(); err != nil {
		s.state = storeState{degraded: true, reason: err.Error()}
		log.Printf("⚠️ Redis unreachable at %s, starting degraded: %v", addr, err)
	} else {
		log.Printf("Redis connection established at %s", addr)
	}
	return s
}

func (s *RedisStore) unavailable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.degraded {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, s.state.reason)
	}
	return nil
}

// Available reports whether the store is currently connected.
func (s *RedisStore) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.state.degraded
}

// Reconnect re-pings the store and updates the connected/degraded tag
// in both directions. It returns whether the store is connected after
// the probe.
func (s *RedisStore) Reconnect(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := s.client.Ping(pingCtx).Err()

	s.mu.Lock()
	defer s.mu.Unlock()
	wasDegraded := s.state.degraded
	if err != nil {
		s.state = storeState{degraded: true, reason: err.Error()}
		if !wasDegraded {
			log.Printf("⚠️ Redis connection lost, entering degraded mode: %v", err)
		}
		return false
	}
	if wasDegraded {
		log.Printf("✅ Redis connection restored")
	}
	s.state = storeState{}
	return true
}

// AppendAndTrim pushes the encoded records onto the tail of the
// session's log and truncates it to the last maxMessages entries in a
// single transaction, so the bound always holds atomically with the
// append.
func (s *RedisStore) AppendAndTrim(ctx context.Context, sessionID string, encoded []string) error {
	if err := s.unavailable(); err != nil {
		return err
	}
	if len(encoded) == 0 {
		return nil
	}
	values := make([]interface{}, len(encoded))
	for i, e := range encoded {
		values[i] = e
	}
	key := keyPrefix + sessionID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history for session %s: %w", sessionID, err)
	}
	return nil
}

// ReadRange returns the full log for the session, oldest first. A
// session with no entries yields an empty slice.
func (s *RedisStore) ReadRange(ctx context.Context, sessionID string) ([]string, error) {
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	entries, err := s.client.LRange(ctx, keyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history for session %s: %w", sessionID, err)
	}
	return entries, nil
}

// Delete removes the session's log entirely and reports whether a log
// existed. Deleting a missing session is a no-op, not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if err := s.unavailable(); err != nil {
		return false, err
	}
	deleted, err := s.client.Del(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete history for session %s: %w", sessionID, err)
	}
	return deleted > 0, nil
}
