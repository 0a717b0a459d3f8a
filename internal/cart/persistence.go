package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// ErrCorruptState marks a stored blob that could not be decoded.
var ErrCorruptState = errors.New("corrupt cart state")

// Persistence loads and saves whole session blobs. There are no partial writes.
type Persistence interface {
	Load(ctx context.Context, key string) (State, bool, error)
	Save(ctx context.Context, key string, state State) error
	Delete(ctx context.Context, key string) error
}

func encodeState(state State) ([]byte, error) {
	return json.Marshal(state)
}

func decodeState(raw []byte) (State, error) {
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return state, nil
}

// MemoryPersistence keeps encoded blobs in process memory.
type MemoryPersistence struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{blobs: map[string][]byte{}}
}

func (m *MemoryPersistence) Load(_ context.Context, key string) (State, bool, error) {
	m.mu.Lock()
	raw, ok := m.blobs[key]
	m.mu.Unlock()
	if !ok {
		return State{}, false, nil
	}
	state, err := decodeState(raw)
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (m *MemoryPersistence) Save(_ context.Context, key string, state State) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryPersistence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
	return nil
}

// RedisPersistence stores each session blob under sf:cart:<session>.
type RedisPersistence struct {
	blobs redis.BlobStore
	ttl   time.Duration
}

// NewRedisPersistence builds a redis-backed port; a zero ttl keeps blobs forever.
func NewRedisPersistence(blobs redis.BlobStore, ttl time.Duration) (*RedisPersistence, error) {
	if blobs == nil {
		return nil, errors.New("redis blob store required")
	}
	return &RedisPersistence{blobs: blobs, ttl: ttl}, nil
}

func (r *RedisPersistence) Load(ctx context.Context, key string) (State, bool, error) {
	raw, err := r.blobs.Get(ctx, r.blobs.CartKey(key))
	if errors.Is(err, goredis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load cart: %w", err)
	}
	state, err := decodeState([]byte(raw))
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (r *RedisPersistence) Save(ctx context.Context, key string, state State) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := r.blobs.Set(ctx, r.blobs.CartKey(key), raw, r.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *RedisPersistence) Delete(ctx context.Context, key string) error {
	if err := r.blobs.Del(ctx, r.blobs.CartKey(key)); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
