package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// User is the profile carried by the access token.
type User struct {
	ID    string         `json:"id"`
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
	Role  enums.UserRole `json:"role"`
}

// AuthState is the persisted auth blob of a session.
type AuthState struct {
	User            *User  `json:"user"`
	Token           string `json:"token,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Store persists whole auth blobs per session.
type Store interface {
	Load(ctx context.Context, key string) (AuthState, bool, error)
	Save(ctx context.Context, key string, state AuthState) error
	Delete(ctx context.Context, key string) error
}

// RedisStore keeps auth blobs under sf:auth:<session>.
type RedisStore struct {
	blobs redis.BlobStore
	ttl   time.Duration
}

func NewRedisStore(blobs redis.BlobStore, ttl time.Duration) (*RedisStore, error) {
	if blobs == nil {
		return nil, errors.New("redis blob store required")
	}
	return &RedisStore{blobs: blobs, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context, key string) (AuthState, bool, error) {
	raw, err := r.blobs.Get(ctx, r.blobs.AuthKey(key))
	if errors.Is(err, goredis.Nil) {
		return AuthState{}, false, nil
	}
	if err != nil {
		return AuthState{}, false, fmt.Errorf("load auth state: %w", err)
	}
	var state AuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return AuthState{}, false, fmt.Errorf("decode auth state: %w", err)
	}
	return state, true, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, state AuthState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.blobs.Set(ctx, r.blobs.AuthKey(key), raw, r.ttl)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.blobs.Del(ctx, r.blobs.AuthKey(key))
}

// MemoryStore is the in-process Store used without redis and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]AuthState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]AuthState{}}
}

func (m *MemoryStore) Load(_ context.Context, key string) (AuthState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[key]
	return state, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, state AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}
