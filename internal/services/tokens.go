package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2"
)

const (
	redisKeyPrefix       = "playdeck:token:"
	defaultSweepSchedule = "@every 5m"
	defaultTokenFile     = "./tmp/tokens.json"
)

// TokenStore keeps provider tokens keyed by user.
//
// Load returns [shared.ErrTokenNotFound] for unknown or expired keys.
type TokenStore interface {
	Save(ctx context.Context, key string, token *oauth2.Token) error
	Load(ctx context.Context, key string) (*oauth2.Token, error)
	Delete(ctx context.Context, key string) error
}

// NewTokenStore builds the store selected by cfg.Backend.
//
// The returned close function releases backend connections and stops the sweep schedule.
func NewTokenStore(ctx context.Context, cfg shared.TokenConfig, logger *log.Logger) (TokenStore, func() error, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		store := NewMemoryTokenStore(cfg.Expiry())
		schedule := cfg.SweepSchedule
		if schedule == "" {
			schedule = defaultSweepSchedule
		}
		c, err := ScheduleSweep(store, schedule, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { <-c.Stop().Done(); return nil }, nil
	case "redis":
		store, err := NewRedisTokenStore(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.Expiry())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "file":
		path := cfg.File
		if path == "" {
			path = defaultTokenFile
		}
		return NewFileTokenStore(path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown token backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: token key is required", shared.ErrInvalidInput)
	}
	return nil
}

type memoryEntry struct {
	token   *oauth2.Token
	expires time.Time
}

// MemoryTokenStore is a process-local [TokenStore] whose entries expire ttl after being saved.
// A zero ttl keeps entries until deleted.
type MemoryTokenStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore(ttl time.Duration) *MemoryTokenStore {
	return &MemoryTokenStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryTokenStore) Save(_ context.Context, key string, token *oauth2.Token) error {
	if err := validKey(key); err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("%w: token is required", shared.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{token: copyToken(token)}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryTokenStore) Load(_ context.Context, key string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || m.expired(entry) {
		return nil, shared.ErrTokenNotFound
	}
	return copyToken(entry.token), nil
}

func (m *MemoryTokenStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of entries, expired or not.
func (m *MemoryTokenStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryTokenStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryTokenStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

// ScheduleSweep runs store.Sweep on a cron schedule and returns the started scheduler.
func ScheduleSweep(store *MemoryTokenStore, schedule string, logger *log.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := store.Sweep(); n > 0 {
			logger.Debug("swept expired tokens", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sweep schedule %q: %v", shared.ErrInvalidConfig, schedule, err)
	}
	c.Start()
	return c, nil
}

// RedisTokenStore keeps tokens as JSON strings that Redis expires after ttl.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenStore connects and pings the server.
func NewRedisTokenStore(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisTokenStore, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to connect to redis at %s: %v", shared.ErrServiceUnavailable, opts.Addr, err)
	}
	return NewRedisTokenStoreFromClient(client, ttl), nil
}

// NewRedisTokenStoreFromClient wraps an existing client.
func NewRedisTokenStoreFromClient(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, ttl: ttl}
}

func (r *RedisTokenStore) Save(ctx context.Context, key string, token *oauth2.Token) error {
	if err := validKey(key); err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("%w: token is required", shared.ErrInvalidInput)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) Load(ctx context.Context, key string) (*oauth2.Token, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

func (r *RedisTokenStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisTokenStore) Close() error {
	return r.client.Close()
}

// FileTokenStore persists tokens as a JSON object on disk, readable only by the owner.
//
// Entries never expire; the refresh token renews access across runs.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore creates a store backed by path. The file is created on first save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the backing file.
func (f *FileTokenStore) Path() string {
	return f.path
}

func (f *FileTokenStore) Save(_ context.Context, key string, token *oauth2.Token) error {
	if err := validKey(key); err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("%w: token is required", shared.ErrInvalidInput)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return err
	}
	tokens[key] = token
	return f.write(tokens)
}

func (f *FileTokenStore) Load(_ context.Context, key string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return nil, err
	}
	token, ok := tokens[key]
	if !ok || token == nil {
		return nil, shared.ErrTokenNotFound
	}
	return token, nil
}

func (f *FileTokenStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := tokens[key]; !ok {
		return nil
	}
	delete(tokens, key)
	return f.write(tokens)
}

func (f *FileTokenStore) read() (map[string]*oauth2.Token, error) {
	tokens := make(map[string]*oauth2.Token)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return tokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(data) == 0 {
		return tokens, nil
	}
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return tokens, nil
}

func (f *FileTokenStore) write(tokens map[string]*oauth2.Token) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	c := *t
	return &c
}
