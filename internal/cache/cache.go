package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"jcr/internal/config"
)

const keyPrefix = "jcr:"

// Entry is a processed response as stored in Redis.
type Entry struct {
	Body       []byte      `json:"body"`
	Headers    http.Header `json:"headers"`
	StatusCode int         `json:"status_code"`
	Timestamp  time.Time   `json:"timestamp"`
	MaxAge     *int        `json:"max_age,omitempty"`
	Expires    *time.Time  `json:"expires,omitempty"`
}

type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func New(cfg config.RedisConfig, defaultTTL time.Duration) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Cache{
		client:     client,
		defaultTTL: defaultTTL,
	}, nil
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached entry for r, or nil on a miss. Redis errors are
// logged and reported as misses.
func (c *Cache) Get(r *http.Request, cfg *config.Config) *Entry {
	if !cfg.CachingEnabled() {
		return nil
	}

	ctx := r.Context()
	key := c.generateKey(r)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Failed to read from cache", "key", key, "error", err)
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Error("Failed to decode cache entry", "key", key, "error", err)
		return nil
	}

	if c.isExpired(&entry) {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			slog.Error("Failed to delete expired cache entry", "key", key, "error", err)
		}
		return nil
	}

	return &entry
}

// Set stores entry for r. Freshness comes from the entry's own headers when
// present.
func (c *Cache) Set(r *http.Request, entry *Entry, cfg *config.Config) error {
	if !cfg.CachingEnabled() {
		return nil
	}

	if entry.MaxAge == nil {
		entry.MaxAge = parseMaxAge(entry.Headers.Get("Cache-Control"))
	}
	if entry.Expires == nil {
		entry.Expires = parseExpires(entry.Headers.Get("Expires"))
	}

	ttl := c.calculateTTL(entry)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(r.Context(), c.generateKey(r), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// IsCacheable reports whether a processed response may be stored.
func (c *Cache) IsCacheable(resp *http.Response) bool {
	if resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}

	if resp.StatusCode != http.StatusOK {
		return false
	}

	if resp.Header.Get("Set-Cookie") != "" {
		return false
	}

	cacheControl := strings.ToLower(resp.Header.Get("Cache-Control"))
	for _, directive := range []string{"no-cache", "no-store", "private"} {
		if strings.Contains(cacheControl, directive) {
			return false
		}
	}

	return true
}

func (c *Cache) generateKey(r *http.Request) string {
	h := xxhash.New()
	_, _ = h.WriteString(r.Method)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(r.URL.Path)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(r.URL.RawQuery)
	for _, name := range []string{"Accept", "Accept-Encoding"} {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(r.Header.Get(name))
	}
	return keyPrefix + strconv.FormatUint(h.Sum64(), 16)
}

func (c *Cache) isExpired(entry *Entry) bool {
	return c.calculateTTL(entry) <= 0
}

// calculateTTL returns the remaining lifetime of entry: max-age first, then
// Expires, then the default.
func (c *Cache) calculateTTL(entry *Entry) time.Duration {
	if entry.MaxAge != nil {
		return time.Until(entry.Timestamp.Add(time.Duration(*entry.MaxAge) * time.Second))
	}
	if entry.Expires != nil {
		return time.Until(*entry.Expires)
	}

	defaultTTL := c.defaultTTL
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return time.Until(entry.Timestamp.Add(defaultTTL))
}

func parseMaxAge(cacheControl string) *int {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		value, ok := strings.CutPrefix(strings.ToLower(directive), "max-age=")
		if !ok {
			continue
		}
		maxAge, err := strconv.Atoi(value)
		if err != nil || maxAge < 0 {
			return nil
		}
		return &maxAge
	}
	return nil
}

func parseExpires(expires string) *time.Time {
	if expires == "" {
		return nil
	}
	t, err := http.ParseTime(expires)
	if err != nil {
		return nil
	}
	return &t
}
