// Package ratelimiter throttles the admin HTTP surface per caller.
package ratelimiter

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pitabwire/translation-manager/config"
)

const (
	defaultRequestsPerSecond = 20
	defaultBurstSize         = 40
	defaultCleanupInterval   = 5 * time.Minute
	defaultEntryTTL          = 10 * time.Minute
	defaultMaxEntries        = 100000
)

// Settings sizes the token bucket kept for each caller.
type Settings struct {
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
	EntryTTL          time.Duration
	MaxEntries        int
}

// DefaultSettings returns the limits used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		RequestsPerSecond: defaultRequestsPerSecond,
		BurstSize:         defaultBurstSize,
		CleanupInterval:   defaultCleanupInterval,
		EntryTTL:          defaultEntryTTL,
		MaxEntries:        defaultMaxEntries,
	}
}

// SettingsFromConfig reads the request rate and burst from the process configuration.
func SettingsFromConfig(cfg config.ConfigurationRateLimit) *Settings {
	settings := DefaultSettings()
	if cfg == nil {
		return settings
	}
	settings.RequestsPerSecond = cfg.RateLimitRPS()
	settings.BurstSize = cfg.RateLimitBurstSize()
	return settings
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

// KeyedLimiter keeps one token bucket per caller key. Idle buckets are dropped after EntryTTL.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*limiterEntry
	config  Settings

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewKeyedLimiter starts the cleanup loop; Close stops it.
func NewKeyedLimiter(cfg *Settings) *KeyedLimiter {
	settings := normalizeConfig(cfg)
	kl := &KeyedLimiter{
		entries: make(map[string]*limiterEntry),
		config:  settings,
		stopCh:  make(chan struct{}),
	}

	go kl.cleanupLoop()
	return kl
}

// Allow consumes a token of key's bucket.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.AllowN(key, 1)
}

// AllowN consumes n tokens of key's bucket, reporting false when they are not available.
func (k *KeyedLimiter) AllowN(key string, n int) bool {
	if n <= 0 {
		return true
	}

	entry := k.getOrCreateEntry(normalizeKey(key))
	entry.lastAccess.Store(time.Now().UnixNano())
	return entry.limiter.AllowN(time.Now(), n)
}

// Len returns the number of tracked callers.
func (k *KeyedLimiter) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// Close stops the cleanup loop.
func (k *KeyedLimiter) Close() error {
	k.stopOnce.Do(func() {
		close(k.stopCh)
	})
	return nil
}

func normalizeConfig(cfg *Settings) Settings {
	if cfg == nil {
		return *DefaultSettings()
	}

	result := *cfg
	if result.RequestsPerSecond <= 0 {
		result.RequestsPerSecond = defaultRequestsPerSecond
	}
	if result.BurstSize <= 0 {
		result.BurstSize = defaultBurstSize
	}
	if result.CleanupInterval <= 0 {
		result.CleanupInterval = defaultCleanupInterval
	}
	if result.EntryTTL <= 0 {
		result.EntryTTL = defaultEntryTTL
	}
	if result.MaxEntries <= 0 {
		result.MaxEntries = defaultMaxEntries
	}

	return result
}

func normalizeKey(key string) string {
	if key == "" {
		return "unknown"
	}
	return key
}

// RetryAfter is how long an empty bucket takes to earn one token back.
func (k *KeyedLimiter) RetryAfter() time.Duration {
	return time.Second / time.Duration(k.config.RequestsPerSecond)
}

func (k *KeyedLimiter) getOrCreateEntry(key string) *limiterEntry {
	k.mu.RLock()
	entry, found := k.entries[key]
	k.mu.RUnlock()
	if found {
		return entry
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	entry, found = k.entries[key]
	if found {
		return entry
	}

	entry = &limiterEntry{
		limiter: rate.NewLimiter(rate.Limit(float64(k.config.RequestsPerSecond)), k.config.BurstSize),
	}
	entry.lastAccess.Store(time.Now().UnixNano())
	k.entries[key] = entry

	k.evictIfNeededLocked()
	return entry
}

func (k *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(k.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.cleanupExpired()
		case <-k.stopCh:
			return
		}
	}
}

func (k *KeyedLimiter) cleanupExpired() {
	cutoff := time.Now().Add(-k.config.EntryTTL).UnixNano()

	k.mu.Lock()
	defer k.mu.Unlock()

	for key, entry := range k.entries {
		if entry.lastAccess.Load() < cutoff {
			delete(k.entries, key)
		}
	}
}

func (k *KeyedLimiter) evictIfNeededLocked() {
	if len(k.entries) <= k.config.MaxEntries {
		return
	}

	for len(k.entries) > k.config.MaxEntries {
		oldestKey := ""
		oldest := int64(time.Now().UnixNano())
		for key, entry := range k.entries {
			last := entry.lastAccess.Load()
			if last <= oldest {
				oldest = last
				oldestKey = key
			}
		}

		if oldestKey == "" {
			return
		}
		delete(k.entries, oldestKey)
	}
}
