package config

import (
	"crypto/rand"
	"fmt"
	"time"
)

// APIKey is a persisted credential for the HTTP API.
type APIKey struct {
	Key        string    `mapstructure:"key" yaml:"key" json:"key"`
	Name       string    `mapstructure:"name" yaml:"name" json:"name"`
	CreatedAt  time.Time `mapstructure:"created_at" yaml:"created_at" json:"created_at"`
	ExpiresAt  time.Time `mapstructure:"expires_at" yaml:"expires_at" json:"expires_at"`
	LastUsedAt time.Time `mapstructure:"last_used_at" yaml:"last_used_at" json:"last_used_at"`
	Disabled   bool      `mapstructure:"disabled" yaml:"disabled" json:"disabled"`
}

// IsExpired reports whether the key has an expiry in the past.
// A zero ExpiresAt means the key never expires.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(k.ExpiresAt)
}

// IsDisabled reports whether the key has been administratively disabled.
func (k *APIKey) IsDisabled() bool {
	return k.Disabled
}

// GenerateKey returns a random key string of the given length drawn from
// DefaultKeyCharset.
func GenerateKey(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid key length %d", length)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = DefaultKeyCharset[int(b)%len(DefaultKeyCharset)]
	}
	return string(buf), nil
}

// GetAPIKeys returns a copy of all persisted API keys.
func (c *Config) GetAPIKeys() []APIKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]APIKey, len(c.API.APIKeys))
	copy(keys, c.API.APIKeys)
	return keys
}

// AddAPIKey appends a new key. The key string must be unique.
func (c *Config) AddAPIKey(key APIKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.API.APIKeys {
		if existing.Key == key.Key {
			return fmt.Errorf("API key already exists")
		}
	}
	c.API.APIKeys = append(c.API.APIKeys, key)
	return nil
}

// DeleteAPIKey removes the key with the given key string, reporting whether
// anything was removed.
func (c *Config) DeleteAPIKey(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.API.APIKeys {
		if existing.Key == key {
			c.API.APIKeys = append(c.API.APIKeys[:i], c.API.APIKeys[i+1:]...)
			return true
		}
	}
	return false
}

// FindAPIKey returns a copy of the key with the given key string.
func (c *Config) FindAPIKey(key string) (*APIKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.API.APIKeys {
		if c.API.APIKeys[i].Key == key {
			found := c.API.APIKeys[i]
			return &found, true
		}
	}
	return nil, false
}

// UpdateAPIKeyLastUsed stamps the key's LastUsedAt.
func (c *Config) UpdateAPIKeyLastUsed(key string, usedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.API.APIKeys {
		if c.API.APIKeys[i].Key == key {
			c.API.APIKeys[i].LastUsedAt = usedAt
			return nil
		}
	}
	return fmt.Errorf("API key not found")
}

// SetAPIKeyDisabledStatus enables or disables a key, matched by key string
// or by name. Returns a copy of the updated key.
func (c *Config) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (*APIKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.API.APIKeys {
		if c.API.APIKeys[i].Key == keyOrName || c.API.APIKeys[i].Name == keyOrName {
			c.API.APIKeys[i].Disabled = disabled
			updated := c.API.APIKeys[i]
			return &updated, nil
		}
	}
	return nil, fmt.Errorf("API key %q not found", keyOrName)
}
