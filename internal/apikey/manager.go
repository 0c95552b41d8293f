package apikey

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/tallyd/internal/config"
	kerrors "github.com/jmylchreest/tallyd/internal/errors"
)

// Manager handles API key business logic.
//
// Concurrency contract: all mutations and persistence go through
// config.Config, which encapsulates its own mutex; this manager layers no
// additional locking. Returned *config.APIKey pointers are copies and safe
// to hold.
type Manager struct {
	cfg *config.Config
	log *slog.Logger
}

// NewManager creates a new APIKeyManager
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg: cfg,
		log: logger,
	}
	logger.Info("Loaded API keys from config", "count", len(cfg.GetAPIKeys()))
	return m
}

// CreateAPIKey generates a new API key, stores it, and saves the config.
func (m *Manager) CreateAPIKey(name string, expiresIn time.Duration) (*config.APIKey, error) {
	for _, existingKey := range m.cfg.GetAPIKeys() {
		if existingKey.Name == name {
			return nil, kerrors.InvalidInputf("API key with name %q already exists", name)
		}
	}

	keyString, err := config.GenerateKey(config.DefaultKeyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key string: %w", err)
	}

	newKey := config.APIKey{
		Key:       keyString,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if expiresIn > 0 {
		newKey.ExpiresAt = time.Now().UTC().Add(expiresIn)
	}

	if err := m.cfg.AddAPIKey(newKey); err != nil {
		return nil, fmt.Errorf("failed to add API key to config: %w", err)
	}

	// Save the configuration to persist the new key
	if err := m.cfg.Save(); err != nil {
		m.log.Error("failed to save config after adding API key", "name", name, "error", err)
		return nil, fmt.Errorf("API key added to memory but failed to save to disk: %w", err)
	}

	m.log.Info("created API key and saved to config", "name", name, "key_prefix", newKey.Key[:4])
	return &newKey, nil
}

// ListAPIKeys returns all API keys.
func (m *Manager) ListAPIKeys() []config.APIKey {
	return m.cfg.GetAPIKeys()
}

// DeleteAPIKey removes an API key and saves the config.
func (m *Manager) DeleteAPIKey(key string) error {
	if !m.cfg.DeleteAPIKey(key) {
		return kerrors.NotFoundf("API key %q not found for deletion", key)
	}

	if err := m.cfg.Save(); err != nil {
		m.log.Error("failed to save config after deleting API key", "key_prefix", key[:4], "error", err)
		return fmt.Errorf("API key deleted from memory but failed to save to disk: %w", err)
	}
	m.log.Info("deleted API key and saved to config", "key_prefix", key[:4])
	return nil
}

// ValidateAPIKey checks if an API key is valid (exists, not disabled, not
// expired). On success it stamps LastUsedAt and persists it best-effort.
func (m *Manager) ValidateAPIKey(key string) (*config.APIKey, error) {
	apiKey, found := m.cfg.FindAPIKey(key)
	if !found {
		return nil, kerrors.NotFoundf("API key not found")
	}

	if apiKey.IsDisabled() {
		return nil, fmt.Errorf("API key is disabled")
	}

	if apiKey.IsExpired() {
		return nil, fmt.Errorf("API key has expired")
	}

	if err := m.cfg.UpdateAPIKeyLastUsed(key, time.Now().UTC()); err != nil {
		m.log.Error("failed to update last used timestamp for API key", "key_prefix", key[:4], "error", err)
		return apiKey, nil
	}

	// The key stays valid even when the LastUsedAt stamp cannot be persisted.
	if err := m.cfg.Save(); err != nil {
		m.log.Error("failed to save config after updating API key LastUsedAt", "key_prefix", key[:4], "error", err)
	}

	return apiKey, nil
}

// SetAPIKeyDisabledStatus updates the disabled status of an API key and saves the config.
func (m *Manager) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (*config.APIKey, error) {
	updatedKey, err := m.cfg.SetAPIKeyDisabledStatus(keyOrName, disabled)
	if err != nil {
		m.log.Error("failed to set API key disabled status", "key_or_name", keyOrName, "disabled", disabled, "error", err)
		return nil, kerrors.NotFoundf("API key %q not found", keyOrName)
	}

	if err := m.cfg.Save(); err != nil {
		m.log.Error("failed to save config after setting API key disabled status", "key_or_name", keyOrName, "error", err)
		return nil, fmt.Errorf("API key status updated in memory but failed to save to disk: %w", err)
	}
	m.log.Info("set API key disabled status and saved to config", "key_or_name", keyOrName, "disabled", disabled)
	return updatedKey, nil
}
