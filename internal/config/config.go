package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DeviceKind identifies the class of a tally device.
type DeviceKind string

const (
	// DeviceKindSocket is a binary smart socket (relay)
	DeviceKindSocket DeviceKind = "socket"

	// DeviceKindBulb is a smart bulb driven at a fixed brightness
	DeviceKindBulb DeviceKind = "bulb"
)

// Valid reports whether the kind is one of the supported device classes.
func (k DeviceKind) Valid() bool {
	return k == DeviceKindSocket || k == DeviceKindBulb
}

// Device is the static descriptor for one tally light endpoint. Identity is
// DeviceID (the hardware-assigned identifier reported by the device itself);
// Name and Location are display-only and never used for addressing.
type Device struct {
	Name     string     `mapstructure:"name" yaml:"name" json:"name"`
	Location string     `mapstructure:"location" yaml:"location" json:"location"`
	Kind     DeviceKind `mapstructure:"kind" yaml:"kind" json:"kind"`
	DeviceID string     `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
}

// ServerConfig represents the control socket configuration
type ServerConfig struct {
	UnixSocket string `mapstructure:"unix_socket" yaml:"unix_socket"`
}

// MIDIConfig represents the inbound transport configuration
type MIDIConfig struct {
	PortName    string        `mapstructure:"port_name" yaml:"port_name"`
	CCPlay      int           `mapstructure:"cc_play" yaml:"cc_play"`
	CCRecord    int           `mapstructure:"cc_record" yaml:"cc_record"`
	OnThreshold int           `mapstructure:"on_threshold" yaml:"on_threshold"`
	Debounce    time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// DiscoveryConfig represents the device discovery configuration
type DiscoveryConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ActuationConfig represents the per-device command configuration
type ActuationConfig struct {
	DeviceTimeout  time.Duration `mapstructure:"device_timeout" yaml:"device_timeout"`
	BulbBrightness int           `mapstructure:"bulb_brightness" yaml:"bulb_brightness"`
}

// APIConfig represents the HTTP API configuration, including persisted keys
type APIConfig struct {
	ListenAddress string   `mapstructure:"listen_address" yaml:"listen_address"`
	APIKeys       []APIKey `mapstructure:"keys" yaml:"keys"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	MIDI      MIDIConfig      `mapstructure:"midi" yaml:"midi"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Actuation ActuationConfig `mapstructure:"actuation" yaml:"actuation"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Devices   []Device        `mapstructure:"devices" yaml:"devices"`

	// mu guards mutable state (API keys) and Save; the device list and the
	// remaining sections are immutable after Load.
	mu sync.RWMutex
	v  *viper.Viper
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.unix_socket", GetRuntimeSocketPath())
	v.SetDefault("midi.port_name", DefaultMIDIPortName)
	v.SetDefault("midi.cc_play", DefaultControllerPlay)
	v.SetDefault("midi.cc_record", DefaultControllerRecord)
	v.SetDefault("midi.on_threshold", DefaultOnThreshold)
	v.SetDefault("midi.debounce", DefaultDebounceWindow)
	v.SetDefault("discovery.timeout", DefaultDiscoveryTimeout)
	v.SetDefault("discovery.interval", DefaultDiscoveryInterval)
	v.SetDefault("actuation.device_timeout", DefaultDeviceTimeout)
	v.SetDefault("actuation.bulb_brightness", DefaultBulbBrightness)
	v.SetDefault("api.listen_address", DefaultAPIListenAddress)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.format", LogFormatText)
}

// New creates a Config bound to the given viper instance with defaults
// applied. Used by tests and programmatic construction; normal startup goes
// through Load.
func New(v *viper.Viper) *Config {
	applyDefaults(v)
	cfg := &Config{v: v}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from a file and environment variables
func Load(configName, configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	applyDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		slog.Info("Using config file from command line", "path", configFile)
	} else {
		configPath := GetConfigPath(configName)
		v.SetConfigFile(configPath)

		// Create config directory if it doesn't exist
		if err := os.MkdirAll(GetConfigBaseDir(), 0755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}

		// Only log if config file exists
		if _, err := os.Stat(configPath); err == nil {
			slog.Info("Using default config file", "path", configPath)
		}
	}

	// A missing file means defaults; anything else (unreadable, bad YAML) is fatal
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("TALLYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Discovery.Interval = ValidateDiscoveryInterval(cfg.Discovery.Interval)

	if err := cfg.validateDevices(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateDevices rejects entries that could never be actuated.
func (c *Config) validateDevices() error {
	seen := make(map[string]struct{}, len(c.Devices))
	for i, d := range c.Devices {
		if d.DeviceID == "" {
			return fmt.Errorf("device %d (%q): device_id is required", i, d.Name)
		}
		if !d.Kind.Valid() {
			return fmt.Errorf("device %q: unknown kind %q (want %q or %q)",
				d.DeviceID, d.Kind, DeviceKindSocket, DeviceKindBulb)
		}
		if _, dup := seen[d.DeviceID]; dup {
			return fmt.Errorf("device %q: duplicate device_id", d.DeviceID)
		}
		seen[d.DeviceID] = struct{}{}
	}
	return nil
}

// FindDevice returns the configured device with the given ID.
func (c *Config) FindDevice(deviceID string) (Device, bool) {
	for _, d := range c.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return Device{}, false
}

// Save saves the configuration to file
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.v.ConfigFileUsed()
	if path == "" {
		path = GetDaemonConfigPath()
		c.v.SetConfigFile(path)
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Update viper with current values
	c.v.Set("server", c.Server)
	c.v.Set("midi", c.MIDI)
	c.v.Set("discovery", c.Discovery)
	c.v.Set("actuation", c.Actuation)
	c.v.Set("api", c.API)
	c.v.Set("logging", c.Logging)
	c.v.Set("devices", c.Devices)

	if err := c.v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Get retrieves a value from the configuration
func (c *Config) Get(key string) any {
	if c.v == nil {
		return nil
	}
	return c.v.Get(key)
}

// Set sets a value in the configuration
func (c *Config) Set(key string, value any) {
	if c.v == nil {
		return
	}
	c.v.Set(key, value)
}
