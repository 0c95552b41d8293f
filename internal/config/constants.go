package config

import "time"

// Common constants shared between daemon and client
const (
	// ConfigDirName is the name of the config directory within XDG_CONFIG_HOME
	ConfigDirName = "tallyd"

	// DaemonConfigFilename is the base filename for daemon config
	DaemonConfigFilename = "tallyd.yaml"

	// ClientConfigFilename is the base filename for client config
	ClientConfigFilename = "tallyctl.yaml"

	// SocketFilename is the base filename for the Unix socket
	SocketFilename = "tallyd.sock"

	// DefaultKeyLength is the default length for generated API keys
	DefaultKeyLength = 32

	// DefaultKeyCharset is the characters used for API key generation
	DefaultKeyCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultAPIListenAddress is the default HTTP API listen address
	DefaultAPIListenAddress = ":9123"
)

// MIDI transport defaults. Controller numbers follow the Pro Tools
// peripheral setup the studio uses; values are overridable per install.
const (
	// DefaultMIDIPortName is the input port opened (or created) for the DAW
	DefaultMIDIPortName = "Pro Tools Recording Lights"

	// DefaultControllerPlay is the CC number signalling play/stop
	DefaultControllerPlay = 117

	// DefaultControllerRecord is the CC number signalling record-enable
	DefaultControllerRecord = 118

	// DefaultOnThreshold is the minimum CC value interpreted as ON
	DefaultOnThreshold = 1

	// DefaultDebounceWindow is the quiet period before a combined
	// transport-state change is acted on
	DefaultDebounceWindow = 250 * time.Millisecond
)

// Default timeouts and intervals
const (
	// DefaultDiscoveryTimeout bounds a single broadcast discovery sweep
	DefaultDiscoveryTimeout = 10 * time.Second

	// DefaultDiscoveryInterval is the default interval for background re-discovery
	DefaultDiscoveryInterval = 300 * time.Second

	// MinDiscoveryInterval is the minimum allowed discovery interval
	MinDiscoveryInterval = 30 * time.Second

	// DefaultDeviceTimeout bounds a single per-device actuation command
	DefaultDeviceTimeout = 5 * time.Second
)

// Bulb constraints
const (
	// MinBrightness is the minimum allowed bulb brightness value
	MinBrightness = 1

	// MaxBrightness is the maximum allowed bulb brightness value
	MaxBrightness = 100

	// DefaultBulbBrightness is applied when a bulb is switched on
	DefaultBulbBrightness = 75
)

// Logging constants
const (
	// LogLevelDebug represents debug log level
	LogLevelDebug = "debug"

	// LogLevelInfo represents info log level
	LogLevelInfo = "info"

	// LogLevelWarn represents warning log level
	LogLevelWarn = "warn"

	// LogLevelError represents error log level
	LogLevelError = "error"

	// LogFormatText represents text log format
	LogFormatText = "text"

	// LogFormatJSON represents JSON log format
	LogFormatJSON = "json"
)
