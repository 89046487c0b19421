// Package config provides configuration management for the Obscura Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort     = 8897
	DefaultLogLevel = "info"
	DefaultDataDir  = ".obscura"
	DefaultTrackCap = 300

	// Environment variable names
	EnvPort       = "OBSCURA_PORT"
	EnvLogLevel   = "OBSCURA_LOG_LEVEL"
	EnvDataDir    = "OBSCURA_DATA_DIR"
	EnvCascadeDir = "OBSCURA_CASCADE_DIR"
	EnvHeadless   = "OBSCURA_HEADLESS"
	EnvTrackCap   = "OBSCURA_TRACK_CAP"

	// Database filename
	DBFilename = "obscura.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	CascadeDir() string
	Headless() bool
	TrackCap() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	cascadeDir string
	headless   bool
	trackCap   int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:       DefaultPort,
		logLevel:   DefaultLogLevel,
		dataDir:    defaultDataDir(),
		cascadeDir: defaultCascadeDir(),
		trackCap:   DefaultTrackCap,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if cd := os.Getenv(EnvCascadeDir); cd != "" {
		cfg.cascadeDir = cd
	}

	if tc := os.Getenv(EnvTrackCap); tc != "" {
		n, err := strconv.Atoi(tc)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTrackCap, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvTrackCap)
		}
		cfg.trackCap = n
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CascadeDir returns the directory holding the Haar cascade XML files.
func (c *EnvConfig) CascadeDir() string {
	return c.cascadeDir
}

// Headless reports whether the agent should run without the tray icon.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// TrackCap returns the per-run tracked frame limit.
func (c *EnvConfig) TrackCap() int {
	return c.trackCap
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// defaultCascadeDir falls back to the cascades shipped next to the data dir.
func defaultCascadeDir() string {
	return filepath.Join(defaultDataDir(), "cascades")
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
