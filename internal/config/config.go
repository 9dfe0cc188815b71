package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `envconfig:"DB"`

	// Tracker configuration
	Tracker TrackerConfig `envconfig:"TRACKER"`

	// Category table configuration
	Categories CategoryConfig `envconfig:"CATEGORIES"`

	// Daemon configuration
	Daemon DaemonConfig `envconfig:"DAEMON"`

	// Web server configuration
	Web WebConfig `envconfig:"WEB"`

	// Logging configuration
	Log LogConfig `envconfig:"LOG"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path          string `envconfig:"PATH"`           // Path to SQLite database file
	RetentionDays int    `envconfig:"RETENTION_DAYS"` // 0 keeps history forever
}

// TrackerConfig holds tracking behavior configuration
type TrackerConfig struct {
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL"` // How often to check focused window
	MinPollInterval    time.Duration `ignored:"true"`
	MaxPollInterval    time.Duration `ignored:"true"`
	ObserveTimeout     time.Duration `envconfig:"OBSERVE_TIMEOUT"`     // 0 means one poll interval
	CheckpointInterval time.Duration `envconfig:"CHECKPOINT_INTERVAL"` // How often open sessions are heartbeated
	TimeZone           string        `envconfig:"TIMEZONE"`
	AutoStartApps      []string      `envconfig:"AUTOSTART_APPS"`
	AutoStartInterval  time.Duration `envconfig:"AUTOSTART_INTERVAL"`
}

// CategoryConfig describes where categories come from and how they are charted
type CategoryConfig struct {
	Path    string   `envconfig:"PATH"`    // Optional YAML file mapping category -> executables
	Default string   `envconfig:"DEFAULT"` // Category for unmapped executables
	Columns []string `envconfig:"COLUMNS"` // Chart column order
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `envconfig:"PID_FILE"` // Path to PID file for daemon management
	LogFile string `envconfig:"LOG_FILE"` // Where the detached daemon writes its log
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `envconfig:"HOST"` // Host to bind web server to
	Port int    `envconfig:"PORT"` // Port for web server
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `envconfig:"LEVEL"`
	Development bool   `envconfig:"DEV"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/appclock/appclock.db
		},
		Tracker: TrackerConfig{
			PollInterval:       1 * time.Second,
			MinPollInterval:    1 * time.Second,
			MaxPollInterval:    300 * time.Second,
			CheckpointInterval: 30 * time.Second,
			TimeZone:           "Local",
			AutoStartInterval:  5 * time.Second,
		},
		Categories: CategoryConfig{
			Default: "utilities",
			Columns: []string{"utilities", "entertainment", "productivity"},
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/appclock-%d.pid", os.Getuid()),
			LogFile: fmt.Sprintf("/tmp/appclock-%d.log", os.Getuid()),
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 10000 + os.Getuid(), // Default port based on user ID
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate tracker intervals
	if c.Tracker.PollInterval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Tracker.PollInterval, c.Tracker.MinPollInterval)
	}

	if c.Tracker.PollInterval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Tracker.PollInterval, c.Tracker.MaxPollInterval)
	}

	if c.Tracker.ObserveTimeout < 0 || c.Tracker.ObserveTimeout > c.Tracker.PollInterval {
		return fmt.Errorf("observe timeout (%v) must be between 0 and the poll interval (%v)",
			c.Tracker.ObserveTimeout, c.Tracker.PollInterval)
	}

	if c.Tracker.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint interval cannot be negative")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if len(c.Tracker.AutoStartApps) > 0 && c.Tracker.AutoStartInterval <= 0 {
		return fmt.Errorf("autostart interval must be positive when autostart apps are set")
	}

	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	// Validate categories
	if strings.TrimSpace(c.Categories.Default) == "" {
		return fmt.Errorf("default category cannot be empty")
	}

	if len(c.Categories.Columns) == 0 {
		return fmt.Errorf("at least one chart column is required")
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Tracker.MinPollInterval)
	}
	if interval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Tracker.MaxPollInterval)
	}
	c.Tracker.PollInterval = interval
	if c.Tracker.ObserveTimeout > interval {
		c.Tracker.ObserveTimeout = interval
	}
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// ObserveTimeout returns how long a single focus query may take.
func (c *Config) ObserveTimeout() time.Duration {
	if c.Tracker.ObserveTimeout > 0 {
		return c.Tracker.ObserveTimeout
	}
	return c.Tracker.PollInterval
}

// Location resolves the time zone that defines calendar days.
func (c *Config) Location() (*time.Location, error) {
	switch c.Tracker.TimeZone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Tracker.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.Tracker.TimeZone, err)
	}
	return loc, nil
}

// Address returns the host:port the web API listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
    Retention Days: %d
  Tracker:
    Poll Interval: %v
    Observe Timeout: %v
    Checkpoint Interval: %v
    Time Zone: %s
    Autostart Apps: %s
  Categories:
    File: %s
    Default: %s
    Columns: %s
  Daemon:
    PID File: %s
    Log File: %s
  Web:
    Host: %s
    Port: %d
  Log:
    Level: %s`,
		c.Database.Path,
		c.Database.RetentionDays,
		c.Tracker.PollInterval,
		c.ObserveTimeout(),
		c.Tracker.CheckpointInterval,
		c.Tracker.TimeZone,
		strings.Join(c.Tracker.AutoStartApps, ", "),
		c.Categories.Path,
		c.Categories.Default,
		strings.Join(c.Categories.Columns, ", "),
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Web.Host,
		c.Web.Port,
		c.Log.Level,
	)
}
