// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is constructed
// explicitly by the caller (cmd layer or tests) and passed down; no package
// in this module reads process-wide state on its own.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Humanoid    HumanoidConfig    `mapstructure:"humanoid" yaml:"humanoid"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig tunes the headless engine that carries login attempts.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	Args            []string      `mapstructure:"args" yaml:"args"`
}

// AuthConfig bounds the login state machine's waits. Each budget covers one
// category of network-bound operation; none of them caps the whole attempt.
type AuthConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	NetworkIdleWait   time.Duration `mapstructure:"network_idle_wait" yaml:"network_idle_wait"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxPasswordPolls  int           `mapstructure:"max_password_polls" yaml:"max_password_polls"`
}

// HumanoidConfig carries the tunable parameters of the interaction
// simulation: movement physics, typing cadence and error rates.
type HumanoidConfig struct {
	MinSteps         int     `mapstructure:"min_steps" yaml:"min_steps"`
	MaxSteps         int     `mapstructure:"max_steps" yaml:"max_steps"`
	KeyDelayMinMs    int     `mapstructure:"key_delay_min_ms" yaml:"key_delay_min_ms"`
	KeyDelayMaxMs    int     `mapstructure:"key_delay_max_ms" yaml:"key_delay_max_ms"`
	TypoRate         float64 `mapstructure:"typo_rate" yaml:"typo_rate"`
	HesitationRate   float64 `mapstructure:"hesitation_rate" yaml:"hesitation_rate"`
	PerlinAmplitude  float64 `mapstructure:"perlin_amplitude" yaml:"perlin_amplitude"`
	GaussianStrength float64 `mapstructure:"gaussian_strength" yaml:"gaussian_strength"`
	ClickHoldMinMs   int     `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs   int     `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
}

// DiagnosticsConfig controls artifact capture.
type DiagnosticsConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	ScreenshotsDir string `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
}

// ServerConfig configures the HTTP task API.
type ServerConfig struct {
	Addr                  string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxConcurrentAttempts int64         `mapstructure:"max_concurrent_attempts" yaml:"max_concurrent_attempts"`
	TaskRetention         time.Duration `mapstructure:"task_retention" yaml:"task_retention"`
}

// DatabaseConfig holds the connection details for PostgreSQL. An empty DSN
// disables persistence; attempts still run, their outcome is just not stored.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "loginforge")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.launch_timeout", 30*time.Second)

	v.SetDefault("auth.url", "https://accounts.google.com/ServiceLogin")
	v.SetDefault("auth.navigation_timeout", 30*time.Second)
	v.SetDefault("auth.element_timeout", 10*time.Second)
	v.SetDefault("auth.network_idle_wait", 8*time.Second)
	v.SetDefault("auth.settle_delay", 5*time.Second)
	v.SetDefault("auth.max_password_polls", 3)

	v.SetDefault("humanoid.min_steps", 10)
	v.SetDefault("humanoid.max_steps", 25)
	v.SetDefault("humanoid.key_delay_min_ms", 60)
	v.SetDefault("humanoid.key_delay_max_ms", 180)
	v.SetDefault("humanoid.typo_rate", 0.04)
	v.SetDefault("humanoid.hesitation_rate", 0.08)
	v.SetDefault("humanoid.perlin_amplitude", 2.5)
	v.SetDefault("humanoid.gaussian_strength", 0.5)
	v.SetDefault("humanoid.click_hold_min_ms", 50)
	v.SetDefault("humanoid.click_hold_max_ms", 120)

	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.screenshots_dir", defaultScreenshotsDir())

	v.SetDefault("server.addr", ":5055")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_concurrent_attempts", 3)
	v.SetDefault("server.task_retention", time.Hour)
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with static defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads the configuration from the given viper instance, applying
// defaults first and validating the merged result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Auth.URL == "" {
		return fmt.Errorf("auth.url must not be empty")
	}
	if c.Auth.ElementTimeout <= 0 {
		return fmt.Errorf("auth.element_timeout must be positive, got %v", c.Auth.ElementTimeout)
	}
	if c.Auth.MaxPasswordPolls < 1 {
		return fmt.Errorf("auth.max_password_polls must be at least 1, got %d", c.Auth.MaxPasswordPolls)
	}
	if c.Humanoid.MinSteps < 2 || c.Humanoid.MaxSteps < c.Humanoid.MinSteps {
		return fmt.Errorf("humanoid movement steps are invalid: min=%d max=%d", c.Humanoid.MinSteps, c.Humanoid.MaxSteps)
	}
	if c.Humanoid.KeyDelayMaxMs < c.Humanoid.KeyDelayMinMs {
		return fmt.Errorf("humanoid.key_delay_max_ms must be >= key_delay_min_ms")
	}
	if c.Humanoid.TypoRate < 0 || c.Humanoid.TypoRate > 0.5 {
		return fmt.Errorf("humanoid.typo_rate must be within [0, 0.5], got %v", c.Humanoid.TypoRate)
	}
	if c.Server.MaxConcurrentAttempts < 1 {
		return fmt.Errorf("server.max_concurrent_attempts must be at least 1")
	}
	return nil
}

// defaultScreenshotsDir resolves the default artifact directory under the
// user's home, falling back to a relative path when home cannot be resolved.
func defaultScreenshotsDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "screenshots"
	}
	return filepath.Join(home, ".loginforge", "screenshots")
}
