// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Source   SourceConfig   `mapstructure:"source"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Heatmap  HeatmapConfig  `mapstructure:"heatmap"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls HTTP server behavior in serve mode.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures outbound request behavior.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Rate      float64       `mapstructure:"rate"`
	Burst     int           `mapstructure:"burst"`
}

// RetryConfig governs the shared fetch retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// SourceConfig names the upstream hosts in fallback order.
type SourceConfig struct {
	PrimaryHost   string `mapstructure:"primary_host"`
	SecondaryHost string `mapstructure:"secondary_host"`
}

// ResolverConfig bounds round discovery.
type ResolverConfig struct {
	Ceiling   int `mapstructure:"ceiling"`
	Tolerance int `mapstructure:"tolerance"`
}

// HarvestConfig governs the pagination state machine and the worker pool.
type HarvestConfig struct {
	Window      int           `mapstructure:"window"`
	PageLimit   int           `mapstructure:"page_limit"`
	RecordLimit int           `mapstructure:"record_limit"`
	Workers     int           `mapstructure:"workers"`
	QueueDepth  int           `mapstructure:"queue_depth"`
	Delay       time.Duration `mapstructure:"delay"`
	Budget      time.Duration `mapstructure:"budget"`
}

// HeatmapConfig sizes the number-frequency window.
type HeatmapConfig struct {
	Window int `mapstructure:"window"`
}

// SnapshotConfig sets where snapshots are written.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LOTTO645")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("http.rate", 4.0)
	v.SetDefault("http.burst", 2)
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.base_delay", "500ms")
	v.SetDefault("retry.max_delay", "8s")
	v.SetDefault("source.primary_host", "www.dhlottery.co.kr")
	v.SetDefault("source.secondary_host", "dhlottery.co.kr")
	v.SetDefault("resolver.ceiling", 10000)
	v.SetDefault("resolver.tolerance", 2)
	v.SetDefault("harvest.window", 5)
	v.SetDefault("harvest.page_limit", 50)
	v.SetDefault("harvest.record_limit", 2000)
	v.SetDefault("harvest.workers", 4)
	v.SetDefault("harvest.queue_depth", 16)
	v.SetDefault("harvest.delay", "300ms")
	v.SetDefault("harvest.budget", "10m")
	v.SetDefault("heatmap.window", 40)
	v.SetDefault("snapshot.dir", "data")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.Rate <= 0 {
		return fmt.Errorf("http.rate must be > 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if c.Resolver.Ceiling <= 0 {
		return fmt.Errorf("resolver.ceiling must be > 0")
	}
	if c.Harvest.Window <= 0 {
		return fmt.Errorf("harvest.window must be > 0")
	}
	if c.Harvest.PageLimit <= 0 {
		return fmt.Errorf("harvest.page_limit must be > 0")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.Harvest.Delay < 0 {
		return fmt.Errorf("harvest.delay must be >= 0")
	}
	if c.Heatmap.Window < 0 {
		return fmt.Errorf("heatmap.window must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}
