// Package config loads the gateway's configuration from an optional YAML
// file plus environment variables (env prefix GATEWAY_), following the
// pack's viper-based loader in Sentinel Gate's internal/config, and
// validates the result with struct tags before Load returns — the same
// fail-fast-at-startup contract the teacher enforces by hand in its own
// ParseServerFlags, expressed declaratively instead.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/nullbridge/tunnelgate/internal/security"
)

// BanThresholds mirrors security.Thresholds with mapstructure/validate
// tags so it can be loaded and checked the same way as the rest of
// Config.
type BanThresholds struct {
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"min=1"`
	Window        time.Duration `mapstructure:"window" validate:"min=1s"`
	Permanent     int           `mapstructure:"permanent" validate:"min=1"`
	AuthTolerance int           `mapstructure:"auth_tolerance" validate:"min=1"`
	Grace         time.Duration `mapstructure:"grace" validate:"min=1s"`
	GC            time.Duration `mapstructure:"gc" validate:"min=1s"`
}

// ToSecurityThresholds converts to the type internal/security consumes.
func (b BanThresholds) ToSecurityThresholds() security.Thresholds {
	return security.Thresholds{
		MaxAttempts:   b.MaxAttempts,
		Window:        b.Window,
		Permanent:     b.Permanent,
		AuthTolerance: b.AuthTolerance,
		Grace:         b.Grace,
		GC:            b.GC,
	}
}

// Config is the gateway's full, validated startup configuration. It is
// immutable after Load returns (spec.md §3).
type Config struct {
	TunnelAddr string `mapstructure:"tunnel_addr" validate:"required"`
	HTTPAddr   string `mapstructure:"http_addr" validate:"required"`

	AuthToken string `mapstructure:"auth_token" validate:"required"`
	AdminKey  string `mapstructure:"admin_key" validate:"required"`

	IdleTimeout      time.Duration `mapstructure:"idle_timeout" validate:"min=1s"`
	DispatchTimeout  time.Duration `mapstructure:"dispatch_timeout" validate:"min=1s"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" validate:"min=1s"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"min=1s"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval" validate:"min=1s"`

	MaxLogEntries int `mapstructure:"max_log_entries" validate:"min=1"`

	Ban BanThresholds `mapstructure:"ban"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tunnel_addr", ":9443")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("idle_timeout", 60*time.Second)
	v.SetDefault("dispatch_timeout", 30*time.Second)
	v.SetDefault("heartbeat_timeout", 10*time.Second)
	v.SetDefault("handshake_timeout", 30*time.Second)
	v.SetDefault("sweep_interval", 60*time.Second)
	v.SetDefault("max_log_entries", 1000)
	v.SetDefault("log_level", "info")

	v.SetDefault("ban.max_attempts", 5)
	v.SetDefault("ban.window", 15*time.Minute)
	v.SetDefault("ban.permanent", 15)
	v.SetDefault("ban.auth_tolerance", 8)
	v.SetDefault("ban.grace", 30*time.Minute)
	v.SetDefault("ban.gc", 24*time.Hour)
}

func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"tunnel_addr", "http_addr", "auth_token", "admin_key",
		"idle_timeout", "dispatch_timeout", "heartbeat_timeout",
		"handshake_timeout", "sweep_interval", "max_log_entries", "log_level",
		"ban.max_attempts", "ban.window", "ban.permanent",
		"ban.auth_tolerance", "ban.grace", "ban.gc",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads configFile (if non-empty) plus GATEWAY_-prefixed environment
// variables, merges them over the documented defaults, and validates the
// result. An empty configFile is not an error — env vars and defaults
// alone can produce a valid Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	setDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}
