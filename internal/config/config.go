// Package config loads engine settings from the environment, an optional
// .env file and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/heuristics"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Engine   EngineConfig
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr      string
	GinMode         string
	AllowedOrigins  []string
	MaxUploadMB     int64
	RateLimitPerMin int // 0 disables the limiter
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string // console or json
}

// DatabaseConfig configures the optional audit store. An empty URL turns
// it off.
type DatabaseConfig struct {
	URL            string
	ConnectTimeout time.Duration
}

// EngineConfig tunes the analysis pipeline.
type EngineConfig struct {
	VizNodeLimit   int
	VizEdgeLimit   int
	VelocityWindow time.Duration
}

// Options converts the settings into engine options.
func (c EngineConfig) Options() heuristics.Options {
	return heuristics.Options{
		VizNodeLimit:   c.VizNodeLimit,
		VizEdgeLimit:   c.VizEdgeLimit,
		VelocityWindow: c.VelocityWindow,
	}
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 64)
	v.SetDefault("RATE_LIMIT_PER_MIN", 0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_CONNECT_TIMEOUT", "10s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("VIZ_NODE_LIMIT", heuristics.DefaultVizNodeLimit)
	v.SetDefault("VIZ_EDGE_LIMIT", heuristics.DefaultVizEdgeLimit)
	v.SetDefault("VELOCITY_WINDOW", heuristics.DefaultVelocityWindow.String())
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:      v.GetString("LISTEN_ADDR"),
			GinMode:         v.GetString("GIN_MODE"),
			AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
			MaxUploadMB:     v.GetInt64("MAX_UPLOAD_MB"),
			RateLimitPerMin: v.GetInt("RATE_LIMIT_PER_MIN"),
			RateLimitBurst:  v.GetInt("RATE_LIMIT_BURST"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("DATABASE_URL"),
			ConnectTimeout: v.GetDuration("DB_CONNECT_TIMEOUT"),
		},
		Engine: EngineConfig{
			VizNodeLimit:   v.GetInt("VIZ_NODE_LIMIT"),
			VizEdgeLimit:   v.GetInt("VIZ_EDGE_LIMIT"),
			VelocityWindow: v.GetDuration("VELOCITY_WINDOW"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Server.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative, got %d", c.Server.RateLimitPerMin)
	}
	if c.Engine.VizNodeLimit <= 0 || c.Engine.VizEdgeLimit <= 0 {
		return fmt.Errorf("VIZ_NODE_LIMIT and VIZ_EDGE_LIMIT must be positive")
	}
	if c.Engine.VelocityWindow <= 0 {
		return fmt.Errorf("VELOCITY_WINDOW must be positive, got %s", c.Engine.VelocityWindow)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.Log.Format)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
