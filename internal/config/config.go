package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the scopeflow engine
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SCOPEFLOW_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SCOPEFLOW_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Instrument configuration
	Instrument InstrumentConfig

	// Engine configuration
	Engine EngineConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// InstrumentConfig holds instrument service configuration
type InstrumentConfig struct {
	// Provider selects the instrument backing: "sim" runs against the
	// built-in simulator
	Provider string `env:"INSTRUMENT_PROVIDER" envDefault:"sim"`

	// Simulator settings
	SimChannels        []string      `env:"INSTRUMENT_SIM_CHANNELS" envDefault:"488,561" envSeparator:","`
	SimWorkflowLatency time.Duration `env:"INSTRUMENT_SIM_WORKFLOW_LATENCY" envDefault:"50ms"`
	SimObjectCount     int           `env:"INSTRUMENT_SIM_OBJECT_COUNT" envDefault:"4"`

	// Coordinate-mapping constants
	MicronsPerPixelX float64 `env:"INSTRUMENT_MICRONS_PER_PIXEL_X" envDefault:"0.65"`
	MicronsPerPixelY float64 `env:"INSTRUMENT_MICRONS_PER_PIXEL_Y" envDefault:"0.65"`
	ZStepMicrons     float64 `env:"INSTRUMENT_Z_STEP_MICRONS" envDefault:"2.0"`
}

// EngineConfig holds execution engine defaults overridable per node
type EngineConfig struct {
	WorkflowPollInterval time.Duration `env:"ENGINE_WORKFLOW_POLL_INTERVAL" envDefault:"500ms"`
	WorkflowTimeout      time.Duration `env:"ENGINE_WORKFLOW_TIMEOUT" envDefault:"10m"`
	CommandTimeout       time.Duration `env:"ENGINE_COMMAND_TIMEOUT" envDefault:"2m"`
	MarginMicrons        float64       `env:"ENGINE_MARGIN_MICRONS" envDefault:"5.0"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"3600s"` // 1 hour
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
	RunRecordTTL    time.Duration `env:"TIMEOUT_RUN_RECORD_TTL" envDefault:"24h"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate instrument config
	if c.Instrument.Provider != "sim" {
		return fmt.Errorf("unsupported instrument provider: %s (only 'sim' is supported)", c.Instrument.Provider)
	}
	if len(c.Instrument.SimChannels) == 0 {
		return fmt.Errorf("at least one simulator channel is required")
	}

	// Validate engine config
	if c.Engine.WorkflowPollInterval <= 0 {
		return fmt.Errorf("workflow poll interval must be positive")
	}
	if c.Engine.MarginMicrons < 0 {
		return fmt.Errorf("margin must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
