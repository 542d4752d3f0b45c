package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Execution ExecutionConfig `yaml:"execution"`
	Redis     RedisConfig     `yaml:"redis"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Security  SecurityConfig  `yaml:"security"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`

	// FirstMessageTimeout bounds the wait for the execute frame after a
	// WebSocket connection is accepted.
	FirstMessageTimeout time.Duration `yaml:"first_message_timeout"`
	// CancelDeadline bounds the wait for a terminal event after the
	// orchestrator cancels a running job.
	CancelDeadline time.Duration `yaml:"cancel_deadline"`
}

type ExecutionConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	CompilationTimeout time.Duration `yaml:"compilation_timeout"`
	MaxMemoryMB        int64         `yaml:"max_memory_mb"`
	MaxFileSizeMB      int64         `yaml:"max_file_size_mb"`
	MaxCodeBytes       int           `yaml:"max_code_bytes"`
	PTYChunkBytes      int           `yaml:"pty_chunk_bytes"`
	PTYPollInterval    time.Duration `yaml:"pty_poll_interval"`
	InputQueueDepth    int           `yaml:"input_queue_depth"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	JobTTL   time.Duration `yaml:"job_ttl"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type SandboxConfig struct {
	// Binary is the sandbox wrapper executable. Empty disables wrapping,
	// which is only acceptable in development.
	Binary  string `yaml:"binary"`
	Profile string `yaml:"profile"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from the CONFIG_PATH env var or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeout:         30 * time.Second,
			ShutdownTimeout:     30 * time.Second,
			MaxRequestBody:      64 << 10,
			FirstMessageTimeout: 5 * time.Second,
			CancelDeadline:      3 * time.Second,
		},
		Execution: ExecutionConfig{
			Timeout:            7 * time.Second,
			CompilationTimeout: 10 * time.Second,
			MaxMemoryMB:        300,
			MaxFileSizeMB:      1,
			MaxCodeBytes:       10240,
			PTYChunkBytes:      4096,
			PTYPollInterval:    10 * time.Millisecond,
			InputQueueDepth:    64,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			JobTTL:   time.Hour,
			TokenTTL: 2 * time.Minute,
		},
		Sandbox: SandboxConfig{
			Binary:  "/usr/bin/firejail",
			Profile: "/etc/firejail/codepad.profile",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Execution.Timeout < time.Second {
		return fmt.Errorf("execution.timeout must be >= 1s, got %s", c.Execution.Timeout)
	}
	if c.Execution.CompilationTimeout < time.Second {
		return fmt.Errorf("execution.compilation_timeout must be >= 1s, got %s", c.Execution.CompilationTimeout)
	}
	if c.Execution.MaxMemoryMB < 16 {
		return fmt.Errorf("execution.max_memory_mb must be >= 16, got %d", c.Execution.MaxMemoryMB)
	}
	if c.Execution.MaxCodeBytes < 1 {
		return fmt.Errorf("execution.max_code_bytes must be >= 1")
	}
	if c.Execution.PTYChunkBytes < 256 {
		return fmt.Errorf("execution.pty_chunk_bytes must be >= 256, got %d", c.Execution.PTYChunkBytes)
	}
	if c.Execution.PTYPollInterval < time.Millisecond {
		return fmt.Errorf("execution.pty_poll_interval must be >= 1ms")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	// A token must never outlive the job it grants access to.
	if c.Redis.TokenTTL >= c.Redis.JobTTL {
		return fmt.Errorf("redis.token_ttl (%s) must be < job_ttl (%s)", c.Redis.TokenTTL, c.Redis.JobTTL)
	}
	if c.Sandbox.Binary != "" && !filepath.IsAbs(c.Sandbox.Binary) {
		return fmt.Errorf("sandbox.binary must be an absolute path, got %q", c.Sandbox.Binary)
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
