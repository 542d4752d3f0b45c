package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Execution.Timeout != 7*time.Second {
		t.Errorf("Execution.Timeout = %s, want 7s", cfg.Execution.Timeout)
	}
	if cfg.Execution.CompilationTimeout != 10*time.Second {
		t.Errorf("Execution.CompilationTimeout = %s, want 10s", cfg.Execution.CompilationTimeout)
	}
	if cfg.Execution.MaxMemoryMB != 300 {
		t.Errorf("Execution.MaxMemoryMB = %d, want 300", cfg.Execution.MaxMemoryMB)
	}
	if cfg.Execution.MaxCodeBytes != 10240 {
		t.Errorf("Execution.MaxCodeBytes = %d, want 10240", cfg.Execution.MaxCodeBytes)
	}
	if cfg.Execution.PTYChunkBytes != 4096 {
		t.Errorf("Execution.PTYChunkBytes = %d, want 4096", cfg.Execution.PTYChunkBytes)
	}
	if cfg.Execution.PTYPollInterval != 10*time.Millisecond {
		t.Errorf("Execution.PTYPollInterval = %s, want 10ms", cfg.Execution.PTYPollInterval)
	}
	if cfg.Redis.JobTTL != time.Hour {
		t.Errorf("Redis.JobTTL = %s, want 1h", cfg.Redis.JobTTL)
	}
	if cfg.Redis.TokenTTL != 2*time.Minute {
		t.Errorf("Redis.TokenTTL = %s, want 2m", cfg.Redis.TokenTTL)
	}
	if cfg.Server.FirstMessageTimeout != 5*time.Second {
		t.Errorf("Server.FirstMessageTimeout = %s, want 5s", cfg.Server.FirstMessageTimeout)
	}
	if cfg.Server.CancelDeadline != 3*time.Second {
		t.Errorf("Server.CancelDeadline = %s, want 3s", cfg.Server.CancelDeadline)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"server port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"server port 99999", func(c *Config) { c.Server.Port = 99999 }, true},
		{"timeout below 1s", func(c *Config) { c.Execution.Timeout = 100 * time.Millisecond }, true},
		{"memory below 16MB", func(c *Config) { c.Execution.MaxMemoryMB = 8 }, true},
		{"chunk too small", func(c *Config) { c.Execution.PTYChunkBytes = 16 }, true},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, true},
		{"token ttl >= job ttl", func(c *Config) {
			c.Redis.TokenTTL = 2 * time.Hour
		}, true},
		{"relative sandbox binary", func(c *Config) { c.Sandbox.Binary = "firejail" }, true},
		{"empty sandbox binary ok", func(c *Config) { c.Sandbox.Binary = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
execution:
  timeout: 3s
  max_code_bytes: 2048
redis:
  addr: "redis:6379"
sandbox:
  binary: ""
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Execution.Timeout != 3*time.Second {
		t.Errorf("Execution.Timeout = %s, want 3s", cfg.Execution.Timeout)
	}
	if cfg.Execution.MaxCodeBytes != 2048 {
		t.Errorf("Execution.MaxCodeBytes = %d, want 2048", cfg.Execution.MaxCodeBytes)
	}
	// Unset keys keep their defaults.
	if cfg.Execution.CompilationTimeout != 10*time.Second {
		t.Errorf("Execution.CompilationTimeout = %s, want default 10s", cfg.Execution.CompilationTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() with missing file should fail")
	}
}
