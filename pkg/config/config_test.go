package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Addr)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.QueueCapacity != 1000 {
		t.Errorf("QueueCapacity = %d, want 1000", cfg.QueueCapacity)
	}
	if cfg.EnqueueTimeout != time.Second {
		t.Errorf("EnqueueTimeout = %s, want 1s", cfg.EnqueueTimeout)
	}
	if cfg.MaxInFlight != 1 {
		t.Errorf("MaxInFlight = %d, want 1", cfg.MaxInFlight)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineserv.yaml")
	data := []byte("addr: \":7000\"\nworkers: 4\nqueue_capacity: 50\nenqueue_timeout: 250ms\nmax_in_flight: 8\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg := Default()
	if err := Load(path, cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q, want :7000", cfg.Addr)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.QueueCapacity != 50 {
		t.Errorf("QueueCapacity = %d, want 50", cfg.QueueCapacity)
	}
	if cfg.EnqueueTimeout != 250*time.Millisecond {
		t.Errorf("EnqueueTimeout = %s, want 250ms", cfg.EnqueueTimeout)
	}
	if cfg.MaxInFlight != 8 {
		t.Errorf("MaxInFlight = %d, want 8", cfg.MaxInFlight)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxSleep != 10*time.Second {
		t.Errorf("MaxSleep = %s, want default 10s", cfg.MaxSleep)
	}
}

// A saved config must load back identical, so operators can materialize the
// effective configuration to a file.
func TestSaveYAML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineserv.yaml")

	want := Default()
	want.Addr = ":7200"
	want.Workers = 2
	want.EnqueueTimeout = 750 * time.Millisecond
	want.AdminAddr = ":9100"
	want.Tracing = true

	if err := SaveYAML(path, want); err != nil {
		t.Fatalf("SaveYAML() error = %v", err)
	}

	got := &Config{}
	if err := LoadYAML(path, got); err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("saved config mode = %o, want 600", perm)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := Default()
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LINESERV_ADDR", ":7100")
	t.Setenv("LINESERV_WORKERS", "16")
	t.Setenv("LINESERV_ENQUEUETIMEOUT", "2s")
	t.Setenv("LINESERV_TRACING", "true")

	cfg := Default()
	if err := ApplyEnvOverrides("LINESERV", cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides() error = %v", err)
	}

	if cfg.Addr != ":7100" {
		t.Errorf("Addr = %q, want :7100", cfg.Addr)
	}
	if cfg.Workers != 16 {
		t.Errorf("Workers = %d, want 16", cfg.Workers)
	}
	if cfg.EnqueueTimeout != 2*time.Second {
		t.Errorf("EnqueueTimeout = %s, want 2s", cfg.EnqueueTimeout)
	}
	if !cfg.Tracing {
		t.Error("Tracing = false, want true")
	}
}

func TestApplyEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("LINESERV_WORKERS", "not-a-number")

	cfg := Default()
	if err := ApplyEnvOverrides("LINESERV", cfg); err == nil {
		t.Error("ApplyEnvOverrides() with bad integer should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero queue", func(c *Config) { c.QueueCapacity = 0 }},
		{"zero timeout", func(c *Config) { c.EnqueueTimeout = 0 }},
		{"zero in-flight", func(c *Config) { c.MaxInFlight = 0 }},
		{"negative max sleep", func(c *Config) { c.MaxSleep = -time.Second }},
		{"zero grace", func(c *Config) { c.ShutdownGrace = 0 }},
		{"negative stats interval", func(c *Config) { c.StatsInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}
