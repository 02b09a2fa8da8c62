package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")

	content := `
[discovery]
  group = "239.255.1.1"
  port = 49707
  interface = "eth0"
  network_range = "192.168.1.0/24"
  timeout = "5s"
  retry = true
  max_retry_elapsed = "1m"

[stream]
  default_frequency = 20

[[dataref]]
  channel = "sim/flightmodel/forces/g_nrml"
  index = 2
  frequency = 1

[[dataref]]
  channel = "sim/flightmodel/forces/g_axil"
  index = 3

[store]
  path = "/tmp/hosts.db"

[metrics]
  listen = ":9100"

[log]
  level = "debug"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Discovery.Interface != "eth0" {
		t.Errorf("Discovery.Interface: got %s, want eth0", cfg.Discovery.Interface)
	}
	if !cfg.Discovery.Retry {
		t.Error("Discovery.Retry: expected true")
	}
	if len(cfg.Datarefs) != 2 {
		t.Fatalf("Datarefs: got %d, want 2", len(cfg.Datarefs))
	}
	if cfg.Datarefs[0].Channel != "sim/flightmodel/forces/g_nrml" || cfg.Datarefs[0].Index != 2 || cfg.Datarefs[0].Frequency != 1 {
		t.Errorf("Datarefs[0]: got %+v", cfg.Datarefs[0])
	}
	if cfg.Datarefs[1].Frequency != 20 {
		t.Errorf("Datarefs[1].Frequency: got %d, want stream default 20", cfg.Datarefs[1].Frequency)
	}
	if cfg.Store.Path != "/tmp/hosts.db" {
		t.Errorf("Store.Path: got %s, want /tmp/hosts.db", cfg.Store.Path)
	}
	if cfg.Metrics.Listen != ":9100" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics: got %+v", cfg.Metrics)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %s, want debug", cfg.Log.Level)
	}

	d, err := cfg.Discovery.ParseTimeout()
	if err != nil || d != 5*time.Second {
		t.Errorf("ParseTimeout: got %v, %v", d, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")

	content := `
[[dataref]]
  channel = "sim/flightmodel/position/true_phi"
  index = 0
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Discovery.Group != "239.255.1.1" {
		t.Errorf("default Group: got %s", cfg.Discovery.Group)
	}
	if cfg.Discovery.Port != 49707 {
		t.Errorf("default Port: got %d, want 49707", cfg.Discovery.Port)
	}
	if cfg.Discovery.Timeout != "3s" {
		t.Errorf("default Timeout: got %s, want 3s", cfg.Discovery.Timeout)
	}
	if cfg.Discovery.Retry {
		t.Error("default Retry: expected false")
	}
	if cfg.Datarefs[0].Frequency != 10 {
		t.Errorf("default Frequency: got %d, want 10", cfg.Datarefs[0].Frequency)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default LogLevel: got %s, want info", cfg.Log.Level)
	}
	if cfg.Metrics.Listen != "" {
		t.Errorf("default Metrics.Listen: got %s, want disabled", cfg.Metrics.Listen)
	}
	if cfg.Announce.Port != 49000 || cfg.Announce.RaknetPort != 49001 {
		t.Errorf("default Announce ports: got %d/%d", cfg.Announce.Port, cfg.Announce.RaknetPort)
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Discovery.Port != 49707 {
		t.Errorf("default Port: got %d", cfg.Discovery.Port)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(cfgPath, []byte("invalid [[[ toml"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestParseTimeout_Zero(t *testing.T) {
	cfg := &DiscoveryConfig{Timeout: "0s"}
	d, err := cfg.ParseTimeout()
	if err != nil {
		t.Fatalf("parse timeout: %v", err)
	}
	if d != 0 {
		t.Errorf("Timeout: got %v, want 0 (wait forever)", d)
	}
}

func TestParseTimeout_Default(t *testing.T) {
	cfg := &DiscoveryConfig{}
	d, err := cfg.ParseTimeout()
	if err != nil {
		t.Fatalf("parse timeout: %v", err)
	}
	if d != 3*time.Second {
		t.Errorf("Default timeout: got %v, want 3s", d)
	}
}

func TestParseMaxRetryElapsed(t *testing.T) {
	cfg := &DiscoveryConfig{MaxRetryElapsed: "90s"}
	d, err := cfg.ParseMaxRetryElapsed()
	if err != nil {
		t.Fatalf("parse max retry elapsed: %v", err)
	}
	if d.Seconds() != 90 {
		t.Errorf("MaxRetryElapsed: got %v, want 90s", d)
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := ExpandPath("~/x.db"); got == "~/x.db" || filepath.Base(got) != "x.db" {
		t.Errorf("tilde not expanded: %s", got)
	}
}
