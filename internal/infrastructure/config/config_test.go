package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
influx:
  host: "influx.example.com"
  port: 8086
  ssl: true
  database: "metrics"
  batch_size: 5000
schema:
  retention_policies:
    - name: "raw"
      duration: "90d"
      shard_group_duration: "1d"
      default: true
  tables:
    - name: "cpu"
      retention_policy: "raw"
      tags: ["host"]
relay:
  flush_interval: 15
  topic_prefix: "metrics/in"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Influx.Host != "influx.example.com" {
		t.Errorf("Influx.Host = %q, want %q", cfg.Influx.Host, "influx.example.com")
	}
	if cfg.Influx.Addr() != "https://influx.example.com:8086" {
		t.Errorf("Influx.Addr() = %q", cfg.Influx.Addr())
	}
	if cfg.Influx.BatchSize != 5000 {
		t.Errorf("Influx.BatchSize = %d, want 5000", cfg.Influx.BatchSize)
	}
	if len(cfg.Schema.RetentionPolicies) != 1 || cfg.Schema.RetentionPolicies[0].Name != "raw" {
		t.Errorf("Schema.RetentionPolicies = %+v", cfg.Schema.RetentionPolicies)
	}
	if cfg.Relay.TopicPrefix != "metrics/in" {
		t.Errorf("Relay.TopicPrefix = %q", cfg.Relay.TopicPrefix)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
influx:
  database: "metrics"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Influx.Port != 8086 {
		t.Errorf("Influx.Port = %d, want default 8086", cfg.Influx.Port)
	}
	if cfg.Influx.GetTimeout() != 20*time.Second {
		t.Errorf("Influx.GetTimeout() = %v, want 20s", cfg.Influx.GetTimeout())
	}
	if cfg.Influx.GetTransferTimeout() != 2*time.Hour {
		t.Errorf("Influx.GetTransferTimeout() = %v, want 2h", cfg.Influx.GetTransferTimeout())
	}
	if cfg.Influx.BatchSize != 10000 {
		t.Errorf("Influx.BatchSize = %d, want default 10000", cfg.Influx.BatchSize)
	}
	if !cfg.Influx.VerifySSL {
		t.Errorf("Influx.VerifySSL = false, want default true")
	}
	if cfg.Relay.GetFlushInterval() != 30*time.Second {
		t.Errorf("Relay.GetFlushInterval() = %v, want 30s", cfg.Relay.GetFlushInterval())
	}
	if cfg.MQTT.Broker.ClientID != "flowline-core" {
		t.Errorf("MQTT.Broker.ClientID = %q", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	// No database name anywhere
	_, err := Load(writeConfig(t, `
influx:
  host: "localhost"
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "influx.database") {
		t.Errorf("error = %v, want mention of influx.database", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLOWLINE_INFLUX_DATABASE", "from-env")
	t.Setenv("FLOWLINE_INFLUX_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, `
influx:
  host: "localhost"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Influx.Database != "from-env" {
		t.Errorf("Influx.Database = %q, want from-env", cfg.Influx.Database)
	}
	if cfg.Influx.Password != "secret" {
		t.Errorf("Influx.Password not overridden from environment")
	}
}

func TestValidate_MQTTOnlyWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Influx.Database = "metrics"
	cfg.MQTT.Broker.Host = ""

	// Disabled relay source: broker host not required
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil with mqtt disabled", err)
	}

	cfg.MQTT.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for enabled mqtt without broker host")
	}
}
