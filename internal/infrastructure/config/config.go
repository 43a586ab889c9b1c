package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Flowline Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Influx  InfluxConfig  `yaml:"influx"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Relay   RelayConfig   `yaml:"relay"`
	Schema  SchemaConfig  `yaml:"schema"`
	Logging LoggingConfig `yaml:"logging"`
}

// InfluxConfig contains the InfluxDB server connection settings.
type InfluxConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	SSL       bool   `yaml:"ssl"`
	VerifySSL bool   `yaml:"verify_ssl"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`

	// Timeout is the client-wide request timeout in seconds, applied to
	// every ping, write and query.
	Timeout int `yaml:"timeout"`

	// TransferTimeout is the widened timeout in seconds used only while
	// a bulk data transfer runs.
	TransferTimeout int `yaml:"transfer_timeout"`

	// BatchSize is the maximum number of lines per write request.
	BatchSize int `yaml:"batch_size"`
}

// Addr returns the server base URL derived from host, port and SSL.
func (c InfluxConfig) Addr() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// GetTimeout returns the client-wide timeout as a Duration.
func (c InfluxConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetTransferTimeout returns the bulk-transfer timeout as a Duration.
func (c InfluxConfig) GetTransferTimeout() time.Duration {
	return time.Duration(c.TransferTimeout) * time.Second
}

// MQTTConfig contains MQTT broker connection settings for the ingest
// relay. The relay source is optional; leave Enabled false to run
// without it.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// RelayConfig contains ingest relay settings.
type RelayConfig struct {
	// FlushInterval is the number of seconds between periodic buffer
	// flushes while the relay runs.
	FlushInterval int `yaml:"flush_interval"`

	// TopicPrefix is the MQTT topic prefix rows arrive on; the table
	// name is the next topic segment.
	TopicPrefix string `yaml:"topic_prefix"`
}

// GetFlushInterval returns the flush interval as a Duration.
func (c RelayConfig) GetFlushInterval() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// SchemaConfig declares the target database catalog: retention
// policies, tables with their classification rules, and continuous
// queries.
type SchemaConfig struct {
	RetentionPolicies []RetentionPolicyConfig `yaml:"retention_policies"`
	Tables            []TableConfig           `yaml:"tables"`
	ContinuousQueries []ContinuousQueryConfig `yaml:"continuous_queries"`
}

// RetentionPolicyConfig declares one retention policy.
// Durations accept Go syntax plus d (days) and w (weeks) units.
type RetentionPolicyConfig struct {
	Name               string `yaml:"name"`
	Duration           string `yaml:"duration"`
	ShardGroupDuration string `yaml:"shard_group_duration"`
	Replication        int    `yaml:"replication"`
	Default            bool   `yaml:"default"`
}

// TableConfig declares one table and its row classification rule.
type TableConfig struct {
	Name            string   `yaml:"name"`
	RetentionPolicy string   `yaml:"retention_policy"`
	Tags            []string `yaml:"tags"`
	TimeKey         string   `yaml:"time_key"`
}

// ContinuousQueryConfig declares one continuous query.
type ContinuousQueryConfig struct {
	Name     string   `yaml:"name"`
	Select   []string `yaml:"select"`
	From     string   `yaml:"from"`
	Into     string   `yaml:"into"`
	Where    string   `yaml:"where"`
	GroupBy  []string `yaml:"group_by"`
	Resample string   `yaml:"resample"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLOWLINE_SECTION_KEY
// For example: FLOWLINE_INFLUX_PASSWORD, FLOWLINE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Influx: InfluxConfig{
			Host:            "localhost",
			Port:            8086,
			VerifySSL:       true,
			Timeout:         20,
			TransferTimeout: 7200,
			BatchSize:       10000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "flowline-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Relay: RelayConfig{
			FlushInterval: 30,
			TopicPrefix:   "flowline/ingest",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLOWLINE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Influx
	if v := os.Getenv("FLOWLINE_INFLUX_HOST"); v != "" {
		cfg.Influx.Host = v
	}
	if v := os.Getenv("FLOWLINE_INFLUX_DATABASE"); v != "" {
		cfg.Influx.Database = v
	}
	if v := os.Getenv("FLOWLINE_INFLUX_USERNAME"); v != "" {
		cfg.Influx.Username = v
	}
	if v := os.Getenv("FLOWLINE_INFLUX_PASSWORD"); v != "" {
		cfg.Influx.Password = v
	}

	// MQTT
	if v := os.Getenv("FLOWLINE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLOWLINE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLOWLINE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Influx validation
	if c.Influx.Host == "" {
		errs = append(errs, "influx.host is required")
	}
	if c.Influx.Port < 1 || c.Influx.Port > 65535 {
		errs = append(errs, "influx.port must be between 1 and 65535")
	}
	if c.Influx.Database == "" {
		errs = append(errs, "influx.database is required (set FLOWLINE_INFLUX_DATABASE environment variable)")
	}
	if c.Influx.Timeout < 1 {
		errs = append(errs, "influx.timeout must be at least 1 second")
	}
	if c.Influx.BatchSize < 1 {
		errs = append(errs, "influx.batch_size must be at least 1")
	}

	// MQTT validation (only when the relay source is enabled)
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// Relay validation
	if c.Relay.FlushInterval < 1 {
		errs = append(errs, "relay.flush_interval must be at least 1 second")
	}
	if c.Relay.TopicPrefix == "" {
		errs = append(errs, "relay.topic_prefix is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
