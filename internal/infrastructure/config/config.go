package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel names used by the IoT platform agent. They are the defaults of
// the bridge section.
const (
	// ChannelServiceCommandReceive carries device commands from the platform.
	ChannelServiceCommandReceive = "IOTA_TOPIC_SERVICE_COMMAND_RECEIVE"

	// ChannelDataReportRet receives acknowledgements for commands.
	ChannelDataReportRet = "IOTA_TOPIC_SERVICE_DATA_REPORT_RET"

	// ChannelDataTransReportRsp receives relayed device reports.
	ChannelDataTransReportRsp = "IOTA_TOPIC_DATATRANS_REPORT_RSP"
)

// Config is the root configuration structure for the GreenHome proxy.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Proxy     ProxyConfig     `yaml:"proxy"`
	Redis     RedisConfig     `yaml:"redis"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ProxyConfig identifies this proxy instance.
type ProxyConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RedisConfig contains settings for the IoT platform's Redis broker.
type RedisConfig struct {
	Host      string               `yaml:"host"`
	Port      int                  `yaml:"port"`
	DB        int                  `yaml:"db"`
	Username  string               `yaml:"username"`
	Password  string               `yaml:"password"`
	TLS       RedisTLSConfig       `yaml:"tls"`
	Timeouts  RedisTimeoutConfig   `yaml:"timeouts"`
	Pool      RedisPoolConfig      `yaml:"pool"`
	Reconnect RedisReconnectConfig `yaml:"reconnect"`
}

// RedisTLSConfig contains TLS settings for the Redis connection.
type RedisTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ServerName string `yaml:"server_name"`
	SkipVerify bool   `yaml:"skip_verify"`
}

// RedisTimeoutConfig contains Redis timeouts in seconds.
type RedisTimeoutConfig struct {
	Connect int `yaml:"connect"`
	// Read bounds each blocking read. 0 waits indefinitely, which is the
	// normal setting for a subscriber connection.
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
}

// RedisPoolConfig sizes the publisher connection pool.
type RedisPoolConfig struct {
	MaxIdle     int `yaml:"max_idle"`
	MaxActive   int `yaml:"max_active"`
	IdleTimeout int `yaml:"idle_timeout"`
}

// RedisReconnectConfig contains subscriber reconnection backoff in seconds.
type RedisReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BridgeConfig contains the channel names and behaviour of the command bridge.
type BridgeConfig struct {
	// CommandChannel carries inbound device commands from the platform.
	CommandChannel string `yaml:"command_channel"`

	// AckChannel receives data-report acknowledgements published by the proxy.
	AckChannel string `yaml:"ack_channel"`

	// ReportResponseChannel receives device reports relayed to the
	// platform. Empty disables relaying.
	ReportResponseChannel string `yaml:"report_response_channel"`

	// MonitorPatterns are glob patterns followed for observation only.
	MonitorPatterns []string `yaml:"monitor_patterns"`

	// DedupSize is how many recent request IDs are remembered to drop
	// commands redelivered after a reconnect. 0 disables deduplication.
	DedupSize int `yaml:"dedup_size"`
}

// MQTTConfig contains home bus MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains admin HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// AccessTokenTTL is the lifetime of issued tokens in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GREENHOME_SECTION_KEY
// For example: GREENHOME_REDIS_HOST, GREENHOME_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Proxy: ProxyConfig{
			ID:   "greenhome-001",
			Name: "GreenHome Proxy",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			Timeouts: RedisTimeoutConfig{
				Connect: 5,
				Read:    0,
				Write:   5,
			},
			Pool: RedisPoolConfig{
				MaxIdle:     4,
				MaxActive:   16,
				IdleTimeout: 240,
			},
			Reconnect: RedisReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Bridge: BridgeConfig{
			CommandChannel:        ChannelServiceCommandReceive,
			AckChannel:            ChannelDataReportRet,
			ReportResponseChannel: ChannelDataTransReportRsp,
			DedupSize:             1024,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "greenhome-proxy",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/greenhome.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GREENHOME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Redis
	if v := os.Getenv("GREENHOME_REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("GREENHOME_REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("GREENHOME_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Database
	if v := os.Getenv("GREENHOME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GREENHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GREENHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GREENHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GREENHOME_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GREENHOME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("GREENHOME_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Proxy.ID == "" {
		errs = append(errs, "proxy.id is required")
	}

	// Redis validation
	if c.Redis.Host == "" {
		errs = append(errs, "redis.host is required")
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, "redis.port must be between 1 and 65535")
	}
	if c.Redis.DB < 0 {
		errs = append(errs, "redis.db must not be negative")
	}
	if c.Redis.Reconnect.InitialDelay < 1 {
		errs = append(errs, "redis.reconnect.initial_delay must be at least 1")
	}
	if c.Redis.Reconnect.MaxDelay < c.Redis.Reconnect.InitialDelay {
		errs = append(errs, "redis.reconnect.max_delay must not be less than initial_delay")
	}

	// Bridge validation
	if c.Bridge.CommandChannel == "" {
		errs = append(errs, "bridge.command_channel is required")
	}
	if c.Bridge.AckChannel == "" {
		errs = append(errs, "bridge.ack_channel is required")
	}
	if c.Bridge.DedupSize < 0 {
		errs = append(errs, "bridge.dedup_size must not be negative")
	}
	for i, p := range c.Bridge.MonitorPatterns {
		if p == "" {
			errs = append(errs, fmt.Sprintf("bridge.monitor_patterns[%d] is empty", i))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// The admin API is the only consumer of the JWT secret.
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set GREENHOME_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RedisAddress returns the broker address in host:port form.
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ReconnectDelays returns the subscriber backoff bounds.
func (c *Config) ReconnectDelays() (initial, maxDelay time.Duration) {
	return time.Duration(c.Redis.Reconnect.InitialDelay) * time.Second,
		time.Duration(c.Redis.Reconnect.MaxDelay) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
