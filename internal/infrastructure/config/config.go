package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config is the full application configuration. Field tags name the viper keys.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Realtime     RealtimeConfig     `mapstructure:"realtime"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
	// InstanceID tags events emitted by this process; a random id is used when empty
	InstanceID string `mapstructure:"instance_id"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite file path or ":memory:"
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// TelemetryConfig configures the OTLP exporters
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // gRPC host:port
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`     // 0.0 to 1.0
	ServiceName       string        `mapstructure:"service_name"`       // defaults to app.name
	ServiceVersion    string        `mapstructure:"service_version"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	ExportLogs        bool          `mapstructure:"export_logs"`    // tee zap output into OTLP logs
	TraceDatabase     bool          `mapstructure:"trace_database"` // one span per SQL statement
}

// SubscriptionConfig holds plan storage and gating settings
type SubscriptionConfig struct {
	Storage             string        `mapstructure:"storage"` // database, redis, memory
	DefaultUpgradeLabel string        `mapstructure:"default_upgrade_label"`
	UpgradePath         string        `mapstructure:"upgrade_path"`
	StoreLoadTimeout    time.Duration `mapstructure:"store_load_timeout"`
	CountCacheTTL       time.Duration `mapstructure:"count_cache_ttl"`
}

// RealtimeConfig holds invalidation transport settings
type RealtimeConfig struct {
	Channel           string        `mapstructure:"channel"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	QueueSize         int           `mapstructure:"queue_size"`
	ClientBufferSize  int           `mapstructure:"client_buffer_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	DedupTTL          time.Duration `mapstructure:"dedup_ttl"`
}

// Storage backends for subscription plans
const (
	StorageDatabase = "database"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// defaults registers every key with viper. AutomaticEnv only reaches keys viper
// already knows, so keys without a useful default are listed with a zero value.
var defaults = map[string]any{
	"app.name":        "agency-api",
	"app.env":         "development",
	"app.port":        "8080",
	"app.instance_id": "",

	"database.driver":             "postgres",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "agency",
	"database.sslmode":            "disable",
	"database.path":               "agency.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.shutdown_timeout": 30 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    1 << 20,
	// cross-origin requests stay disabled until origins are configured
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "X-Organization-ID"},
	"http.trusted_proxies":    []string{},

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "",
	"telemetry.service_version":    "",
	"telemetry.insecure":           false,
	"telemetry.metrics_interval":   30 * time.Second,
	"telemetry.export_logs":        true,
	"telemetry.trace_database":     true,

	"subscription.storage":               StorageDatabase,
	"subscription.default_upgrade_label": "Custom",
	"subscription.upgrade_path":          "/settings/billing",
	"subscription.store_load_timeout":    3 * time.Second,
	"subscription.count_cache_ttl":       time.Duration(0),

	"realtime.channel":            "agency:invalidation",
	"realtime.allowed_origins":    []string{},
	"realtime.queue_size":         256,
	"realtime.client_buffer_size": 32,
	"realtime.heartbeat_interval": 30 * time.Second,
	"realtime.write_timeout":      10 * time.Second,
	"realtime.dedup_ttl":          10 * time.Minute,
}

// Load reads configuration. Later sources win:
// built-in defaults, then config.toml (in . or /app), then AGENCY_* environment variables
// such as AGENCY_DATABASE_PASSWORD.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("AGENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.App.InstanceID == "" {
		cfg.App.InstanceID = uuid.NewString()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Subscription.Storage {
	case StorageDatabase, StorageMemory:
	case StorageRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("subscription.storage=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("subscription.storage must be one of database, redis, memory, got %q", c.Subscription.Storage)
	}
	if !strings.HasPrefix(c.Subscription.UpgradePath, "/") {
		return fmt.Errorf("subscription.upgrade_path must be an absolute path, got %q", c.Subscription.UpgradePath)
	}

	if c.Realtime.QueueSize < 0 || c.Realtime.ClientBufferSize < 0 {
		return fmt.Errorf("realtime buffer sizes cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Subscription.Storage == StorageMemory {
			return fmt.Errorf("subscription.storage=memory is not durable and cannot be used in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		for _, origin := range c.Realtime.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("realtime.allowed_origins cannot be '*' in production")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
