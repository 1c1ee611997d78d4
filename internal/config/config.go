package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Tracking TrackingConfig `yaml:"tracking"`
	AFK      AFKConfig      `yaml:"afk"`
	Reset    ResetConfig    `yaml:"reset"`
	// LastReset is owned by the reset scheduler: it is rewritten after
	// every rollover and must survive restarts.
	LastReset LastResetTimes `yaml:"last_reset"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// RedisConfig holds the optional standings-mirror configuration
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig holds the activity-event ingestion configuration
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// TrackingConfig holds persistence, backup and snapshot configuration
type TrackingConfig struct {
	SaveIntervalSeconds int    `yaml:"save_interval_seconds"`
	BackupOnReset       bool   `yaml:"backup_on_reset"`
	SnapshotOnReset     bool   `yaml:"snapshot_on_reset"`
	BackupDir           string `yaml:"backup_dir"`
	SnapshotDir         string `yaml:"snapshot_dir"`
	// Retention windows; empty disables pruning. Parsed with
	// time.ParseDuration, e.g. "720h".
	BackupsRemoveOlderThan   string `yaml:"backups_remove_older_than"`
	SnapshotsRemoveOlderThan string `yaml:"snapshots_remove_older_than"`
}

// BackupRetention returns the backup retention window. ok is false when
// pruning is disabled.
func (c *TrackingConfig) BackupRetention() (time.Duration, bool) {
	return parseRetention(c.BackupsRemoveOlderThan)
}

// SnapshotRetention returns the snapshot retention window. ok is false
// when pruning is disabled.
func (c *TrackingConfig) SnapshotRetention() (time.Duration, bool) {
	return parseRetention(c.SnapshotsRemoveOlderThan)
}

func parseRetention(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// AFKConfig holds AFK detection thresholds and side-effect toggles. A
// negative threshold disables the corresponding automatic rule.
type AFKConfig struct {
	AutoAFKSeconds      int64 `yaml:"auto_afk_seconds"`
	MovementTimeSeconds int64 `yaml:"movement_time_seconds"`
	ActionTimeSeconds   int64 `yaml:"action_time_seconds"`
	// ItemPickup reports whether an AFK player may still pick up items.
	ItemPickup bool `yaml:"item_pickup"`
	// Invulnerable grants damage invulnerability while AFK.
	Invulnerable bool `yaml:"invulnerable"`
	// SleepingIgnored exempts AFK players from sleep-skip voting.
	SleepingIgnored bool `yaml:"sleeping_ignored"`
}

// ResetConfig holds the calendar settings for periodic play time resets.
type ResetConfig struct {
	Zone         string `yaml:"zone"`
	WeekStartDay string `yaml:"week_start_day"`
	ResetHour    int    `yaml:"reset_hour"`
}

// Location resolves the configured zone id.
func (c *ResetConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Zone)
}

// WeekStart resolves the configured week start day.
func (c *ResetConfig) WeekStart() (time.Weekday, error) {
	return parseWeekday(c.WeekStartDay)
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown week start day %q", s)
}

// LastResetTimes records when each category was last reset, as epoch
// milliseconds in UTC, matching the durable watermark representation.
type LastResetTimes struct {
	Daily   int64 `yaml:"daily"`
	Weekly  int64 `yaml:"weekly"`
	Monthly int64 `yaml:"monthly"`
	Yearly  int64 `yaml:"yearly"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration back to a YAML file. The reset scheduler
// uses this to persist advanced last-reset times.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the settings the scheduler and AFK machine depend on.
// Dependent operations short-circuit on invalid settings instead of
// guessing defaults.
func (c *Config) Validate() error {
	if _, err := c.Reset.Location(); err != nil {
		return fmt.Errorf("invalid reset zone: %w", err)
	}
	if _, err := c.Reset.WeekStart(); err != nil {
		return fmt.Errorf("invalid reset week start: %w", err)
	}
	if c.Reset.ResetHour < 0 || c.Reset.ResetHour > 23 {
		return fmt.Errorf("invalid reset hour %d", c.Reset.ResetHour)
	}
	if c.Tracking.SaveIntervalSeconds <= 0 {
		return fmt.Errorf("invalid save interval %d", c.Tracking.SaveIntervalSeconds)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 20
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "player-activity"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "playtime-tracker"
	}

	// Tracking defaults
	if c.Tracking.SaveIntervalSeconds == 0 {
		c.Tracking.SaveIntervalSeconds = 300
	}
	if c.Tracking.BackupDir == "" {
		c.Tracking.BackupDir = "backups"
	}
	if c.Tracking.SnapshotDir == "" {
		c.Tracking.SnapshotDir = "leaderboards"
	}

	// AFK defaults
	if c.AFK.AutoAFKSeconds == 0 {
		c.AFK.AutoAFKSeconds = 300
	}
	if c.AFK.MovementTimeSeconds == 0 {
		c.AFK.MovementTimeSeconds = 300
	}
	if c.AFK.ActionTimeSeconds == 0 {
		c.AFK.ActionTimeSeconds = 60
	}

	// Reset defaults
	if c.Reset.Zone == "" {
		c.Reset.Zone = "UTC"
	}
	if c.Reset.WeekStartDay == "" {
		c.Reset.WeekStartDay = time.Monday.String()
	}
}
