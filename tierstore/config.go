package tierstore

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config tier store configuration, read from the "tierstore" section
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Driver postgres, mysql or sqlite
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// EnableLog routes gorm logs to the tierstore_sql module logger
	EnableLog     bool          `mapstructure:"enable_log"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	EnableAudit   bool          `mapstructure:"enable_audit"`

	// TraceSQL records statements on OpenTelemetry spans
	TraceSQL bool `mapstructure:"trace_sql"`

	// AutoMigrate creates the tables on startup
	AutoMigrate bool `mapstructure:"auto_migrate"`

	// CacheTTL how long a subscription lookup is reused; 0 disables caching
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// LookupTimeout bound of one subscription query, default 3s
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		EnableLog:       true,
		SlowThreshold:   200 * time.Millisecond,
		AutoMigrate:     true,
		CacheTTL:        30 * time.Second,
		LookupTimeout:   DefaultLookupTimeout,
	}
}

// ApplyDefaults fills zero pool and logging settings
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Driver == "" {
		c.Driver = def.Driver
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = def.SlowThreshold
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = def.LookupTimeout
	}
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In("postgres", "mysql", "sqlite")),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}
