package kafka

import (
	"fmt"
	"time"
)

// Config Kafka settings for the violation topic
type Config struct {
	// Enabled false leaves violations in the in-process recorder only
	Enabled bool `mapstructure:"enabled"`

	// Brokers Kafka cluster addresses
	Brokers []string `mapstructure:"brokers"`

	// Version Kafka protocol version (e.g., "3.8.0")
	Version string `mapstructure:"version"`

	// ClientID client identifier
	ClientID string `mapstructure:"client_id"`

	// Topic security review topic violations are published to
	Topic string `mapstructure:"topic"`

	Producer ProducerConfig `mapstructure:"producer"`

	// SASL authentication (optional)
	SASL *SASLConfig `mapstructure:"sasl"`

	// TLS (optional)
	TLS *TLSConfig `mapstructure:"tls"`
}

// ProducerConfig producer configuration
type ProducerConfig struct {
	// RequiredAcks acknowledgment level: 0=NoResponse, 1=WaitForLocal, -1=WaitForAll
	RequiredAcks int `mapstructure:"required_acks"`

	// Timeout broker acknowledgment timeout
	Timeout time.Duration `mapstructure:"timeout"`

	RetryMax     int           `mapstructure:"retry_max"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// Compression none, gzip, snappy, lz4, zstd
	Compression string `mapstructure:"compression"`

	Idempotent bool `mapstructure:"idempotent"`
}

// SASLConfig SASL authentication configuration
type SASLConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Mechanism PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `mapstructure:"mechanism"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TLSConfig TLS configuration
type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// Validate configuration
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	for _, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("broker address cannot be empty")
		}
	}
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	if err := c.Producer.Validate(); err != nil {
		return fmt.Errorf("producer config invalid: %w", err)
	}

	if c.SASL != nil && c.SASL.Enabled {
		if err := c.SASL.Validate(); err != nil {
			return fmt.Errorf("sasl config invalid: %w", err)
		}
	}
	return nil
}

// Validate producer configuration
func (c *ProducerConfig) Validate() error {
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return fmt.Errorf("required_acks must be -1, 0, or 1, got: %d", c.RequiredAcks)
	}

	switch c.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("invalid compression: %s", c.Compression)
	}
	return nil
}

// Validate SASL configuration
func (c *SASLConfig) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	switch c.Mechanism {
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return fmt.Errorf("invalid mechanism: %s", c.Mechanism)
	}
	return nil
}

// ApplyDefaults apply default values
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "3.8.0"
	}
	if c.ClientID == "" {
		c.ClientID = "quotad"
	}
	if c.Topic == "" {
		c.Topic = "quota.violations"
	}
	c.Producer.ApplyDefaults()
}

// ApplyDefaults apply default producer values
func (c *ProducerConfig) ApplyDefaults() {
	if c.RequiredAcks == 0 && !c.Idempotent {
		c.RequiredAcks = 1
	}
	if c.Idempotent {
		c.RequiredAcks = -1
	}
	// violations are published on the request path, so keep the wait short
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Second
	}
	if c.RetryMax == 0 {
		c.RetryMax = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
}
