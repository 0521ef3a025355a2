package config

// ConfigSource one layer of configuration
//
// Suggested priorities:
//   - config file: 10
//   - environment overlay file: 20
//   - environment variables: 50
//   - command line flags: 100
type ConfigSource interface {
	// Name for logs and errors
	Name() string

	// Priority higher values override lower ones
	Priority() int

	// Load returns dot-separated keys, e.g. "quota.redis.instance"
	Load() (map[string]interface{}, error)
}
