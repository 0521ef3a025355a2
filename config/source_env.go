package config

import (
	"os"
	"strings"
)

// EnvSource environment variables with a prefix
//
// Nesting uses a double underscore so single underscores survive in key names:
// QUOTAD_QUOTA__STORE_TYPE=redis -> quota.store_type
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string // config key -> env var
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding maps one env var to a config key explicitly
//
//	src.AddBinding("quota.redis.instance", "REDIS_INSTANCE")
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

func (s *EnvSource) Priority() int {
	return s.priority
}

func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for key, envKey := range s.bindings {
		full := envKey
		if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
			full = s.prefix + "_" + envKey
		}
		if value, ok := os.LookupEnv(full); ok && value != "" {
			result[key] = value
		}
	}
	if len(s.bindings) > 0 || s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		result[strings.ReplaceAll(key, "__", ".")] = value
	}
	return result, nil
}
