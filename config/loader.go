// Package config merges layered configuration sources behind component.ConfigLoader
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader merges sources by priority and serves the result through viper
type Loader struct {
	sources     []ConfigSource
	merged      map[string]interface{}
	v           *viper.Viper
	loadedFiles []string
}

func NewLoader() *Loader {
	return &Loader{
		merged: make(map[string]interface{}),
		v:      viper.New(),
	}
}

func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load reads every source from lowest to highest priority
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	merged := make(map[string]interface{})
	var files []string
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("load config source %s: %w", source.Name(), err)
		}
		if fs, ok := source.(*FileSource); ok && len(data) > 0 {
			files = append(files, fs.path)
		}
		for key, value := range data {
			merged[key] = value
		}
	}

	v := viper.New()
	for key, value := range unflattenMap(merged) {
		v.Set(key, value)
	}

	l.merged = merged
	l.loadedFiles = files
	l.v = v
	return nil
}

// Reload re-reads all sources
func (l *Loader) Reload() error {
	return l.Load()
}

// unflattenMap {"quota.redis.instance": "main"} -> {"quota": {"redis": {"instance": "main"}}}
func unflattenMap(flat map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	// shorter keys first so a deeper key can replace a scalar parent
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts := strings.FieldsFunc(key, func(r rune) bool { return r == '.' })
		if len(parts) == 0 {
			continue
		}
		current := result
		for _, part := range parts[:len(parts)-1] {
			next, ok := current[part].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = flat[key]
	}
	return result
}

// Unmarshal decodes the section under key into v; an empty key decodes everything
func (l *Loader) Unmarshal(key string, v interface{}) error {
	if key == "" {
		return l.v.Unmarshal(v)
	}
	return l.v.UnmarshalKey(key, v)
}

func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings merged nested settings
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// LoadedFiles files that contributed at least one key
func (l *Loader) LoadedFiles() []string {
	return l.loadedFiles
}
