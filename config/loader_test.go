package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	name     string
	priority int
	data     map[string]interface{}
	err      error
}

func (s staticSource) Name() string                          { return s.name }
func (s staticSource) Priority() int                         { return s.priority }
func (s staticSource) Load() (map[string]interface{}, error) { return s.data, s.err }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_PriorityOrder(t *testing.T) {
	l := NewLoader()
	l.AddSource(staticSource{name: "high", priority: 50, data: map[string]interface{}{"quota.store_type": "redis"}})
	l.AddSource(staticSource{name: "low", priority: 10, data: map[string]interface{}{
		"quota.store_type":     "memory",
		"quota.fallback_tier":  "free",
		"quota.redis.instance": "main",
	}})
	require.NoError(t, l.Load())

	assert.Equal(t, "redis", l.GetString("quota.store_type"))
	assert.Equal(t, "free", l.GetString("quota.fallback_tier"))
	assert.Equal(t, "main", l.GetString("quota.redis.instance"))
	assert.True(t, l.IsSet("quota"))
	assert.False(t, l.IsSet("kafka"))
}

func TestLoader_SourceError(t *testing.T) {
	l := NewLoader()
	l.AddSource(staticSource{name: "broken", err: assert.AnError})
	err := l.Load()
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "broken")
}

func TestLoader_UnmarshalSection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quotad.yaml", `
quota:
  store_type: redis
  cleanup_interval: 30s
  tiers:
    free:
      api:
        limit: 60
        window: 1m
http:
  addr: ":8080"
`)
	l := NewLoader()
	l.AddSource(NewFileSource(path, 10))
	require.NoError(t, l.Load())

	var cfg struct {
		StoreType       string        `mapstructure:"store_type"`
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
		Tiers           map[string]map[string]struct {
			Limit  int64         `mapstructure:"limit"`
			Window time.Duration `mapstructure:"window"`
		} `mapstructure:"tiers"`
	}
	require.NoError(t, l.Unmarshal("quota", &cfg))
	assert.Equal(t, "redis", cfg.StoreType)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, int64(60), cfg.Tiers["free"]["api"].Limit)
	assert.Equal(t, time.Minute, cfg.Tiers["free"]["api"].Window)

	assert.Equal(t, ":8080", l.GetString("http.addr"))
	assert.Equal(t, []string{path}, l.LoadedFiles())
	assert.Contains(t, l.AllSettings(), "quota")
}

func TestLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quotad.yaml", "quota:\n  enabled: true\n")
	l := NewLoader()
	l.AddSource(NewFileSource(path, 10))
	require.NoError(t, l.Load())
	assert.True(t, l.GetBool("quota.enabled"))

	writeFile(t, dir, "quotad.yaml", "quota:\n  enabled: false\n  event_bus_buffer: 64\n")
	require.NoError(t, l.Reload())
	assert.False(t, l.GetBool("quota.enabled"))
	assert.Equal(t, 64, l.GetInt("quota.event_bus_buffer"))
}

func TestUnflattenMap_DeeperKeyWins(t *testing.T) {
	nested := unflattenMap(map[string]interface{}{
		"quota":          "scalar",
		"quota.enabled":  true,
		"quota.redis.db": 1,
	})

	quota, ok := nested["quota"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, quota["enabled"])
	assert.Equal(t, 1, quota["redis"].(map[string]interface{})["db"])
}
