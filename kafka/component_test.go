package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/config"
	"github.com/KOMKZ/go-yogan-quota/logger"
)

type mapSource map[string]interface{}

func (mapSource) Name() string                            { return "test" }
func (mapSource) Priority() int                           { return 10 }
func (s mapSource) Load() (map[string]interface{}, error) { return s, nil }

func loaderWith(t *testing.T, data map[string]interface{}) *config.Loader {
	t.Helper()
	l := config.NewLoader()
	l.AddSource(mapSource(data))
	require.NoError(t, l.Load())
	return l
}

func TestComponent_DisabledIsInert(t *testing.T) {
	var _ component.Component = (*Component)(nil)
	var _ component.HealthCheckProvider = (*Component)(nil)

	ctx := context.Background()
	c := NewComponent()
	c.logger = logger.NewTestCtxLogger()

	assert.Equal(t, component.ComponentKafka, c.Name())
	assert.Contains(t, c.DependsOn(), component.ComponentConfig)

	require.NoError(t, c.Init(ctx, loaderWith(t, map[string]interface{}{
		"kafka.brokers": []string{"localhost:9092"},
	})))
	require.NoError(t, c.Start(ctx))

	assert.Nil(t, c.GetManager())
	assert.Nil(t, c.Publisher())
	assert.Nil(t, c.GetHealthChecker())
	require.NoError(t, c.Stop(ctx))
}

func TestComponent_InvalidConfig(t *testing.T) {
	c := NewComponent()
	c.logger = logger.NewTestCtxLogger()

	err := c.Init(context.Background(), loaderWith(t, map[string]interface{}{
		"kafka.enabled": true,
	}))
	assert.Error(t, err)
}

func TestComponent_InitBuildsManager(t *testing.T) {
	c := NewComponent()
	c.logger = logger.NewTestCtxLogger()

	require.NoError(t, c.Init(context.Background(), loaderWith(t, map[string]interface{}{
		"kafka.enabled": true,
		"kafka.brokers": []string{"localhost:9092"},
		"kafka.topic":   "security.violations",
	})))

	m := c.GetManager()
	require.NotNil(t, m)
	assert.Equal(t, "security.violations", m.Config().Topic)
	assert.Nil(t, c.Publisher(), "no publisher before Start")
	assert.NotNil(t, c.GetHealthChecker())
}

func TestManager_NotConnected(t *testing.T) {
	m, err := NewManager(Config{Brokers: []string{"localhost:9092"}}, logger.NewTestCtxLogger())
	require.NoError(t, err)

	assert.Nil(t, m.Producer())
	assert.Nil(t, m.Publisher())
	assert.ErrorContains(t, m.Ping(context.Background()), "not connected")

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.ErrorContains(t, m.Ping(context.Background()), "closed")
	assert.Error(t, m.Connect(context.Background()))
}

func TestManager_InvalidConfig(t *testing.T) {
	_, err := NewManager(Config{}, nil)
	assert.ErrorContains(t, err, "brokers cannot be empty")
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(nil)
	assert.Equal(t, "kafka", h.Name())
	assert.Error(t, h.Check(context.Background()))

	m, err := NewManager(Config{Brokers: []string{"localhost:9092"}}, logger.NewTestCtxLogger())
	require.NoError(t, err)
	h = NewHealthChecker(m)
	h.SetTimeout(0)
	assert.Error(t, h.Check(context.Background()))
}
