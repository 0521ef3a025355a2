package tierstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/config"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
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

func TestComponent_Disabled(t *testing.T) {
	var _ component.Component = (*Component)(nil)
	var _ component.HealthCheckProvider = (*Component)(nil)

	c := NewComponent()
	c.logger = logger.NewTestCtxLogger()
	ctx := context.Background()

	assert.Equal(t, "tierstore", c.Name())
	require.NoError(t, c.Init(ctx, loaderWith(t, map[string]interface{}{})))
	require.NoError(t, c.Start(ctx))

	assert.Nil(t, c.Store())
	assert.Nil(t, c.TierLookup())
	assert.Nil(t, c.GetHealthChecker())
	require.NoError(t, c.Stop(ctx))
}

func TestComponent_SQLite(t *testing.T) {
	c := NewComponent()
	log := logger.NewTestCtxLogger()
	c.logger = log
	ctx := context.Background()

	cfg := sqliteConfig()
	require.NoError(t, c.Init(ctx, loaderWith(t, map[string]interface{}{
		"tierstore.enabled": true,
		"tierstore.driver":  cfg.Driver,
		"tierstore.dsn":     cfg.DSN,
	})))
	require.NoError(t, c.Start(ctx))
	assert.True(t, log.HasLog("INFO", "Tier store opened"))

	require.NotNil(t, c.Store())
	require.NoError(t, c.Store().SetSubscription(ctx, "u1", quota.TierPro))

	tier, err := c.TierLookup().LookupTier(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, quota.TierPro, tier)
	assert.NoError(t, c.GetHealthChecker().Check(ctx))

	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
	assert.Nil(t, c.Store())
}

func TestComponent_BadDriver(t *testing.T) {
	c := NewComponent()
	c.logger = logger.NewTestCtxLogger()

	err := c.Init(context.Background(), loaderWith(t, map[string]interface{}{
		"tierstore.enabled": true,
		"tierstore.driver":  "oracle",
		"tierstore.dsn":     "x",
	}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
