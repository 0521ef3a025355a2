package logger

import (
	"sync"
	"testing"
)

// initTestManager swaps the global manager for one writing under a temp dir
func initTestManager(t *testing.T, cfg ManagerConfig) string {
	t.Helper()
	if cfg.BaseLogDir == "" {
		cfg.BaseLogDir = t.TempDir()
	}
	globalManager = nil
	managerOnce = sync.Once{}
	InitManager(cfg)
	t.Cleanup(func() {
		CloseAll()
		globalManager = nil
		managerOnce = sync.Once{}
	})
	return cfg.BaseLogDir
}

func fileOnlyConfig(level string) ManagerConfig {
	return ManagerConfig{
		Level:                 level,
		Encoding:              "json",
		EnableFile:            true,
		EnableLevelInFilename: true,
		MaxSize:               10,
	}
}
