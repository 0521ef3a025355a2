package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinLogWriter(t *testing.T) {
	dir := initTestManager(t, fileOnlyConfig("debug"))

	writer := NewGinLogWriter("gin")
	for _, line := range []string{
		"[GIN-debug] GET /api/v1/search --> main.search (4 handlers)",
		"[WARNING] Running in \"debug\" mode",
		"[Recovery] panic recovered: boom",
		"   ",
	} {
		n, err := writer.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	CloseAll()

	info, err := os.ReadFile(filepath.Join(dir, "gin", "gin-info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "GIN-debug")
	assert.Contains(t, string(info), `"level":"warn"`)

	errLog, err := os.ReadFile(filepath.Join(dir, "gin", "gin-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "panic recovered")
}
