package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/config"
)

const quietLogger = `
logger:
  enable_console: false
  enable_file: false
`

// writeConfig writes a quotad.yaml with logging silenced plus extra
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(quietLogger+extra), 0o600))
	return path
}

func loadConfig(t *testing.T, path string) *config.Loader {
	t.Helper()
	loader, err := config.NewLoaderBuilder().WithConfigFile(path).Build()
	require.NoError(t, err)
	return loader
}

// runCommand executes the root command and returns its combined output
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
