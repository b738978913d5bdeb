package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgekit/internal/storage"
)

func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfg}, args...))
	lsCmd.Flags().Set("archive", "false")
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStoreCommands(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := run(t, cfg, "save", "Hello1.txt", "Hello World 1")
	require.NoError(t, err)
	_, err = run(t, cfg, "save", "Hello2.txt", "Hello World 2")
	require.NoError(t, err)

	out, err := run(t, cfg, "load", "Hello1.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello World 1\n", out)

	out, err = run(t, cfg, "ls")
	require.NoError(t, err)
	assert.Equal(t, "Hello1.txt\nHello2.txt\n", out)

	_, err = run(t, cfg, "rm", "Hello1.txt")
	require.NoError(t, err)
	_, err = run(t, cfg, "rm", "Hello1.txt")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = run(t, cfg, "archive", "Hello2.txt")
	require.NoError(t, err)

	out, err = run(t, cfg, "ls")
	require.NoError(t, err)
	assert.Equal(t, "(no entries)\n", out)

	out, err = run(t, cfg, "ls", "--archive")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Hello2-"), out)

	_, err = run(t, cfg, "load", "Hello2.txt")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDemo(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := run(t, cfg, "demo")
	require.NoError(t, err)

	assert.Contains(t, out, "Asset Logger v1.2.3\nDepends on Messages v1.0.0\nDepends on Storage v1.0.0")
	assert.Contains(t, out, "Trying to re-register: Logger_1 -> Logger_1")
	assert.Contains(t, out, "[Information] Hello1.txt=Hello World 1")
	assert.Contains(t, out, "[Information] archived: Hello2-")
	assert.Contains(t, out, "no bridge: "+"bridge: no storage configured")
	assert.Contains(t, out, "[demo].Broadcast.Msg: [hello;from;demo!]\n")
	assert.Contains(t, out, "[demo].Broadcast.Msg: [1;2;3.141592653589793] (func value)\n")
	assert.Contains(t, out, "[demo].Broadcast.Msg: [hello;from;demo!] (closure)\n")
	assert.Contains(t, out, `<Setting name="Volume">0.8</Setting>`)
}

func TestStorageDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bridgehost.json")
	require.NoError(t, writeFile(cfg, `{"storage":{"driver":"none"}}`))
	_, err := run(t, cfg, "ls")
	require.ErrorIs(t, err, errNoStore)
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o600)
}
