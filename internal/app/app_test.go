package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgekit/internal/bridge"
	"bridgekit/internal/config"
	"bridgekit/internal/retention"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "bridgehost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	a, err := New(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Store())
	require.NoError(t, a.Store().Save("Hello1.txt", "hi"))
	assert.FileExists(t, filepath.Join(dir, "DataStorage", "Hello1.txt"))

	st, err := a.Bridge().Storage()
	require.NoError(t, err)
	assert.Same(t, a.Store(), st)
	assert.Same(t, a.Bus(), a.Bridge().Messages())
	assert.True(t, a.Bus().Defined(TopicLog))
	assert.True(t, a.Bus().Defined(retention.TopicArchived))
}

func TestNewStorageDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage:
  driver: none
messages:
  topics: [Broadcast.Msg]
`)
	a, err := New(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Store())
	assert.Nil(t, a.Retention())
	_, err = a.Bridge().Storage()
	require.ErrorIs(t, err, bridge.ErrNoStorage)
	assert.True(t, a.Bus().Defined("Broadcast.Msg"))
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "storage:\n  driver: s3\n"},
		{name: "sqlite without path", body: "storage:\n  driver: sqlite\n"},
		{name: "bad max_age", body: "retention:\n  enabled: true\n  max_age: soon\n"},
		{name: "bad schedule", body: "retention:\n  enabled: true\n  schedule: every tuesday\n"},
		{name: "bad timezone", body: "retention:\n  timezone: Mars/Olympus\n"},
		{name: "shared archive dir", body: "storage:\n  working_dir: d\n  archive_dir: d\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := New(path)
			require.Error(t, err)
		})
	}
}

func TestSQLiteBackedApp(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage:
  driver: sqlite
  path: blobs.db
  busy_timeout: 2s
`)
	a, err := New(path)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store().Save("a.txt", "A"))
	got, err := a.Store().Load("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", got)
	assert.FileExists(t, filepath.Join(dir, "blobs.db"))
}

func TestForwardedLogsReachSink(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  level: info
  console: false
  file:
    enabled: true
    path: `+filepath.Join(dir, "app.log")+`
  forward:
    enabled: true
    min_level: warn
storage:
  driver: none
`)

	var (
		mu   sync.Mutex
		seen []string
	)
	sink := bridge.LogFunc(func(sev bridge.Severity, msg string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, sev.String()+":"+msg)
	})
	a, err := New(path, WithLogSink(sink))
	require.NoError(t, err)
	defer a.Close()

	a.Logger().Warn("disk nearly full")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, seen[0], "disk nearly full")
	mu.Unlock()
}

func TestAssetUsesAppBridge(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	defer a.Close()

	as := a.NewAsset("Demo")
	assert.Equal(t, "Demo_1", as.ID())
	assert.Same(t, a.Bridge(), as.Bridge())
}

func TestApplyConfigReconfiguresRetention(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	defer a.Close()

	oldCfg := a.Config()
	newCfg := *oldCfg
	newCfg.Retention = config.RetentionConfig{Enabled: true, Schedule: "@daily", MaxAge: "48h"}
	newCfg.Messages = config.MessagesConfig{Topics: []string{"Broadcast.Msg"}}

	a.applyConfig(oldCfg, &newCfg)

	rc := a.Retention().Config()
	assert.True(t, rc.Enabled)
	assert.Equal(t, "@daily", rc.Schedule)
	assert.Equal(t, 48*time.Hour, rc.MaxAge)
	assert.True(t, a.Bus().Defined("Broadcast.Msg"))
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  level: debug
  console: false
retention:
  enabled: true
  schedule: "@every 1h"
`)
	a, err := New(path)
	require.NoError(t, err)

	ch, unsub, err := a.Bus().SubscribeChan(TopicLog, 8)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, a.Start(context.Background()))
	_, ok := a.Retention().NextRun()
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx, StopSignal))

	select {
	case <-a.Done():
	default:
		t.Fatal("app context still live after Stop")
	}
	_, ok = a.Retention().NextRun()
	assert.False(t, ok)

	// forwarding is off in this config
	select {
	case m := <-ch:
		t.Fatalf("unexpected forwarded record: %v", m.Args)
	default:
	}
}
