package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
logging:
  level: debug
  console: false
storage:
  driver: sqlite
  path: ./data/blobs.db
  busy_timeout: 2s
retention:
  enabled: true
  schedule: "@hourly"
  max_age: 24h
messages:
  topics: [Broadcast.Msg, storage.archived]
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestParseYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridgehost.yaml")
	writeFile(t, path, sampleYAML)

	cfg, err := NewConfigManager(path).Parse()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "2s", cfg.Storage.BusyTimeout)
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, []string{"Broadcast.Msg", "storage.archived"}, cfg.Messages.Topics)
}

func TestParseJSONStrict(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"storage":{"driver":"file","root":"./x"}}`},
		{name: "unknown field", body: `{"storage":{"driver":"file","bucket":"x"}}`, wantErr: true},
		{name: "trailing data", body: `{} {}`, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeFile(t, path, tt.body)
			_, err := NewConfigManager(path).Parse()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := m.LoadOrDefault()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Same(t, cfg, m.Get())
}

func TestSubscribeKeepsLatest(t *testing.T) {
	m := NewConfigManager("unused")
	ch := m.Subscribe(1)
	first := &Config{Logging: LoggingConfig{Level: "info"}}
	second := &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	assert.Same(t, second, got)

	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	m.Unsubscribe(ch)
}

func TestWatchPublishesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridgehost.json")
	writeFile(t, path, `{"logging":{"level":"info"}}`)

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return nil })
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, `{"logging":{"level":"debug"}}`)

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "debug", m.Get().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not published")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := Default()
	newCfg := Default()
	newCfg.Retention = RetentionConfig{Enabled: true, Schedule: "@daily", MaxAge: "72h"}
	newCfg.Logging.Level = "debug"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"logging", "retention"}, changed)
	assert.NotEmpty(t, attrs)

	changed, _ = SummarizeConfigChange(nil, nil)
	assert.Empty(t, changed)
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationOrDefault("retention.max_age", "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	_, err = ParseDurationField("retention.max_age", "-1s")
	require.Error(t, err)
	_, err = ParseDurationField("retention.max_age", "soon")
	require.Error(t, err)
}

func TestDurationFieldError(t *testing.T) {
	_, err := ParseDurationField("storage.busy_timeout", "2 secs")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "storage.busy_timeout", fe.Path)
	assert.Equal(t, "2 secs", fe.Value)
}

func TestToJSON(t *testing.T) {
	assert.Equal(t, formatYAML, formatOf("a/b.YML"))
	assert.Equal(t, formatJSON, formatOf("a/b.conf"))

	out, err := toJSON(formatYAML, []byte("  \n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))

	out, err = toJSON(formatYAML, []byte("messages:\n  topics:\n    - a\n1: one\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":{"topics":["a"]},"1":"one"}`, string(out))
}
