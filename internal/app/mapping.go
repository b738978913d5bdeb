package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bridgekit/internal/config"
	"bridgekit/internal/retention"
	"bridgekit/internal/storage"
	logx "bridgekit/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Forward: logx.ForwardConfig{
			Enabled:    cfg.Logging.Forward.Enabled,
			MinLevel:   cfg.Logging.Forward.MinLevel,
			RatePerSec: cfg.Logging.Forward.RatePerSec,
		},
	}
}

// mapStorageConfig returns enabled=false for driver "none".
// Relative paths resolve against baseDir (the config file directory).
func mapStorageConfig(cfg *config.Config, baseDir string) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	switch driver {
	case "none":
		return storage.Config{}, false, nil
	case "", "file":
		root := resolve(sc.Root)
		if root == "" {
			root = baseDir
		}
		return storage.Config{
			Driver:     "file",
			Root:       root,
			WorkingDir: strings.TrimSpace(sc.WorkingDir),
			ArchiveDir: strings.TrimSpace(sc.ArchiveDir),
		}, true, nil
	case "sqlite", "sqlite3":
		path := resolve(sc.Path)
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapRetentionConfig(cfg *config.Config) (retention.Config, error) {
	rc := cfg.Retention
	maxAge, err := config.ParseDurationOrDefault("retention.max_age", rc.MaxAge, retention.DefaultMaxAge)
	if err != nil {
		return retention.Config{}, err
	}
	if tz := strings.TrimSpace(rc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return retention.Config{}, fmt.Errorf("retention.timezone: invalid %q: %w", tz, err)
		}
	}
	return retention.Config{
		Enabled:  rc.Enabled,
		Schedule: rc.Schedule,
		MaxAge:   maxAge,
		Timezone: rc.Timezone,
	}, nil
}
