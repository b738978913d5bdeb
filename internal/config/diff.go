package config

import (
	"reflect"
	"strings"

	logx "bridgekit/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and
// structured attrs describing the new values.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.forward_enabled", newCfg.Logging.Forward.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.restart_required", true),
		)
	}

	if oldCfg.Retention != newCfg.Retention {
		changed = append(changed, "retention")
		attrs = append(attrs,
			logx.Bool("retention.enabled", newCfg.Retention.Enabled),
			logx.String("retention.schedule", strings.TrimSpace(newCfg.Retention.Schedule)),
			logx.String("retention.max_age", strings.TrimSpace(newCfg.Retention.MaxAge)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Messages, newCfg.Messages) {
		changed = append(changed, "messages")
		attrs = append(attrs, logx.Int("messages.topic_count", len(newCfg.Messages.Topics)))
	}

	return changed, attrs
}
