package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Retention RetentionConfig `json:"retention,omitempty"`
	Messages  MessagesConfig  `json:"messages,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Root: "."},
	}
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Forward LoggingForward `json:"forward,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingForward mirrors records to the host log sink (bridge Log capability).
type LoggingForward struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the blob store driver.
//
// Example:
//
//	"storage": { "driver": "file", "root": "./data" }
//	"storage": { "driver": "sqlite", "path": "./data/blobs.db", "busy_timeout": "2s" }
//
// Directory changes take effect on restart only.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Root        string `json:"root,omitempty"`
	WorkingDir  string `json:"working_dir,omitempty"` // default: DataStorage
	ArchiveDir  string `json:"archive_dir,omitempty"` // default: Archive
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RetentionConfig controls the periodic archive sweep.
//
// Schedule is a cron spec (5 or 6 fields, descriptors like "@hourly" allowed).
// MaxAge is a Go duration string; blobs not modified for longer are archived.
type RetentionConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	MaxAge   string `json:"max_age,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// MessagesConfig lists topics defined at startup.
type MessagesConfig struct {
	Topics []string `json:"topics,omitempty"`
}
