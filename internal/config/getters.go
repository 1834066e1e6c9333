package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults for settings left unset.
const (
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultProbeInterval   = 15 * time.Second
	DefaultDrainInterval   = 5 * time.Minute
	DefaultDriver          = "sqlite"
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "text"
)

// loaded reads the config, logging and falling back to empty on error so
// getters always answer.
func loaded(baseDir string) *Config {
	cfg, err := Load(baseDir)
	if err != nil {
		slog.Debug("config: load failed, using defaults", "err", err)
		return &Config{}
	}
	return cfg
}

// durationSetting resolves env > config value > def. Non-positive or
// unparseable values fall through.
func durationSetting(envKey, cfgValue string, def time.Duration) time.Duration {
	for _, v := range []string{os.Getenv(envKey), cfgValue} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// SyncURL returns the sync server base URL, empty when none is configured.
// Priority: AGRISCAN_SYNC_URL env > config.json sync.url.
func SyncURL(baseDir string) string {
	if v := os.Getenv("AGRISCAN_SYNC_URL"); v != "" {
		return v
	}
	return loaded(baseDir).Sync.URL
}

// DeliveryTimeout bounds each sync delivery attempt.
// Priority: AGRISCAN_DELIVERY_TIMEOUT env > config.json > 10s.
func DeliveryTimeout(baseDir string) time.Duration {
	return durationSetting("AGRISCAN_DELIVERY_TIMEOUT", loaded(baseDir).Sync.DeliveryTimeout, DefaultDeliveryTimeout)
}

// ProbeInterval is how often the daemon checks connectivity.
// Priority: AGRISCAN_PROBE_INTERVAL env > config.json > 15s.
func ProbeInterval(baseDir string) time.Duration {
	return durationSetting("AGRISCAN_PROBE_INTERVAL", loaded(baseDir).Sync.ProbeInterval, DefaultProbeInterval)
}

// DrainInterval is how often the daemon retries the queue while online.
// Priority: AGRISCAN_DRAIN_INTERVAL env > config.json > 5m.
func DrainInterval(baseDir string) time.Duration {
	return durationSetting("AGRISCAN_DRAIN_INTERVAL", loaded(baseDir).Sync.DrainInterval, DefaultDrainInterval)
}

// StorageDriver returns the SQLite driver name.
// Priority: AGRISCAN_STORAGE_DRIVER env > config.json > "sqlite".
func StorageDriver(baseDir string) string {
	if v := os.Getenv("AGRISCAN_STORAGE_DRIVER"); v != "" {
		return v
	}
	if d := loaded(baseDir).Storage.Driver; d != "" {
		return d
	}
	return DefaultDriver
}

// QuotaBytes caps the database size; 0 means no cap.
// Priority: AGRISCAN_QUOTA_BYTES env > config.json > 0.
func QuotaBytes(baseDir string) int64 {
	if v := os.Getenv("AGRISCAN_QUOTA_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	if q := loaded(baseDir).Storage.QuotaBytes; q != nil && *q >= 0 {
		return *q
	}
	return 0
}

// LogLevel returns the slog level.
// Priority: AGRISCAN_LOG_LEVEL env > config.json > warn.
func LogLevel(baseDir string) slog.Level {
	v := os.Getenv("AGRISCAN_LOG_LEVEL")
	if v == "" {
		v = loaded(baseDir).Log.Level
	}
	var lvl slog.Level
	if v == "" || lvl.UnmarshalText([]byte(v)) != nil {
		lvl.UnmarshalText([]byte(DefaultLogLevel))
	}
	return lvl
}

// LogFormat returns "json" or "text".
// Priority: AGRISCAN_LOG_FORMAT env > config.json > text.
func LogFormat(baseDir string) string {
	v := os.Getenv("AGRISCAN_LOG_FORMAT")
	if v == "" {
		v = loaded(baseDir).Log.Format
	}
	if strings.EqualFold(v, "json") {
		return "json"
	}
	return DefaultLogFormat
}

// ReferenceData returns the disease reference file the daemon loads and
// watches, empty when none is configured. Relative paths resolve against
// baseDir. Priority: AGRISCAN_REFERENCE_DATA env > config.json.
func ReferenceData(baseDir string) string {
	v := os.Getenv("AGRISCAN_REFERENCE_DATA")
	if v == "" {
		v = loaded(baseDir).ReferenceData
	}
	if v == "" || filepath.IsAbs(v) {
		return v
	}
	return filepath.Join(baseDir, v)
}
