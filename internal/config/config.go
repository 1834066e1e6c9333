// Package config loads and saves the per-directory agriscan settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	configFile = ".agriscan/config.json"
	lockFile   = ".agriscan/config.json.lock"
	envFile    = ".env"
)

// SyncConfig holds delivery and connectivity settings.
type SyncConfig struct {
	URL             string `json:"url,omitempty"`
	DeliveryTimeout string `json:"delivery_timeout,omitempty"` // duration, default "10s"
	ProbeInterval   string `json:"probe_interval,omitempty"`   // duration, default "15s"
	DrainInterval   string `json:"drain_interval,omitempty"`   // duration, default "5m"
}

// StorageConfig selects the database driver and its size cap.
type StorageConfig struct {
	Driver     string `json:"driver,omitempty"`
	QuotaBytes *int64 `json:"quota_bytes,omitempty"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // "text" or "json"
}

// Config is stored at <dir>/.agriscan/config.json.
type Config struct {
	DeviceID      string        `json:"device_id,omitempty"`
	ReferenceData string        `json:"reference_data,omitempty"` // disease file the daemon watches
	Sync          SyncConfig    `json:"sync"`
	Storage       StorageConfig `json:"storage"`
	Log           LogConfig     `json:"log"`

	FeatureFlags map[string]bool `json:"feature_flags,omitempty"`
}

// Path returns the config file location for baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, configFile)
}

// Load reads the config from disk. A missing file is an empty config.
func Load(baseDir string) (*Config, error) {
	data, err := os.ReadFile(Path(baseDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *Config) error {
	configPath := Path(baseDir)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, configPath)
}

// Update applies fn to the stored config under the config lock and saves
// the result. Nothing is written if fn fails.
func Update(baseDir string, fn func(*Config) error) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		return Save(baseDir, cfg)
	})
}

// LoadEnv reads <dir>/.env into the process environment. Variables that
// are already set win over the file. A missing file is not an error.
func LoadEnv(baseDir string) error {
	err := godotenv.Load(filepath.Join(baseDir, envFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// DeviceID returns the id this installation reports to the sync server.
// Priority: AGRISCAN_DEVICE_ID env > config.json > a new id, saved.
func DeviceID(baseDir string) (string, error) {
	if v := os.Getenv("AGRISCAN_DEVICE_ID"); v != "" {
		return v, nil
	}
	var id string
	err := Update(baseDir, func(cfg *Config) error {
		if cfg.DeviceID == "" {
			cfg.DeviceID = uuid.NewString()
		}
		id = cfg.DeviceID
		return nil
	})
	return id, err
}
