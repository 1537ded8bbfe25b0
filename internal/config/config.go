// Package config handles loading and managing wachat configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// APIConfig holds Green API credentials and tuning.
type APIConfig struct {
	IDInstance      string  `toml:"id_instance"`       // Green API instance ID
	APIToken        string  `toml:"api_token"`         // Green API token
	BaseURL         string  `toml:"base_url"`          // API base URL
	RequestInterval float64 `toml:"request_interval"`  // Minimum seconds between requests
}

// SyncConfig holds sync-related configuration.
type SyncConfig struct {
	MessagesPerChat     int     `toml:"messages_per_chat"`     // Max messages fetched per chat in a full sync
	IncrementalMessages int     `toml:"incremental_messages"`  // Max messages per chat in an incremental sync
	ChatDelay           float64 `toml:"chat_delay"`            // Seconds between chat syncs
	BatchPause          float64 `toml:"batch_pause"`           // Seconds to pause after each batch
	BatchSize           int     `toml:"batch_size"`            // Chats per batch before the longer pause
}

// ScheduleEntry defines a cron-scheduled incremental sync.
type ScheduleEntry struct {
	Name     string `toml:"name"`     // Label shown in status output
	Schedule string `toml:"schedule"` // Cron expression (e.g., "0 8,20 * * *")
	Enabled  bool   `toml:"enabled"`
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

type Config struct {
	Data     DataConfig      `toml:"data"`
	API      APIConfig       `toml:"api"`
	Sync     SyncConfig      `toml:"sync"`
	Schedule []ScheduleEntry `toml:"schedule"`

	// Computed (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default wachat home directory.
// Respects the WACHAT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("WACHAT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wachat"
	}
	return filepath.Join(home, ".wachat")
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (~/.wachat/config.toml).
// Credentials fall back to GREENAPI_ID_INSTANCE / GREENAPI_API_TOKEN
// environment variables when not set in the file.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		API: APIConfig{
			BaseURL:         "https://api.green-api.com",
			RequestInterval: 1.0,
		},
		Sync: SyncConfig{
			MessagesPerChat:     1000,
			IncrementalMessages: 200,
			ChatDelay:           2.0,
			BatchPause:          10.0,
			BatchSize:           10,
		},
	}

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)

	// Environment overrides for credentials
	if v := os.Getenv("GREENAPI_ID_INSTANCE"); v != "" {
		cfg.API.IDInstance = v
	}
	if v := os.Getenv("GREENAPI_API_TOKEN"); v != "" {
		cfg.API.APIToken = v
	}

	return cfg, nil
}

// HasCredentials reports whether Green API credentials are configured.
func (c *Config) HasCredentials() bool {
	return c.API.IDInstance != "" && c.API.APIToken != ""
}

// EnsureHomeDir creates the data directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.Data.DataDir, 0755)
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.DataDir, "whatsapp_chats.db")
}

// MediaDir returns the root directory for downloaded media.
func (c *Config) MediaDir() string {
	return filepath.Join(c.Data.DataDir, "media")
}

// CheckpointPath returns the path to the full-sync checkpoint file.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Data.DataDir, "sync_progress.json")
}

// IncrementalStatusPath returns the path to the incremental-sync status file.
func (c *Config) IncrementalStatusPath() string {
	return filepath.Join(c.Data.DataDir, "incremental_sync_status.json")
}

// RequestInterval returns the minimum inter-request interval as a Duration.
func (c *Config) RequestInterval() time.Duration {
	return time.Duration(c.API.RequestInterval * float64(time.Second))
}

// ChatDelay returns the delay between chat syncs as a Duration.
func (c *Config) ChatDelay() time.Duration {
	return time.Duration(c.Sync.ChatDelay * float64(time.Second))
}

// BatchPause returns the pause between batches as a Duration.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Sync.BatchPause * float64(time.Second))
}

// EnabledSchedules returns schedule entries with scheduling enabled.
func (c *Config) EnabledSchedules() []ScheduleEntry {
	var enabled []ScheduleEntry
	for _, s := range c.Schedule {
		if s.Enabled && s.Schedule != "" {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
