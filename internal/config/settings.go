// Package config owns the persisted settings file and the credential
// environment. Settings live in a JSON file under the user config dir;
// missing fields fall back to defaults so older files keep working.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tunesync/tunesync/internal/batch"
)

// Settings holds all user-configurable knobs organized by category.
type Settings struct {
	General  GeneralSettings  `json:"general"`
	Download DownloadSettings `json:"download"`
	Retry    RetrySettings    `json:"retry"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	// MusicDir is where downloaded audio lands.
	MusicDir string `json:"music_dir"`
	// BatchPath is the default persisted batch file.
	BatchPath string `json:"batch_path"`
	// LogRetentionCount is how many rotated log files to keep.
	LogRetentionCount int `json:"log_retention_count"`
}

// DownloadSettings contains fetch pipeline parameters.
type DownloadSettings struct {
	// Workers is the concurrent download count. 0 runs sequentially.
	Workers int `json:"workers"`
	// AudioFormat is the target container passed to the extractor.
	AudioFormat string `json:"audio_format"`
	// AudioQuality is the extractor quality flag, "0" is best.
	AudioQuality string `json:"audio_quality"`
	// YTDLPBinary overrides the extractor binary name or path.
	YTDLPBinary string `json:"ytdlp_binary"`
	// SearchWorkers bounds concurrent video lookups.
	SearchWorkers int `json:"search_workers"`
}

// RetrySettings bounds per-track retry behavior.
type RetrySettings struct {
	MaxAttempts        int     `json:"max_attempts"`
	FailureRateCeiling float64 `json:"failure_rate_ceiling"`
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	policy := batch.DefaultRetryPolicy()

	return &Settings{
		General: GeneralSettings{
			MusicDir:          filepath.Join(homeDir, "Music", "tunesync"),
			BatchPath:         filepath.Join(ConfigDir(), "batch.json"),
			LogRetentionCount: 5,
		},
		Download: DownloadSettings{
			Workers:       3,
			AudioFormat:   "mp3",
			AudioQuality:  "0",
			YTDLPBinary:   "yt-dlp",
			SearchWorkers: 3,
		},
		Retry: RetrySettings{
			MaxAttempts:        policy.MaxAttempts,
			FailureRateCeiling: policy.RateCeiling,
		},
	}
}

// ConfigDir returns the directory holding settings, logs and history.
func ConfigDir() string {
	if dir := os.Getenv("TUNESYNC_CONFIG_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tunesync")
}

// SettingsPath returns the path to the settings JSON file.
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

// LoadSettings loads settings from the default path. Returns defaults if the
// file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(SettingsPath())
}

// LoadSettingsFrom loads settings from an explicit path. Missing fields keep
// their default values.
func LoadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings saves settings to the default path atomically.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(s, SettingsPath())
}

// SaveSettingsTo writes settings to an explicit path atomically.
func SaveSettingsTo(s *Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// RetryPolicy converts the persisted retry knobs into the engine policy.
func (s *Settings) RetryPolicy() batch.RetryPolicy {
	policy := batch.DefaultRetryPolicy()
	if s.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = s.Retry.MaxAttempts
	}
	if s.Retry.FailureRateCeiling > 0 {
		policy.RateCeiling = s.Retry.FailureRateCeiling
	}
	return policy
}
