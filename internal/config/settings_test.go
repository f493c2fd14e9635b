package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings == nil {
		t.Fatal("DefaultSettings returned nil")
	}

	t.Run("GeneralSettings", func(t *testing.T) {
		if settings.General.MusicDir == "" {
			t.Error("MusicDir should not be empty")
		}
		if settings.General.BatchPath == "" {
			t.Error("BatchPath should not be empty")
		}
		if settings.General.LogRetentionCount <= 0 {
			t.Errorf("LogRetentionCount should be positive, got: %d", settings.General.LogRetentionCount)
		}
	})

	t.Run("DownloadSettings", func(t *testing.T) {
		if settings.Download.Workers < 0 {
			t.Errorf("Workers should not be negative, got: %d", settings.Download.Workers)
		}
		if settings.Download.AudioFormat != "mp3" {
			t.Errorf("AudioFormat should default to mp3, got: %s", settings.Download.AudioFormat)
		}
		if settings.Download.YTDLPBinary == "" {
			t.Error("YTDLPBinary should not be empty")
		}
	})

	t.Run("RetrySettings", func(t *testing.T) {
		if settings.Retry.MaxAttempts <= 0 {
			t.Errorf("MaxAttempts should be positive, got: %d", settings.Retry.MaxAttempts)
		}
		if settings.Retry.FailureRateCeiling <= 0 || settings.Retry.FailureRateCeiling > 1 {
			t.Errorf("FailureRateCeiling should be in (0,1], got: %f", settings.Retry.FailureRateCeiling)
		}
	})
}

func TestLoadSettingsMissingFile(t *testing.T) {
	settings, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadSettingsFrom should not fail on missing file: %v", err)
	}
	if settings.Download.AudioFormat != "mp3" {
		t.Errorf("missing file should yield defaults, got format: %s", settings.Download.AudioFormat)
	}
}

func TestLoadSettingsFillsMissingFields(t *testing.T) {
	// A partial file from an older version: only workers is set.
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"download":{"workers":7}}`), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatalf("LoadSettingsFrom failed: %v", err)
	}
	if settings.Download.Workers != 7 {
		t.Errorf("Workers should come from the file, got: %d", settings.Download.Workers)
	}
	if settings.Download.AudioFormat != "mp3" {
		t.Errorf("missing fields should keep defaults, got format: %s", settings.Download.AudioFormat)
	}
	if settings.Retry.MaxAttempts <= 0 {
		t.Errorf("missing retry section should keep defaults, got: %d", settings.Retry.MaxAttempts)
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.json")

	settings := DefaultSettings()
	settings.Download.Workers = 5
	settings.General.MusicDir = "/tmp/music"

	if err := SaveSettingsTo(settings, path); err != nil {
		t.Fatalf("SaveSettingsTo failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after save")
	}

	loaded, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatalf("LoadSettingsFrom failed: %v", err)
	}
	if loaded.Download.Workers != 5 {
		t.Errorf("Workers = %d, want 5", loaded.Download.Workers)
	}
	if loaded.General.MusicDir != "/tmp/music" {
		t.Errorf("MusicDir = %s, want /tmp/music", loaded.General.MusicDir)
	}

	// The file is valid indented JSON.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved settings are not valid JSON: %v", err)
	}
}

func TestRetryPolicyConversion(t *testing.T) {
	settings := DefaultSettings()
	settings.Retry.MaxAttempts = 8
	settings.Retry.FailureRateCeiling = 0.5

	policy := settings.RetryPolicy()
	if policy.MaxAttempts != 8 {
		t.Errorf("MaxAttempts = %d, want 8", policy.MaxAttempts)
	}
	if policy.RateCeiling != 0.5 {
		t.Errorf("RateCeiling = %f, want 0.5", policy.RateCeiling)
	}

	// Zeroed knobs fall back to the default policy.
	settings.Retry = RetrySettings{}
	policy = settings.RetryPolicy()
	if policy.MaxAttempts <= 0 {
		t.Errorf("zero MaxAttempts should fall back to default, got %d", policy.MaxAttempts)
	}
}
