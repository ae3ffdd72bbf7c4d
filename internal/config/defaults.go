package config

import (
	"os"
	"path/filepath"

	"render-sender/internal/domain"
)

const (
	// DefaultThresholdMiB is the size above which videos are re-encoded before upload.
	DefaultThresholdMiB = 45

	defaultUploadTimeoutSec = 600
	defaultLogLevel         = "info"
	defaultFFmpegPath       = "ffmpeg"
)

// DefaultDir returns the per-user application directory.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".render-sender")
}

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "settings.toml")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		BotToken:              "${TELEGRAM_BOT_TOKEN}",
		TranscodeThresholdMiB: DefaultThresholdMiB,
		FFmpegPath:            defaultFFmpegPath,
		UploadTimeoutSec:      defaultUploadTimeoutSec,
		LogLevel:              defaultLogLevel,
		HistoryPath:           filepath.Join(DefaultDir(), "history.db"),
	}
}

// ApplyDefaults fills zero-valued fields. The mirror project falls back to
// the first configured project.
func ApplyDefaults(s domain.Settings) domain.Settings {
	defaults := DefaultSettings()
	if s.TranscodeThresholdMiB == 0 {
		s.TranscodeThresholdMiB = defaults.TranscodeThresholdMiB
	}
	if s.FFmpegPath == "" {
		s.FFmpegPath = defaults.FFmpegPath
	}
	if s.UploadTimeoutSec == 0 {
		s.UploadTimeoutSec = defaults.UploadTimeoutSec
	}
	if s.LogLevel == "" {
		s.LogLevel = defaults.LogLevel
	}
	if s.HistoryPath == "" {
		s.HistoryPath = defaults.HistoryPath
	}
	if s.MirrorProject == "" && len(s.Projects) > 0 {
		s.MirrorProject = s.Projects[0]
	}
	if s.CurrentProject == "" && len(s.Projects) > 0 {
		s.CurrentProject = s.Projects[0]
	}
	return s
}
