package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// JobStatus tracks each stage of a single send job.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusTranscoding JobStatus = "transcoding"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	BotToken              string   `toml:"bot_token" json:"botToken"`
	BotAPIURL             string   `toml:"bot_api_url,omitempty" json:"botApiUrl,omitempty"`
	PrimaryChatID         string   `toml:"primary_chat_id" json:"primaryChatId"`
	MirrorChatID          string   `toml:"mirror_chat_id" json:"mirrorChatId"`
	MirrorProject         string   `toml:"mirror_project" json:"mirrorProject"`
	Projects              []string `toml:"projects" json:"projects"`
	CurrentProject        string   `toml:"current_project" json:"currentProject"`
	TranscodeThresholdMiB int64    `toml:"transcode_threshold_mib" json:"transcodeThresholdMiB"`
	FFmpegPath            string   `toml:"ffmpeg_path" json:"ffmpegPath"`
	UploadTimeoutSec      int      `toml:"upload_timeout_sec" json:"uploadTimeoutSec"`
	TestMode              bool     `toml:"test_mode" json:"testMode"`
	TestChatID            string   `toml:"test_chat_id" json:"testChatId"`
	LastFolder            string   `toml:"last_folder" json:"lastFolder"`
	LogLevel              string   `toml:"log_level" json:"logLevel"`
	HistoryPath           string   `toml:"history_path" json:"historyPath"`
}

// ThresholdBytes converts the configured MiB threshold into bytes.
func (s Settings) ThresholdBytes() int64 {
	return s.TranscodeThresholdMiB * 1024 * 1024
}

// UploadTimeout returns the per-request transport timeout.
func (s Settings) UploadTimeout() time.Duration {
	return time.Duration(s.UploadTimeoutSec) * time.Second
}

// Destinations lists the chats a project's messages go to, primary first.
// The mirror chat only applies to the mirror project; test mode routes
// everything to the test chat.
func (s Settings) Destinations(project string) []string {
	targets := []string{strings.TrimSpace(s.PrimaryChatID)}
	mirror := strings.TrimSpace(s.MirrorChatID)
	if mirror != "" && project != "" && project == s.MirrorProject {
		targets = append(targets, mirror)
	}

	if s.TestMode {
		for i := range targets {
			targets[i] = strings.TrimSpace(s.TestChatID)
		}
	}

	return lo.Uniq(lo.Compact(targets))
}

// Job stores one send job's identity and lifecycle status.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Project   string    `json:"project,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	Files     []string  `json:"files,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
