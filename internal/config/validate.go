package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"render-sender/internal/domain"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate reports every configuration problem at once.
func Validate(s domain.Settings) error {
	var errs []error

	if strings.TrimSpace(s.BotToken) == "" {
		errs = append(errs, errors.New("bot_token: required"))
	}
	if strings.TrimSpace(s.PrimaryChatID) == "" {
		errs = append(errs, errors.New("primary_chat_id: required"))
	}
	if s.TestMode && strings.TrimSpace(s.TestChatID) == "" {
		errs = append(errs, errors.New("test_chat_id: required when test_mode is enabled"))
	}
	if s.TranscodeThresholdMiB <= 0 {
		errs = append(errs, fmt.Errorf("transcode_threshold_mib: must be positive, got %d", s.TranscodeThresholdMiB))
	}
	if s.UploadTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("upload_timeout_sec: must not be negative, got %d", s.UploadTimeoutSec))
	}
	if s.LogLevel != "" && !validLogLevels[s.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", s.LogLevel))
	}
	if s.CurrentProject != "" && len(s.Projects) > 0 && !slices.Contains(s.Projects, s.CurrentProject) {
		errs = append(errs, fmt.Errorf("current_project: %q is not in projects", s.CurrentProject))
	}

	return errors.Join(errs...)
}

// MaskToken hides all but the last four characters of a bot token.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
