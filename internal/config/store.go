package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"

	"render-sender/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// TOMLStore persists settings in a single TOML file on disk.
type TOMLStore struct {
	path string
}

// NewTOMLStore creates a TOML-backed settings store.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Path returns the backing file location.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing.
// ${VAR} references are expanded from the environment.
func (s *TOMLStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ApplyDefaults(expandSettings(DefaultSettings())), nil
		}
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var cfg domain.Settings
	if _, err := toml.Decode(substituteEnvVars(string(data)), &cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("parse settings %s: %w", s.path, err)
	}

	return ApplyDefaults(cfg), nil
}

// Save writes settings as TOML and creates parent directories.
func (s *TOMLStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Unknown variables expand to an empty string so validation reports them.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func expandSettings(s domain.Settings) domain.Settings {
	s.BotToken = substituteEnvVars(s.BotToken)
	s.PrimaryChatID = substituteEnvVars(s.PrimaryChatID)
	s.MirrorChatID = substituteEnvVars(s.MirrorChatID)
	s.TestChatID = substituteEnvVars(s.TestChatID)
	return s
}
