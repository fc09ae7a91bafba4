package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"pdf-audio/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
	SavePreferredVoice(voiceID string) error
}

// JSONStore persists settings in a single JSON file on disk. Values from
// dotenv files and the process environment override the file on Load.
type JSONStore struct {
	path     string
	envFiles []string
}

// NewJSONStore creates a JSON-backed settings store. envFiles defaults to
// ".env" in the working directory; missing dotenv files are ignored.
func NewJSONStore(path string, envFiles ...string) *JSONStore {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	return &JSONStore{path: path, envFiles: envFiles}
}

// Path returns the settings file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load starts from defaults, overlays the settings file when present and
// then the environment.
func (s *JSONStore) Load() (domain.Settings, error) {
	cfg, err := s.loadFile()
	if err != nil {
		return domain.Settings{}, err
	}

	environment, err := s.environment()
	if err != nil {
		return domain.Settings{}, err
	}
	if err := env.Parse(&cfg, env.Options{Environment: environment}); err != nil {
		return domain.Settings{}, fmt.Errorf("parse environment: %w", err)
	}

	return normalize(cfg), nil
}

// SavePreferredVoice updates only the preferred voice in the settings file.
// Environment overrides are not written back.
func (s *JSONStore) SavePreferredVoice(voiceID string) error {
	cfg, err := s.loadFile()
	if err != nil {
		return err
	}
	cfg.PreferredVoice = voiceID
	return s.Save(cfg)
}

// loadFile returns defaults overlaid with the settings file, if any.
func (s *JSONStore) loadFile() (domain.Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return domain.Settings{}, fmt.Errorf("parse %s: %w", s.path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return domain.Settings{}, err
	}
	return cfg, nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// environment merges dotenv values with the process environment, the latter
// taking precedence.
func (s *JSONStore) environment() (map[string]string, error) {
	merged := map[string]string{}
	for _, file := range s.envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range values {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	return merged, nil
}

// normalize fills blank fields with defaults.
func normalize(cfg domain.Settings) domain.Settings {
	defaults := DefaultSettings()
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	if strings.TrimSpace(cfg.PreferredVoice) == "" {
		cfg.PreferredVoice = defaults.PreferredVoice
	}
	if strings.TrimSpace(cfg.TargetLanguage) == "" {
		cfg.TargetLanguage = defaults.TargetLanguage
	}
	if strings.TrimSpace(cfg.OCRLanguage) == "" {
		cfg.OCRLanguage = defaults.OCRLanguage
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if strings.TrimSpace(cfg.DownloadDir) == "" {
		cfg.DownloadDir = defaults.DownloadDir
	}
	return cfg
}
