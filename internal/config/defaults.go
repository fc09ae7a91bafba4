package config

import (
	"os"
	"path/filepath"
	"time"

	"pdf-audio/internal/domain"
)

const appDirName = ".pdf-audio"

// DefaultRequestTimeout bounds one backend call, OCR of long PDFs included.
const DefaultRequestTimeout = 5 * time.Minute

// DefaultSettings returns baseline configuration for first launch. An empty
// API base URL means the backend is served from the same origin.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		PreferredVoice: "es-CL-LorenzoNeural",
		TargetLanguage: "es",
		OCRLanguage:    "spa",
		RequestTimeout: DefaultRequestTimeout,
		DownloadDir:    filepath.Join(homeDir, "Downloads"),
	}
}

// DefaultPath returns the settings file location under the user's home.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName, "settings.json")
}
