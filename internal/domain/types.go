package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage names one point of the PDF-to-audio lifecycle.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageFileSelected Stage = "file-selected"
	StageExtracting   Stage = "extracting"
	StageTextReady    Stage = "text-ready"
	StageSynthesizing Stage = "synthesizing"
	StageAudioReady   Stage = "audio-ready"
)

// InFlight reports whether the stage represents an outstanding backend call.
func (s Stage) InFlight() bool {
	return s == StageExtracting || s == StageSynthesizing
}

// ErrorKind classifies the error currently shown to the user.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindValidation         ErrorKind = "validation"
	ErrorKindCatalogUnavailable ErrorKind = "catalog-unavailable"
	ErrorKindExtractionFailed   ErrorKind = "extraction-failed"
	ErrorKindSynthesisFailed    ErrorKind = "synthesis-failed"
	ErrorKindDownloadFailed     ErrorKind = "download-failed"
)

// Gender is the voice gender reported by the catalog backend.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// VoiceDescriptor is one synthetic voice as returned by GET /api/voices.
type VoiceDescriptor struct {
	Name      string `json:"Name"`
	ShortName string `json:"ShortName"`
	Gender    Gender `json:"Gender"`
	Locale    string `json:"Locale"`
}

// FilteredVoice is a catalog voice kept for the target language, with its UI label.
type FilteredVoice struct {
	VoiceDescriptor
	DisplayLabel string `json:"displayLabel"`
}

// ID returns the identifier used for selection and synthesis requests.
func (v FilteredVoice) ID() string {
	return v.ShortName
}

// InputFile references the PDF chosen by the user.
type InputFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// PipelineState is a snapshot of the single per-session pipeline record.
type PipelineState struct {
	SessionID       string     `json:"sessionId"`
	Seq             int64      `json:"seq"`
	Stage           Stage      `json:"stage"`
	SelectedFile    *InputFile `json:"selectedFile,omitempty"`
	ExtractedText   string     `json:"extractedText"`
	SelectedVoiceID string     `json:"selectedVoiceId"`
	AudioReference  string     `json:"audioReference,omitempty"`
	AudioStale      bool       `json:"audioStale,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	ErrorKind       ErrorKind  `json:"errorKind,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// HasError reports whether an error message is currently set.
func (s PipelineState) HasError() bool {
	return s.ErrorMessage != ""
}

// Validate checks that the stage tag agrees with the populated fields.
func (s PipelineState) Validate() error {
	hasFile := s.SelectedFile != nil
	hasAudio := s.AudioReference != ""

	if hasAudio != (s.Stage == StageAudioReady) {
		return fmt.Errorf("stage %s with audio reference %q", s.Stage, s.AudioReference)
	}
	if s.AudioStale && !hasAudio {
		return fmt.Errorf("stale flag set without audio reference")
	}

	switch s.Stage {
	case StageIdle:
		if hasFile || s.ExtractedText != "" {
			return fmt.Errorf("idle stage must not hold a file or text")
		}
	case StageFileSelected, StageExtracting:
		if !hasFile {
			return fmt.Errorf("stage %s requires a selected file", s.Stage)
		}
		if s.ExtractedText != "" {
			return fmt.Errorf("stage %s must not hold extracted text", s.Stage)
		}
	case StageTextReady, StageSynthesizing, StageAudioReady:
		if !hasFile {
			return fmt.Errorf("stage %s requires a selected file", s.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", s.Stage)
	}

	if (s.ErrorKind == ErrorKindNone) != (strings.TrimSpace(s.ErrorMessage) == "") {
		return fmt.Errorf("error kind %q does not match message %q", s.ErrorKind, s.ErrorMessage)
	}
	return nil
}

// Settings contains runtime configuration for the client.
type Settings struct {
	APIBaseURL     string        `env:"API_BASE_URL" json:"apiBaseUrl"`
	PreferredVoice string        `env:"PREFERRED_VOICE" json:"preferredVoice"`
	TargetLanguage string        `env:"TARGET_LANGUAGE" json:"targetLanguage"`
	OCRLanguage    string        `env:"OCR_LANGUAGE" json:"ocrLanguage"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"requestTimeout"`
	DownloadDir    string        `env:"DOWNLOAD_DIR" json:"downloadDir"`
	DebugMode      bool          `env:"DEBUG_MODE" json:"debugMode"`
}
