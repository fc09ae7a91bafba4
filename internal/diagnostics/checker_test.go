package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pdf-audio/internal/domain"
)

type stubSource struct {
	voices []domain.VoiceDescriptor
	err    error
}

func (s stubSource) FetchVoices(ctx context.Context) ([]domain.VoiceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.voices, s.err
}

func spanishCatalog() stubSource {
	return stubSource{voices: []domain.VoiceDescriptor{
		{ShortName: "es-CL-LorenzoNeural", Gender: domain.GenderMale, Locale: "es-CL"},
		{ShortName: "en-US-JennyNeural", Gender: domain.GenderFemale, Locale: "en-US"},
	}}
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	downloadDir := filepath.Join(t.TempDir(), "downloads")
	checker := NewCheckerForTests(spanishCatalog(), os.MkdirAll, os.CreateTemp, os.Remove)

	report := checker.Run(context.Background(), domain.Settings{
		APIBaseURL:     "http://localhost:5000",
		TargetLanguage: "es",
		DownloadDir:    downloadDir,
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if len(report.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(report.Items))
	}
	if report.Items[1].Message != `2 voices available, 1 for language "es".` {
		t.Fatalf("voice message = %q", report.Items[1].Message)
	}
	if _, err := os.Stat(downloadDir); err != nil {
		t.Fatalf("download dir not created: %v", err)
	}
}

// TestCheckerRunReportsFailures validates failure reporting.
func TestCheckerRunReportsFailures(t *testing.T) {
	checker := NewCheckerForTests(
		stubSource{err: errors.New("connection refused")},
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(context.Background(), domain.Settings{
		APIBaseURL:  "ftp://example.com",
		DownloadDir: "",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	if len(report.Failures()) != 3 {
		t.Fatalf("failures = %d, want 3", len(report.Failures()))
	}

	assertStatusByID(t, report, "api_base_url", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "backend_voices", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "download_dir", domain.DiagnosticStatusFail)
}

// TestCheckerRunNoVoicesForLanguage validates the target language check.
func TestCheckerRunNoVoicesForLanguage(t *testing.T) {
	checker := NewCheckerForTests(spanishCatalog(), os.MkdirAll, os.CreateTemp, os.Remove)

	report := checker.Run(context.Background(), domain.Settings{
		TargetLanguage: "fr",
		DownloadDir:    t.TempDir(),
	})

	assertStatusByID(t, report, "api_base_url", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "backend_voices", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "download_dir", domain.DiagnosticStatusPass)
}

// TestCheckerRunColocatedBackend validates the default empty base URL.
func TestCheckerRunColocatedBackend(t *testing.T) {
	checker := NewCheckerForTests(spanishCatalog(), os.MkdirAll, os.CreateTemp, os.Remove)

	report := checker.Run(context.Background(), domain.Settings{
		TargetLanguage: "es",
		DownloadDir:    t.TempDir(),
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if report.Items[0].Message != "Backend is co-located with the client." {
		t.Fatalf("base url message = %q", report.Items[0].Message)
	}
}

// TestCheckerRunWithoutSource validates the missing client case.
func TestCheckerRunWithoutSource(t *testing.T) {
	checker := NewCheckerForTests(nil, os.MkdirAll, os.CreateTemp, os.Remove)

	report := checker.Run(context.Background(), domain.Settings{DownloadDir: t.TempDir()})
	assertStatusByID(t, report, "backend_voices", domain.DiagnosticStatusFail)
}

// TestCheckerRunDownloadDirNotWritable validates write-access failures.
func TestCheckerRunDownloadDirNotWritable(t *testing.T) {
	checker := NewCheckerForTests(
		spanishCatalog(),
		func(string, os.FileMode) error { return nil },
		func(string, string) (*os.File, error) { return nil, errors.New("permission denied") },
		os.Remove,
	)

	report := checker.Run(context.Background(), domain.Settings{DownloadDir: "/readonly"})
	assertStatusByID(t, report, "download_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "backend_voices", domain.DiagnosticStatusPass)
}

func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("%s status = %s, want %s (%s)", id, item.Status, want, item.Message)
			}
			return
		}
	}
	t.Fatalf("diagnostic item %s not found", id)
}
