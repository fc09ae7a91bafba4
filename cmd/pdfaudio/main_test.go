package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pdf-audio/internal/domain"
	"pdf-audio/internal/pipeline"
	"pdf-audio/internal/player"
)

type fakePlayer struct {
	played []byte
}

func (p *fakePlayer) Play(_ context.Context, r io.ReadCloser) error {
	defer r.Close()
	data, err := io.ReadAll(r)
	p.played = data
	return err
}

type backendOptions struct {
	extractStatus int
	gotVoice      *string
}

func newBackend(t *testing.T, opts backendOptions) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/voices", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.VoiceDescriptor{
			{ShortName: "es-CL-LorenzoNeural", Gender: domain.GenderMale, Locale: "es-CL"},
			{ShortName: "es-MX-DaliaNeural", Gender: domain.GenderFemale, Locale: "es-MX"},
			{ShortName: "en-US-JennyNeural", Gender: domain.GenderFemale, Locale: "en-US"},
		})
	})
	mux.HandleFunc("/api/pdf-to-text", func(w http.ResponseWriter, r *http.Request) {
		if opts.extractStatus != 0 {
			w.WriteHeader(opts.extractStatus)
			_, _ = w.Write([]byte(`{"error":"Error procesando PDF"}`))
			return
		}
		_, _ = w.Write([]byte(`{"text":"hola mundo"}`))
	})
	mux.HandleFunc("/api/text-to-audio", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Voice string `json:"voice"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if opts.gotVoice != nil {
			*opts.gotVoice = body.Voice
		}
		_, _ = w.Write([]byte(`{"audio":"abc.mp3"}`))
	})
	mux.HandleFunc("/api/output/abc.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3-audio"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// run executes the root command against srv and returns stdout.
func run(t *testing.T, srv *httptest.Server, p player.Player, args ...string) (string, error) {
	t.Helper()
	c := &cli{newPlayer: func() player.Player { return p }}
	cmd := c.rootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	base := []string{"--config", filepath.Join(t.TempDir(), "settings.json")}
	if srv != nil {
		base = append(base, "--api-url", srv.URL)
	}
	cmd.SetArgs(append(base, args...))

	err := cmd.Execute()
	return out.String(), err
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libro.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))
	return path
}

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"voices", "convert", "doctor", "version"} {
		found, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, found.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("api-url"))
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	assert.Equal(t, "version", cmd.Use)
	assert.True(t, cmd.HasAlias("v"))
	assert.Equal(t, "Show version information", cmd.Short)

	out, err := run(t, nil, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pdfaudio dev")
}

func TestVoicesTable(t *testing.T) {
	srv := newBackend(t, backendOptions{})

	out, err := run(t, srv, nil, "voices")
	require.NoError(t, err)
	assert.Contains(t, out, "Chile: Lorenzo (Masculino)")
	assert.Contains(t, out, "México: Dalia (Femenino)")
	assert.NotContains(t, out, "JennyNeural")
}

func TestVoicesStructuredFormats(t *testing.T) {
	srv := newBackend(t, backendOptions{})

	out, err := run(t, srv, nil, "voices", "--format", "json")
	require.NoError(t, err)
	var rows []voiceRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "es-CL-LorenzoNeural", rows[0].ID)
	assert.True(t, rows[0].Default)
	assert.False(t, rows[1].Default)

	out, err = run(t, srv, nil, "voices", "-f", "yaml", "--language", "en")
	require.NoError(t, err)
	rows = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "EE.UU.: Jenny (Femenino)", rows[0].Label)

	_, err = run(t, srv, nil, "voices", "--format", "xml")
	assert.Error(t, err)
}

func TestConvertWritesTextAndAudio(t *testing.T) {
	var gotVoice string
	srv := newBackend(t, backendOptions{gotVoice: &gotVoice})
	dir := t.TempDir()
	audioOut := filepath.Join(dir, "salida.mp3")
	textOut := filepath.Join(dir, "texto.txt")
	fp := &fakePlayer{}

	out, err := run(t, srv, fp, "convert",
		"--pdf", writePDF(t),
		"--voice", "es-MX-DaliaNeural",
		"--audio-out", audioOut,
		"--text-out", textOut,
		"--play",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Audio guardado en "+audioOut)
	assert.Equal(t, "es-MX-DaliaNeural", gotVoice)

	text, err := os.ReadFile(textOut)
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", string(text))

	audio, err := os.ReadFile(audioOut)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(audio))
	assert.Equal(t, "ID3-audio", string(fp.played))
}

func TestConvertUsesPreferredVoiceByDefault(t *testing.T) {
	var gotVoice string
	srv := newBackend(t, backendOptions{gotVoice: &gotVoice})

	_, err := run(t, srv, nil, "convert", "--pdf", writePDF(t), "--audio-out", filepath.Join(t.TempDir(), "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "es-CL-LorenzoNeural", gotVoice)
}

func TestConvertFailures(t *testing.T) {
	t.Run("missing pdf flag", func(t *testing.T) {
		_, err := run(t, newBackend(t, backendOptions{}), nil, "convert")
		assert.Error(t, err)
	})

	t.Run("unknown voice", func(t *testing.T) {
		_, err := run(t, newBackend(t, backendOptions{}), nil, "convert", "--pdf", writePDF(t), "--voice", "en-US-JennyNeural")
		require.Error(t, err)
		assert.True(t, pipeline.IsValidation(err))
	})

	t.Run("extraction error", func(t *testing.T) {
		srv := newBackend(t, backendOptions{extractStatus: http.StatusInternalServerError})
		_, err := run(t, srv, nil, "convert", "--pdf", writePDF(t), "--audio-out", filepath.Join(t.TempDir(), "a.mp3"))
		require.Error(t, err)
		var actionErr *pipeline.ActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, domain.ErrorKindExtractionFailed, actionErr.Kind)
	})
}

func TestDoctor(t *testing.T) {
	srv := newBackend(t, backendOptions{})
	t.Setenv("DOWNLOAD_DIR", t.TempDir())

	out, err := run(t, srv, nil, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Voice catalog")

	out, err = run(t, srv, nil, "doctor", "--format", "yaml")
	require.NoError(t, err)
	var report domain.DiagnosticReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.False(t, report.HasFailures)
	assert.Len(t, report.Items, 3)
}

func TestDoctorReportsUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	t.Setenv("DOWNLOAD_DIR", t.TempDir())

	out, err := run(t, srv, nil, "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "Backend unreachable")
}
