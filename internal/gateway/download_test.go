package gateway

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-audio/internal/domain"
)

func TestDownloadAudioToFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/output/4f1c.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ID3-audio"))
	})

	dest := filepath.Join(t.TempDir(), "nested", "4f1c.mp3")
	n, err := c.DownloadAudioToFile(context.Background(), "4f1c.mp3", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(data))
	assert.NoFileExists(t, dest+".download")
}

func TestDownloadAudioToFileKeepsExistingOnFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	dest := filepath.Join(t.TempDir(), "old.mp3")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))

	_, err := c.DownloadAudioToFile(context.Background(), "old.mp3", dest)
	requireKind(t, err, domain.ErrorKindDownloadFailed)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, dest+".download")
}

func TestAudioFileName(t *testing.T) {
	tests := map[string]string{
		"4f1c.mp3":         "4f1c.mp3",
		"../../etc/passwd": "passwd.mp3",
		"abc":              "abc.mp3",
		"":                 "audio.mp3",
	}
	for ref, want := range tests {
		assert.Equal(t, want, AudioFileName(ref), "ref %q", ref)
	}
}
