// Package gateway wraps the backend HTTP API used by the PDF-to-audio
// pipeline: voice catalog, text extraction, speech synthesis and generated
// audio downloads. Every failure is translated into an [*Error] whose Kind
// follows the client error taxonomy; no call is retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdf-audio/internal/domain"
	"pdf-audio/internal/observe"
)

const (
	voicesPath      = "/api/voices"
	pdfToTextPath   = "/api/pdf-to-text"
	textToAudioPath = "/api/text-to-audio"
	outputPath      = "/api/output/"

	// DefaultColocatedOrigin resolves relative API paths when no base URL is
	// configured, i.e. the backend runs next to the client.
	DefaultColocatedOrigin = "http://localhost:5000"

	defaultTimeout = 5 * time.Minute

	// errorBodyLimit caps how much of a failed response is kept for logs.
	errorBodyLimit = 4096
)

// Operation names used in errors, logs and metrics.
const (
	OpFetchVoices   = "fetch-voices"
	OpExtractText   = "extract-text"
	OpSynthesize    = "synthesize"
	OpDownloadAudio = "download-audio"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the instruments recording request outcomes.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithColocatedOrigin overrides the origin used when the base URL is empty.
func WithColocatedOrigin(origin string) Option {
	return func(c *Client) {
		c.colocatedOrigin = strings.TrimRight(origin, "/")
	}
}

// Client performs the backend calls. It is safe for concurrent use.
type Client struct {
	baseURL         string
	colocatedOrigin string
	http            *http.Client
	logger          *zap.SugaredLogger
	metrics         *observe.Metrics
	openFile        func(name string) (io.ReadCloser, error)
}

// New creates a Client for baseURL. An empty baseURL selects relative API
// paths (co-located deployment); otherwise baseURL must be an absolute
// http(s) origin, optionally with a path prefix.
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" {
		if err := ValidateBaseURL(base); err != nil {
			return nil, err
		}
	}

	c := &Client{
		baseURL:         base,
		colocatedOrigin: DefaultColocatedOrigin,
		http:            &http.Client{Timeout: defaultTimeout},
		logger:          zap.NewNop().Sugar(),
		openFile: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL. A blank value
// is valid and selects the co-located backend.
func ValidateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q has no host", raw)
	}
	return nil
}

// BaseURL returns the configured base URL; empty means co-located.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AudioURL returns the absolute link for a generated audio file. Co-located
// deployments resolve against the local backend origin, not the page origin.
func (c *Client) AudioURL(audioRef string) string {
	return c.endpoint(outputPath + url.PathEscape(audioRef))
}

// endpoint resolves an API path to an absolute request URL.
func (c *Client) endpoint(path string) string {
	if c.baseURL == "" {
		return c.colocatedOrigin + path
	}
	return c.baseURL + path
}

// FetchVoices returns the full backend voice catalog.
func (c *Client) FetchVoices(ctx context.Context) (voices []domain.VoiceDescriptor, err error) {
	started := time.Now()
	defer func() { c.finish(ctx, OpFetchVoices, started, err) }()

	fail := func(status int, cause error) error {
		return &Error{Kind: domain.ErrorKindCatalogUnavailable, Op: OpFetchVoices, Message: MsgCatalogUnavailable, StatusCode: status, Err: cause}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(voicesPath), nil)
	if err != nil {
		return nil, fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fail(resp.StatusCode, statusError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decode voices: %w", err))
	}
	return voices, nil
}

// extractResponse is the body of POST /api/pdf-to-text.
type extractResponse struct {
	Text  *string `json:"text"`
	Error string  `json:"error"`
}

// ExtractText uploads the PDF and returns the text extracted by the backend.
func (c *Client) ExtractText(ctx context.Context, file domain.InputFile, language string) (text string, err error) {
	started := time.Now()
	defer func() { c.finish(ctx, OpExtractText, started, err) }()

	fail := func(status int, cause error) error {
		return &Error{Kind: domain.ErrorKindExtractionFailed, Op: OpExtractText, Message: MsgExtractionFailed, StatusCode: status, Err: cause}
	}

	body, contentType, err := c.buildUpload(file, language)
	if err != nil {
		return "", fail(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pdfToTextPath), body)
	if err != nil {
		return "", fail(0, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fail(0, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", fail(resp.StatusCode, statusError(resp))
	}

	var payload extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fail(resp.StatusCode, fmt.Errorf("decode extraction response: %w", err))
	}
	if payload.Text == nil {
		return "", fail(resp.StatusCode, fmt.Errorf("extraction response has no text field: %q", payload.Error))
	}
	return *payload.Text, nil
}

// buildUpload encodes the multipart form with fields "pdf" and "lang".
func (c *Client) buildUpload(file domain.InputFile, language string) (*bytes.Buffer, string, error) {
	if strings.TrimSpace(file.Path) == "" {
		return nil, "", errors.New("input file path is required")
	}

	src, err := c.openFile(file.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open input file: %w", err)
	}
	defer src.Close()

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("pdf", name)
	if err != nil {
		return nil, "", fmt.Errorf("create pdf part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("read input file: %w", err)
	}
	if err := w.WriteField("lang", language); err != nil {
		return nil, "", fmt.Errorf("write lang field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// synthesizeRequest is the body of POST /api/text-to-audio.
type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// synthesizeResponse carries either the audio reference or an application error.
type synthesizeResponse struct {
	Audio string `json:"audio"`
	Error string `json:"error"`
}

// Synthesize asks the backend to render text with voiceID and returns the
// reference of the generated audio file.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (audioRef string, err error) {
	started := time.Now()
	defer func() { c.finish(ctx, OpSynthesize, started, err) }()

	fail := func(status int, msg string, cause error) error {
		return &Error{Kind: domain.ErrorKindSynthesisFailed, Op: OpSynthesize, Message: msg, StatusCode: status, Err: cause}
	}

	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: voiceID})
	if err != nil {
		return "", fail(0, MsgSynthesisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(textToAudioPath), bytes.NewReader(payload))
	if err != nil {
		return "", fail(0, MsgSynthesisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fail(0, MsgSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", fail(resp.StatusCode, MsgSynthesisFailed, statusError(resp))
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fail(resp.StatusCode, MsgSynthesisFailed, fmt.Errorf("decode synthesis response: %w", err))
	}
	if out.Audio == "" {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = MsgSynthesisUnknown
		}
		return "", fail(resp.StatusCode, msg, errors.New("response has no audio reference"))
	}
	return out.Audio, nil
}

// DownloadAudio streams the generated audio file into w and returns the
// number of bytes written.
func (c *Client) DownloadAudio(ctx context.Context, audioRef string, w io.Writer) (n int64, err error) {
	started := time.Now()
	defer func() { c.finish(ctx, OpDownloadAudio, started, err) }()

	fail := func(status int, cause error) error {
		return &Error{Kind: domain.ErrorKindDownloadFailed, Op: OpDownloadAudio, Message: MsgDownloadFailed, StatusCode: status, Err: cause}
	}

	if strings.TrimSpace(audioRef) == "" {
		return 0, fail(0, errors.New("audio reference is required"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(outputPath+url.PathEscape(audioRef)), nil)
	if err != nil {
		return 0, fail(0, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fail(0, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return 0, fail(resp.StatusCode, statusError(resp))
	}

	n, err = io.Copy(w, resp.Body)
	if err != nil {
		return n, fail(resp.StatusCode, fmt.Errorf("copy audio body: %w", err))
	}
	return n, nil
}

// finish logs and records the outcome of one backend call.
func (c *Client) finish(ctx context.Context, op string, started time.Time, err error) {
	c.metrics.RecordRequest(ctx, op, started, err)
	if err != nil {
		c.logger.Warnw("backend request failed", "op", op, "duration", time.Since(started), "error", err)
		return
	}
	c.logger.Debugw("backend request completed", "op", op, "duration", time.Since(started))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// statusError summarizes a non-2xx response including a bounded body excerpt.
func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}
	return fmt.Errorf("unexpected HTTP status: %s, body=%s", resp.Status, b)
}
