package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"pdf-audio/internal/config"
	"pdf-audio/internal/diagnostics"
	"pdf-audio/internal/domain"
	"pdf-audio/internal/gateway"
	"pdf-audio/internal/observe"
	"pdf-audio/internal/pipeline"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// PipelineEventName is the runtime event carrying pipeline updates to the UI.
const PipelineEventName = "pipeline:event"

const diagnosticsTimeout = 15 * time.Second

var pdfDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Documentos PDF",
		Pattern:     "*.pdf;*.PDF",
	},
}

// audioStore is the part of the backend client that serves generated audio.
type audioStore interface {
	AudioURL(audioRef string) string
	DownloadAudioToFile(ctx context.Context, audioRef, destinationPath string) (int64, error)
}

// App wires configuration, the pipeline state machine and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Machine     *pipeline.Machine
	Audio       audioStore
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	logger      *zap.SugaredLogger

	// emit pushes runtime events; replaced in tests.
	emit func(ctx context.Context, name string, data ...interface{})

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	store := config.NewJSONStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger, err := observe.NewLogger(settings.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics := observe.Default()

	client, err := gateway.New(settings.APIBaseURL,
		gateway.WithTimeout(settings.RequestTimeout),
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("configure backend client: %w", err)
	}

	app := &App{
		Settings: settings,
		Store:    store,
		Audio:    client,
		assets:   assets,
		checker:  diagnostics.NewChecker(client),
		logger:   logger,
		emit:     wailsruntime.EventsEmit,
	}
	app.Machine = pipeline.New(client, pipelineConfig(settings),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithEventBus(pipeline.NewEventBus(1000)),
		pipeline.WithObserver(app.pushEvent),
	)

	ctx, cancel := context.WithTimeout(context.Background(), diagnosticsTimeout)
	defer cancel()
	app.Diagnostics = app.checker.Run(ctx, settings)

	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "PDF a Audio",
		Width:       1024,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and loads the voice
// catalog in the background.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	go a.Machine.LoadVoices(ctx)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns backend and filesystem checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	ctx, cancel := context.WithTimeout(a.baseContext(), diagnosticsTimeout)
	defer cancel()
	report := a.checker.Run(ctx, settings)

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings. Backend URL and language
// changes apply on the next launch.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := gateway.ValidateBaseURL(normalized.APIBaseURL); err != nil {
		return domain.Settings{}, err
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	a.mu.Unlock()

	return normalized, nil
}

// PickPDFFile opens a native file dialog and selects the chosen PDF. A
// cancelled dialog leaves the pipeline untouched.
func (a *App) PickPDFFile() (domain.PipelineState, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return domain.PipelineState{}, err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Selecciona un archivo PDF",
		Filters: pdfDialogFilter,
	})
	if err != nil {
		return domain.PipelineState{}, err
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return a.Machine.State(), nil
	}
	return a.SelectFile(path), nil
}

// SelectFile selects the PDF at path. A blank path is reported as a
// validation error on the returned state.
func (a *App) SelectFile(path string) domain.PipelineState {
	path = strings.TrimSpace(path)
	if path == "" {
		return a.Machine.SelectFile(nil)
	}
	return a.Machine.SelectFile(&domain.InputFile{Name: filepath.Base(path), Path: path})
}

// LoadVoices refreshes the voice catalog.
func (a *App) LoadVoices() domain.PipelineState {
	return a.Machine.LoadVoices(a.baseContext())
}

// Voices returns the filtered, labelled voice list.
func (a *App) Voices() []domain.FilteredVoice {
	return a.Machine.Voices()
}

// ExtractText uploads the selected PDF. The call returns when the backend
// answers; intermediate stages are pushed as runtime events.
func (a *App) ExtractText() domain.PipelineState {
	return a.Machine.Extract(a.baseContext())
}

// Synthesize converts the current text with the selected voice.
func (a *App) Synthesize() domain.PipelineState {
	return a.Machine.Synthesize(a.baseContext())
}

// EditText replaces the extracted text.
func (a *App) EditText(text string) domain.PipelineState {
	return a.Machine.EditText(text)
}

// SelectVoice changes the selected voice and remembers it as preferred.
func (a *App) SelectVoice(id string) domain.PipelineState {
	state := a.Machine.SelectVoice(id)
	if state.HasError() || id == "" {
		return state
	}

	a.mu.Lock()
	settings := a.Settings
	a.mu.Unlock()
	if settings.PreferredVoice == id || a.Store == nil {
		return state
	}

	settings.PreferredVoice = id
	if err := a.Store.SavePreferredVoice(id); err != nil {
		a.log().Warnw("persist preferred voice", "voice", id, "err", err)
		return state
	}
	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return state
}

// State returns the current pipeline snapshot.
func (a *App) State() domain.PipelineState {
	return a.Machine.State()
}

// PipelineEvents returns all events with sequence greater than sinceSeq.
func (a *App) PipelineEvents(sinceSeq int64) []pipeline.Event {
	return a.Machine.Events(sinceSeq)
}

// AudioURL returns the playable URL of the current audio, or "" when none.
func (a *App) AudioURL() string {
	state := a.Machine.State()
	if state.AudioReference == "" || a.Audio == nil {
		return ""
	}
	return a.Audio.AudioURL(state.AudioReference)
}

// DownloadAudio saves the current audio into the download directory and
// returns the written path.
func (a *App) DownloadAudio() (string, error) {
	state := a.Machine.State()
	if state.AudioReference == "" {
		return "", fmt.Errorf("no audio available to download")
	}

	a.mu.Lock()
	dir := a.Settings.DownloadDir
	a.mu.Unlock()
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("download directory is empty")
	}

	dest := filepath.Join(dir, gateway.AudioFileName(state.AudioReference))
	n, err := a.Audio.DownloadAudioToFile(a.baseContext(), state.AudioReference, dest)
	if err != nil {
		return "", err
	}
	a.log().Infow("audio downloaded", "path", dest, "bytes", n)
	return dest, nil
}

// OpenDownloadFolder opens the given path (or configured download dir) in file manager.
func (a *App) OpenDownloadFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.DownloadDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("download path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve download path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// pushEvent emits a pipeline event to the UI when the runtime is up. It runs
// under the machine lock, so it must not call back into the Machine.
func (a *App) pushEvent(event pipeline.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	emit := a.emit
	a.mu.Unlock()

	if ctx != nil && emit != nil {
		emit(ctx, PipelineEventName, event)
	}
}

// baseContext returns the runtime context, or Background before startup.
func (a *App) baseContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx != nil {
		return a.runtimeCtx
	}
	return context.Background()
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) log() *zap.SugaredLogger {
	if a.logger == nil {
		return zap.NewNop().Sugar()
	}
	return a.logger
}

// pipelineConfig maps settings onto state machine preferences.
func pipelineConfig(settings domain.Settings) pipeline.Config {
	return pipeline.Config{
		TargetLanguage: settings.TargetLanguage,
		PreferredVoice: settings.PreferredVoice,
		OCRLanguage:    settings.OCRLanguage,
	}
}

// normalizeSettings trims user inputs.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.APIBaseURL = strings.TrimRight(strings.TrimSpace(settings.APIBaseURL), "/")
	settings.PreferredVoice = strings.TrimSpace(settings.PreferredVoice)
	settings.TargetLanguage = strings.TrimSpace(settings.TargetLanguage)
	settings.OCRLanguage = strings.TrimSpace(settings.OCRLanguage)
	settings.DownloadDir = strings.TrimSpace(settings.DownloadDir)
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = config.DefaultRequestTimeout
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
