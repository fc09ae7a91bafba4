package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdf-audio/internal/domain"
	"pdf-audio/internal/gateway"
	"pdf-audio/internal/observe"
	"pdf-audio/internal/voices"
)

// Validation messages shown when an action is not allowed in the current state.
const (
	MsgNoFile         = "Por favor, selecciona un archivo PDF primero."
	MsgNoTextOrVoice  = "No hay texto para convertir o no se ha seleccionado una voz."
	MsgBusy           = "Ya hay una operación en curso."
	MsgNoTextToEdit   = "No hay texto extraído para editar."
	MsgVoiceNotListed = "La voz seleccionada no está disponible."
)

// DefaultOCRLanguage is the Tesseract language code sent with uploads.
const DefaultOCRLanguage = "spa"

// Action names used for logging and rejection metrics.
const (
	ActionLoadVoices  = "load_voices"
	ActionSelectFile  = "select_file"
	ActionExtract     = "extract"
	ActionSynthesize  = "synthesize"
	ActionEditText    = "edit_text"
	ActionSelectVoice = "select_voice"
)

// Gateway is the subset of the backend client used by the state machine.
type Gateway interface {
	FetchVoices(ctx context.Context) ([]domain.VoiceDescriptor, error)
	ExtractText(ctx context.Context, file domain.InputFile, language string) (string, error)
	Synthesize(ctx context.Context, text, voiceID string) (string, error)
}

// Config holds the language and voice preferences applied by the machine.
type Config struct {
	TargetLanguage string
	PreferredVoice string
	OCRLanguage    string
}

// Option customizes a Machine.
type Option func(*Machine)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// WithEventBus replaces the default event buffer.
func WithEventBus(bus *EventBus) Option {
	return func(m *Machine) {
		if bus != nil {
			m.events = bus
		}
	}
}

// WithObserver registers a callback invoked with every published event.
// The callback runs while the machine lock is held and must not call back
// into the Machine.
func WithObserver(fn func(Event)) Option {
	return func(m *Machine) {
		m.observer = fn
	}
}

// Machine owns the single pipeline record of one session and applies every
// user action and backend result to it.
type Machine struct {
	gateway  Gateway
	cfg      Config
	logger   *zap.SugaredLogger
	metrics  *observe.Metrics
	events   *EventBus
	observer func(Event)
	now      func() time.Time

	mu         sync.Mutex
	state      domain.PipelineState
	voices     []domain.FilteredVoice
	committed  domain.Stage
	opSeq      uint64
	cancel     context.CancelFunc
	catalogSeq uint64
}

// New creates a machine in the idle stage.
func New(gw Gateway, cfg Config, opts ...Option) *Machine {
	if strings.TrimSpace(cfg.TargetLanguage) == "" {
		cfg.TargetLanguage = voices.DefaultLanguage
	}
	if strings.TrimSpace(cfg.PreferredVoice) == "" {
		cfg.PreferredVoice = voices.DefaultPreferredVoice
	}
	if strings.TrimSpace(cfg.OCRLanguage) == "" {
		cfg.OCRLanguage = DefaultOCRLanguage
	}

	m := &Machine{
		gateway: gw,
		cfg:     cfg,
		logger:  zap.NewNop().Sugar(),
		events:  NewEventBus(0),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}

	m.state = domain.PipelineState{
		SessionID: uuid.NewString(),
		Stage:     domain.StageIdle,
		UpdatedAt: m.now(),
	}
	m.committed = domain.StageIdle
	return m
}

// State returns a snapshot of the pipeline record.
func (m *Machine) State() domain.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Voices returns the filtered voice list from the last successful load.
func (m *Machine) Voices() []domain.FilteredVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FilteredVoice(nil), m.voices...)
}

// Events returns published events with sequence greater than since.
func (m *Machine) Events(since int64) []Event {
	return m.events.Since(since)
}

// Config returns the effective machine configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// LoadVoices fetches the catalog, filters it to the target language and
// applies the default voice when the current selection is no longer listed.
// Only the most recent load is applied.
func (m *Machine) LoadVoices(ctx context.Context) domain.PipelineState {
	m.mu.Lock()
	m.catalogSeq++
	seq := m.catalogSeq
	m.mu.Unlock()

	catalog, err := m.gateway.FetchVoices(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.catalogSeq {
		m.logger.Debugw("discarding superseded voice catalog", "seq", seq)
		return m.snapshotLocked()
	}
	if err != nil {
		m.logger.Warnw("voice catalog unavailable", "err", err)
		m.setErrorLocked(gateway.KindOf(err, domain.ErrorKindCatalogUnavailable), gateway.MessageOf(err, gateway.MsgCatalogUnavailable))
		return m.commitLocked(ActionLoadVoices)
	}

	m.voices = voices.FilterAndLabel(catalog, m.cfg.TargetLanguage)
	if !voices.Contains(m.voices, m.state.SelectedVoiceID) {
		m.state.SelectedVoiceID = voices.DefaultVoice(m.voices, m.cfg.PreferredVoice)
	}
	if m.state.ErrorKind == domain.ErrorKindCatalogUnavailable {
		m.clearErrorLocked()
	}
	m.logger.Infow("voice catalog loaded", "total", len(catalog), "filtered", len(m.voices), "selected", m.state.SelectedVoiceID)

	m.publishLocked(Event{Type: EventTypeVoices, Voices: append([]domain.FilteredVoice(nil), m.voices...)})
	return m.commitLocked(ActionLoadVoices)
}

// SelectFile records the chosen PDF and discards text, audio and any
// outstanding backend result.
func (m *Machine) SelectFile(file *domain.InputFile) domain.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if file == nil || strings.TrimSpace(file.Path) == "" {
		return m.rejectLocked(ActionSelectFile, MsgNoFile)
	}

	m.supersedeLocked()

	selected := *file
	if selected.Name == "" {
		selected.Name = baseName(selected.Path)
	}
	m.state.SelectedFile = &selected
	m.state.ExtractedText = ""
	m.state.AudioReference = ""
	m.state.AudioStale = false
	m.state.Stage = domain.StageFileSelected
	m.clearErrorLocked()
	m.logger.Infow("file selected", "name", selected.Name)
	return m.commitLocked(ActionSelectFile)
}

// Extract uploads the selected PDF and stores the returned text. It blocks
// until the backend answers or ctx is cancelled.
func (m *Machine) Extract(ctx context.Context) domain.PipelineState {
	op, rejected := m.beginExtract(ctx)
	if op == nil {
		return rejected
	}
	defer op.cancel()

	text, err := m.gateway.ExtractText(op.ctx, op.file, m.cfg.OCRLanguage)
	return m.finishExtract(op.seq, text, err)
}

func (m *Machine) beginExtract(ctx context.Context) (*operation, domain.PipelineState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.SelectedFile == nil {
		return nil, m.rejectLocked(ActionExtract, MsgNoFile)
	}
	if m.state.Stage.InFlight() {
		return nil, m.rejectLocked(ActionExtract, MsgBusy)
	}

	op := m.startLocked(ctx)
	op.file = *m.state.SelectedFile

	m.state.ExtractedText = ""
	m.state.AudioReference = ""
	m.state.AudioStale = false
	m.state.Stage = domain.StageExtracting
	m.clearErrorLocked()
	m.logger.Infow("extraction started", "name", op.file.Name, "op", op.seq)
	return op, m.commitLocked(ActionExtract)
}

func (m *Machine) finishExtract(seq uint64, text string, err error) domain.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(seq) {
		m.logger.Debugw("discarding superseded extraction result", "op", seq)
		return m.snapshotLocked()
	}
	m.cancel = nil

	if err != nil {
		m.logger.Warnw("extraction failed", "op", seq, "err", err)
		m.state.Stage = domain.StageFileSelected
		m.setErrorLocked(gateway.KindOf(err, domain.ErrorKindExtractionFailed), gateway.MessageOf(err, gateway.MsgExtractionFailed))
		return m.commitLocked(ActionExtract)
	}

	m.state.ExtractedText = text
	m.state.Stage = domain.StageTextReady
	m.clearErrorLocked()
	m.logger.Infow("extraction finished", "op", seq, "chars", len(text))
	return m.commitLocked(ActionExtract)
}

// Synthesize sends the current text with the selected voice and stores the
// resulting audio reference. It blocks until the backend answers or ctx is
// cancelled.
func (m *Machine) Synthesize(ctx context.Context) domain.PipelineState {
	op, rejected := m.beginSynthesize(ctx)
	if op == nil {
		return rejected
	}
	defer op.cancel()

	audioRef, err := m.gateway.Synthesize(op.ctx, op.text, op.voiceID)
	return m.finishSynthesize(op.seq, audioRef, err)
}

func (m *Machine) beginSynthesize(ctx context.Context) (*operation, domain.PipelineState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Stage.InFlight() {
		return nil, m.rejectLocked(ActionSynthesize, MsgBusy)
	}
	textReady := m.state.Stage == domain.StageTextReady || m.state.Stage == domain.StageAudioReady
	if !textReady || m.state.ExtractedText == "" || m.state.SelectedVoiceID == "" {
		return nil, m.rejectLocked(ActionSynthesize, MsgNoTextOrVoice)
	}

	op := m.startLocked(ctx)
	op.text = m.state.ExtractedText
	op.voiceID = m.state.SelectedVoiceID

	m.state.AudioReference = ""
	m.state.AudioStale = false
	m.state.Stage = domain.StageSynthesizing
	m.clearErrorLocked()
	m.logger.Infow("synthesis started", "voice", op.voiceID, "chars", len(op.text), "op", op.seq)
	return op, m.commitLocked(ActionSynthesize)
}

func (m *Machine) finishSynthesize(seq uint64, audioRef string, err error) domain.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(seq) {
		m.logger.Debugw("discarding superseded synthesis result", "op", seq)
		return m.snapshotLocked()
	}
	m.cancel = nil

	if err == nil && strings.TrimSpace(audioRef) == "" {
		err = &gateway.Error{Kind: domain.ErrorKindSynthesisFailed, Op: gateway.OpSynthesize, Message: gateway.MsgSynthesisUnknown}
	}
	if err != nil {
		m.logger.Warnw("synthesis failed", "op", seq, "err", err)
		m.state.Stage = domain.StageTextReady
		m.setErrorLocked(gateway.KindOf(err, domain.ErrorKindSynthesisFailed), gateway.MessageOf(err, gateway.MsgSynthesisFailed))
		return m.commitLocked(ActionSynthesize)
	}

	m.state.AudioReference = audioRef
	m.state.Stage = domain.StageAudioReady
	m.clearErrorLocked()
	m.logger.Infow("synthesis finished", "op", seq, "audio", audioRef)
	return m.commitLocked(ActionSynthesize)
}

// EditText replaces the extracted text. Existing audio is kept but marked
// stale because it no longer matches the text.
func (m *Machine) EditText(text string) domain.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.Stage {
	case domain.StageTextReady, domain.StageAudioReady:
	case domain.StageExtracting, domain.StageSynthesizing:
		return m.rejectLocked(ActionEditText, MsgBusy)
	default:
		return m.rejectLocked(ActionEditText, MsgNoTextToEdit)
	}

	m.state.ExtractedText = text
	if m.state.AudioReference != "" {
		m.state.AudioStale = true
	}
	m.clearErrorLocked()
	return m.commitLocked(ActionEditText)
}

// SelectVoice changes the voice used by the next synthesis. An empty id
// clears the selection.
func (m *Machine) SelectVoice(id string) domain.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" && !voices.Contains(m.voices, id) {
		return m.rejectLocked(ActionSelectVoice, MsgVoiceNotListed)
	}

	m.state.SelectedVoiceID = id
	m.clearErrorLocked()
	return m.commitLocked(ActionSelectVoice)
}

// operation is one outstanding backend request and the inputs captured for it.
type operation struct {
	ctx     context.Context
	cancel  context.CancelFunc
	seq     uint64
	file    domain.InputFile
	text    string
	voiceID string
}

// startLocked issues a new operation number and a cancellable context for it.
func (m *Machine) startLocked(ctx context.Context) *operation {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithCancel(ctx)
	m.opSeq++
	m.cancel = cancel
	return &operation{ctx: opCtx, cancel: cancel, seq: m.opSeq}
}

// supersedeLocked cancels any outstanding request and invalidates its result.
func (m *Machine) supersedeLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.opSeq++
}

func (m *Machine) currentLocked(seq uint64) bool {
	return seq == m.opSeq
}

func (m *Machine) rejectLocked(action, message string) domain.PipelineState {
	m.logger.Debugw("action rejected", "action", action, "stage", m.state.Stage, "reason", message)
	m.metrics.RecordRejected(context.Background(), action)
	m.setErrorLocked(domain.ErrorKindValidation, message)
	return m.commitLocked(action)
}

func (m *Machine) setErrorLocked(kind domain.ErrorKind, message string) {
	if kind == domain.ErrorKindNone {
		kind = domain.ErrorKindValidation
	}
	m.state.ErrorKind = kind
	m.state.ErrorMessage = message
}

func (m *Machine) clearErrorLocked() {
	m.state.ErrorKind = domain.ErrorKindNone
	m.state.ErrorMessage = ""
}

// commitLocked stamps the record, checks its consistency and publishes it.
func (m *Machine) commitLocked(action string) domain.PipelineState {
	prev := m.committed
	m.committed = m.state.Stage
	m.state.Seq++
	m.state.UpdatedAt = m.now()

	if err := m.state.Validate(); err != nil {
		m.logger.Errorw("inconsistent pipeline state", "action", action, "err", err)
	}
	if prev != m.state.Stage {
		if !isValidTransition(prev, m.state.Stage) {
			m.logger.Errorw("unexpected stage transition", "action", action, "from", prev, "to", m.state.Stage)
		}
		m.metrics.RecordTransition(context.Background(), string(m.state.Stage))
	}

	snapshot := m.snapshotLocked()
	m.publishLocked(Event{
		Type:    EventTypeState,
		Stage:   snapshot.Stage,
		Message: snapshot.ErrorMessage,
		State:   &snapshot,
	})
	return snapshot
}

func (m *Machine) publishLocked(event Event) {
	event.SessionID = m.state.SessionID
	published := m.events.Publish(event)
	if m.observer != nil {
		m.observer(published)
	}
}

func (m *Machine) snapshotLocked() domain.PipelineState {
	snapshot := m.state
	if m.state.SelectedFile != nil {
		file := *m.state.SelectedFile
		snapshot.SelectedFile = &file
	}
	return snapshot
}

// Failure converts the error carried by a snapshot into an error value.
func Failure(state domain.PipelineState) error {
	if !state.HasError() {
		return nil
	}
	return &ActionError{Kind: state.ErrorKind, Message: state.ErrorMessage, Stage: state.Stage}
}

// ActionError reports the error left on the pipeline record by an action.
type ActionError struct {
	Kind    domain.ErrorKind
	Message string
	Stage   domain.Stage
}

func (e *ActionError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// IsValidation reports whether err is a guard rejection.
func IsValidation(err error) bool {
	var actionErr *ActionError
	return errors.As(err, &actionErr) && actionErr.Kind == domain.ErrorKindValidation
}

func isValidTransition(from, to domain.Stage) bool {
	switch from {
	case domain.StageIdle:
		return to == domain.StageFileSelected
	case domain.StageFileSelected:
		return to == domain.StageExtracting
	case domain.StageExtracting:
		return to == domain.StageTextReady || to == domain.StageFileSelected
	case domain.StageTextReady:
		return to == domain.StageSynthesizing || to == domain.StageExtracting || to == domain.StageFileSelected
	case domain.StageSynthesizing:
		return to == domain.StageAudioReady || to == domain.StageTextReady || to == domain.StageFileSelected
	case domain.StageAudioReady:
		return to == domain.StageSynthesizing || to == domain.StageExtracting || to == domain.StageFileSelected
	default:
		return false
	}
}

func baseName(path string) string {
	path = strings.TrimRight(path, `/\`)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
