package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"jumpcut/internal/config"
	"jumpcut/internal/interval"
	"jumpcut/internal/logging"
	"jumpcut/internal/metrics"
	"jumpcut/internal/pipeline"
	"jumpcut/internal/progress"
	"jumpcut/internal/render"
	"jumpcut/internal/services/ffmpeg"
	"jumpcut/internal/services/vad"
	"jumpcut/internal/waveform"
)

// shutdownGrace bounds how long Shutdown waits for cancelled runs to exit.
const shutdownGrace = 10 * time.Second

// Manager owns live runs and their persisted history. Live state is kept in
// memory only; the store records what happened, not what to resume.
type Manager struct {
	cfg     *config.Config
	store   *Store
	metrics *metrics.Collector
	logger  *slog.Logger

	mu   sync.Mutex
	runs map[string]*pipeline.Run
}

func NewManager(cfg *config.Config, store *Store, collector *metrics.Collector, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		metrics: collector,
		logger:  logging.NewComponentLogger(logger, "manager"),
		runs:    map[string]*pipeline.Run{},
	}
}

// Analyze starts processing for a source file and returns the live run.
// With autoRender false the run parks at analysis_complete until Render is
// called.
func (m *Manager) Analyze(source string, autoRender bool) (*pipeline.Run, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source file: %s is a directory", source)
	}

	id := uuid.NewString()
	runner := &ffmpeg.Runner{Binary: m.cfg.FFmpegBinary()}
	run := pipeline.NewRun(id, pipeline.Options{
		Source:       source,
		OutputDir:    m.cfg.Paths.OutputDir,
		AutoRender:   autoRender,
		GapThreshold: m.cfg.VAD.GapThreshold,
		Prober:       pipeline.FFprobeProber{Binary: m.cfg.FFprobeBinary()},
		Runner:       runner,
		Detector:     m.detector(),
		Renderer:     render.New(runner, m.cfg.Paths.WorkDir, m.logger),
		Sink:         m.persistSink(id),
		Logger:       m.logger,
	})

	if err := m.store.Insert(context.Background(), id, source); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.runs[id] = run
	m.mu.Unlock()
	m.metrics.RunStarted()
	m.logger.Info("run accepted",
		logging.String(logging.FieldProject, id),
		logging.String("source", source),
		logging.Bool("auto_render", autoRender))

	go run.Process(context.Background())
	return run, nil
}

// Get returns the live run for id, if it is still held in memory.
func (m *Manager) Get(id string) (*pipeline.Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	return run, ok
}

// Render resumes a parked run, optionally replacing its segment list. The
// render itself proceeds in the background; callers observe it through
// progress events or Done.
func (m *Manager) Render(ctx context.Context, id string, spans []interval.Span) error {
	run, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !run.Paused() {
		return pipeline.ErrNotAwaitingRender
	}
	go func() {
		// The request context ends with the HTTP response; the render must
		// outlive it.
		if err := run.RenderSegments(context.Background(), spans); err != nil {
			m.logger.Warn("render request lost a race with another transition",
				logging.String(logging.FieldProject, id), logging.Error(err))
		}
	}()
	return nil
}

// Cancel requests cancellation of a live run.
func (m *Manager) Cancel(id string) error {
	run, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	run.Cancel()
	return nil
}

// Waveform computes display peaks from the run's extracted audio. The audio
// artifact lives in the output directory, so peaks stay available from the
// editing pause through and after completion.
func (m *Manager) Waveform(id string) ([]float64, error) {
	run, ok := m.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	audioPath := run.AudioPath()
	if audioPath == "" {
		return nil, fmt.Errorf("waveform: audio not available for %s", id)
	}
	return waveform.Peaks(audioPath, m.cfg.Waveform.PointsPerSecond)
}

// ActiveRuns counts live runs that have not reached a terminal stage.
func (m *Manager) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, run := range m.runs {
		select {
		case <-run.Done():
		default:
			active++
		}
	}
	return active
}

// History lists persisted records, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]*Record, error) {
	return m.store.List(ctx, limit)
}

// Lookup returns the persisted record for id.
func (m *Manager) Lookup(ctx context.Context, id string) (*Record, error) {
	return m.store.Get(ctx, id)
}

// Shutdown cancels every live run and waits briefly for them to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	runs := make([]*pipeline.Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.Unlock()

	for _, run := range runs {
		run.Cancel()
	}
	deadline := time.After(shutdownGrace)
	for _, run := range runs {
		select {
		case <-run.Done():
		case <-deadline:
			m.logger.Warn("run did not stop before shutdown deadline",
				logging.String(logging.FieldProject, run.ID()))
			return
		}
	}
}

// detector picks the configured detection backend: an external command when
// one is configured, otherwise the built-in energy detector.
func (m *Manager) detector() vad.Detector {
	if m.cfg.VAD.Command != "" {
		return &vad.ExecDetector{Command: m.cfg.VAD.Command, Args: m.cfg.VAD.Args}
	}
	return &vad.RMSDetector{
		Threshold:    m.cfg.VAD.Threshold,
		MinSpeechMs:  m.cfg.VAD.MinSpeechMs,
		MinSilenceMs: m.cfg.VAD.MinSilenceMs,
		PadMs:        m.cfg.VAD.PadMs,
	}
}

// persistSink mirrors progress into the store. Updates are sampled so a busy
// render does not hammer SQLite; stage changes and terminal events always
// land.
func (m *Manager) persistSink(id string) progress.Sink {
	sampler := logging.NewProgressSampler(1)
	return func(evt progress.Event) {
		ctx := context.Background()
		if evt.Stage.Terminal() || evt.Stage == progress.StageAnalysisComplete {
			m.settle(ctx, id, evt)
			return
		}
		if !sampler.ShouldLog(evt.Percent, string(evt.Stage)) {
			return
		}
		if err := m.store.UpdateProgress(ctx, id, string(evt.Stage), evt.Percent, evt.Details); err != nil {
			m.logger.Warn("persist progress failed", logging.String(logging.FieldProject, id), logging.Error(err))
		}
	}
}

// settle persists the analysis result or terminal outcome for a run.
func (m *Manager) settle(ctx context.Context, id string, evt progress.Event) {
	run, ok := m.Get(id)
	if !ok {
		return
	}
	if err := m.store.SetAnalysis(ctx, id, run.Duration(), run.Segments()); err != nil {
		m.logger.Warn("persist analysis failed", logging.String(logging.FieldProject, id), logging.Error(err))
	}
	if !evt.Stage.Terminal() {
		if err := m.store.UpdateProgress(ctx, id, string(evt.Stage), evt.Percent, evt.Details); err != nil {
			m.logger.Warn("persist progress failed", logging.String(logging.FieldProject, id), logging.Error(err))
		}
		return
	}

	var errMsg string
	if evt.Stage == progress.StageError {
		if runErr := run.Err(); runErr != nil {
			errMsg = runErr.Error()
		}
	}
	if err := m.store.Finish(ctx, id, string(evt.Stage), run.OutputPath(), errMsg); err != nil {
		m.logger.Warn("persist outcome failed", logging.String(logging.FieldProject, id), logging.Error(err))
	}
	m.metrics.RunFinished(evt.Stage)
}
