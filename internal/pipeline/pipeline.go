// Package pipeline drives one silence-removal run through its stages:
// probing, audio extraction, voice activity detection, and rendering. A run
// either renders automatically or parks after analysis until a render request
// arrives with the (possibly user-edited) segment list.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jumpcut/internal/cancellation"
	"jumpcut/internal/interval"
	"jumpcut/internal/logging"
	"jumpcut/internal/progress"
	"jumpcut/internal/render"
	"jumpcut/internal/services"
	"jumpcut/internal/services/ffmpeg"
	"jumpcut/internal/services/vad"
)

// Stage windows on the overall 0-100 timeline. Extraction owns 0-20,
// detection reports estimated progress inside 30-48, rendering owns 50-98.
const (
	extractWindowLo = 0.0
	extractWindowHi = 20.0
	vadWindowLo     = 30.0
	vadWindowHi     = 48.0

	// Detection has no native progress; elapsed wall clock against a
	// duration-derived estimate is capped so the bar never claims completion
	// before the detector returns.
	vadEstimateFrac = 0.95
	vadPollInterval = 500 * time.Millisecond
)

// ErrNotAwaitingRender is returned when a render request targets a run that
// is not parked at analysis_complete.
var ErrNotAwaitingRender = errors.New("run is not awaiting a render request")

// MediaInfo is the probe summary the pipeline needs.
type MediaInfo struct {
	Duration float64
	HasAudio bool
}

// Prober inspects the source container before any processing starts.
type Prober interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
}

// CommandRunner executes one ffmpeg job.
type CommandRunner interface {
	Run(ctx context.Context, job ffmpeg.Job) error
}

// Renderer assembles the final cut from the segment list.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (string, error)
}

// Options wires a run's collaborators and tunables.
type Options struct {
	Source     string
	OutputDir  string
	AutoRender bool
	// GapThreshold is the silence duration, in seconds, below which adjacent
	// speech intervals are merged.
	GapThreshold float64
	// PollInterval overrides the detection progress cadence; zero keeps the
	// default.
	PollInterval time.Duration

	Prober   Prober
	Runner   CommandRunner
	Detector vad.Detector
	Renderer Renderer

	// Sink observes every event after the run's own bookkeeping.
	Sink   progress.Sink
	Logger *slog.Logger
}

type runState int

const (
	stateRunning runState = iota
	statePaused
	stateTerminal
)

// Run is a single processing job. All exported methods are safe for
// concurrent use.
type Run struct {
	id        string
	opts      Options
	token     *cancellation.Token
	logger    *slog.Logger
	sampler   *logging.ProgressSampler
	createdAt time.Time

	mu         sync.Mutex
	st         runState
	duration   float64
	audioPath  string
	segments   []interval.Span
	outputPath string
	last       progress.Event
	runErr     error
	subs       map[int]chan progress.Event
	nextSub    int

	done chan struct{}
	once sync.Once
}

// NewRun builds a run; Process starts it.
func NewRun(id string, opts Options) *Run {
	if opts.PollInterval <= 0 {
		opts.PollInterval = vadPollInterval
	}
	logger := logging.NewComponentLogger(opts.Logger, "pipeline").With(logging.String(logging.FieldProject, id))
	return &Run{
		id:        id,
		opts:      opts,
		token:     cancellation.New(),
		logger:    logger,
		sampler:   logging.NewProgressSampler(0),
		createdAt: time.Now(),
		subs:      map[int]chan progress.Event{},
		done:      make(chan struct{}),
	}
}

func (r *Run) ID() string           { return r.id }
func (r *Run) Source() string       { return r.opts.Source }
func (r *Run) CreatedAt() time.Time { return r.createdAt }

// Done is closed exactly once, when the run reaches a terminal stage.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err reports the terminal error, nil while running or after success.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runErr
}

// OutputPath is empty until rendering succeeds and never changes afterwards.
func (r *Run) OutputPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputPath
}

// AudioPath points at the extracted mono track in the output directory. It
// is set once extraction starts and stays valid after the run finishes, so
// waveforms can be served for completed runs.
func (r *Run) AudioPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audioPath
}

// Duration is the probed source length in seconds.
func (r *Run) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// Segments returns a copy of the current merged speech intervals.
func (r *Run) Segments() []interval.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interval.Span, len(r.segments))
	copy(out, r.segments)
	return out
}

// LastEvent returns the most recent progress event.
func (r *Run) LastEvent() progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Paused reports whether the run is parked at analysis_complete.
func (r *Run) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st == statePaused
}

// Subscribe registers a progress listener. The latest event is replayed
// immediately so late subscribers see current state; slow listeners drop
// events rather than stall the pipeline. The returned func unsubscribes.
func (r *Run) Subscribe() (<-chan progress.Event, func()) {
	ch := make(chan progress.Event, 16)
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	if r.last.Stage != "" {
		ch <- r.last
	}
	r.mu.Unlock()
	return ch, func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Cancel requests cooperative cancellation. A run parked at
// analysis_complete finishes immediately; an active run finishes when the
// current stage observes the flag.
func (r *Run) Cancel() {
	r.token.Cancel()
	r.mu.Lock()
	paused := r.st == statePaused
	r.mu.Unlock()
	if paused {
		r.finish(services.Wrap(services.ErrCancelled, string(progress.StageAnalysisComplete), "cancel", "cancelled while awaiting render", nil))
	}
}

// Process runs analysis and, when auto-render is on, rendering. It blocks
// until the run is terminal or parked; callers typically invoke it on its
// own goroutine.
func (r *Run) Process(ctx context.Context) {
	if err := r.analyze(ctx); err != nil {
		r.finish(err)
		return
	}
	if !r.opts.AutoRender {
		r.mu.Lock()
		r.st = statePaused
		cancelled := r.token.Cancelled()
		r.mu.Unlock()
		if cancelled {
			r.finish(services.Wrap(services.ErrCancelled, string(progress.StageAnalysisComplete), "analyze", "cancelled by user", nil))
			return
		}
		r.emit(progress.StageAnalysisComplete, 50, "Analysis complete. Review segments and request a render.", -1)
		return
	}
	r.finish(r.renderPhase(ctx))
}

// RenderSegments resumes a parked run. A non-empty spans argument replaces
// the detected segment list, which is how user edits reach the renderer.
func (r *Run) RenderSegments(ctx context.Context, spans []interval.Span) error {
	r.mu.Lock()
	if r.st != statePaused {
		r.mu.Unlock()
		return ErrNotAwaitingRender
	}
	r.st = stateRunning
	if spans != nil {
		r.segments = make([]interval.Span, len(spans))
		copy(r.segments, spans)
	}
	r.mu.Unlock()
	r.finish(r.renderPhase(ctx))
	return nil
}

func (r *Run) analyze(ctx context.Context) error {
	r.emit(progress.StageInitializing, 0, "Starting processing", -1)
	if r.token.Cancelled() {
		return services.Wrap(services.ErrCancelled, string(progress.StageInitializing), "analyze", "cancelled before start", nil)
	}

	info, err := r.opts.Prober.Probe(ctx, r.opts.Source)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, string(progress.StageInitializing), "ffprobe", "probe source", err)
	}
	if !info.HasAudio {
		return services.Wrap(services.ErrDetection, string(progress.StageInitializing), "ffprobe", "source has no audio stream", nil)
	}
	if info.Duration <= 0 {
		return services.Wrap(services.ErrDetection, string(progress.StageInitializing), "ffprobe", "source duration unknown", nil)
	}

	// The extracted track lands in the output directory alongside the final
	// cut; it is an artifact of the run, not scratch, and keeps serving
	// waveform requests after the run finishes.
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrIO, string(progress.StageInitializing), "analyze", "create output directory", err)
	}
	audioPath := filepath.Join(r.opts.OutputDir, r.id+"_audio.wav")

	r.mu.Lock()
	r.duration = info.Duration
	r.audioPath = audioPath
	r.mu.Unlock()

	if err := r.extractAudio(ctx, info.Duration, audioPath); err != nil {
		return err
	}

	spans, err := r.detect(ctx)
	if err != nil {
		return err
	}
	merged := interval.Merge(spans, r.opts.GapThreshold)

	r.mu.Lock()
	r.segments = merged
	r.mu.Unlock()

	r.logger.Info("analysis finished",
		logging.Int("raw_segments", len(spans)),
		logging.Int("segments", len(merged)),
		logging.Float64("speech_seconds", interval.TotalDuration(merged)))
	r.emit(progress.StageVADAnalysis, 50, fmt.Sprintf("Found %d speech segments", len(merged)), -1)
	return nil
}

func (r *Run) extractAudio(ctx context.Context, duration float64, audioPath string) error {
	if r.token.Cancelled() {
		return services.Wrap(services.ErrCancelled, string(progress.StageAudioExtraction), "extract", "cancelled by user", nil)
	}
	job := ffmpeg.Job{
		Args:     ffmpeg.ExtractAudioArgs(r.opts.Source, audioPath),
		Duration: duration,
		Window:   ffmpeg.Window{Lo: extractWindowLo, Hi: extractWindowHi},
		Stage:    progress.StageAudioExtraction,
		Details:  "Extracting audio",
		Token:    r.token,
		Sink:     r.sink(),
	}
	if err := r.opts.Runner.Run(ctx, job); err != nil {
		return err
	}
	r.emit(progress.StageAudioExtraction, extractWindowHi, "Audio extraction complete", -1)
	return nil
}

// detect runs the detector on its own goroutine while the main loop reports
// estimated progress. The estimate scales with source length, floored at
// five seconds to absorb model startup.
func (r *Run) detect(ctx context.Context) ([]interval.Span, error) {
	if r.token.Cancelled() {
		return nil, services.Wrap(services.ErrCancelled, string(progress.StageVADAnalysis), "detect", "cancelled by user", nil)
	}
	r.emit(progress.StageVADAnalysis, 22, "Loading voice detection model...", -1)

	r.mu.Lock()
	duration := r.duration
	audioPath := r.audioPath
	r.mu.Unlock()
	estimate := math.Max(duration/50, 5)
	started := time.Now()

	dctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-r.token.Done():
			stop()
		case <-dctx.Done():
		}
	}()

	type result struct {
		spans []interval.Span
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		spans, err := r.opts.Detector.Detect(dctx, audioPath)
		resCh <- result{spans, err}
	}()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case res := <-resCh:
			if r.token.Cancelled() {
				return nil, services.Wrap(services.ErrCancelled, string(progress.StageVADAnalysis), "detect", "cancelled by user", nil)
			}
			if res.err != nil {
				return nil, services.Wrap(services.ErrDetection, string(progress.StageVADAnalysis), "detect", "voice activity detection failed", res.err)
			}
			return res.spans, nil
		case <-ticker.C:
			if r.token.Cancelled() {
				continue
			}
			elapsed := time.Since(started).Seconds()
			fraction := math.Min(elapsed/estimate, vadEstimateFrac)
			eta := estimate - elapsed
			if eta < 0 {
				eta = -1
			}
			r.emit(progress.StageVADAnalysis, vadWindowLo+fraction*(vadWindowHi-vadWindowLo), "Analyzing voice activity...", eta)
		}
	}
}

func (r *Run) renderPhase(ctx context.Context) error {
	if r.token.Cancelled() {
		return services.Wrap(services.ErrCancelled, string(progress.StageRendering), "render", "cancelled by user", nil)
	}
	r.emit(progress.StageRendering, 50, "Starting render", -1)
	out, err := r.opts.Renderer.Render(ctx, render.Request{
		Source:    r.opts.Source,
		OutputDir: r.opts.OutputDir,
		ID:        r.id,
		Segments:  r.Segments(),
		Token:     r.token,
		Sink:      r.sink(),
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.outputPath == "" {
		r.outputPath = out
	}
	r.mu.Unlock()
	return nil
}

// finish records the terminal outcome, emits the final event, and closes the
// completion channel. Guarded so repeated calls (cancel racing completion)
// settle on the first outcome.
func (r *Run) finish(err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.st = stateTerminal
		r.runErr = err
		out := r.outputPath
		lastPercent := r.last.Percent
		r.mu.Unlock()

		switch {
		case err == nil:
			r.emit(progress.StageComplete, 100, "Processing complete: "+out, -1)
			r.logger.Info("run complete", logging.String("output", out))
		case errors.Is(err, services.ErrCancelled):
			r.emit(progress.StageCancelled, lastPercent, "Processing cancelled", -1)
			r.logger.Info("run cancelled")
		default:
			r.emit(progress.StageError, lastPercent, err.Error(), -1)
			r.logger.Error("run failed", logging.Error(err))
		}

		close(r.done)
	})
}

func (r *Run) emit(stage progress.Stage, percent float64, details string, eta float64) {
	r.sink().Emit(stage, percent, details, eta)
}

func (r *Run) sink() progress.Sink {
	return func(evt progress.Event) {
		r.publish(evt)
	}
}

// publish enforces monotonic percent for non-terminal events, fans the event
// out to subscribers, and forwards it to the external sink. Slow subscribers
// lose events instead of blocking the stage that emitted them.
func (r *Run) publish(evt progress.Event) {
	r.mu.Lock()
	if !evt.Stage.Terminal() && evt.Percent < r.last.Percent {
		evt.Percent = r.last.Percent
	}
	r.last = evt
	subs := make([]chan progress.Event, 0, len(r.subs))
	for _, ch := range r.subs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
	if r.sampler.ShouldLog(evt.Percent, string(evt.Stage)) {
		r.logger.Debug("progress",
			logging.String(logging.FieldStage, string(evt.Stage)),
			logging.Float64(logging.FieldPercent, evt.Percent),
			logging.String("details", evt.Details))
	}
	if r.opts.Sink != nil {
		r.opts.Sink(evt)
	}
}
