package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jumpcut/internal/interval"
	"jumpcut/internal/logging"
	"jumpcut/internal/progress"
	"jumpcut/internal/render"
	"jumpcut/internal/services"
	"jumpcut/internal/services/ffmpeg"
)

type stubProber struct {
	info MediaInfo
	err  error
}

func (s stubProber) Probe(context.Context, string) (MediaInfo, error) {
	return s.info, s.err
}

type stubRunner struct {
	mu   sync.Mutex
	runs int
	fn   func(job ffmpeg.Job) error
}

func (s *stubRunner) Run(_ context.Context, job ffmpeg.Job) error {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(job)
	}
	return nil
}

func (s *stubRunner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

type stubDetector struct {
	spans []interval.Span
	err   error
	delay time.Duration
}

func (s stubDetector) Detect(ctx context.Context, _ string) ([]interval.Span, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.spans, s.err
}

type stubRenderer struct {
	mu     sync.Mutex
	called int
	got    []interval.Span
	out    string
	err    error
}

func (s *stubRenderer) Render(_ context.Context, req render.Request) (string, error) {
	s.mu.Lock()
	s.called++
	s.got = req.Segments
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.out != "" {
		return s.out, nil
	}
	return "/out/talk_processed.mp4", nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *eventRecorder) sink() progress.Sink {
	return func(evt progress.Event) {
		e.mu.Lock()
		e.events = append(e.events, evt)
		e.mu.Unlock()
	}
}

func (e *eventRecorder) all() []progress.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Event, len(e.events))
	copy(out, e.events)
	return out
}

func newOptions(t *testing.T, rec *eventRecorder) Options {
	t.Helper()
	return Options{
		Source:       "/media/talk.mp4",
		OutputDir:    t.TempDir(),
		AutoRender:   true,
		GapThreshold: 0.2,
		PollInterval: 5 * time.Millisecond,
		Prober:       stubProber{info: MediaInfo{Duration: 60, HasAudio: true}},
		Runner:       &stubRunner{},
		Detector:     stubDetector{spans: []interval.Span{{Start: 0, End: 2}, {Start: 2.1, End: 5}}},
		Renderer:     &stubRenderer{},
		Sink:         rec.sink(),
		Logger:       logging.NewNop(),
	}
}

func TestProcessAutoRenderCompletes(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	run := NewRun("r1", opts)

	run.Process(context.Background())

	select {
	case <-run.Done():
	default:
		t.Fatal("done channel should close after auto render")
	}
	if err := run.Err(); err != nil {
		t.Fatalf("run err: %v", err)
	}
	if run.OutputPath() != "/out/talk_processed.mp4" {
		t.Fatalf("output = %q", run.OutputPath())
	}

	events := rec.all()
	if len(events) == 0 {
		t.Fatal("no events recorded")
	}
	final := events[len(events)-1]
	if final.Stage != progress.StageComplete || final.Percent != 100 {
		t.Fatalf("final event = %+v", final)
	}
	// Gap below threshold merges the two detected spans.
	if got := run.Segments(); len(got) != 1 || got[0] != (interval.Span{Start: 0, End: 5}) {
		t.Fatalf("segments = %v", got)
	}
}

func TestExtractedAudioSurvivesCompletion(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	// Materialize the extraction target the way the real command would.
	opts.Runner = &stubRunner{fn: func(job ffmpeg.Job) error {
		return os.WriteFile(job.Args[len(job.Args)-1], []byte("pcm"), 0o644)
	}}
	run := NewRun("r10", opts)

	run.Process(context.Background())

	if err := run.Err(); err != nil {
		t.Fatalf("run err: %v", err)
	}
	audio := run.AudioPath()
	if audio == "" {
		t.Fatal("audio path cleared after completion")
	}
	if filepath.Dir(audio) != opts.OutputDir {
		t.Fatalf("audio at %q, want it in the output directory %q", audio, opts.OutputDir)
	}
	// The extracted track is a run artifact, kept so waveforms can still be
	// served for finished runs.
	if _, err := os.Stat(audio); err != nil {
		t.Fatalf("extracted audio missing after completion: %v", err)
	}
}

func TestProcessPausesWithoutAutoRender(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	opts.AutoRender = false
	renderer := opts.Renderer.(*stubRenderer)
	run := NewRun("r2", opts)

	run.Process(context.Background())

	if !run.Paused() {
		t.Fatal("run should be parked at analysis_complete")
	}
	select {
	case <-run.Done():
		t.Fatal("done must not close while parked")
	default:
	}
	if renderer.called != 0 {
		t.Fatal("renderer should not run before the render request")
	}
	events := rec.all()
	last := events[len(events)-1]
	if last.Stage != progress.StageAnalysisComplete || last.Percent != 50 {
		t.Fatalf("pause event = %+v", last)
	}

	edited := []interval.Span{{Start: 1, End: 4}}
	if err := run.RenderSegments(context.Background(), edited); err != nil {
		t.Fatalf("render request: %v", err)
	}
	if renderer.got[0] != edited[0] {
		t.Fatalf("renderer received %v, want edited segments", renderer.got)
	}
	select {
	case <-run.Done():
	default:
		t.Fatal("done should close after the requested render")
	}
}

func TestRenderSegmentsRejectsNonPausedRun(t *testing.T) {
	rec := &eventRecorder{}
	run := NewRun("r3", newOptions(t, rec))
	run.Process(context.Background())

	err := run.RenderSegments(context.Background(), nil)
	if !errors.Is(err, ErrNotAwaitingRender) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelBeforeStartSpawnsNothing(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	runner := opts.Runner.(*stubRunner)
	renderer := opts.Renderer.(*stubRenderer)
	run := NewRun("r4", opts)

	run.Cancel()
	run.Process(context.Background())

	if !errors.Is(run.Err(), services.ErrCancelled) {
		t.Fatalf("err = %v", run.Err())
	}
	if runner.count() != 0 {
		t.Fatal("no commands should run after early cancel")
	}
	if renderer.called != 0 {
		t.Fatal("renderer should not run after early cancel")
	}
	final := rec.all()[len(rec.all())-1]
	if final.Stage != progress.StageCancelled {
		t.Fatalf("final stage = %v", final.Stage)
	}
}

func TestCancelWhilePaused(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	opts.AutoRender = false
	run := NewRun("r5", opts)
	run.Process(context.Background())
	if !run.Paused() {
		t.Fatal("run should pause first")
	}

	run.Cancel()
	select {
	case <-run.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel of a parked run should finish it")
	}
	if !errors.Is(run.Err(), services.ErrCancelled) {
		t.Fatalf("err = %v", run.Err())
	}
	if err := run.RenderSegments(context.Background(), nil); !errors.Is(err, ErrNotAwaitingRender) {
		t.Fatalf("render after cancel: %v", err)
	}
}

func TestCancelDuringDetection(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	opts.Detector = stubDetector{delay: 10 * time.Second}
	run := NewRun("r6", opts)

	go func() {
		time.Sleep(30 * time.Millisecond)
		run.Cancel()
	}()
	start := time.Now()
	run.Process(context.Background())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation did not interrupt detection (%v)", elapsed)
	}
	if !errors.Is(run.Err(), services.ErrCancelled) {
		t.Fatalf("err = %v", run.Err())
	}
}

func TestProbeFailuresAreTerminal(t *testing.T) {
	cases := []struct {
		name   string
		prober Prober
	}{
		{"probe error", stubProber{err: errors.New("boom")}},
		{"no audio", stubProber{info: MediaInfo{Duration: 60, HasAudio: false}}},
		{"zero duration", stubProber{info: MediaInfo{HasAudio: true}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &eventRecorder{}
			opts := newOptions(t, rec)
			opts.Prober = tc.prober
			run := NewRun("r7", opts)
			run.Process(context.Background())
			if run.Err() == nil {
				t.Fatal("expected terminal error")
			}
			final := rec.all()[len(rec.all())-1]
			if final.Stage != progress.StageError {
				t.Fatalf("final stage = %v", final.Stage)
			}
		})
	}
}

func TestOutputPathImmutable(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	run := NewRun("r8", opts)
	run.Process(context.Background())

	first := run.OutputPath()
	if first == "" {
		t.Fatal("output path missing")
	}
	// Terminal runs reject further render requests, so the path cannot move.
	if err := run.RenderSegments(context.Background(), nil); !errors.Is(err, ErrNotAwaitingRender) {
		t.Fatalf("render after completion: %v", err)
	}
	if run.OutputPath() != first {
		t.Fatal("output path changed after completion")
	}
}

func TestProgressMonotonic(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	run := NewRun("r9", opts)
	run.Process(context.Background())

	prev := -1.0
	for _, evt := range rec.all() {
		if evt.Stage.Terminal() {
			continue
		}
		if evt.Percent < prev {
			t.Fatalf("progress went backwards: %v after %v", evt.Percent, prev)
		}
		prev = evt.Percent
	}
}

func TestSubscribeReplaysLastEvent(t *testing.T) {
	rec := &eventRecorder{}
	run := NewRun("r10", newOptions(t, rec))
	run.Process(context.Background())

	ch, unsub := run.Subscribe()
	defer unsub()
	select {
	case evt := <-ch:
		if evt.Stage != progress.StageComplete {
			t.Fatalf("replayed stage = %v", evt.Stage)
		}
	default:
		t.Fatal("latest event should be replayed to new subscribers")
	}
}

func TestDetectorFailure(t *testing.T) {
	rec := &eventRecorder{}
	opts := newOptions(t, rec)
	opts.Detector = stubDetector{err: errors.New("model crashed")}
	run := NewRun("r11", opts)
	run.Process(context.Background())

	if !errors.Is(run.Err(), services.ErrDetection) {
		t.Fatalf("err = %v", run.Err())
	}
}
