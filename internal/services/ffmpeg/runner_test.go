package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jumpcut/internal/cancellation"
	"jumpcut/internal/interval"
	"jumpcut/internal/progress"
	"jumpcut/internal/services"
)

func TestWindowMap(t *testing.T) {
	cases := []struct {
		window   Window
		fraction float64
		want     float64
	}{
		{Window{50, 98}, 0.5, 74},
		{Window{0, 20}, 0, 0},
		{Window{0, 20}, 1, 20},
		{Window{0, 20}, 2, 20},
		{Window{30, 48}, -0.5, 30},
	}
	for _, tc := range cases {
		if got := tc.window.Map(tc.fraction); got != tc.want {
			t.Errorf("Window%v.Map(%v) = %v, want %v", tc.window, tc.fraction, got, tc.want)
		}
	}
}

func TestConsumeProgressEmitsMappedEvents(t *testing.T) {
	stream := strings.Join([]string{
		"frame=100",
		"out_time=00:00:05.000",
		"out_time=N/A",
		"out_time=garbage",
		"speed=4x",
		"out_time=00:00:10.000",
		"progress=end",
	}, "\n")

	var events []progress.Event
	job := Job{
		Duration: 20,
		Window:   Window{0, 20},
		Stage:    progress.StageAudioExtraction,
		Details:  "Extracting audio",
		Token:    cancellation.New(),
		Sink:     func(evt progress.Event) { events = append(events, evt) },
	}

	if err := consumeProgress(strings.NewReader(stream), job, time.Now(), nil); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0].Percent != 5 {
		t.Errorf("first percent = %v, want 5 (fraction 0.25 of 0-20)", events[0].Percent)
	}
	if events[1].Percent != 10 {
		t.Errorf("second percent = %v, want 10", events[1].Percent)
	}
	if !strings.Contains(events[0].Details, "Extracting audio") {
		t.Errorf("details = %q", events[0].Details)
	}
	if events[1].ETASeconds == nil {
		t.Error("expected an ETA once fraction exceeds the floor")
	}
}

func TestConsumeProgressCancellation(t *testing.T) {
	token := cancellation.New()
	token.Cancel()

	killed := false
	job := Job{
		Duration: 20,
		Window:   Window{0, 20},
		Stage:    progress.StageAudioExtraction,
		Token:    token,
		Sink: func(progress.Event) {
			t.Error("no events should be emitted after cancellation")
		},
	}

	err := consumeProgress(strings.NewReader("out_time=00:00:05.000\n"), job, time.Now(), func() { killed = true })
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !killed {
		t.Fatal("cancellation must terminate the child")
	}
}

func TestConsumeProgressZeroDuration(t *testing.T) {
	job := Job{
		Duration: 0,
		Window:   Window{0, 20},
		Stage:    progress.StageAudioExtraction,
		Token:    cancellation.New(),
		Sink: func(progress.Event) {
			t.Error("no events expected with zero duration denominator")
		},
	}
	if err := consumeProgress(strings.NewReader("out_time=00:00:05.000\n"), job, time.Now(), nil); err != nil {
		t.Fatalf("consume: %v", err)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	token := cancellation.New()
	token.Cancel()
	runner := &Runner{Binary: "ffmpeg-test-binary-that-must-not-run"}
	err := runner.Run(context.Background(), Job{
		Args:  []string{"-version"},
		Token: token,
		Stage: progress.StageRendering,
	})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestTailWriterKeepsSuffix(t *testing.T) {
	w := newTailWriter(10)
	if _, err := w.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatal(err)
	}
	if got := w.Tail(); got != "6789abcdef" {
		t.Fatalf("tail = %q", got)
	}
	if _, err := w.Write([]byte("XYZ")); err != nil {
		t.Fatal(err)
	}
	if got := w.Tail(); got != "9abcdefXYZ" {
		t.Fatalf("tail after second write = %q", got)
	}
}

func TestCutSegmentArgsSeekAfterInput(t *testing.T) {
	args := CutSegmentArgs("in.mp4", interval.Span{Start: 1.5, End: 3.25}, "out.mp4")
	joined := strings.Join(args, " ")
	inputIdx := strings.Index(joined, "-i in.mp4")
	seekIdx := strings.Index(joined, "-ss 1.500")
	if inputIdx < 0 || seekIdx < 0 || seekIdx < inputIdx {
		t.Fatalf("seek must follow the input for frame accuracy: %s", joined)
	}
	if !strings.Contains(joined, "-to 3.250") {
		t.Fatalf("missing end timestamp: %s", joined)
	}
	if !strings.Contains(joined, "-progress pipe:1") {
		t.Fatalf("missing progress pipe: %s", joined)
	}
}

func TestConcatArgsStreamCopy(t *testing.T) {
	args := ConcatArgs("list.txt", "out.mp4")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f concat", "-safe 0", "-c copy", "-progress pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
}

func TestExtractAudioArgsMono16k(t *testing.T) {
	args := ExtractAudioArgs("in.mp4", "out.wav")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-ac 1", "-ar 16000", "-c:a pcm_s16le", "-vn"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
}
