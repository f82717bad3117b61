package progress

import (
	"math"
	"testing"
)

func TestFormatETA(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{-1, "calculating..."},
		{90000, "calculating..."},
		{42, "42s"},
		{75, "1m 15s"},
		{3725, "1h 2m 5s"},
		{0, "0s"},
	}
	for _, tc := range cases {
		if got := FormatETA(tc.seconds); got != tc.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00:05.50", 5.5},
		{"01:02:03.25", 3723.25},
		{"00:10:00", 600},
		{"N/A", 0},
		{"", 0},
		{"12:34", 0},
		{"aa:bb:cc", 0},
	}
	for _, tc := range cases {
		if got := ParseClock(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSinkEmitRoundsAndFormats(t *testing.T) {
	var got Event
	sink := Sink(func(evt Event) { got = evt })

	sink.Emit(StageRendering, 74.567, "rendering", 75)
	if got.Stage != StageRendering {
		t.Fatalf("stage = %s", got.Stage)
	}
	if got.Percent != 74.6 {
		t.Fatalf("percent = %v, want 74.6", got.Percent)
	}
	if got.ETASeconds == nil || *got.ETASeconds != 75 {
		t.Fatalf("eta seconds = %v, want 75", got.ETASeconds)
	}
	if got.ETADisplay != "1m 15s" {
		t.Fatalf("eta display = %q", got.ETADisplay)
	}
}

func TestSinkEmitOmitsUnknownETA(t *testing.T) {
	var got Event
	sink := Sink(func(evt Event) { got = evt })

	sink.Emit(StageAudioExtraction, 10, "extracting", -1)
	if got.ETASeconds != nil || got.ETADisplay != "" {
		t.Fatalf("expected no ETA, got %v %q", got.ETASeconds, got.ETADisplay)
	}
}

func TestNilSinkIsNoop(t *testing.T) {
	var sink Sink
	sink.Emit(StageComplete, 100, "done", -1)
}

func TestStageTerminal(t *testing.T) {
	for _, s := range []Stage{StageComplete, StageError, StageCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Stage{StageInitializing, StageAudioExtraction, StageVADAnalysis, StageAnalysisComplete, StageRendering} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
