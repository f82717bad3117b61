package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(0, "rendering") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(2, "rendering") {
		t.Fatal("same bucket should be suppressed")
	}
	if !s.ShouldLog(5, "rendering") {
		t.Fatal("bucket boundary should log")
	}
	if !s.ShouldLog(100, "rendering") {
		t.Fatal("completion should log")
	}
}

func TestProgressSamplerStageChange(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(42, "vad_analysis")
	if !s.ShouldLog(42, "rendering") {
		t.Fatal("stage change should log even within the same bucket")
	}
	if !s.ShouldLog(1, "rendering") {
		t.Fatal("bucket state resets on stage change")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "vad_analysis") {
		t.Fatal("new stage logs even with unknown percent")
	}
	if s.ShouldLog(-1, "vad_analysis") {
		t.Fatal("repeated unknown percent suppressed")
	}
	s.Reset()
	if !s.ShouldLog(-1, "vad_analysis") {
		t.Fatal("reset clears stage state")
	}
}
