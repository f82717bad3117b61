package vad

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"

	"jumpcut/internal/interval"
)

// frameMs is the analysis frame length. 20ms at 16kHz is 320 samples.
const frameMs = 20

// RMSDetector is a pure-Go voice activity detector based on frame energy.
// It cannot match a trained model on noisy material but needs no external
// process, which makes it the default capability.
type RMSDetector struct {
	// Threshold is the normalized RMS level at or above which a frame
	// counts as speech.
	Threshold float64
	// MinSpeechMs drops speech runs shorter than this.
	MinSpeechMs int
	// MinSilenceMs bridges silence gaps shorter than this.
	MinSilenceMs int
	// PadMs widens every detected run on both sides.
	PadMs int
}

// DefaultRMSDetector mirrors the tuning the pipeline was calibrated with:
// 150ms minimum speech, 200ms minimum silence, 80ms padding.
func DefaultRMSDetector() *RMSDetector {
	return &RMSDetector{
		Threshold:    0.015,
		MinSpeechMs:  150,
		MinSilenceMs: 200,
		PadMs:        80,
	}
}

// Detect reads the WAV artifact and returns energy-based speech spans.
// The computation is not interruptible mid-file; ctx is only honored by the
// caller's polling loop.
func (d *RMSDetector) Detect(_ context.Context, audioPath string) ([]interval.Span, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("vad: open audio: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("vad: decode audio: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, nil
	}

	sampleRate := buf.Format.SampleRate
	if sampleRate <= 0 {
		return nil, fmt.Errorf("vad: invalid sample rate %d", sampleRate)
	}
	frameLen := sampleRate * frameMs / 1000
	if frameLen < 1 {
		frameLen = 1
	}

	speech := d.speechFrames(buf.Data, frameLen)
	return d.framesToSpans(speech, len(buf.Data), sampleRate, frameLen), nil
}

// speechFrames marks each frame as speech when its normalized RMS reaches
// the threshold.
func (d *RMSDetector) speechFrames(data []int, frameLen int) []bool {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = 0.015
	}
	frames := (len(data) + frameLen - 1) / frameLen
	speech := make([]bool, frames)
	for i := 0; i < frames; i++ {
		start := i * frameLen
		end := start + frameLen
		if end > len(data) {
			end = len(data)
		}
		sum := 0.0
		for _, sample := range data[start:end] {
			normalized := float64(sample) / 32768.0
			sum += normalized * normalized
		}
		rms := math.Sqrt(sum / float64(end-start))
		speech[i] = rms >= threshold
	}
	return speech
}

// framesToSpans converts the frame mask into padded spans, bridging short
// silences and dropping runs below the minimum speech duration.
func (d *RMSDetector) framesToSpans(speech []bool, totalSamples, sampleRate, frameLen int) []interval.Span {
	frameSec := float64(frameLen) / float64(sampleRate)
	totalSec := float64(totalSamples) / float64(sampleRate)

	var runs []interval.Span
	runStart := -1
	for i, active := range speech {
		switch {
		case active && runStart < 0:
			runStart = i
		case !active && runStart >= 0:
			runs = append(runs, interval.Span{Start: float64(runStart) * frameSec, End: float64(i) * frameSec})
			runStart = -1
		}
	}
	if runStart >= 0 {
		runs = append(runs, interval.Span{Start: float64(runStart) * frameSec, End: totalSec})
	}
	if len(runs) == 0 {
		return nil
	}

	runs = interval.Merge(runs, float64(d.MinSilenceMs)/1000)

	minSpeech := float64(d.MinSpeechMs) / 1000
	pad := float64(d.PadMs) / 1000
	spans := make([]interval.Span, 0, len(runs))
	for _, run := range runs {
		if run.Duration() < minSpeech {
			continue
		}
		run.Start = math.Max(0, run.Start-pad)
		run.End = math.Min(totalSec, run.End+pad)
		spans = append(spans, run)
	}
	return spans
}

var _ Detector = (*RMSDetector)(nil)
var _ Detector = (*ExecDetector)(nil)
