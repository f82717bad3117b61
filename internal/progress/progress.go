// Package progress defines the event schema emitted by the cutting pipeline
// and the time helpers shared by every stage.
package progress

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Stage identifies where a run is in its lifecycle.
type Stage string

const (
	StageInitializing     Stage = "initializing"
	StageAudioExtraction  Stage = "audio_extraction"
	StageVADAnalysis      Stage = "vad_analysis"
	StageAnalysisComplete Stage = "analysis_complete"
	StageRendering        Stage = "rendering"
	StageComplete         Stage = "complete"
	StageError            Stage = "error"
	StageCancelled        Stage = "cancelled"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	switch s {
	case StageComplete, StageError, StageCancelled:
		return true
	}
	return false
}

// Event is a single progress update. Percent is in [0,100] and does not
// decrease within a run except on error or cancellation. ETASeconds is nil
// when no estimate is available.
type Event struct {
	Stage      Stage    `json:"stage"`
	Percent    float64  `json:"progress"`
	Details    string   `json:"details,omitempty"`
	ETASeconds *float64 `json:"eta_seconds,omitempty"`
	ETADisplay string   `json:"eta_display,omitempty"`
}

// Sink receives progress events. A nil Sink is legal and drops everything.
type Sink func(Event)

// Emit calls the sink if one is set, rounding percent to one decimal and
// attaching a display string when an ETA is known.
func (s Sink) Emit(stage Stage, percent float64, details string, etaSeconds float64) {
	if s == nil {
		return
	}
	evt := Event{
		Stage:   stage,
		Percent: math.Round(percent*10) / 10,
		Details: details,
	}
	if etaSeconds >= 0 {
		rounded := math.Round(etaSeconds*10) / 10
		evt.ETASeconds = &rounded
		evt.ETADisplay = FormatETA(etaSeconds)
	}
	s(evt)
}

// FormatETA renders a wall-clock estimate as a compact human string.
// Out-of-range estimates (negative, or beyond a day) are reported as still
// calculating rather than as a bogus number.
func FormatETA(seconds float64) string {
	if seconds < 0 || seconds > 86400 {
		return "calculating..."
	}
	secs := int(seconds)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		rem := secs % 3600
		return fmt.Sprintf("%dh %dm %ds", secs/3600, rem/60, rem%60)
	}
}

// ParseClock parses an ffmpeg progress timestamp (HH:MM:SS.fraction) into
// seconds. Anything that does not look like a three-part clock yields zero.
func ParseClock(value string) float64 {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0
	}
	return float64(hours)*3600 + float64(minutes)*60 + seconds
}

// Clamp bounds value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
