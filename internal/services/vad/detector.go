// Package vad provides the speech detection capability used by the pipeline.
// Detection is opaque to the controller: given a mono 16kHz audio artifact it
// returns raw speech time ranges. An external command can supply the model;
// a pure-Go energy detector is built in as the default.
package vad

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"jumpcut/internal/interval"
)

// Detector produces raw speech intervals for an audio artifact. The result
// is unmerged; callers pass it through interval.Merge.
type Detector interface {
	Detect(ctx context.Context, audioPath string) ([]interval.Span, error)
}

// ExecDetector shells out to a configured detection command. The command
// receives the audio path as its final argument and must print a JSON array
// of {"start": seconds, "end": seconds} objects on stdout.
type ExecDetector struct {
	Command string
	Args    []string
}

// Detect runs the external command and decodes its output. Spans with a
// non-positive duration are dropped rather than failing the run.
func (d *ExecDetector) Detect(ctx context.Context, audioPath string) ([]interval.Span, error) {
	if d == nil || strings.TrimSpace(d.Command) == "" {
		return nil, fmt.Errorf("vad: detection command not configured")
	}
	args := append(append([]string{}, d.Args...), audioPath)
	cmd := exec.CommandContext(ctx, d.Command, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		if detail != "" {
			return nil, fmt.Errorf("vad: %s: %w: %s", d.Command, err, detail)
		}
		return nil, fmt.Errorf("vad: %s: %w", d.Command, err)
	}
	return decodeSpans(output)
}

func decodeSpans(payload []byte) ([]interval.Span, error) {
	var raw []interval.Span
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("vad: parse detection output: %w", err)
	}
	spans := make([]interval.Span, 0, len(raw))
	for _, span := range raw {
		if span.End <= span.Start {
			continue
		}
		spans = append(spans, span)
	}
	return spans, nil
}
