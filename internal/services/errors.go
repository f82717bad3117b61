package services

import (
	"errors"
	"fmt"
	"strings"

	"jumpcut/internal/progress"
)

var (
	// ErrCancelled marks user-initiated cancellation. It is always reported
	// as a cancelled status, never as a processing error.
	ErrCancelled = errors.New("cancelled")
	// ErrExternalTool marks a non-zero exit from an extraction or render
	// subprocess; the wrapped detail carries the captured stderr tail.
	ErrExternalTool = errors.New("external tool error")
	// ErrDetection marks a speech detection capability failure.
	ErrDetection = errors.New("detection error")
	// ErrIO marks missing sources, unwritable output directories and similar.
	ErrIO = errors.New("io error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// TerminalStage maps a run-aborting error to the terminal progress stage the
// pipeline should report. Cancellation takes priority over every other
// failure classification.
func TerminalStage(err error) progress.Stage {
	if errors.Is(err, ErrCancelled) {
		return progress.StageCancelled
	}
	return progress.StageError
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
