package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate reports the first configuration value the pipeline cannot run
// with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return fmt.Errorf("config: output_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return fmt.Errorf("config: work_dir must not be empty")
	}
	if bind := strings.TrimSpace(c.Paths.APIBind); bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("config: api_bind %q is not host:port: %w", bind, err)
		}
	}
	if c.VAD.GapThreshold < 0 {
		return fmt.Errorf("config: vad gap_threshold must not be negative")
	}
	if c.VAD.Threshold < 0 || c.VAD.Threshold >= 1 {
		return fmt.Errorf("config: vad threshold must be in [0, 1)")
	}
	for name, value := range map[string]int{
		"min_speech_ms":  c.VAD.MinSpeechMs,
		"min_silence_ms": c.VAD.MinSilenceMs,
		"pad_ms":         c.VAD.PadMs,
	} {
		if value < 0 {
			return fmt.Errorf("config: vad %s must not be negative", name)
		}
	}
	if c.Waveform.PointsPerSecond <= 0 {
		return fmt.Errorf("config: waveform points_per_second must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("config: logging format %q unsupported (console or json)", c.Logging.Format)
	}
	return nil
}
