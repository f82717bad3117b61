package config

import "strings"

// normalize expands user paths and fills empty fields from defaults so the
// rest of the program never sees a half-populated config.
func (c *Config) normalize() error {
	defaults := Default()

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaults.Paths.OutputDir
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaults.Paths.WorkDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaults.Paths.LogDir
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaults.Paths.APIBind
	}

	for _, field := range []*string{&c.Paths.OutputDir, &c.Paths.WorkDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		c.Tools.FFmpeg = defaults.Tools.FFmpeg
	}
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		c.Tools.FFprobe = defaults.Tools.FFprobe
	}

	if c.VAD.GapThreshold == 0 {
		c.VAD.GapThreshold = defaults.VAD.GapThreshold
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = defaults.VAD.Threshold
	}
	if c.VAD.MinSpeechMs == 0 {
		c.VAD.MinSpeechMs = defaults.VAD.MinSpeechMs
	}
	if c.VAD.MinSilenceMs == 0 {
		c.VAD.MinSilenceMs = defaults.VAD.MinSilenceMs
	}
	if c.VAD.PadMs == 0 {
		c.VAD.PadMs = defaults.VAD.PadMs
	}

	if c.Waveform.PointsPerSecond == 0 {
		c.Waveform.PointsPerSecond = defaults.Waveform.PointsPerSecond
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = defaults.Logging.MaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = defaults.Logging.MaxAgeDays
	}

	return nil
}
