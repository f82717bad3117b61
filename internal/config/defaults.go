package config

// DefaultAPIBind is the daemon API address used when config is unavailable.
const DefaultAPIBind = "127.0.0.1:7602"

const (
	defaultOutputDir       = "~/.local/share/jumpcut/outputs"
	defaultWorkDir         = "~/.local/share/jumpcut/work"
	defaultLogDir          = "~/.local/share/jumpcut/logs"
	defaultAPIBind         = DefaultAPIBind
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogMaxSizeMB    = 50
	defaultLogMaxBackups   = 5
	defaultLogMaxAgeDays   = 30
	defaultGapThreshold    = 0.2
	defaultVADThreshold    = 0.015
	defaultMinSpeechMs     = 150
	defaultMinSilenceMs    = 200
	defaultPadMs           = 80
	defaultPointsPerSecond = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		VAD: VAD{
			GapThreshold: defaultGapThreshold,
			Threshold:    defaultVADThreshold,
			MinSpeechMs:  defaultMinSpeechMs,
			MinSilenceMs: defaultMinSilenceMs,
			PadMs:        defaultPadMs,
		},
		Waveform: Waveform{
			PointsPerSecond: defaultPointsPerSecond,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
