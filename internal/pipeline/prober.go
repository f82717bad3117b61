package pipeline

import (
	"context"

	"jumpcut/internal/media/ffprobe"
)

// FFprobeProber probes sources with the configured ffprobe binary.
type FFprobeProber struct {
	Binary string
}

func (p FFprobeProber) Probe(ctx context.Context, path string) (MediaInfo, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return MediaInfo{}, err
	}
	return MediaInfo{
		Duration: result.DurationSeconds(),
		HasAudio: result.HasAudio(),
	}, nil
}

var _ Prober = FFprobeProber{}
