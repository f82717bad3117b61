package ffmpeg

import (
	"fmt"

	"jumpcut/internal/interval"
)

// baseArgs are common to every invocation: overwrite outputs, keep stderr to
// real errors only, and report machine-readable progress on stdout.
func baseArgs() []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error"}
}

func progressArgs() []string {
	return []string{"-progress", "pipe:1"}
}

// ExtractAudioArgs pulls a mono 16kHz PCM track out of the source, the input
// format the detection capability and the waveform sampler expect.
func ExtractAudioArgs(source, dest string) []string {
	args := baseArgs()
	args = append(args,
		"-i", source,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
	)
	args = append(args, progressArgs()...)
	return append(args, dest)
}

// CutSegmentArgs re-encodes exactly one speech interval. The seek is placed
// after the input so decoding starts from the nearest preceding keyframe and
// the cut lands frame-accurately on the requested timestamps; stream copy
// cannot do that from arbitrary non-keyframe points.
func CutSegmentArgs(source string, span interval.Span, dest string) []string {
	args := baseArgs()
	args = append(args,
		"-i", source,
		"-ss", fmt.Sprintf("%.3f", span.Start),
		"-to", fmt.Sprintf("%.3f", span.End),
		"-c:v", "libx264", "-preset", "ultrafast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
	)
	args = append(args, progressArgs()...)
	return append(args, dest)
}

// ConcatArgs joins the per-segment clips listed in listPath by stream copy.
// All inputs were produced by CutSegmentArgs so their codec parameters match
// and no re-encode is needed.
func ConcatArgs(listPath, dest string) []string {
	args := baseArgs()
	args = append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
	)
	args = append(args, progressArgs()...)
	return append(args, dest)
}
