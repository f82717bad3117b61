// Package waveform reduces the extracted audio track to a fixed-resolution
// peak sequence for client-side visualization. It sits off the pipeline's
// critical path: any unusable input produces an empty sequence, never a
// failure.
package waveform

import (
	"errors"
	"io/fs"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// DefaultPointsPerSecond matches the review UI's zoom resolution.
const DefaultPointsPerSecond = 20

// Peaks reads a WAV artifact and returns one normalized peak amplitude per
// window of sampleRate/pointsPerSecond samples, rounded to three decimals.
// A missing file or silent audio yields an empty sequence.
func Peaks(path string, pointsPerSecond int) ([]float64, error) {
	if pointsPerSecond <= 0 {
		pointsPerSecond = DefaultPointsPerSecond
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || len(buf.Data) == 0 || buf.Format == nil {
		return nil, nil
	}

	samples := monoSamples(buf.Data, buf.Format.NumChannels)
	if len(samples) == 0 {
		return nil, nil
	}

	peak := 0.0
	for _, s := range samples {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		// Silent audio: no peaks to show and nothing to normalize by.
		return nil, nil
	}

	step := buf.Format.SampleRate / pointsPerSecond
	if step < 1 {
		step = 1
	}
	if pad := (step - len(samples)%step) % step; pad > 0 {
		samples = append(samples, make([]float64, pad)...)
	}

	peaks := make([]float64, 0, len(samples)/step)
	for i := 0; i < len(samples); i += step {
		windowMax := 0.0
		for _, s := range samples[i : i+step] {
			if abs := math.Abs(s); abs > windowMax {
				windowMax = abs
			}
		}
		peaks = append(peaks, math.Round(windowMax/peak*1000)/1000)
	}
	return peaks, nil
}

// monoSamples averages interleaved channels down to one. Extraction already
// forces mono, so this is defensive against hand-supplied audio.
func monoSamples(data []int, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	if channels == 1 {
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out
	}
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels)
	}
	return out
}
