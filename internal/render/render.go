// Package render assembles the final cut. Each speech interval is re-encoded
// into its own clip, the clips are joined by stream copy, and the result is
// moved into the output directory.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jumpcut/internal/cancellation"
	"jumpcut/internal/interval"
	"jumpcut/internal/logging"
	"jumpcut/internal/progress"
	"jumpcut/internal/services"
	"jumpcut/internal/services/ffmpeg"
)

// Segment cutting occupies 50-90 of the overall timeline; the concat join
// runs 90-98 and the caller owns the final 98-100.
const (
	segmentWindowLo = 50.0
	segmentWindowHi = 90.0
	joinWindowLo    = 90.0
	joinWindowHi    = 98.0
)

// CommandRunner executes one ffmpeg job. *ffmpeg.Runner satisfies it; tests
// substitute stubs.
type CommandRunner interface {
	Run(ctx context.Context, job ffmpeg.Job) error
}

// Request carries everything needed to render one project.
type Request struct {
	Source    string
	OutputDir string
	// ID scopes the scratch directory so concurrent renders never collide.
	ID       string
	Segments []interval.Span
	Token    *cancellation.Token
	Sink     progress.Sink
}

// Renderer cuts and joins speech segments using an external command runner.
type Renderer struct {
	runner  CommandRunner
	workDir string
	logger  *slog.Logger
}

func New(runner CommandRunner, workDir string, logger *slog.Logger) *Renderer {
	return &Renderer{
		runner:  runner,
		workDir: workDir,
		logger:  logging.NewComponentLogger(logger, "renderer"),
	}
}

// Render produces the processed output file and returns its path. With no
// usable segments the source is copied through unchanged. Scratch files are
// removed on every exit path, including cancellation.
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	if req.Token.Cancelled() {
		return "", services.Wrap(services.ErrCancelled, string(progress.StageRendering), "render", "cancelled before start", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, string(progress.StageRendering), "render", "create output directory", err)
	}

	segments := sanitize(req.Segments)
	if len(segments) == 0 {
		r.logger.Warn("no speech segments, copying source unchanged", logging.String(logging.FieldProject, req.ID))
		dest := outputPath(req.OutputDir, req.Source, filepath.Ext(req.Source))
		if err := copyFile(req.Source, dest); err != nil {
			return "", services.Wrap(services.ErrIO, string(progress.StageRendering), "render", "copy source", err)
		}
		req.Sink.Emit(progress.StageRendering, joinWindowHi, "Copied source without edits", -1)
		return dest, nil
	}

	scratch, err := os.MkdirTemp(r.workDir, "render-"+req.ID+"-")
	if err != nil {
		return "", services.Wrap(services.ErrIO, string(progress.StageRendering), "render", "create scratch directory", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.logger.Warn("scratch cleanup failed", logging.String("dir", scratch), logging.Error(err))
		}
	}()

	clips, err := r.cutSegments(ctx, req, segments, scratch)
	if err != nil {
		return "", err
	}

	dest := outputPath(req.OutputDir, req.Source, ".mp4")
	if err := r.join(ctx, req, segments, clips, scratch, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// cutSegments encodes each interval into its own clip. Individual segment
// failures are skipped so one bad cut does not lose the rest of the talk;
// cancellation and an all-failed outcome still abort.
func (r *Renderer) cutSegments(ctx context.Context, req Request, segments []interval.Span, scratch string) ([]string, error) {
	n := len(segments)
	span := segmentWindowHi - segmentWindowLo
	clips := make([]string, 0, n)
	var failed int
	var lastErr error

	for i, seg := range segments {
		clip := filepath.Join(scratch, fmt.Sprintf("segment_%03d.mp4", i))
		job := ffmpeg.Job{
			Args:     ffmpeg.CutSegmentArgs(req.Source, seg, clip),
			Duration: seg.Duration(),
			Window: ffmpeg.Window{
				Lo: segmentWindowLo + span*float64(i)/float64(n),
				Hi: segmentWindowLo + span*float64(i+1)/float64(n),
			},
			Stage:   progress.StageRendering,
			Details: fmt.Sprintf("Cutting segment %d/%d", i+1, n),
			Token:   req.Token,
			Sink:    req.Sink,
		}
		if err := r.runner.Run(ctx, job); err != nil {
			if errors.Is(err, services.ErrCancelled) {
				return nil, err
			}
			r.logger.Warn("segment cut failed, skipping",
				logging.Int("segment", i),
				logging.Float64("start", seg.Start),
				logging.Float64("end", seg.End),
				logging.Error(err))
			failed++
			lastErr = err
			continue
		}
		clips = append(clips, clip)
	}

	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, string(progress.StageRendering), "render",
			fmt.Sprintf("all %d segments failed to encode", failed), lastErr)
	}
	if failed > 0 {
		r.logger.Warn("rendered with missing segments", logging.Int("failed", failed), logging.Int("kept", len(clips)))
	}
	return clips, nil
}

func (r *Renderer) join(ctx context.Context, req Request, segments []interval.Span, clips []string, scratch, dest string) error {
	listPath := filepath.Join(scratch, "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(clips)), 0o644); err != nil {
		return services.Wrap(services.ErrIO, string(progress.StageRendering), "render", "write concat list", err)
	}

	job := ffmpeg.Job{
		Args:     ffmpeg.ConcatArgs(listPath, dest),
		Duration: interval.TotalDuration(segments),
		Window:   ffmpeg.Window{Lo: joinWindowLo, Hi: joinWindowHi},
		Stage:    progress.StageRendering,
		Details:  "Joining segments",
		Token:    req.Token,
		Sink:     req.Sink,
	}
	return r.runner.Run(ctx, job)
}

// sanitize orders the intervals and removes overlap so concat input is
// strictly sequential. An interval starting inside its predecessor is clamped
// to begin where the predecessor ends; intervals emptied by clamping drop out.
func sanitize(segments []interval.Span) []interval.Span {
	if len(segments) == 0 {
		return nil
	}
	sorted := make([]interval.Span, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := sorted[:0]
	prevEnd := 0.0
	for _, seg := range sorted {
		if seg.Start < prevEnd {
			seg.Start = prevEnd
		}
		if seg.End <= seg.Start {
			continue
		}
		out = append(out, seg)
		prevEnd = seg.End
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// concatList renders the ffmpeg concat demuxer file. Single quotes inside a
// quoted path are escaped as '\''.
func concatList(clips []string) string {
	var b strings.Builder
	for _, clip := range clips {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(clip, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func outputPath(dir, source, ext string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_processed"+ext)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
