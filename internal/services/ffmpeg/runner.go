// Package ffmpeg wraps the external media tool behind a progress-aware
// process runner. Commands are launched with "-progress pipe:1" so ffmpeg
// reports key=value progress lines on stdout; the runner maps observed media
// time into a caller-supplied slice of the overall run and terminates the
// child promptly on cancellation.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"jumpcut/internal/cancellation"
	"jumpcut/internal/progress"
	"jumpcut/internal/services"
)

// stderrTailLimit bounds the captured diagnostic text on failure.
const stderrTailLimit = 2000

// etaFloor is the media fraction below which ETA extrapolation is too noisy
// to report.
const etaFloor = 0.01

// Window is the slice of the overall 0-100 progress timeline a single
// command occupies.
type Window struct {
	Lo float64
	Hi float64
}

// Map converts a media fraction in [0,1] into the window's percent range.
func (w Window) Map(fraction float64) float64 {
	fraction = progress.Clamp(fraction, 0, 1)
	return w.Lo + fraction*(w.Hi-w.Lo)
}

// Job describes one ffmpeg invocation driven by the runner.
type Job struct {
	// Args are the full ffmpeg arguments; builders in this package already
	// include the progress pipe flags.
	Args []string
	// Duration is the media-time denominator for progress fractions.
	Duration float64
	Window   Window
	Stage    progress.Stage
	// Details prefixes the emitted progress message, e.g. "Extracting audio".
	Details string
	Token   *cancellation.Token
	Sink    progress.Sink
}

// Runner launches ffmpeg commands. The zero value uses "ffmpeg" from PATH.
type Runner struct {
	Binary string
}

func (r *Runner) binary() string {
	if r == nil || strings.TrimSpace(r.Binary) == "" {
		return "ffmpeg"
	}
	return strings.TrimSpace(r.Binary)
}

// Run executes the job to completion, emitting one progress event per
// observed out_time line. On cancellation the child is terminated and
// services.ErrCancelled is returned; a non-zero exit otherwise fails with
// the stderr tail as diagnostic detail.
func (r *Runner) Run(ctx context.Context, job Job) error {
	if len(job.Args) == 0 {
		return services.Wrap(services.ErrExternalTool, string(job.Stage), "ffmpeg", "no arguments", nil)
	}
	if job.Token.Cancelled() {
		return services.Wrap(services.ErrCancelled, string(job.Stage), "ffmpeg", "cancelled before start", nil)
	}

	cmd := exec.CommandContext(ctx, r.binary(), job.Args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	tail := newTailWriter(stderrTailLimit)
	cmd.Stderr = tail
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, string(job.Stage), "ffmpeg", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, string(job.Stage), "ffmpeg", "start", err)
	}

	job.Token.Attach(cmd.Process)
	defer job.Token.Detach()

	streamErr := consumeProgress(stdout, job, time.Now(), func() { terminateGroup(cmd.Process) })
	waitErr := cmd.Wait()

	// A non-zero exit after cancellation was requested is still reported as
	// cancelled, never as a processing error.
	if job.Token.Cancelled() || errors.Is(streamErr, services.ErrCancelled) {
		return services.Wrap(services.ErrCancelled, string(job.Stage), "ffmpeg", "cancelled by user", nil)
	}
	if streamErr != nil {
		return streamErr
	}
	if waitErr != nil {
		detail := strings.TrimSpace(tail.Tail())
		if detail == "" {
			detail = "no stderr output captured"
		}
		return services.Wrap(services.ErrExternalTool, string(job.Stage), "ffmpeg", detail, waitErr)
	}
	return nil
}

// consumeProgress reads the child's progress stream line by line. Lines of
// the form key=value carry the protocol; only out_time matters here, and
// malformed or N/A values are skipped rather than treated as fatal.
func consumeProgress(reader io.Reader, job Job, startedAt time.Time, kill func()) error {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		if job.Token.Cancelled() {
			if kill != nil {
				kill()
			}
			return services.Wrap(services.ErrCancelled, string(job.Stage), "ffmpeg", "cancelled by user", nil)
		}
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "out_time" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" || value == "N/A" {
			continue
		}
		elapsedMedia := progress.ParseClock(value)
		if job.Duration <= 0 {
			continue
		}
		fraction := progress.Clamp(elapsedMedia/job.Duration, 0, 1)
		eta := -1.0
		if fraction > etaFloor {
			elapsed := time.Since(startedAt).Seconds()
			eta = elapsed / fraction * (1 - fraction)
		}
		job.Sink.Emit(
			job.Stage,
			job.Window.Map(fraction),
			fmt.Sprintf("%s... %d%%", job.Details, int(fraction*100)),
			eta,
		)
	}
	if err := scanner.Err(); err != nil {
		return services.Wrap(services.ErrExternalTool, string(job.Stage), "ffmpeg", "read progress stream", err)
	}
	return nil
}

func terminateGroup(proc *os.Process) {
	if proc == nil || proc.Pid <= 0 {
		return
	}
	if err := unix.Kill(-proc.Pid, unix.SIGTERM); err != nil {
		_ = proc.Signal(unix.SIGTERM)
	}
}
