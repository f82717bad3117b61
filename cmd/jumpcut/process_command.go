package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"jumpcut/internal/logging"
	"jumpcut/internal/metrics"
	"jumpcut/internal/progress"
	"jumpcut/internal/project"
	"jumpcut/internal/services"
)

// newProcessCommand runs the full pipeline locally, without the daemon.
func newProcessCommand(cmdCtx *commandContext) *cobra.Command {
	var gapFlag float64
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Remove silence from a recording and write the cut next to your outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if gapFlag > 0 {
				cfg.VAD.GapThreshold = gapFlag
			}
			if outputFlag != "" {
				cfg.Paths.OutputDir = outputFlag
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			// Keep the console quiet so the progress bar stays readable;
			// full detail still lands in the log file.
			cfg.Logging.Level = "warn"
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := project.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			manager := project.NewManager(cfg, store, metrics.New(), logger)
			run, err := manager.Analyze(source, true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				run.Cancel()
			}()

			watchRun(run)

			if err := run.Err(); err != nil {
				if errors.Is(err, services.ErrCancelled) {
					return errors.New("processing cancelled")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %s\n", run.OutputPath())
			return nil
		},
	}

	cmd.Flags().Float64Var(&gapFlag, "gap", 0, "Silence gap threshold in seconds (overrides config)")
	cmd.Flags().StringVarP(&outputFlag, "output-dir", "o", "", "Directory for the processed file")
	return cmd
}

type runWatcher interface {
	Subscribe() (<-chan progress.Event, func())
	Done() <-chan struct{}
}

// watchRun renders progress to the terminal: an interactive bar on a TTY,
// plain stage lines otherwise.
func watchRun(run runWatcher) {
	events, unsubscribe := run.Subscribe()
	defer unsubscribe()

	interactive := isatty.IsTerminal(os.Stderr.Fd())
	var bar *progressbar.ProgressBar
	if interactive {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	lastStage := progress.Stage("")
	for {
		select {
		case evt := <-events:
			if interactive {
				if evt.Stage != lastStage {
					bar.Describe(string(evt.Stage))
				}
				_ = bar.Set(int(evt.Percent))
			} else if evt.Stage != lastStage {
				fmt.Fprintf(os.Stderr, "%s: %s\n", evt.Stage, evt.Details)
			}
			lastStage = evt.Stage
		case <-run.Done():
			if interactive {
				_ = bar.Finish()
			}
			return
		}
	}
}
