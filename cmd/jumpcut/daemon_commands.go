package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"jumpcut/internal/interval"
)

func newAnalyzeCommand(cmdCtx *commandContext) *cobra.Command {
	var autoRender bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Submit a file to the daemon for speech analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			var resp struct {
				ID string `json:"id"`
			}
			payload := map[string]any{"source_path": source, "auto_render": autoRender}
			if err := cmdCtx.postJSON("/api/analyze", payload, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoRender, "render", false, "Render immediately instead of pausing after analysis")
	return cmd
}

func newRenderCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render <project-id>",
		Short: "Render a project that is waiting after analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := struct {
				Segments []interval.Span `json:"segments"`
			}{}
			if err := cmdCtx.postJSON("/api/projects/"+args[0]+"/render", payload, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "render started")
			return nil
		},
	}
}

func newCancelCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <project-id>",
		Short: "Cancel a running project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdCtx.postJSON("/api/projects/"+args[0]+"/cancel", struct{}{}, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancellation requested")
			return nil
		},
	}
}
