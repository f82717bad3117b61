package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jumpcut/internal/project"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status struct {
				Running      bool   `json:"running"`
				PID          int    `json:"pid"`
				DBPath       string `json:"db_path"`
				LockFilePath string `json:"lock_file_path"`
				ActiveRuns   int    `json:"active_runs"`
			}
			if err := cmdCtx.getJSON("/api/status", &status); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), fieldTable([][2]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Active runs", strconv.Itoa(status.ActiveRuns)},
				{"Database", status.DBPath},
				{"Lock file", status.LockFilePath},
			}))
			return nil
		},
	}
}

func newProjectsCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List recent projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload struct {
				Projects []project.Record `json:"projects"`
			}
			if err := cmdCtx.getJSON("/api/projects", &payload); err != nil {
				return err
			}
			records := payload.Projects
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), projectTable(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of projects to show")
	return cmd
}
