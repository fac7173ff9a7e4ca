package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state and results of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job jobs.Job
			if err := ctx.getJSON(cmd.Context(), "/api/jobs/"+args[0], &job); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoded, err := json.MarshalIndent(job, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(encoded))
				return nil
			}

			fmt.Fprintf(out, "Job:      %s\n", job.ID)
			fmt.Fprintf(out, "Status:   %s\n", job.Status)
			fmt.Fprintf(out, "Progress: %.0f%% (%s)\n", job.Progress, job.Message)
			if job.Error != "" {
				fmt.Fprintf(out, "Error:    [%s] %s\n", job.ErrorKind, job.Error)
			}
			if job.Result != nil {
				fmt.Fprintln(out, renderJobResult(&job))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw job document")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status map[string]any
			if err := ctx.getJSON(cmd.Context(), "/api/health", &status); err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}
