package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipper/internal/jobs"
	"clipper/internal/orchestrator"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var threadFile string
	var videoURLs []string
	var sessionID string
	var retrieveClips bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a thread for matching against videos",
		Long: "Submit reads the thread text from --thread-file (or stdin when omitted)\n" +
			"and starts an asynchronous matching job against the given videos.",
		RunE: func(cmd *cobra.Command, args []string) error {
			threadText, err := readThreadText(threadFile)
			if err != nil {
				return err
			}

			req := orchestrator.Request{
				ThreadText:    threadText,
				VideoURLs:     videoURLs,
				SessionID:     sessionID,
				RetrieveClips: retrieveClips,
			}
			var job jobs.Job
			if err := ctx.postJSON(cmd.Context(), "/api/jobs", req, &job); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s accepted\n", job.ID)
			if !wait {
				fmt.Fprintf(out, "Poll with: clipper status %s\n", job.ID)
				return nil
			}
			return pollUntilDone(cmd, ctx, job.ID)
		},
	}

	cmd.Flags().StringVarP(&threadFile, "thread-file", "f", "", "File containing the delimiter-separated thread text")
	cmd.Flags().StringArrayVarP(&videoURLs, "video", "v", nil, "Video URL (repeatable)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Credential session ID from 'clipper credentials'")
	cmd.Flags().BoolVar(&retrieveClips, "clips", false, "Also download and cut clips for matches")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func readThreadText(threadFile string) (string, error) {
	if strings.TrimSpace(threadFile) == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read thread from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(threadFile)
	if err != nil {
		return "", fmt.Errorf("read thread file: %w", err)
	}
	return string(data), nil
}

func pollUntilDone(cmd *cobra.Command, ctx *commandContext, jobID string) error {
	out := cmd.OutOrStdout()
	lastMessage := ""
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(2 * time.Second):
		}

		var job jobs.Job
		if err := ctx.getJSON(cmd.Context(), "/api/jobs/"+jobID, &job); err != nil {
			return err
		}
		if job.Message != lastMessage {
			fmt.Fprintf(out, "[%3.0f%%] %s\n", job.Progress, job.Message)
			lastMessage = job.Message
		}
		switch job.Status {
		case jobs.StatusCompleted:
			fmt.Fprintln(out, renderJobResult(&job))
			return nil
		case jobs.StatusFailed:
			return fmt.Errorf("job failed (%s): %s", job.ErrorKind, job.Error)
		}
	}
}
