package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newClipCommand(ctx *commandContext) *cobra.Command {
	var start, end float64
	var sessionID string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "clip <video-url>",
		Short: "Cut a single clip synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if end <= start {
				return fmt.Errorf("--end (%.2f) must be after --start (%.2f)", end, start)
			}

			body := map[string]any{
				"video_url":  args[0],
				"start":      start,
				"end":        end,
				"session_id": sessionID,
			}
			resp, err := ctx.postRaw(cmd.Context(), "/api/clip", body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = suggestedFileName(resp, "clip.mp4")
			}
			file, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer file.Close()

			written, err := io.Copy(file, resp.Body)
			if err != nil {
				return fmt.Errorf("write clip: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Clip start in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "Clip end in seconds")
	cmd.Flags().StringVar(&sessionID, "session", "", "Credential session ID")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: server-suggested name)")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func suggestedFileName(resp *http.Response, fallback string) string {
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := filepath.Base(params["filename"]); name != "" && name != "." {
				return name
			}
		}
	}
	return fallback
}
