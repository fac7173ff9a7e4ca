package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newCredentialsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials <cookies-file>",
		Short: "Upload a Netscape cookie file and get a session ID",
		Long: "Credentials uploads platform cookies for downloading restricted videos.\n" +
			"The returned session ID is passed to submit/clip via --session.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read cookies file: %w", err)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				ctx.serverURL()+"/api/credentials", bytes.NewReader(blob))
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("Content-Type", "text/plain")

			resp, err := ctx.client.Do(req)
			if err != nil {
				return fmt.Errorf("contact daemon: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode >= 300 {
				var failure apiError
				if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
					return fmt.Errorf("%s (%s)", failure.Error, failure.Kind)
				}
				return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			var result struct {
				SessionID string `json:"session_id"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session ID: %s\n", result.SessionID)
			return nil
		},
	}
	return cmd
}
