package transcript

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// commandRunner executes an external tool and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// botCheckSignatures mark downloader output that indicates the platform is
// challenging our client identity rather than reporting a real failure.
var botCheckSignatures = []string{
	"sign in to confirm you're not a bot",
	"confirm you are not a robot",
	"consent.youtube.com",
	"http error 429",
}

func isBotCheck(output string) bool {
	lowered := strings.ToLower(output)
	for _, sig := range botCheckSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	return false
}

// alternateClientArgs asks the extractor to present a different player client,
// which clears most bot challenges without credentials.
var alternateClientArgs = []string{"--extractor-args", "youtube:player_client=android"}

// runYtdlp runs yt-dlp once, and once more with an alternate client identity
// when the output looks like a bot challenge.
func runYtdlp(ctx context.Context, run commandRunner, binary string, args []string) ([]byte, error) {
	output, err := run(ctx, binary, args...)
	if err == nil {
		return output, nil
	}
	if !isBotCheck(string(output) + err.Error()) {
		return output, err
	}
	retryArgs := append(append([]string{}, alternateClientArgs...), args...)
	return run(ctx, binary, retryArgs...)
}
