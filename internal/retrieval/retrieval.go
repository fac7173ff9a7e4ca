// Package retrieval turns matches into clip files. Each referenced video is
// downloaded once into a per-job scratch directory, every match against it is
// cut from that single download, and the scratch files are removed whether or
// not the cuts succeed.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/credentials"
	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/matching"
	"clipper/internal/services"
	"clipper/internal/textutil"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// authFailureSignatures mark downloader output caused by missing or rejected
// credentials rather than an unavailable video.
var authFailureSignatures = []string{
	"sign in to confirm",
	"login required",
	"private video",
	"members-only",
	"this video is available to this channel's members",
	"http error 403",
	"cookies are no longer valid",
}

func isAuthFailure(output string) bool {
	lowered := strings.ToLower(output)
	for _, sig := range authFailureSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	return false
}

// Pipeline downloads source videos and cuts clips from them.
type Pipeline struct {
	ytdlp           string
	ffmpeg          string
	scratchDir      string
	clipDir         string
	downloadTimeout time.Duration
	cutTimeout      time.Duration
	creds           *credentials.Store
	run             commandRunner
	logger          *slog.Logger
}

// NewPipeline builds the clip retrieval pipeline.
func NewPipeline(cfg *config.Config, creds *credentials.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		ytdlp:           cfg.YtdlpBinary(),
		ffmpeg:          cfg.FFmpegBinary(),
		scratchDir:      cfg.Paths.ScratchDir,
		clipDir:         cfg.Paths.ClipDir,
		downloadTimeout: time.Duration(cfg.Retrieval.DownloadTimeoutSeconds) * time.Second,
		cutTimeout:      time.Duration(cfg.Retrieval.CutTimeoutSeconds) * time.Second,
		creds:           creds,
		run:             defaultCommandRunner,
		logger:          logging.WithComponent(logger, "retrieval"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *Pipeline) WithCommandRunner(run commandRunner) {
	p.run = run
}

// Retrieve cuts a clip for every match. The returned slice is the input in
// the same order, with ClipPath set on successes and ClipError on failures.
// One failed cut never blocks the others, and a failed video download fails
// only the matches against that video.
func (p *Pipeline) Retrieve(ctx context.Context, jobID, sessionID string, matches []matching.Match) []matching.Match {
	if len(matches) == 0 {
		return matches
	}

	scratch, err := fileutil.JobScratchDir(p.scratchDir, jobID)
	if err != nil {
		for i := range matches {
			matches[i].ClipError = err.Error()
		}
		return matches
	}
	defer os.RemoveAll(scratch)

	if err := fileutil.EnsureDir(p.clipDir); err != nil {
		for i := range matches {
			matches[i].ClipError = err.Error()
		}
		return matches
	}

	// Group match positions by video so each video downloads exactly once.
	groups := make(map[string][]int)
	var order []string
	for i, match := range matches {
		key := match.VideoURL
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, videoURL := range order {
		indexes := groups[videoURL]
		sourcePath, err := p.download(ctx, videoURL, matches[indexes[0]].VideoID, sessionID, scratch)
		if err != nil {
			p.logger.Warn("video download failed",
				logging.String("job_id", jobID),
				logging.String("url", videoURL),
				logging.Error(err))
			for _, i := range indexes {
				matches[i].ClipError = err.Error()
			}
			continue
		}
		for _, i := range indexes {
			clipPath, err := p.cut(ctx, sourcePath, scratch, matches[i])
			if err != nil {
				p.logger.Warn("clip cut failed",
					logging.String("job_id", jobID),
					logging.String("segment", matches[i].SegmentID),
					logging.Error(err))
				matches[i].ClipError = err.Error()
				continue
			}
			matches[i].ClipPath = clipPath
		}
	}
	return matches
}

// CutClip downloads one video and cuts a single span from it, for the
// synchronous clip endpoint. The clip lands in the clip directory.
func (p *Pipeline) CutClip(ctx context.Context, sessionID, videoURL, videoID string, start, end float64) (string, error) {
	if end <= start {
		return "", services.Wrap(services.ErrInput, "retrieval", "cut-clip",
			fmt.Sprintf("end %.2f must be after start %.2f", end, start), nil)
	}

	scratch, err := fileutil.JobScratchDir(p.scratchDir, "clip")
	if err != nil {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "cut-clip", "create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	if err := fileutil.EnsureDir(p.clipDir); err != nil {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "cut-clip", "create clip directory", err)
	}

	sourcePath, err := p.download(ctx, videoURL, videoID, sessionID, scratch)
	if err != nil {
		return "", err
	}
	return p.cut(ctx, sourcePath, scratch, matching.Match{
		VideoID: videoID,
		Start:   start,
		End:     end,
	})
}

// download fetches the video once, retrying a single time with an alternate
// credential when the failure looks like an authentication problem.
func (p *Pipeline) download(ctx context.Context, videoURL, videoID, sessionID, scratch string) (string, error) {
	resolved := p.creds.Resolve(sessionID)
	p.logger.Info("downloading video",
		logging.String("url", videoURL),
		logging.String("credential_source", string(resolved.Source)))

	path, output, err := p.runDownload(ctx, videoURL, videoID, resolved, scratch)
	if err == nil {
		return path, nil
	}
	if !isAuthFailure(output + err.Error()) {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "download", "video download failed", err)
	}

	alternate, ok := p.creds.Alternate(resolved)
	if !ok {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "download",
			fmt.Sprintf("authentication failed with %s credentials and no alternate is available", resolved.Source), err)
	}
	p.logger.Info("retrying download with alternate credentials",
		logging.String("url", videoURL),
		logging.String("credential_source", string(alternate.Source)))

	path, _, err = p.runDownload(ctx, videoURL, videoID, alternate, scratch)
	if err != nil {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "download", "video download failed after credential retry", err)
	}
	return path, nil
}

func (p *Pipeline) runDownload(ctx context.Context, videoURL, videoID string, creds credentials.Resolved, scratch string) (string, string, error) {
	if p.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.downloadTimeout)
		defer cancel()
	}

	outputTemplate := filepath.Join(scratch, "source-"+textutil.SanitizeFileName(videoID)+".%(ext)s")
	args := []string{
		"--no-playlist",
		"--format", "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b",
		"--merge-output-format", "mp4",
		"--output", outputTemplate,
	}
	if creds.Path != "" {
		args = append(args, "--cookies", creds.Path)
	}
	args = append(args, videoURL)

	output, err := p.run(ctx, p.ytdlp, args...)
	if err != nil {
		return "", string(output), err
	}

	matches, globErr := filepath.Glob(filepath.Join(scratch, "source-"+textutil.SanitizeFileName(videoID)+".*"))
	if globErr != nil || len(matches) == 0 {
		return "", string(output), fmt.Errorf("downloader produced no file")
	}
	return matches[0], string(output), nil
}

// cut re-encodes the span into a standalone mp4 in the clip directory.
// Re-encoding keeps cuts frame-accurate at arbitrary timestamps.
func (p *Pipeline) cut(ctx context.Context, sourcePath, scratch string, match matching.Match) (string, error) {
	if p.cutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cutTimeout)
		defer cancel()
	}

	name := clipFileName(match)
	scratchClip := filepath.Join(scratch, name)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(match.Start),
		"-to", formatSeconds(match.End),
		"-i", sourcePath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		scratchClip,
	}
	if _, err := p.run(ctx, p.ffmpeg, args...); err != nil {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "cut", "ffmpeg cut failed", err)
	}

	finalPath := filepath.Join(p.clipDir, name)
	if err := fileutil.CopyFileVerified(scratchClip, finalPath); err != nil {
		return "", services.Wrap(services.ErrRetrieval, "retrieval", "cut", "publish clip", err)
	}
	return finalPath, nil
}

func clipFileName(match matching.Match) string {
	base := fmt.Sprintf("%s_%d-%d", match.VideoID, int(match.Start), int(match.End))
	if match.SegmentOrdinal > 0 {
		base = fmt.Sprintf("%02d_%s", match.SegmentOrdinal, base)
	}
	return textutil.SanitizeFileName(base) + ".mp4"
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
