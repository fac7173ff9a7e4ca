// Package transcript acquires timestamped transcripts for referenced videos.
// Acquisition tries a chain of sources in fixed order, from cheapest to most
// expensive, and degrades gracefully when a video yields nothing.
package transcript

import (
	"fmt"
	"net/url"
	"strings"

	"clipper/internal/services"
	"clipper/internal/textutil"
)

// Video is a reference to one video mentioned by the input thread.
// Index is the position in the submitted list and identifies the video in
// results even when two references point at the same URL.
type Video struct {
	Index    int    `json:"index"`
	URL      string `json:"url"`
	ID       string `json:"id"`
	Platform string `json:"platform"`
}

// Segment is one timestamped span of transcript text.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the acquired transcript for one video reference.
type Transcript struct {
	VideoID  string    `json:"video_id"`
	URL      string    `json:"url"`
	Platform string    `json:"platform"`
	Method   string    `json:"method"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// FullText joins all segment texts with single spaces.
func (t *Transcript) FullText() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// ParseVideoRef validates a raw video URL and resolves its platform identity.
func ParseVideoRef(index int, rawURL string) (Video, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Video{}, services.Wrap(services.ErrInput, "transcript", "parse-ref",
			fmt.Sprintf("invalid video url %q", rawURL), err)
	}

	video := Video{Index: index, URL: rawURL}
	if id := youtubeID(parsed); id != "" {
		video.ID = id
		video.Platform = "youtube"
		return video, nil
	}
	video.ID = textutil.SanitizeFileName(parsed.Host + parsed.Path)
	video.Platform = "web"
	return video, nil
}

// youtubeID extracts the canonical video ID from the URL forms YouTube serves.
func youtubeID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		return firstPathPart(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return firstPathPart(strings.TrimPrefix(u.Path, prefix))
			}
		}
	}
	return ""
}

func firstPathPart(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
