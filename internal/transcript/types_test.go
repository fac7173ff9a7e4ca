package transcript

import (
	"errors"
	"testing"

	"clipper/internal/services"
)

func TestParseVideoRefYouTubeForms(t *testing.T) {
	cases := []struct {
		url string
		id  string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ?start=10", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ/", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		video, err := ParseVideoRef(0, tc.url)
		if err != nil {
			t.Fatalf("ParseVideoRef(%q) failed: %v", tc.url, err)
		}
		if video.ID != tc.id {
			t.Errorf("ParseVideoRef(%q): expected id %q, got %q", tc.url, tc.id, video.ID)
		}
		if video.Platform != "youtube" {
			t.Errorf("ParseVideoRef(%q): expected youtube platform, got %q", tc.url, video.Platform)
		}
	}
}

func TestParseVideoRefNonYouTube(t *testing.T) {
	video, err := ParseVideoRef(2, "https://example.com/media/talk.mp4")
	if err != nil {
		t.Fatalf("ParseVideoRef failed: %v", err)
	}
	if video.Platform != "web" {
		t.Fatalf("expected web platform, got %q", video.Platform)
	}
	if video.Index != 2 || video.ID == "" {
		t.Fatalf("unexpected video ref: %+v", video)
	}
}

func TestParseVideoRefRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/path"} {
		if _, err := ParseVideoRef(0, raw); !errors.Is(err, services.ErrInput) {
			t.Errorf("ParseVideoRef(%q): expected ErrInput, got %v", raw, err)
		}
	}
}

func TestFullTextJoinsSegments(t *testing.T) {
	tr := &Transcript{Segments: []Segment{
		{Text: " hello "},
		{Text: ""},
		{Text: "world"},
	}}
	if got := tr.FullText(); got != "hello world" {
		t.Fatalf("FullText: expected %q, got %q", "hello world", got)
	}
}
