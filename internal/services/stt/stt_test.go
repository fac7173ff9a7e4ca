package stt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"

	"clipper/internal/logging"
	"clipper/internal/services"
)

type fakeAPI struct {
	resp openai.AudioResponse
	err  error
	got  openai.AudioRequest
}

func (f *fakeAPI) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.got = req
	return f.resp, f.err
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeMapsSegments(t *testing.T) {
	var resp openai.AudioResponse
	raw := `{
		"duration": 12.5,
		"language": "english",
		"segments": [
			{"start": 0, "end": 4.2, "text": "hello there"},
			{"start": 4.2, "end": 9.8, "text": "general remarks"}
		]
	}`
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("build response: %v", err)
	}
	api := &fakeAPI{resp: resp}
	client := NewClientWithAPI(api, "whisper-1", logging.NewNop())

	result, err := client.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Segments[1].Text != "general remarks" || result.Segments[1].End != 9.8 {
		t.Fatalf("unexpected segment mapping: %+v", result.Segments[1])
	}
	if api.got.Format != openai.AudioResponseFormatVerboseJSON {
		t.Fatalf("expected verbose json format, got %q", api.got.Format)
	}
}

func TestTranscribeMissingFileIsAcquisitionError(t *testing.T) {
	client := NewClientWithAPI(&fakeAPI{}, "whisper-1", logging.NewNop())
	_, err := client.Transcribe(context.Background(), "/nonexistent/audio.mp3")
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected ErrAcquisition, got %v", err)
	}
}

func TestTranscribeAPIErrorIsAcquisitionError(t *testing.T) {
	client := NewClientWithAPI(&fakeAPI{err: errors.New("boom")}, "whisper-1", logging.NewNop())
	_, err := client.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected ErrAcquisition, got %v", err)
	}
}
