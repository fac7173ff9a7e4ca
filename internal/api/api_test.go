package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/jobs"
	"clipper/internal/logging"
	"clipper/internal/orchestrator"
	"clipper/internal/services"
)

type fakeProcessor struct {
	job       *jobs.Job
	submitErr error
	statusJob *jobs.Job
	gotReq    orchestrator.Request
}

func (f *fakeProcessor) Submit(_ context.Context, req orchestrator.Request) (*jobs.Job, error) {
	f.gotReq = req
	return f.job, f.submitErr
}

func (f *fakeProcessor) Status(_ context.Context, _ string) (*jobs.Job, error) {
	return f.statusJob, nil
}

type fakeCutter struct {
	path string
	err  error
	got  struct {
		start, end float64
		url        string
	}
	called bool
}

func (f *fakeCutter) CutClip(_ context.Context, _ string, videoURL, _ string, start, end float64) (string, error) {
	f.called = true
	f.got.url = videoURL
	f.got.start = start
	f.got.end = end
	return f.path, f.err
}

type fakeSaver struct {
	sessionID string
	err       error
	got       []byte
}

func (f *fakeSaver) Save(blob []byte) (string, error) {
	f.got = blob
	return f.sessionID, f.err
}

func newTestRouter(processor *fakeProcessor, cutter *fakeCutter, saver *fakeSaver) *Router {
	return NewRouter(processor, cutter, saver, nil, logging.NewNop())
}

func TestSubmitJobAccepted(t *testing.T) {
	processor := &fakeProcessor{job: &jobs.Job{ID: "job1", Status: jobs.StatusProcessing}}
	router := newTestRouter(processor, &fakeCutter{}, &fakeSaver{})

	body := `{"thread_text":"Hook\n---\nTweet","video_urls":["https://youtu.be/vidA1234567"],"retrieve_clips":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var job jobs.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != "job1" {
		t.Fatalf("unexpected job %+v", job)
	}
	if !processor.gotReq.RetrieveClips {
		t.Fatal("retrieve_clips flag not forwarded")
	}
}

func TestSubmitJobInputErrorIs400(t *testing.T) {
	processor := &fakeProcessor{submitErr: services.Wrap(services.ErrInput, "thread", "parse", "thread contains no usable segments", nil)}
	router := newTestRouter(processor, &fakeCutter{}, &fakeSaver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs",
		strings.NewReader(`{"thread_text":"---","video_urls":["https://youtu.be/vidA1234567"]}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var payload errorPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Kind != "input_error" {
		t.Fatalf("expected input_error kind, got %q", payload.Kind)
	}
}

func TestGetJobNotFoundIs404(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeCutter{}, &fakeSaver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetJobReturnsState(t *testing.T) {
	router := newTestRouter(&fakeProcessor{statusJob: &jobs.Job{ID: "job1", Status: jobs.StatusCompleted, Progress: 100}}, &fakeCutter{}, &fakeSaver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"completed"`) {
		t.Fatalf("unexpected body %s", rec.Body)
	}
}

func TestCutClipValidatesSpanBeforeCutting(t *testing.T) {
	cutter := &fakeCutter{}
	router := newTestRouter(&fakeProcessor{}, cutter, &fakeSaver{})

	for _, body := range []string{
		`{"video_url":"https://youtu.be/vidA1234567","start":20,"end":10}`,
		`{"video_url":"https://youtu.be/vidA1234567","start":-1,"end":10}`,
		`{"video_url":"https://youtu.be/vidA1234567","start":10,"end":10}`,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clip", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if cutter.called {
		t.Fatal("invalid spans must be rejected before any cutting work")
	}
}

func TestCutClipStreamsFile(t *testing.T) {
	clipPath := filepath.Join(t.TempDir(), "01_vid0_10-20.mp4")
	if err := os.WriteFile(clipPath, []byte("clip-bytes"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	cutter := &fakeCutter{path: clipPath}
	router := newTestRouter(&fakeProcessor{}, cutter, &fakeSaver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clip",
		strings.NewReader(`{"video_url":"https://youtu.be/vidA1234567","start":10,"end":20}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "01_vid0_10-20.mp4") {
		t.Fatalf("content disposition missing filename: %q", got)
	}
	if rec.Body.String() != "clip-bytes" {
		t.Fatalf("unexpected body %q", rec.Body)
	}
	if cutter.got.start != 10 || cutter.got.end != 20 {
		t.Fatalf("span not forwarded: %+v", cutter.got)
	}
}

func TestUploadCredentialsRawBody(t *testing.T) {
	saver := &fakeSaver{sessionID: "session-1"}
	router := newTestRouter(&fakeProcessor{}, &fakeCutter{}, saver)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials",
		strings.NewReader(".youtube.com\tTRUE\t/\tTRUE\t1893456000\tSID\tabc\n")))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "session-1") {
		t.Fatalf("session id missing from response: %s", rec.Body)
	}
	if len(saver.got) == 0 {
		t.Fatal("blob not forwarded to the store")
	}
}

func TestUploadCredentialsMultipart(t *testing.T) {
	saver := &fakeSaver{sessionID: "session-2"}
	router := newTestRouter(&fakeProcessor{}, &fakeCutter{}, saver)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("cookies", "cookies.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(".youtube.com\tTRUE\t/\tTRUE\t1893456000\tSID\tabc\n")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/credentials", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
}

func TestUploadCredentialsInvalidIs400(t *testing.T) {
	saver := &fakeSaver{err: services.Wrap(services.ErrInput, "credentials", "validate", "no cookies found in upload", nil)}
	router := newTestRouter(&fakeProcessor{}, &fakeCutter{}, saver)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials", strings.NewReader("junk")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeProcessor{}, &fakeCutter{}, &fakeSaver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body)
	}
}

func TestRateLimitErrorIs429(t *testing.T) {
	cutter := &fakeCutter{err: services.Wrap(services.ErrRateLimited, "videodata", "transcripts", "throttle retries exhausted", errors.New("http 429"))}
	router := newTestRouter(&fakeProcessor{}, cutter, &fakeSaver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clip",
		strings.NewReader(`{"video_url":"https://youtu.be/vidA1234567","start":1,"end":2}`)))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
