package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clipper/internal/jobs"
	"clipper/internal/logging"
	"clipper/internal/matching"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/testsupport"
	"clipper/internal/thread"
	"clipper/internal/transcript"
)

type fakeAcquirer struct {
	mu       sync.Mutex
	fail     map[string]bool
	acquired []string
}

func (f *fakeAcquirer) Acquire(_ context.Context, video transcript.Video) (*transcript.Transcript, error) {
	f.mu.Lock()
	f.acquired = append(f.acquired, video.ID)
	f.mu.Unlock()
	if f.fail[video.ID] {
		return nil, services.Wrap(services.ErrAcquisition, "transcript", "acquire", "all sources failed", nil)
	}
	return &transcript.Transcript{
		VideoID:  video.ID,
		Segments: []transcript.Segment{{Start: 0, End: 10, Text: "transcript for " + video.ID}},
	}, nil
}

type fakeMatcher struct {
	matches []matching.Match
	err     error
}

func (f *fakeMatcher) Match(_ context.Context, _ []thread.Segment, _ []matching.Source) ([]matching.Match, error) {
	return f.matches, f.err
}

type fakeRetriever struct {
	called bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string, matches []matching.Match) []matching.Match {
	f.called = true
	for i := range matches {
		matches[i].ClipPath = "/clips/" + matches[i].SegmentID + ".mp4"
	}
	return matches
}

func newTestProcessor(t *testing.T, acquirer Acquirer, matcher Matcher, retriever Retriever) (*Processor, jobs.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := jobs.NewMemoryStore(time.Hour, logging.NewNop())
	t.Cleanup(func() { store.Close() })
	notifier := notifications.NewService(cfg)
	return NewProcessor(cfg, store, acquirer, matcher, retriever, notifier, logging.NewNop()), store
}

func waitForTerminal(t *testing.T, store jobs.Store, jobID string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job != nil && job.Status != jobs.StatusProcessing {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func validRequest() Request {
	return Request{
		ThreadText: "Hook\n---\nTweet one\n---\nTweet two",
		VideoURLs:  []string{"https://youtu.be/vidA1234567", "https://youtu.be/vidB1234567"},
	}
}

func TestSubmitRejectsInvalidInputWithoutCreatingJob(t *testing.T) {
	processor, _ := newTestProcessor(t, &fakeAcquirer{}, &fakeMatcher{}, &fakeRetriever{})

	cases := []Request{
		{ThreadText: "---", VideoURLs: []string{"https://youtu.be/vidA1234567"}},
		{ThreadText: "Hook\n---\nTweet", VideoURLs: nil},
		{ThreadText: "Hook\n---\nTweet", VideoURLs: []string{"not a url"}},
	}
	for i, req := range cases {
		if _, err := processor.Submit(context.Background(), req); !errors.Is(err, services.ErrInput) {
			t.Errorf("case %d: expected ErrInput, got %v", i, err)
		}
	}
}

func TestSubmitRunsFullPipeline(t *testing.T) {
	match := matching.Match{SegmentID: "segment-1", SegmentOrdinal: 1, VideoID: "vidA1234567", Start: 2, End: 8, Confidence: 0.9, Quality: "excellent"}
	retriever := &fakeRetriever{}
	processor, store := newTestProcessor(t,
		&fakeAcquirer{}, &fakeMatcher{matches: []matching.Match{match}}, retriever)

	req := validRequest()
	req.RetrieveClips = true
	job, err := processor.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != jobs.StatusProcessing {
		t.Fatalf("new job should be processing, got %q", job.Status)
	}

	final := waitForTerminal(t, store, job.ID)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completion, got %q (%s)", final.Status, final.Error)
	}
	if final.Progress != 100 {
		t.Fatalf("expected progress 100, got %f", final.Progress)
	}
	if !retriever.called {
		t.Fatal("retriever should run when clips are requested")
	}
	if final.Result == nil {
		t.Fatal("completed job must carry a result")
	}
	summary := final.Result.Summary
	if summary.Segments != 2 || summary.Videos != 2 || summary.Transcribed != 2 || summary.Matched != 1 || summary.ClipsRetrieved != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.AvgConfidence != 0.9 {
		t.Fatalf("expected avg confidence 0.9, got %f", summary.AvgConfidence)
	}
	if summary.ProcessingSeconds <= 0 {
		t.Fatalf("expected positive processing time, got %f", summary.ProcessingSeconds)
	}
	if final.Result.Matches[0].ClipPath == "" {
		t.Fatal("match should carry its clip path")
	}
}

func TestSubmitSkipsRetrievalWhenNotRequested(t *testing.T) {
	retriever := &fakeRetriever{}
	processor, store := newTestProcessor(t,
		&fakeAcquirer{},
		&fakeMatcher{matches: []matching.Match{{SegmentID: "segment-1"}}},
		retriever)

	job, err := processor.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	final := waitForTerminal(t, store, job.ID)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completion, got %q", final.Status)
	}
	if retriever.called {
		t.Fatal("retriever must not run unless requested")
	}
}

func TestPartialTranscriptFailureDegradesGracefully(t *testing.T) {
	acquirer := &fakeAcquirer{fail: map[string]bool{"vidA1234567": true}}
	processor, store := newTestProcessor(t, acquirer,
		&fakeMatcher{matches: []matching.Match{{SegmentID: "segment-1", VideoID: "vidB1234567"}}},
		&fakeRetriever{})

	job, err := processor.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	final := waitForTerminal(t, store, job.ID)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("one failed video must not fail the job, got %q (%s)", final.Status, final.Error)
	}
	if final.Result.Summary.Transcribed != 1 {
		t.Fatalf("expected 1 transcribed video, got %d", final.Result.Summary.Transcribed)
	}
}

func TestAllTranscriptsFailedCompletesWithZeroMatches(t *testing.T) {
	acquirer := &fakeAcquirer{fail: map[string]bool{"vidA1234567": true, "vidB1234567": true}}
	processor, store := newTestProcessor(t, acquirer, &fakeMatcher{}, &fakeRetriever{})

	job, err := processor.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	final := waitForTerminal(t, store, job.ID)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("unusable videos must not fail the job, got %q (%s)", final.Status, final.Error)
	}
	if final.Result == nil {
		t.Fatal("completed job must carry a result")
	}
	summary := final.Result.Summary
	if summary.Transcribed != 0 || summary.Matched != 0 || summary.Videos != 2 {
		t.Fatalf("summary must report the unusable videos: %+v", summary)
	}
}

func TestMatchingFailureDegradesToZeroMatches(t *testing.T) {
	processor, store := newTestProcessor(t, &fakeAcquirer{},
		&fakeMatcher{err: services.Wrap(services.ErrMatching, "matching", "match", "all scoring batches failed", nil)},
		&fakeRetriever{})

	job, err := processor.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	final := waitForTerminal(t, store, job.ID)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("a matching failure must degrade, not abort, got %q (%s)", final.Status, final.Error)
	}
	if final.Result == nil || final.Result.Summary.Matched != 0 {
		t.Fatalf("expected a result with zero matches, got %+v", final.Result)
	}
}

// stallingAcquirer blocks until the job context expires.
type stallingAcquirer struct{}

func (stallingAcquirer) Acquire(ctx context.Context, _ transcript.Video) (*transcript.Transcript, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWallClockOverrunClassifiedAsTimeout(t *testing.T) {
	processor, store := newTestProcessor(t, stallingAcquirer{}, &fakeMatcher{}, &fakeRetriever{})
	processor.wallClock = 50 * time.Millisecond

	job, err := processor.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	final := waitForTerminal(t, store, job.ID)
	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failure after wall-clock overrun, got %q", final.Status)
	}
	if final.ErrorKind != "timeout" {
		t.Fatalf("wall-clock overrun must classify as timeout, got %q (%s)", final.ErrorKind, final.Error)
	}
}

func TestAcquisitionFanOutCoversAllVideos(t *testing.T) {
	acquirer := &fakeAcquirer{}
	processor, store := newTestProcessor(t, acquirer, &fakeMatcher{}, &fakeRetriever{})

	job, err := processor.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForTerminal(t, store, job.ID)

	acquirer.mu.Lock()
	defer acquirer.mu.Unlock()
	if len(acquirer.acquired) != 2 {
		t.Fatalf("expected 2 acquisitions, got %v", acquirer.acquired)
	}
}
