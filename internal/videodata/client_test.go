package videodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
	return nil
}

func testConfig(host string) config.VideoData {
	return config.VideoData{
		APIKey:             "vd-test",
		Host:               host,
		WindowLimit:        3,
		WindowSeconds:      60,
		MinIntervalMS:      0,
		ThrottleRetries:    3,
		RequestTimeoutSecs: 5,
	}
}

func TestReserveNeverExceedsWindowLimit(t *testing.T) {
	clock := newFakeClock()
	client := NewClient(testConfig("http://unused"), logging.NewNop(),
		WithClock(clock.now, clock.sleep))

	var stamps []time.Time
	for i := 0; i < 8; i++ {
		if err := client.reserve(context.Background()); err != nil {
			t.Fatalf("reserve %d failed: %v", i, err)
		}
		stamps = append(stamps, clock.now())
	}

	window := 60 * time.Second
	for i := range stamps {
		inWindow := 0
		for j := 0; j <= i; j++ {
			if stamps[i].Sub(stamps[j]) < window {
				inWindow++
			}
		}
		if inWindow > 3 {
			t.Fatalf("request %d: %d requests inside the rolling window, limit is 3", i, inWindow)
		}
	}
}

func TestReserveEnforcesMinimumSpacing(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig("http://unused")
	cfg.MinIntervalMS = 1500
	client := NewClient(cfg, logging.NewNop(), WithClock(clock.now, clock.sleep))

	if err := client.reserve(context.Background()); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	first := clock.now()
	if err := client.reserve(context.Background()); err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}
	if gap := clock.now().Sub(first); gap < 1500*time.Millisecond {
		t.Fatalf("expected at least 1.5s between requests, got %v", gap)
	}
}

func TestCallRetriesThrottleThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("X-API-Key") != "vd-test" {
			t.Errorf("missing api key header")
		}
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	clock := newFakeClock()
	client := NewClient(testConfig(server.URL), logging.NewNop(),
		WithClock(clock.now, clock.sleep))

	body, err := client.Call(context.Background(), "videos", url.Values{"id": {"abc"}})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", body)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCallSurfacesRateLimitAfterExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	clock := newFakeClock()
	client := NewClient(testConfig(server.URL), logging.NewNop(),
		WithClock(clock.now, clock.sleep))

	_, err := client.Call(context.Background(), "videos", nil)
	if err == nil {
		t.Fatal("expected error after throttle exhaustion")
	}
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestIsThrottleSeesWrappedErrors(t *testing.T) {
	throttled := &throttleError{status: http.StatusTooManyRequests, body: "slow down"}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"bare", throttled, true},
		{"single wrap", fmt.Errorf("call failed: %w", throttled), true},
		{"taxonomy wrap", services.Wrap(services.ErrRateLimited, "videodata", "videos", "throttle retries exhausted", throttled), true},
		{"unrelated", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := isThrottle(tc.err); got != tc.want {
			t.Errorf("%s: isThrottle = %v, expected %v", tc.name, got, tc.want)
		}
	}
}

func TestCallDoesNotRetryHardErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "no such video", http.StatusNotFound)
	}))
	defer server.Close()

	clock := newFakeClock()
	client := NewClient(testConfig(server.URL), logging.NewNop(),
		WithClock(clock.now, clock.sleep))

	if _, err := client.Call(context.Background(), "videos", nil); err == nil {
		t.Fatal("expected error for http 404")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt for a hard error, got %d", calls)
	}
}
