package scrapejob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"reelscope/pkg/config"
	"reelscope/pkg/errors"
	"reelscope/pkg/logger"
)

func testJobConfig() *config.JobConfig {
	return &config.JobConfig{
		MaxPollAttempts:     5,
		PollInterval:        time.Millisecond,
		SampleCeiling:       10,
		MaxRetries:          3,
		RetryDelay:          time.Millisecond,
		AccountFetchFactor:  2,
		AccountFetchCap:     20,
		HashtagFetchFactor:  3,
		HashtagFetchCap:     30,
		LocationFetchFactor: 2,
		LocationFetchCap:    20,
	}
}

func testClient(serverURL string) *Client {
	cfg := &config.Config{
		Scrape: config.ScrapeConfig{
			BaseURL:        serverURL,
			ActorID:        "vendor/content-scraper",
			Token:          "test-token",
			RequestTimeout: 5 * time.Second,
		},
		Job: *testJobConfig(),
	}
	return NewClient(cfg, logger.NewNopLogger())
}

func TestAccountQueryInput(t *testing.T) {
	q := NewAccountQuery(testJobConfig(), " @creator ", 30, 8)

	if q.Label() != "@creator" {
		t.Errorf("Expected label @creator, got %q", q.Label())
	}
	if q.SampleSize() != 8 {
		t.Errorf("Expected sample 8, got %d", q.SampleSize())
	}

	input := q.Input()
	if input["resultsLimit"] != 16 {
		t.Errorf("Expected over-fetch of 16, got %v", input["resultsLimit"])
	}
	urls := input["directUrls"].([]string)
	if urls[0] != "https://www.instagram.com/creator/reels/" {
		t.Errorf("Unexpected direct URL: %s", urls[0])
	}
}

func TestSampleSizeClampedToCeiling(t *testing.T) {
	q := NewAccountQuery(testJobConfig(), "creator", 30, 50)

	if q.SampleSize() != 10 {
		t.Errorf("Expected sample clamped to 10, got %d", q.SampleSize())
	}
	// 10 * 2 = 20, exactly at the cap
	if limit := q.Input()["resultsLimit"]; limit != 20 {
		t.Errorf("Expected fetch limit 20, got %v", limit)
	}
}

func TestHashtagQueryOverFetchCap(t *testing.T) {
	q := NewHashtagQuery(testJobConfig(), "#travel", 7, 10)

	if q.Label() != "#travel" {
		t.Errorf("Expected label #travel, got %q", q.Label())
	}
	// 10 * 3 = 30, exactly at the hashtag cap
	if limit := q.Input()["resultsLimit"]; limit != 30 {
		t.Errorf("Expected fetch limit 30, got %v", limit)
	}
}

func TestLocationQueryInput(t *testing.T) {
	q := NewLocationQuery(testJobConfig(), "213385402", "London", 14, 5)

	if q.Label() != "London" {
		t.Errorf("Expected label London, got %q", q.Label())
	}
	input := q.Input()
	if ids := input["locationIds"].([]string); ids[0] != "213385402" {
		t.Errorf("Unexpected location IDs: %v", ids)
	}
	if input["resultsLimit"] != 10 {
		t.Errorf("Expected fetch limit 10, got %v", input["resultsLimit"])
	}
}

func TestDirectItemQuery(t *testing.T) {
	q, err := NewDirectItemQuery("https://www.instagram.com/reel/Cx4T9_abc-/")
	if err != nil {
		t.Fatalf("Expected valid reel URL, got %v", err)
	}
	if q.Label() != "Reel Cx4T9_abc-" {
		t.Errorf("Expected shortcode label, got %q", q.Label())
	}
	if q.SampleSize() != 1 {
		t.Errorf("Expected sample 1, got %d", q.SampleSize())
	}
	if q.Input()["resultsType"] != "details" {
		t.Errorf("Expected details results type, got %v", q.Input()["resultsType"])
	}
}

func TestDirectItemQueryRejectsNonReelURL(t *testing.T) {
	_, err := NewDirectItemQuery("https://www.instagram.com/p/Cx4T9/")
	if !errors.IsType(err, errors.ErrorTypeParsing) {
		t.Errorf("Expected parsing error, got %v", err)
	}
}

func TestSubmitSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acts/vendor~content-scraper/runs" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Missing auth header")
		}

		var input map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("Invalid input payload: %v", err)
		}
		if input["resultsType"] != "posts" {
			t.Errorf("Unexpected results type: %v", input["resultsType"])
		}

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data": {"id": "run-123", "status": "RUNNING"}}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	q := NewAccountQuery(testJobConfig(), "creator", 30, 5)

	handle, err := client.Submit(context.Background(), q)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if handle.ID != "run-123" {
		t.Errorf("Expected run-123, got %q", handle.ID)
	}
	if handle.Status != StatusRunning {
		t.Errorf("Expected RUNNING handle, got %q", handle.Status)
	}
}

func TestSubmitServiceQuotaNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": "Monthly usage hard limit exceeded"}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	q := NewAccountQuery(testJobConfig(), "creator", 30, 5)

	_, err := client.Submit(context.Background(), q)
	if !errors.IsType(err, errors.ErrorTypeServiceQuota) {
		t.Fatalf("Expected service quota error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Service quota must not be retried, got %d calls", got)
	}
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": {"id": "run-456", "status": "RUNNING"}}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	q := NewHashtagQuery(testJobConfig(), "travel", 7, 5)

	handle, err := client.Submit(context.Background(), q)
	if err != nil {
		t.Fatalf("Expected submit to recover, got %v", err)
	}
	if handle.ID != "run-456" {
		t.Errorf("Expected run-456, got %q", handle.ID)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestPollUntilSucceeded(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actor-runs/run-123" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		status := "RUNNING"
		if atomic.AddInt32(&calls, 1) >= 3 {
			status = "SUCCEEDED"
		}
		fmt.Fprintf(w, `{"data": {"id": "run-123", "status": "%s"}}`, status)
	}))
	defer server.Close()

	client := testClient(server.URL)
	handle := &JobHandle{ID: "run-123", Status: StatusRunning}

	var progress []float64
	status, err := client.Poll(context.Background(), handle, func(sub float64) {
		progress = append(progress, sub)
	})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if status != StatusSucceeded {
		t.Errorf("Expected SUCCEEDED, got %q", status)
	}
	if handle.Status != StatusSucceeded {
		t.Errorf("Expected handle updated to SUCCEEDED, got %q", handle.Status)
	}

	if len(progress) == 0 {
		t.Fatal("Expected progress callbacks")
	}
	if last := progress[len(progress)-1]; last != 1.0 {
		t.Errorf("Expected final progress 1.0, got %f", last)
	}
	for _, p := range progress[:len(progress)-1] {
		if p > 0.9 {
			t.Errorf("Pre-terminal progress must cap at 0.9, got %f", p)
		}
	}
}

func TestPollSpacesChecksByInterval(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		if atomic.AddInt32(&calls, 1) >= 3 {
			status = "SUCCEEDED"
		}
		fmt.Fprintf(w, `{"data": {"id": "run-123", "status": "%s"}}`, status)
	}))
	defer server.Close()

	cfg := &config.Config{
		Scrape: config.ScrapeConfig{
			BaseURL:        server.URL,
			ActorID:        "vendor/content-scraper",
			Token:          "test-token",
			RequestTimeout: 5 * time.Second,
		},
		Job: *testJobConfig(),
	}
	cfg.Job.PollInterval = 30 * time.Millisecond
	client := NewClient(cfg, logger.NewNopLogger())

	handle := &JobHandle{ID: "run-123", Status: StatusRunning}
	start := time.Now()
	if _, err := client.Poll(context.Background(), handle, nil); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	// Three checks means two full waits between them
	if elapsed := time.Since(start); elapsed < 2*cfg.Job.PollInterval {
		t.Errorf("Expected at least %v between checks, finished in %v", 2*cfg.Job.PollInterval, elapsed)
	}
}

func TestPollTerminalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"id": "run-123", "status": "ABORTED"}}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	handle := &JobHandle{ID: "run-123", Status: StatusRunning}

	status, err := client.Poll(context.Background(), handle, nil)
	if !errors.IsType(err, errors.ErrorTypeJobFailed) {
		t.Fatalf("Expected job failed error, got %v", err)
	}
	if status != StatusAborted {
		t.Errorf("Expected ABORTED, got %q", status)
	}
}

func TestPollTimesOutAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"data": {"id": "run-123", "status": "RUNNING"}}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	handle := &JobHandle{ID: "run-123", Status: StatusRunning}

	_, err := client.Poll(context.Background(), handle, nil)
	if !errors.IsType(err, errors.ErrorTypeJobTimeout) {
		t.Fatalf("Expected job timeout error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("Expected 5 poll attempts, got %d", got)
	}
}

func TestFetchRequiresSucceededStatus(t *testing.T) {
	client := testClient("http://unused.invalid")
	handle := &JobHandle{ID: "run-123", Status: StatusRunning}

	_, err := client.Fetch(context.Background(), handle)
	if !errors.IsType(err, errors.ErrorTypeJobFailed) {
		t.Errorf("Expected contract error for premature fetch, got %v", err)
	}
}

func TestFetchReturnsItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actor-runs/run-123/dataset/items" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"id": "p1", "type": "Video", "likesCount": 100, "videoViewCount": 5000},
			{"id": "p2", "type": "Image", "likesCount": 50}
		]`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	handle := &JobHandle{ID: "run-123", Status: StatusSucceeded}

	items, err := client.Fetch(context.Background(), handle)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].VideoViewCount == nil || *items[0].VideoViewCount != 5000 {
		t.Errorf("Expected view count pointer 5000, got %v", items[0].VideoViewCount)
	}
	if items[1].VideoViewCount != nil {
		t.Errorf("Expected absent view count to stay nil")
	}
}

func TestPollCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"id": "run-123", "status": "RUNNING"}}`)
	}))
	defer server.Close()

	cfg := &config.Config{
		Scrape: config.ScrapeConfig{
			BaseURL:        server.URL,
			ActorID:        "vendor/content-scraper",
			Token:          "test-token",
			RequestTimeout: 5 * time.Second,
		},
		Job: *testJobConfig(),
	}
	cfg.Job.PollInterval = time.Minute
	client := NewClient(cfg, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	handle := &JobHandle{ID: "run-123", Status: StatusRunning}

	done := make(chan error, 1)
	go func() {
		_, err := client.Poll(ctx, handle, nil)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancellation")
	}
}
