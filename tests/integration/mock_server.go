package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"reelscope/pkg/scrapejob"
)

// MockScrapeServer simulates the scraping service API: run submission,
// run status polling and dataset download.
type MockScrapeServer struct {
	server *httptest.Server

	mu    sync.RWMutex
	items []scrapejob.RawItem

	// PollsUntilDone is how many status polls return RUNNING before the
	// run reaches FinalStatus
	PollsUntilDone int
	// FinalStatus is the terminal run status (default SUCCEEDED)
	FinalStatus string

	// SubmitStatusCode and SubmitBody inject a submission failure
	SubmitStatusCode int
	SubmitBody       string

	submits int32
	polls   int32
	fetches int32
}

// NewMockScrapeServer creates a started mock scraping service
func NewMockScrapeServer() *MockScrapeServer {
	m := &MockScrapeServer{
		PollsUntilDone: 2,
		FinalStatus:    "SUCCEEDED",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", m.route)
	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock server's base URL
func (m *MockScrapeServer) URL() string {
	return m.server.URL
}

// Close shuts the server down
func (m *MockScrapeServer) Close() {
	m.server.Close()
}

// SetItems sets the dataset the mock run produces
func (m *MockScrapeServer) SetItems(items []scrapejob.RawItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// Submits returns how many runs were submitted
func (m *MockScrapeServer) Submits() int {
	return int(atomic.LoadInt32(&m.submits))
}

// Polls returns how many status polls were served
func (m *MockScrapeServer) Polls() int {
	return int(atomic.LoadInt32(&m.polls))
}

func (m *MockScrapeServer) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.Contains(path, "/acts/") && strings.HasSuffix(path, "/runs"):
		m.handleSubmit(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/dataset/items"):
		m.handleFetch(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/actor-runs/"):
		m.handlePoll(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockScrapeServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.submits, 1)

	if m.SubmitStatusCode != 0 {
		w.WriteHeader(m.SubmitStatusCode)
		_, _ = w.Write([]byte(m.SubmitBody))
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"id":     "run-integration-1",
			"status": "RUNNING",
		},
	})
}

func (m *MockScrapeServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	count := atomic.AddInt32(&m.polls, 1)

	status := "RUNNING"
	if int(count) > m.PollsUntilDone {
		status = m.FinalStatus
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"id":     "run-integration-1",
			"status": status,
		},
	})
}

func (m *MockScrapeServer) handleFetch(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.fetches, 1)

	m.mu.RLock()
	items := m.items
	m.mu.RUnlock()

	_ = json.NewEncoder(w).Encode(items)
}
