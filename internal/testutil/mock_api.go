// Package testutil provides an httptest double of the security-analytics API.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// Step is one scripted response
type Step struct {
	// Status is written with the headers; zero means 200
	Status int
	// Body is written after Stall has elapsed
	Body string
	// Stall blocks after the headers are flushed, so a client with a shorter
	// timeout sees the status but times out reading the body
	Stall time.Duration
}

// RecordedRequest is what the mock received
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// MockSecureAPI serves scripted responses per path and records every request
type MockSecureAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	scripts  map[string][]Step
	requests []RecordedRequest
}

// NewMockSecureAPI starts the mock server
func NewMockSecureAPI() *MockSecureAPI {
	m := &MockSecureAPI{
		scripts: make(map[string][]Step),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// BaseURL returns the server URL with a trailing slash, the form base_url takes
// in the connector configuration
func (m *MockSecureAPI) BaseURL() string {
	return m.server.URL + "/"
}

// URL returns the absolute URL of path
func (m *MockSecureAPI) URL(path string) string {
	return m.BaseURL() + path
}

// Close shuts the server down
func (m *MockSecureAPI) Close() {
	m.server.Close()
}

// Enqueue appends steps to the script of path; path has no leading slash
func (m *MockSecureAPI) Enqueue(path string, steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[path] = append(m.scripts[path], steps...)
}

// EnqueuePage appends a 200 response carrying one page envelope
func (m *MockSecureAPI) EnqueuePage(path string, data interface{}, next interface{}) {
	m.Enqueue(path, Step{Body: PageBody(data, next)})
}

// Requests returns the requests received for path
func (m *MockSecureAPI) Requests(path string) []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RecordedRequest
	for _, r := range m.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests received on all paths
func (m *MockSecureAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Pending returns the number of unconsumed steps for path
func (m *MockSecureAPI) Pending(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scripts[path])
}

func (m *MockSecureAPI) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	steps := m.scripts[path]
	var step Step
	ok := len(steps) > 0
	if ok {
		step = steps[0]
		m.scripts[path] = steps[1:]
	}
	m.mu.Unlock()

	if !ok {
		http.Error(w, fmt.Sprintf(`{"message":"no scripted response for %s"}`, path), http.StatusNotFound)
		return
	}

	status := step.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if step.Stall > 0 {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-time.After(step.Stall):
		case <-r.Context().Done():
			return
		}
	}

	_, _ = w.Write([]byte(step.Body))
}

// PageBody renders a response envelope. A nil next omits the cursor.
func PageBody(data interface{}, next interface{}) string {
	page := map[string]interface{}{}
	if next != nil {
		page["next"] = next
	}
	body, err := json.Marshal(map[string]interface{}{
		"data": data,
		"page": page,
	})
	if err != nil {
		panic(err)
	}
	return string(body)
}
