package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockServer is an httptest server standing in for an AI backend. Each path
// answers with a configured response; a path may also be given a queue of
// responses that are served in order before falling back to the default.
type MockServer struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]MockResponse
	queues    map[string][]MockResponse
	counts    map[string]int
	lastBody  map[string][]byte
	lastHdr   map[string]http.Header
}

// MockResponse defines a canned answer.
type MockResponse struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string
}

// NewMockServer starts a mock server. Call Close when done.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
		queues:    make(map[string][]MockResponse),
		counts:    make(map[string]int),
		lastBody:  make(map[string][]byte),
		lastHdr:   make(map[string]http.Header),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts the server down.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets the default answer for path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// QueueResponses serves responses for path in order, one per request,
// before the default answer applies again.
func (ms *MockServer) QueueResponses(path string, responses ...MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.queues[path] = append(ms.queues[path], responses...)
}

// RequestCount returns the number of requests received on path.
func (ms *MockServer) RequestCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.counts[path]
}

// LastRequest returns the body and headers of the latest request on path.
func (ms *MockServer) LastRequest(path string) ([]byte, http.Header) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastBody[path], ms.lastHdr[path]
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	path := r.URL.Path
	ms.counts[path]++
	ms.lastBody[path] = body
	ms.lastHdr[path] = r.Header.Clone()

	response, ok := ms.responses[path]
	if q := ms.queues[path]; len(q) > 0 {
		response, ok = q[0], true
		ms.queues[path] = q[1:]
	}
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

// MockCompletion returns a successful execution answer.
func MockCompletion(content string, input, output int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]any{
			"content": content,
			"tokens":  map[string]int{"input": input, "output": output},
		},
	}
}

// MockErrorResponse returns an error answer with the given status.
func MockErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body:       map[string]string{"error": message},
	}
}

// MockRateLimitError returns a 429 with a Retry-After header.
func MockRateLimitError(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       map[string]string{"error": "rate limited"},
		Headers:    map[string]string{"Retry-After": retryAfter},
	}
}

// MockHealthy returns a 200 health answer.
func MockHealthy() MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: map[string]string{"status": "ok"}}
}
