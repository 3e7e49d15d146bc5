// Package testutil provides a mock T3 API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Test credentials accepted by the mock auth endpoints.
const (
	TestToken    = "test-access-token"
	TestUsername = "testuser"
	TestPassword = "testpass"
	TestAPIKey   = "test-api-key"
	TestLicense  = "LIC-0001"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Collection describes a paginated collection served by the mock.
type Collection struct {
	// Total number of records
	Total int

	// PageSize used when the request does not set pageSize
	PageSize int

	// OmitTotal drops the total field from every page
	OmitTotal bool

	// Delay is applied to every page
	Delay time.Duration

	// PageDelays overrides Delay per page
	PageDelays map[int]time.Duration

	// Failures maps a page number to the status it answers with
	Failures map[int]int

	// DataModel is set on every record (default "ACTIVE_PACKAGE")
	DataModel string
}

// MockT3 is a configurable mock T3 API server for testing.
type MockT3 struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	authRequests int
	pageRequests map[int]int
	lastHeader   http.Header
	lastQuery    map[string][]string
	inFlight     atomic.Int32
	peakInFlight atomic.Int32
}

// NewMockT3 creates a mock server with auth and license endpoints installed.
func NewMockT3() *MockT3 {
	mock := &MockT3{
		handlers:     make(map[string]http.HandlerFunc),
		pageRequests: make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := mock.inFlight.Add(1)
		defer mock.inFlight.Add(-1)
		for {
			peak := mock.peakInFlight.Load()
			if n <= peak || mock.peakInFlight.CompareAndSwap(peak, n) {
				break
			}
		}

		mock.mu.Lock()
		mock.requestCount++
		mock.lastHeader = r.Header.Clone()
		mock.lastQuery = r.URL.Query()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found: " + r.URL.Path})
	}))

	mock.SetHandler("/v2/auth/credentials", mock.credentialsHandler)
	mock.SetHandler("/v2/auth/apikey", mock.apiKeyHandler)
	mock.SetHandler("/v2/licenses", mock.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"licenseNumber": TestLicense, "licenseName": "Test Dispensary"},
			{"licenseNumber": "LIC-0002", "licenseName": "Test Cultivation"},
		})
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockT3) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockT3) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockT3) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.authRequests = 0
	m.pageRequests = make(map[int]int)
	m.lastHeader = nil
	m.lastQuery = nil
	m.peakInFlight.Store(0)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockT3) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockT3) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCollection serves a generated paginated collection at path. Record i
// (zero-based, across all pages) has id i+1 and index i.
func (m *MockT3) SetCollection(path string, col Collection) {
	if col.DataModel == "" {
		col.DataModel = "ACTIVE_PACKAGE"
	}
	if col.PageSize <= 0 {
		col.PageSize = 100
	}

	m.SetHandler(path, m.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := strconv.Atoi(q.Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		pageSize := col.PageSize
		if ps, err := strconv.Atoi(q.Get("pageSize")); err == nil && ps > 0 {
			pageSize = ps
		}

		m.mu.Lock()
		m.pageRequests[page]++
		m.mu.Unlock()

		delay := col.Delay
		if d, ok := col.PageDelays[page]; ok {
			delay = d
		}
		if delay > 0 {
			time.Sleep(delay)
		}

		if status, ok := col.Failures[page]; ok {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("page %d unavailable", page)})
			return
		}

		start := (page - 1) * pageSize
		end := min(start+pageSize, col.Total)
		data := make([]map[string]any, 0, max(end-start, 0))
		for i := start; i < end; i++ {
			data = append(data, map[string]any{
				"id":            i + 1,
				"index":         i,
				"hostname":      "ca.metrc.com",
				"licenseNumber": q.Get("licenseNumber"),
				"dataModel":     col.DataModel,
				"retrievedAt":   "2026-01-01T00:00:00Z",
				"label":         fmt.Sprintf("1A40000000000000000%05d", i+1),
				"item":          map[string]any{"name": "Flower", "unitOfMeasure": "Grams"},
			})
		}

		body := map[string]any{
			"data":     data,
			"page":     page,
			"pageSize": pageSize,
		}
		if !col.OmitTotal {
			body["total"] = col.Total
		}
		writeJSON(w, http.StatusOK, body)
	}))
}

// RequestCount returns the number of requests made to the server.
func (m *MockT3) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// AuthRequests returns the number of authentication requests.
func (m *MockT3) AuthRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authRequests
}

// PageRequests returns how often page was requested from any collection.
func (m *MockT3) PageRequests(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageRequests[page]
}

// PeakInFlight returns the highest number of concurrent requests observed.
func (m *MockT3) PeakInFlight() int {
	return int(m.peakInFlight.Load())
}

// LastHeader returns the headers of the most recent request.
func (m *MockT3) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastQuery returns the query of the most recent request.
func (m *MockT3) LastQuery() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (m *MockT3) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+TestToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid or missing token"})
			return
		}
		next(w, r)
	}
}

func (m *MockT3) credentialsHandler(w http.ResponseWriter, r *http.Request) {
	m.countAuth()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Hostname string `json:"hostname"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if body.Username != TestUsername || body.Password != TestPassword || !strings.HasSuffix(body.Hostname, "metrc.com") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accessToken": TestToken, "expiresIn": 3600})
}

func (m *MockT3) apiKeyHandler(w http.ResponseWriter, r *http.Request) {
	m.countAuth()
	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.APIKey != TestAPIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accessToken": TestToken})
}

func (m *MockT3) countAuth() {
	m.mu.Lock()
	m.authRequests++
	m.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
