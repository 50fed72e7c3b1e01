// Package testutil provides a scripted mock Ad Manager server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/pubops/admanager-site-export/pkg/admanager"
)

// MockAdManager serves a synthetic site catalog over the getByStatement wire
// shape. Pagination is driven by the LIMIT/OFFSET clause the client appends;
// faults can be injected at chosen page offsets.
type MockAdManager struct {
	server *httptest.Server

	mu           sync.Mutex
	sites        []admanager.Site
	faults       map[int]int // page offset -> remaining fault responses
	faultStatus  int
	delay        time.Duration
	requestCount int
	statements   []string
}

// NewMockAdManager creates a mock server holding total generated sites.
func NewMockAdManager(total int) *MockAdManager {
	sites := make([]admanager.Site, total)
	for i := range sites {
		sites[i] = admanager.Site{
			ID:               int64(i + 1),
			URL:              fmt.Sprintf("site-%d.example.com", i),
			ChildNetworkCode: fmt.Sprintf("%d", 9000+i%7),
			ApprovalStatus:   "APPROVED",
			Active:           true,
		}
	}

	mock := &MockAdManager{
		sites:       sites,
		faults:      make(map[int]int),
		faultStatus: http.StatusServiceUnavailable,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server base URL.
func (m *MockAdManager) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAdManager) Close() {
	m.server.Close()
}

// FailAt makes the page at the given record offset fail count times before
// succeeding. A negative count fails forever.
func (m *MockAdManager) FailAt(offset, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[offset] = count
}

// SetFaultStatus sets the HTTP status injected faults respond with.
func (m *MockAdManager) SetFaultStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faultStatus = status
}

// SetDelay adds a fixed delay to every response.
func (m *MockAdManager) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RequestCount returns the number of statement requests served.
func (m *MockAdManager) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// Statements returns the statement queries received, in arrival order.
func (m *MockAdManager) Statements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.statements))
	copy(out, m.statements)
	return out
}

func (m *MockAdManager) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "sites:getByStatement") {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad statement", http.StatusBadRequest)
		return
	}

	limit, offset, err := parsePagination(req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requestCount++
	m.statements = append(m.statements, req.Query)
	delay := m.delay
	status := m.faultStatus
	fail := false
	if remaining, ok := m.faults[offset]; ok {
		if remaining < 0 {
			fail = true
		} else if remaining > 0 {
			fail = true
			m.faults[offset] = remaining - 1
		}
	}
	total := len(m.sites)
	var page []admanager.Site
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = append(page, m.sites[offset:end]...)
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(admanager.SitePage{
		Results:            page,
		StartIndex:         offset,
		TotalResultSetSize: total,
	})
}

// parsePagination extracts the planner-appended LIMIT/OFFSET clause.
func parsePagination(query string) (limit, offset int, err error) {
	idx := strings.Index(query, "LIMIT")
	if idx < 0 {
		return 0, 0, fmt.Errorf("statement %q has no LIMIT clause", query)
	}
	if _, err := fmt.Sscanf(query[idx:], "LIMIT %d OFFSET %d", &limit, &offset); err != nil {
		return 0, 0, fmt.Errorf("statement %q: malformed pagination clause", query)
	}
	return limit, offset, nil
}
