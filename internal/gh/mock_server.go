package gh

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockServer provides a fake GitHub API for testing: paginated listings
// sorted by update time, since filters, rate-limit headers, and call
// counting.
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	items    map[string]map[int]*Item // collection -> number -> item
	comments map[int][]*Comment       // issue number -> comments
	perPage  int
	calls    int
	quota    int // remaining quota reported; -1 disables enforcement
	resetAt  time.Time
}

// NewMockServer creates a mock GitHub API server with quota enforcement
// disabled and a page size of 2.
func NewMockServer() *MockServer {
	m := &MockServer{
		items: map[string]map[int]*Item{
			"issues": {},
			"pulls":  {},
		},
		comments: map[int][]*Comment{},
		perPage:  2,
		quota:    -1,
		resetAt:  time.Now().Add(time.Hour),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/", m.handleRepos)
	m.Server = httptest.NewServer(mux)
	return m
}

// AddItem adds an issue or pull request to the mock remote.
func (m *MockServer) AddItem(collection string, item *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[collection][item.Number] = item
}

// RemoveItem deletes an item from the mock remote, so listings omit it and
// direct fetches return 404.
func (m *MockServer) RemoveItem(collection string, number int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[collection], number)
}

// AddComment adds a comment under an issue or pull request number.
func (m *MockServer) AddComment(number int, c *Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[number] = append(m.comments[number], c)
}

// SetPerPage sets the listing page size.
func (m *MockServer) SetPerPage(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perPage = n
}

// SetQuota enables quota enforcement with the given remaining call count.
func (m *MockServer) SetQuota(remaining int, resetAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = remaining
	m.resetAt = resetAt
}

// Calls returns the number of API calls served, rejected ones included.
func (m *MockServer) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// ResetCalls zeroes the call counter between test phases.
func (m *MockServer) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
}

func (m *MockServer) handleRepos(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls++
	if m.quota == 0 {
		m.writeQuotaHeaders(w)
		m.mu.Unlock()
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if m.quota > 0 {
		m.quota--
	}
	m.writeQuotaHeaders(w)
	m.mu.Unlock()

	// Path after /repos/{owner}/{repo}/
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/repos/"), "/")
	if len(parts) < 3 {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	rest := parts[2:]

	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case len(rest) == 1 && (rest[0] == "issues" || rest[0] == "pulls"):
		m.handleList(w, r, rest[0])
	case len(rest) == 3 && rest[0] == "issues" && rest[1] == "comments":
		id, err := strconv.ParseInt(rest[2], 10, 64)
		if err != nil {
			http.Error(w, "invalid comment id", http.StatusBadRequest)
			return
		}
		m.handleGetComment(w, id)
	case len(rest) == 2 && (rest[0] == "issues" || rest[0] == "pulls"):
		number, err := strconv.Atoi(rest[1])
		if err != nil {
			http.Error(w, "invalid number", http.StatusBadRequest)
			return
		}
		m.handleGetItem(w, rest[0], number)
	case len(rest) == 3 && rest[0] == "issues" && rest[2] == "comments":
		number, err := strconv.Atoi(rest[1])
		if err != nil {
			http.Error(w, "invalid number", http.StatusBadRequest)
			return
		}
		m.handleListComments(w, r, number)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (m *MockServer) writeQuotaHeaders(w http.ResponseWriter) {
	if m.quota >= 0 {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(m.quota))
	} else {
		w.Header().Set("X-RateLimit-Remaining", "5000")
	}
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(m.resetAt.Unix(), 10))
}

// handleList serves one page of an item listing sorted by updated_at
// ascending, honoring since and page query parameters.
func (m *MockServer) handleList(w http.ResponseWriter, r *http.Request, collection string) {
	var all []*Item
	for _, item := range m.items[collection] {
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].Number < all[j].Number
		}
		return all[i].UpdatedAt.Before(all[j].UpdatedAt)
	})

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filtered := all[:0]
			for _, item := range all {
				if !item.UpdatedAt.Before(t) {
					filtered = append(filtered, item)
				}
			}
			all = filtered
		}
	}

	page := pageParam(r)
	start := (page - 1) * m.perPage
	end := start + m.perPage
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	if end < len(all) {
		w.Header().Set("Link", m.nextLink(r, page+1))
	}

	w.Header().Set("Content-Type", "application/json")
	pageItems := all[start:end]
	if pageItems == nil {
		pageItems = []*Item{}
	}
	json.NewEncoder(w).Encode(pageItems)
}

func (m *MockServer) handleListComments(w http.ResponseWriter, r *http.Request, number int) {
	all := append([]*Comment{}, m.comments[number]...)
	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].UpdatedAt.Before(all[j].UpdatedAt)
	})

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filtered := all[:0]
			for _, c := range all {
				if !c.UpdatedAt.Before(t) {
					filtered = append(filtered, c)
				}
			}
			all = filtered
		}
	}

	page := pageParam(r)
	start := (page - 1) * m.perPage
	end := start + m.perPage
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	if end < len(all) {
		w.Header().Set("Link", m.nextLink(r, page+1))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(all[start:end])
}

func (m *MockServer) handleGetItem(w http.ResponseWriter, collection string, number int) {
	item, ok := m.items[collection][number]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

func (m *MockServer) handleGetComment(w http.ResponseWriter, id int64) {
	for _, comments := range m.comments {
		for _, c := range comments {
			if c.ID == id {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(c)
				return
			}
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// nextLink rebuilds the request URL with the next page number for the Link
// header.
func (m *MockServer) nextLink(r *http.Request, nextPage int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(nextPage))
	u.RawQuery = q.Encode()
	return fmt.Sprintf(`<%s%s>; rel="next"`, m.Server.URL, u.String())
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
