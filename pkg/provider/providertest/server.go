// Package providertest runs an in-process Okta-shaped API for tests.
package providertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Server serves users, apps and app assignments with Link pagination.
type Server struct {
	*httptest.Server

	token string

	mu          sync.Mutex
	users       []map[string]any
	apps        []map[string]any
	assignments map[string][]map[string]any
	failures    map[string]int
	requests    map[string]int
}

func NewServer(token string) *Server {
	s := &Server{
		token:       token,
		assignments: map[string][]map[string]any{},
		failures:    map[string]int{},
		requests:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Domain is the value to configure as the provider domain.
func (s *Server) Domain() string {
	return s.URL
}

func (s *Server) AddUser(id, email, status string, profile map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile == nil {
		profile = map[string]any{}
	}
	if email != "" {
		profile["email"] = email
	}
	s.users = append(s.users, map[string]any{"id": id, "status": status, "profile": profile})
}

func (s *Server) AddApp(id, label, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps = append(s.apps, map[string]any{
		"id":         id,
		"name":       strings.ToLower(strings.ReplaceAll(label, " ", "_")),
		"label":      label,
		"status":     status,
		"signOnMode": "SAML_2_0",
	})
}

func (s *Server) Assign(appID, userID, status string, profile map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments[appID] = append(s.assignments[appID], map[string]any{
		"id":      userID,
		"scope":   "USER",
		"status":  status,
		"profile": profile,
	})
}

// Fail makes every request to path (e.g. "/api/v1/apps") return status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Requests returns how many requests were made to path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[r.URL.Path]++

	if r.Header.Get("Authorization") != "SSWS "+s.token {
		writeError(w, http.StatusUnauthorized, "E0000011", "Invalid token provided")
		return
	}
	if status, ok := s.failures[r.URL.Path]; ok {
		writeError(w, status, "E0000009", "Internal Server Error")
		return
	}

	var records []map[string]any
	switch path := strings.TrimPrefix(r.URL.Path, "/api/v1"); {
	case path == "/users":
		records = s.users
	case path == "/apps":
		records = s.apps
	case strings.HasPrefix(path, "/apps/") && strings.HasSuffix(path, "/users"):
		appID := strings.TrimSuffix(strings.TrimPrefix(path, "/apps/"), "/users")
		records = s.assignments[appID]
	default:
		writeError(w, http.StatusNotFound, "E0000007", "Not found: Resource not found")
		return
	}

	s.writePage(w, r, records)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, records []map[string]any) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 200
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("after"))
	if offset > len(records) {
		offset = len(records)
	}
	end := min(offset+limit, len(records))

	base := s.URL + r.URL.Path
	w.Header().Add("Link", fmt.Sprintf(`<%s?limit=%d>; rel="self"`, base, limit))
	if end < len(records) {
		w.Header().Add("Link", fmt.Sprintf(`<%s?after=%d&limit=%d>; rel="next"`, base, end, limit))
	}

	page := records[offset:end]
	if page == nil {
		page = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func writeError(w http.ResponseWriter, status int, code, summary string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errorCode":    code,
		"errorSummary": summary,
	})
}
