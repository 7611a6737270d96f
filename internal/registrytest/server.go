// Package registrytest provides an in-process npm-compatible registry
// for tests: package metadata reads, the conventional listing endpoints,
// and knobs for injecting auth failures, transient errors, and malformed
// payloads.
package registrytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Server is a fake registry backed by an httptest.Server. All mutators
// and accessors are safe for concurrent use.
type Server struct {
	mu sync.Mutex

	// packages maps name → set of versions.
	packages map[string]map[string]bool
	// distTags maps name → tag → version.
	distTags map[string]map[string]string

	// requiredToken, when set, makes every request without a matching
	// bearer token fail with 401.
	requiredToken string

	// failNext maps name → number of remaining 500 responses before the
	// real answer is served.
	failNext map[string]int

	// garbage maps name → serve a non-JSON body with a 200.
	garbage map[string]bool

	// disabledListings holds listing paths that answer 404, to force
	// probe fallback.
	disabledListings map[string]bool

	metadataCalls map[string]int

	httpServer *httptest.Server
}

// New starts a fake registry. Callers own shutdown via Close.
func New() *Server {
	s := &Server{
		packages:         make(map[string]map[string]bool),
		distTags:         make(map[string]map[string]string),
		failNext:         make(map[string]int),
		garbage:          make(map[string]bool),
		disabledListings: make(map[string]bool),
		metadataCalls:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/-/all", s.handleAll)
	r.Get("/-/v1/search", s.handleSearch)
	r.Get("/_all_docs", s.handleAllDocs)
	// Package names may contain an encoded scope separator (%2F), which
	// the stdlib decodes before routing; a catch-all keeps them intact.
	r.NotFound(s.handleMetadata)

	s.httpServer = httptest.NewServer(r)
	return s
}

// URL returns the registry base URL.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts the server down.
func (s *Server) Close() { s.httpServer.Close() }

// AddPackage registers versions for a package name.
func (s *Server) AddPackage(name string, versions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packages[name] == nil {
		s.packages[name] = make(map[string]bool)
	}
	for _, v := range versions {
		s.packages[name][v] = true
	}
}

// RemovePackage drops a package entirely.
func (s *Server) RemovePackage(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.packages, name)
	delete(s.distTags, name)
}

// SetDistTag sets a dist-tag on a package.
func (s *Server) SetDistTag(name, tag, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.distTags[name] == nil {
		s.distTags[name] = make(map[string]string)
	}
	s.distTags[name][tag] = version
}

// RequireToken makes the registry reject requests without the given
// bearer token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requiredToken = token
}

// FailNext makes the next n metadata requests for name answer 500.
func (s *Server) FailNext(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[name] = n
}

// ServeGarbage makes metadata responses for name return unparseable
// bodies with a 200 status.
func (s *Server) ServeGarbage(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.garbage[name] = true
}

// DisableListing makes the given listing path (e.g. "/-/all") answer 404.
func (s *Server) DisableListing(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabledListings[path] = true
}

// MetadataCalls reports how many metadata requests name has received.
func (s *Server) MetadataCalls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadataCalls[name]
}

func (s *Server) authorized(r *http.Request) bool {
	if s.requiredToken == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.requiredToken
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.metadataCalls[name]++
	if !s.authorized(r) {
		s.mu.Unlock()
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if s.failNext[name] > 0 {
		s.failNext[name]--
		s.mu.Unlock()
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if s.garbage[name] {
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>this is not json</html>"))
		return
	}
	versions, ok := s.packages[name]
	tags := s.distTags[name]
	s.mu.Unlock()

	if !ok {
		http.Error(w, `{"error": "Not found"}`, http.StatusNotFound)
		return
	}

	doc := map[string]any{
		"name":     name,
		"versions": map[string]any{},
	}
	versionDocs := doc["versions"].(map[string]any)
	for v := range versions {
		versionDocs[v] = map[string]any{"name": name, "version": v}
	}
	if len(tags) > 0 {
		doc["dist-tags"] = tags
	}
	writeJSON(w, doc)
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabledListings["/-/all"] {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if !s.authorized(r) {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	doc := map[string]any{"_updated": 99999}
	for name, versions := range s.packages {
		versionDocs := map[string]any{}
		for v := range versions {
			versionDocs[v] = map[string]any{}
		}
		doc[name] = map[string]any{"versions": versionDocs}
	}
	writeJSON(w, doc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabledListings["/-/v1/search"] {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var objects []map[string]any
	for name, versions := range s.packages {
		var latest string
		for v := range versions {
			latest = v
		}
		objects = append(objects, map[string]any{
			"package": map[string]any{"name": name, "version": latest},
		})
	}
	if objects == nil {
		objects = []map[string]any{}
	}
	writeJSON(w, map[string]any{"objects": objects, "total": len(objects)})
}

func (s *Server) handleAllDocs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabledListings["/_all_docs"] {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var rows []map[string]any
	for name := range s.packages {
		rows = append(rows, map[string]any{"id": name})
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, map[string]any{"rows": rows})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
