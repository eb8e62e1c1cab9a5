package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Script controls how the asset server answers requests for one path.
type Script struct {
	// Body is served on success.
	Body []byte
	// FailFirst makes the first N requests for the path fail with Status
	// before succeeding.
	FailFirst int
	// Status is the failure status used while FailFirst is draining.
	// Defaults to 503.
	Status int
	// Delay is applied before answering, to hold requests in flight.
	Delay time.Duration
}

// AssetServer is an httptest-backed fake asset origin with per-path
// failure scripts and request accounting.
type AssetServer struct {
	mu      sync.Mutex
	scripts map[string]*Script
	hits    map[string]int
	failed  map[string]int
	total   int

	// Gauge, when set, tracks concurrently in-flight requests.
	Gauge *InFlightGauge

	srv *httptest.Server
}

// NewAssetServer starts a fake origin. Paths are matched by suffix so
// callers can script "/_framework/App.dll" or just "App.dll".
func NewAssetServer() *AssetServer {
	s := &AssetServer{
		scripts: make(map[string]*Script),
		hits:    make(map[string]int),
		failed:  make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the server's base URL.
func (s *AssetServer) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *AssetServer) Close() { s.srv.Close() }

// Serve scripts a path.
func (s *AssetServer) Serve(path string, script *Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = script
}

// Hits returns how many requests arrived for a scripted path.
func (s *AssetServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalRequests returns the number of requests served overall.
func (s *AssetServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *AssetServer) handle(w http.ResponseWriter, r *http.Request) {
	if s.Gauge != nil {
		s.Gauge.Enter()
		defer s.Gauge.Exit()
	}

	s.mu.Lock()
	s.total++
	var script *Script
	var key string
	for path, sc := range s.scripts {
		if strings.HasSuffix(r.URL.Path, path) {
			script, key = sc, path
			break
		}
	}
	if script == nil {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	s.hits[key]++
	fail := s.failed[key] < script.FailFirst
	if fail {
		s.failed[key]++
	}
	delay := script.Delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		status := script.Status
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		return
	}
	w.Write(script.Body)
}
