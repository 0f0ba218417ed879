// Package demosite serves a small website with known accessibility
// defects, for trying the local scan strategy without touching the
// internet. Each page has numbered versions that fix progressively more.
package demosite

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/clarity/internal/logging"
)

// Site is the demo website.
type Site struct {
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	initial  int
	mu       sync.RWMutex

	router chi.Router
	logger logging.Logger
}

// New creates a Site with every page at initialVersion (clamped to the
// versions each page has).
func New(initialVersion int, logger logging.Logger) *Site {
	if initialVersion < 1 {
		initialVersion = 1
	}
	s := &Site{
		pages:    make(map[string]PageDefinition),
		versions: make(map[string]int),
		initial:  initialVersion,
		router:   chi.NewRouter(),
		logger:   logger.With(logging.Field{Key: "component", Value: "demosite"}),
	}
	for _, p := range AllPages() {
		s.pages[p.Path] = p
		s.versions[p.Path] = clamp(p, initialVersion)
	}
	s.routes()
	return s
}

func (s *Site) routes() {
	r := s.router
	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}

	r.Get("/demo/control", s.controlPanelHandler)
	r.Get("/demo/versions", s.getVersionsHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Post("/demo/bump-all", s.bumpAllVersionsHandler)
	r.Post("/demo/reset", s.resetVersionsHandler)

	r.Get("/static/*", s.staticHandler)
}

// ServeHTTP implements http.Handler.
func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Version reports the version currently served for path.
func (s *Site) Version(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[path]
	return v, ok
}

// SetVersion switches path to version, clamped to what the page has.
func (s *Site) SetVersion(path string, version int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[path]
	if !ok {
		return 0, false
	}
	v := clamp(p, version)
	s.versions[path] = v
	return v, true
}

// ServeTLS serves the site on ln with cert until ctx is cancelled. The local
// strategy only scans https URLs, so the demo is TLS-only.
func (s *Site) ServeTLS(ctx context.Context, ln net.Listener, cert tls.Certificate) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeTLS(ln, "", "") }()

	s.logger.Info("demo site listening", logging.Field{Key: "addr", Value: ln.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("demo site shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

func clamp(p PageDefinition, version int) int {
	best := 0
	for v := range p.Versions {
		if v <= version && v > best {
			best = v
		}
	}
	if best == 0 {
		best = 1
	}
	return best
}

func maxVersion(p PageDefinition) int {
	m := 1
	for v := range p.Versions {
		if v > m {
			m = v
		}
	}
	return m
}

// pageHandler returns a handler for a specific page path.
func (s *Site) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		page := s.pages[path]
		version := s.versions[path]
		s.mu.RUnlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Demo-Version", strconv.Itoa(version))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page.Versions[version]))
	}
}

// staticHandler serves a 1x1 transparent PNG for every image reference.
func (s *Site) staticHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(transparentPNG)
}

var transparentPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// PageInfo describes one page for /demo/versions.
type PageInfo struct {
	Path              string   `json:"path"`
	Description       string   `json:"description"`
	Defects           []string `json:"defects"`
	CurrentVersion    int      `json:"current_version"`
	AvailableVersions []int    `json:"available_versions"`
}

// Pages lists every page sorted by path.
func (s *Site) Pages() []PageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PageInfo, 0, len(s.pages))
	for path, p := range s.pages {
		versions := make([]int, 0, len(p.Versions))
		for v := range p.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		out = append(out, PageInfo{
			Path:              path,
			Description:       p.Description,
			Defects:           p.Defects,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *Site) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Pages())
}

func (s *Site) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid version number"})
		return
	}

	v, ok := s.SetVersion(path, version)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "unknown page"})
		return
	}
	s.logger.Info("demo page version set", logging.Field{Key: "path", Value: path}, logging.Field{Key: "version", Value: v})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": path, "version": v})
}

func (s *Site) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		if s.versions[path] < maxVersion(s.pages[path]) {
			s.versions[path]++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "All pages moved one version closer to fixed"})
}

func (s *Site) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path, p := range s.pages {
		s.versions[path] = clamp(p, s.initial)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "All pages reset"})
}

func (s *Site) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, s.Pages()); err != nil {
		s.logger.Warn("rendering control panel", logging.Err(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var controlPanel = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Clarity demo site</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; }
    .page { border: 1px solid #ccc; border-radius: 6px; padding: 12px 16px; margin: 12px 0; }
    .current { font-weight: bold; color: #1e6b34; }
    code { background: #f2f2f2; padding: 1px 4px; }
  </style>
</head>
<body>
  <main>
    <h1>Clarity demo site</h1>
    <p>Version 1 of each page is the most broken. Switch versions and scan again to watch the score move.</p>
    <button type="button" onclick="post('/demo/bump-all')">Fix one step everywhere</button>
    <button type="button" onclick="post('/demo/reset')">Reset</button>
    {{range .}}
    <section class="page">
      <h2><a href="{{.Path}}">{{.Path}}</a> <span class="current">v{{.CurrentVersion}}</span></h2>
      <p>{{.Description}}</p>
      {{if .Defects}}<p>Expected rules: {{range .Defects}}<code>{{.}}</code> {{end}}</p>{{end}}
      {{$path := .Path}}
      {{range .AvailableVersions}}<button type="button" onclick="setVersion('{{$path}}', {{.}})">v{{.}}</button> {{end}}
    </section>
    {{end}}
  </main>
  <script>
    function post(url, body) {
      return fetch(url, {method: 'POST', headers: {'Content-Type': 'application/x-www-form-urlencoded'}, body: body})
        .then(function () { location.reload(); });
    }
    function setVersion(path, version) {
      post('/demo/set-version', 'path=' + encodeURIComponent(path) + '&version=' + version);
    }
  </script>
</body>
</html>`))
