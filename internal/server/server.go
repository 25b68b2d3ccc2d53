// Package server serves the output tree of a site during preview and mounts
// the live-reload endpoint next to it. The server only reads the output
// directory; the watch loop is the only writer.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/cydonia/internal/build"
	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/fsutil"
	"github.com/conneroisu/cydonia/internal/livereload"
	"github.com/conneroisu/cydonia/internal/logging"
	"github.com/conneroisu/cydonia/internal/version"
)

// MaxPortAttempts caps the port probe.
const MaxPortAttempts = 100

const (
	DefaultAddress = "127.0.0.1"
	DefaultPort    = 3000
)

// Options configure the preview server.
type Options struct {
	Address string
	Port    int
	// Open launches the system browser once the server is listening.
	Open bool
}

// PreviewServer serves a rendered site with live reload.
type PreviewServer struct {
	manifest *config.Manifest
	hub      *livereload.Hub
	metrics  *build.BuildMetrics
	logger   logging.Logger
	opts     Options
	files    http.Handler

	httpServer   *http.Server
	listener     net.Listener
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a preview server. metrics may be nil.
func New(manifest *config.Manifest, hub *livereload.Hub, metrics *build.BuildMetrics, opts Options, logger logging.Logger) *PreviewServer {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if metrics == nil {
		metrics = build.NewBuildMetrics()
	}

	return &PreviewServer{
		manifest: manifest,
		hub:      hub,
		metrics:  metrics,
		logger:   logger.WithComponent("server"),
		opts:     opts,
		files:    http.FileServer(http.Dir(manifest.Out)),
	}
}

// Listen binds the first free port starting at port, trying at most
// MaxPortAttempts consecutive ports.
func Listen(address string, port int) (net.Listener, error) {
	var lastErr error
	for i := 0; i < MaxPortAttempts; i++ {
		candidate := port + i
		if candidate > 65535 {
			break
		}

		ln, err := net.Listen("tcp", net.JoinHostPort(address, strconv.Itoa(candidate)))
		if err == nil {
			return ln, nil
		}
		lastErr = err

		// port 0 asks the kernel for any port; retrying cannot help
		if port == 0 {
			break
		}
	}

	return nil, fmt.Errorf("no free port on %s starting at %d: %w", address, port, lastErr)
}

// Handler returns the routes of the preview server.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.hub != nil {
		mux.Handle(livereload.Endpoint, s.hub)
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/build/metrics", s.handleBuildMetrics)
	mux.HandleFunc("/", s.handleStatic)

	return s.addMiddleware(mux)
}

// Listen binds the server's port and returns the URL it serves.
func (s *PreviewServer) Listen() (string, error) {
	ln, err := Listen(s.opts.Address, s.opts.Port)
	if err != nil {
		return "", err
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Unlock()

	return s.URL(), nil
}

// URL returns the base URL once the server is listening.
func (s *PreviewServer) URL() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()

	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Serve blocks serving requests until ctx is done or Shutdown is called.
// Listen must have been called.
func (s *PreviewServer) Serve(ctx context.Context) error {
	s.serverMutex.RLock()
	server, ln := s.httpServer, s.listener
	s.serverMutex.RUnlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn(shutdownCtx, err, "Server shutdown failed")
			}
		case <-stop:
		}
	}()

	s.logger.Info(ctx, "Serving site", "url", s.URL(), "out", s.manifest.Out)
	if s.opts.Open {
		go s.openBrowser(ctx, s.URL())
	}

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Start binds the port and serves until ctx is done.
func (s *PreviewServer) Start(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown stops accepting requests and waits for in-flight ones. Live-reload
// connections are closed by shutting down the hub.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// handleStatic serves the output tree with caching disabled, so a reload
// always sees the latest render.
func (s *PreviewServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.manifest.Out, filepath.FromSlash(name))
	if fsutil.IsDir(full) {
		full = filepath.Join(full, "index.html")
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if !fsutil.IsFile(full) {
		page := notFoundPage(s.manifest.Title, name, s.metrics.GetSnapshot().LastError)
		templ.Handler(page, templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
		return
	}

	s.files.ServeHTTP(w, r)
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.metrics.GetSnapshot()
	status := "healthy"
	buildCheck := map[string]interface{}{"status": "healthy", "builds": snapshot.TotalBuilds}
	if snapshot.LastError != "" {
		status = "degraded"
		buildCheck = map[string]interface{}{"status": "failing", "message": snapshot.LastError}
	}

	outCheck := map[string]interface{}{"status": "healthy", "path": s.manifest.Out}
	if !fsutil.IsDir(s.manifest.Out) {
		status = "degraded"
		outCheck["status"] = "missing"
	}

	subscribers := 0
	if s.hub != nil {
		subscribers = s.hub.Subscribers()
	}

	health := map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"server":     map[string]interface{}{"status": "healthy", "message": "HTTP server operational"},
			"output":     outCheck,
			"build":      buildCheck,
			"livereload": map[string]interface{}{"status": "healthy", "subscribers": subscribers},
		},
	}

	writeJSON(r.Context(), s.logger, w, health)
}

func (s *PreviewServer) handleBuildMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(r.Context(), s.logger, w, map[string]interface{}{
		"metrics":      s.metrics.GetSnapshot(),
		"success_rate": s.metrics.GetSuccessRate(),
	})
}

func writeJSON(ctx context.Context, logger logging.Logger, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn(ctx, err, "Failed to encode JSON response")
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		handler.ServeHTTP(w, r)
		if r.URL.Path != livereload.Endpoint {
			s.logger.Debug(r.Context(), "Request served",
				"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

func (s *PreviewServer) openBrowser(ctx context.Context, target string) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.logger.Warn(ctx, err, "Refusing to open invalid URL", "url", target)
		return
	}

	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", u.String()).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String()).Start()
	case "darwin":
		err = exec.Command("open", u.String()).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}
