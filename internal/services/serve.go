package services

import (
	"context"
	"sync"

	"github.com/conneroisu/cydonia/internal/build"
	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/livereload"
	"github.com/conneroisu/cydonia/internal/logging"
	"github.com/conneroisu/cydonia/internal/server"
)

// ServeService runs a watch session behind the preview server. The two share
// only the hub: the watch loop publishes, the websocket handlers consume.
type ServeService struct {
	manifest *config.Manifest
	logger   logging.Logger
	metrics  *build.BuildMetrics

	hub    *livereload.Hub
	watch  *WatchService
	server *server.PreviewServer
	errc   chan error
	once   sync.Once
}

// NewServeService creates a new serve service
func NewServeService(manifest *config.Manifest, logger logging.Logger) *ServeService {
	return &ServeService{
		manifest: manifest,
		logger:   logger,
		metrics:  build.NewBuildMetrics(),
	}
}

// ServeOptions contains options for the serve process
type ServeOptions struct {
	Address string
	Port    int
	Open    bool
	// QueueSize is the per-client reload queue; zero uses the default.
	QueueSize int
}

// ServeResult contains the result of a serve operation
type ServeResult struct {
	ServerURL string
}

// Start renders the site, starts watching and begins serving. It returns as
// soon as the server is listening.
func (s *ServeService) Start(ctx context.Context, opts ServeOptions) (*ServeResult, error) {
	s.hub = livereload.NewHub(s.logger, opts.QueueSize)
	s.watch = NewWatchService(s.manifest, s.hub, s.metrics, s.logger)

	if err := s.watch.Start(ctx); err != nil {
		s.hub.Shutdown()
		return nil, err
	}

	s.server = server.New(s.manifest, s.hub, s.metrics, server.Options{
		Address: opts.Address,
		Port:    opts.Port,
		Open:    opts.Open,
	}, s.logger)

	url, err := s.server.Listen()
	if err != nil {
		_ = s.watch.Stop()
		s.hub.Shutdown()
		return nil, err
	}

	s.errc = make(chan error, 1)
	go func() {
		s.errc <- s.server.Serve(ctx)
	}()

	return &ServeResult{ServerURL: url}, nil
}

// Stop shuts down the hub, then the server, then the watch session.
func (s *ServeService) Stop(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		if s.server == nil {
			return
		}
		// Hub first: hijacked websocket connections do not block
		// http.Server.Shutdown but their handlers exit once queues close.
		s.hub.Shutdown()
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
		}
		if serveErr := <-s.errc; serveErr != nil && err == nil {
			err = serveErr
		}
		if stopErr := s.watch.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	})
	return err
}

// Serve runs until ctx is done.
func (s *ServeService) Serve(ctx context.Context, opts ServeOptions) (*ServeResult, error) {
	result, err := s.Start(ctx, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Preview server ready", "url", result.ServerURL)

	select {
	case <-ctx.Done():
	case err := <-s.errc:
		// server died on its own; put the error back for Stop
		s.errc <- err
	}

	return result, s.Stop(context.Background())
}

// Hub returns the live-reload hub once started.
func (s *ServeService) Hub() *livereload.Hub {
	return s.hub
}

// Metrics returns the build metrics shared by the watch loop and the server.
func (s *ServeService) Metrics() *build.BuildMetrics {
	return s.metrics
}
