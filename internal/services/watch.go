package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/conneroisu/cydonia/internal/build"
	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/errors"
	"github.com/conneroisu/cydonia/internal/fsutil"
	"github.com/conneroisu/cydonia/internal/livereload"
	"github.com/conneroisu/cydonia/internal/logging"
	"github.com/conneroisu/cydonia/internal/renderer"
	"github.com/conneroisu/cydonia/internal/watcher"
)

// WatchState is the lifecycle state of a WatchService.
type WatchState int32

const (
	StateIdle WatchState = iota
	StateWatching
	StateShuttingDown
)

func (s WatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// WatchService keeps the output tree in sync with the sources. It owns the
// renderer; all output writes happen on its loop goroutine. When a hub is set,
// every successful non-empty rebuild publishes one reload message.
type WatchService struct {
	manifest *config.Manifest
	hub      *livereload.Hub
	metrics  *build.BuildMetrics
	logger   logging.Logger
	handler  *errors.Handler

	state    int32
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	watcher  *watcher.FileWatcher
	executor *build.Executor
}

// NewWatchService creates a watch session. hub and metrics may be nil.
func NewWatchService(manifest *config.Manifest, hub *livereload.Hub, metrics *build.BuildMetrics, logger logging.Logger) *WatchService {
	if metrics == nil {
		metrics = build.NewBuildMetrics()
	}
	logger = logger.WithComponent("watch")

	return &WatchService{
		manifest: manifest,
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
		handler:  errors.NewHandler(logger),
	}
}

// State returns the current lifecycle state.
func (s *WatchService) State() WatchState {
	return WatchState(atomic.LoadInt32(&s.state))
}

// Start renders the whole site, registers watches on every tracked root that
// exists and starts the loop. A failing initial render is returned and
// nothing is watched.
func (s *WatchService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.State() != StateIdle {
		return fmt.Errorf("watch session already %s", s.State())
	}

	opts := renderer.Options{}
	if s.hub != nil {
		opts.LiveReload = livereload.Endpoint
	}

	op := logging.StartOperation(s.logger, "initial_build")
	r, err := renderer.New(s.manifest, opts)
	if err != nil {
		op.EndWithError(ctx, err)
		s.metrics.RecordBuild(nil, err)
		return err
	}
	posts, err := renderAll(s.manifest, r)
	if err != nil {
		op.EndWithError(ctx, err)
		s.metrics.RecordBuild(nil, err)
		return err
	}
	s.metrics.RecordBuild(&build.Result{Pages: len(posts) + 1, Duration: op.Elapsed()}, nil)
	op.End(ctx)

	fw, err := watcher.NewFileWatcher(s.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.ExcludeFilter(s.manifest.Out))
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(s.handleBatch)

	for _, root := range s.manifest.TrackedRoots() {
		if !fsutil.Exists(root) {
			s.logger.Debug(ctx, "Tracked root missing, not watched", "path", root)
			continue
		}
		if err := fw.AddRoot(root); err != nil {
			s.handler.Handle(ctx, err)
			continue
		}
		s.logger.Debug(ctx, "Watching root", "path", root)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.watcher = fw
	s.executor = build.NewExecutor(s.manifest, r)
	atomic.StoreInt32(&s.state, int32(StateWatching))

	go func() {
		defer close(s.done)
		fw.Run(s.ctx)
	}()

	s.logger.Info(ctx, "Watching for changes", "posts", len(posts), "out", s.manifest.Out)
	return nil
}

// handleBatch runs on the loop goroutine. Failures are logged and never stop
// the session.
func (s *WatchService) handleBatch(events []watcher.ChangeEvent) error {
	if s.State() != StateWatching {
		return nil
	}

	plan := build.Classify(s.manifest, watcher.Paths(events))
	if plan.Empty() {
		s.logger.Debug(s.ctx, "Ignoring untracked changes", "events", len(events))
		return nil
	}

	result, err := s.executor.Apply(plan)
	s.metrics.RecordBuild(result, err)
	if err != nil {
		s.handler.Handle(s.ctx, err)
		return nil
	}

	s.logger.Info(s.ctx, "Rebuilt",
		"plan", plan.String(),
		"pages", result.Pages,
		"removed", result.Removed,
		"duration", result.Duration)

	if s.hub != nil {
		s.hub.PublishReload(plan.String())
	}

	return nil
}

// Stop releases the watches and waits for the loop to finish. It is safe to
// call on a session that never started.
func (s *WatchService) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.State() != StateWatching {
		return nil
	}
	atomic.StoreInt32(&s.state, int32(StateShuttingDown))

	s.cancel()
	err := s.watcher.Close()
	<-s.done

	atomic.StoreInt32(&s.state, int32(StateIdle))
	return err
}

// Run starts the session and blocks until ctx is done.
func (s *WatchService) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}
