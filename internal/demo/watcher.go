package demo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// WatcherConfig holds configuration for SeedWatcher.
type WatcherConfig struct {
	// DebounceInterval batches bursts of writes (editors often save in
	// several steps) into one reload
	DebounceInterval time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultWatcherConfig returns sensible defaults.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.StandardLogger(),
	}
}

// SeedWatcher reloads a seed file into a Store whenever the file changes.
// A file that fails to parse leaves the store untouched.
type SeedWatcher struct {
	path    string
	store   Store
	config  *WatcherConfig
	watcher *fsnotify.Watcher
	reloads chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSeedWatcher creates a watcher for path. Call Start to begin watching.
func NewSeedWatcher(path string, store Store, config *WatcherConfig) (*SeedWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("seed path cannot be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultWatcherConfig()
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seed path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &SeedWatcher{
		path:    abs,
		store:   store,
		config:  config,
		watcher: watcher,
		reloads: make(chan struct{}, 16),
	}, nil
}

// Reloads delivers a signal after every successful reload.
func (w *SeedWatcher) Reloads() <-chan struct{} {
	return w.reloads
}

// Start watches the directory holding the seed file. The directory, not the
// file, is watched so atomic renames by editors are picked up.
func (w *SeedWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch seed directory: %w", err)
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.wg.Add(1)
	go w.loop(ctx)
	w.config.Logger.WithField("path", w.path).Debug("demo.seed.watch")
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *SeedWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *SeedWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.config.DebounceInterval)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.config.DebounceInterval)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.WithError(err).Warn("demo.seed.watch")
		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *SeedWatcher) reload(ctx context.Context) {
	tasks, err := LoadSeed(w.path)
	if err != nil {
		w.config.Logger.WithError(err).Warn("demo.seed.reload")
		return
	}
	if err := w.store.Replace(ctx, tasks); err != nil {
		w.config.Logger.WithError(err).Warn("demo.seed.reload")
		return
	}
	w.config.Logger.WithField("tasks", len(tasks)).Info("demo.seed.reload")
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}
