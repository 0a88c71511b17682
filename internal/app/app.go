// Package app owns the process lifecycle: it builds every component from
// configuration, starts the background loops and tears them down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/board"
	"github.com/taskboards/taskboards/internal/config"
	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/diagnostics"
	"github.com/taskboards/taskboards/internal/filter"
	"github.com/taskboards/taskboards/internal/logging"
	"github.com/taskboards/taskboards/internal/notify"
	"github.com/taskboards/taskboards/internal/pages"
	"github.com/taskboards/taskboards/internal/probe"
	"github.com/taskboards/taskboards/internal/realtime"
	"github.com/taskboards/taskboards/internal/session"
	"github.com/taskboards/taskboards/internal/types"
)

// ErrNotLoggedIn is returned when an operation needs a session and there is none.
var ErrNotLoggedIn = errors.New("not logged in")

// Options customizes New. The zero value is usable.
type Options struct {
	// ConfigPath points at a YAML or TOML file; empty searches the defaults
	ConfigPath string

	// Config skips loading when set
	Config *config.Config

	// LogOut receives text logs (default stderr)
	LogOut io.Writer

	HTTPClient     *http.Client
	Dialer         realtime.Dialer
	TracerProvider trace.TracerProvider
}

// App wires the client together.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Bus         *notify.Bus
	Client      *api.Client
	Coordinator *demo.Coordinator
	Prober      *probe.Prober

	loader   *config.Loader
	sessions *session.Store
	store    demo.Store
	watcher  *demo.SeedWatcher
	dialer   realtime.Dialer
	closers  []io.Closer

	mu      sync.RWMutex
	current *session.Session
	channel *realtime.Channel

	stopOnce sync.Once
}

// New builds an App. Nothing runs in the background until Start.
func New(ctx context.Context, opts Options) (*App, error) {
	a := &App{dialer: opts.Dialer}

	cfg := opts.Config
	if cfg == nil {
		a.loader = config.NewLoader(opts.ConfigPath)
		loaded, err := a.loader.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	a.Config = cfg

	logger, logCloser := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Out:       opts.LogOut,
	})
	a.Logger = logger
	a.closers = append(a.closers, logCloser)
	a.Bus = notify.NewBus(logger)

	sessions, err := session.Open(cfg.Session.Path)
	if err != nil {
		a.Stop()
		return nil, err
	}
	a.sessions = sessions
	if sess, err := sessions.Load(ctx); err == nil {
		a.current = sess
	} else if !errors.Is(err, session.ErrNoSession) {
		logger.WithError(err).Warn("app.session.load")
	}

	base, err := cfg.APIBase()
	if err != nil {
		a.Stop()
		return nil, err
	}
	a.Client = api.New(base,
		api.WithHTTPClient(opts.HTTPClient),
		api.WithToken(a.Token),
		api.WithNotifier(a.Bus.APIErrorNotifier()),
		api.WithLogger(logger),
		api.WithTracerProvider(opts.TracerProvider),
	)

	seed := demo.SeedTasks()
	if cfg.Demo.SeedFile != "" {
		if seed, err = demo.LoadSeed(cfg.Demo.SeedFile); err != nil {
			a.Stop()
			return nil, err
		}
	}
	if cfg.Demo.RedisURL != "" {
		rs, err := demo.OpenRedisStore(ctx, cfg.Demo.RedisURL, seed)
		if err != nil {
			a.Stop()
			return nil, err
		}
		a.store = rs
		a.closers = append(a.closers, rs)
	} else {
		a.store = demo.NewMemoryStore(seed)
	}

	a.Coordinator = demo.NewCoordinator(cfg.DemoMode, a.store, logger)
	a.Coordinator.OnChange(func(s demo.State) {
		logger.WithFields(log.Fields{
			"demo":          s.DemoMode,
			"backend_ready": s.BackendReady,
		}).Info("app.mode")
	})

	a.Prober, err = probe.New(a.Client, a.Coordinator, &probe.Config{
		Interval: cfg.PollInterval,
		Logger:   logger,
	})
	if err != nil {
		a.Stop()
		return nil, err
	}

	if cfg.Demo.SeedFile != "" {
		a.watcher, err = demo.NewSeedWatcher(cfg.Demo.SeedFile, a.store, &demo.WatcherConfig{
			DebounceInterval: 100 * time.Millisecond,
			Logger:           logger,
		})
		if err != nil {
			a.Stop()
			return nil, err
		}
	}
	return a, nil
}

// Start launches the status poller, the seed watcher and config hot reload.
func (a *App) Start(ctx context.Context) error {
	a.Prober.Start(ctx)
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed watcher: %w", err)
		}
	}
	if a.loader != nil {
		a.loader.Watch(a.reload, func(err error) {
			a.Logger.WithError(err).Warn("app.config.reload")
		})
	}
	return nil
}

// reload applies the settings that can change while running.
func (a *App) reload(cfg *config.Config) {
	a.Logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	a.Logger.WithField("file", a.loader.File()).Info("app.config.reloaded")
}

// Check runs one status probe and returns the resulting connectivity state.
func (a *App) Check(ctx context.Context) demo.State {
	a.Prober.Check(ctx)
	return a.Coordinator.State()
}

// Token returns the session token, or "" when logged out.
func (a *App) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return ""
	}
	return a.current.Token
}

// User returns the session user.
func (a *App) User() (types.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return types.User{}, false
	}
	return a.current.User, true
}

// Login signs in and caches the session.
func (a *App) Login(ctx context.Context, email, password string) (types.User, error) {
	sess, err := session.Login(email, password, time.Now())
	if err != nil {
		return types.User{}, err
	}
	if err := a.sessions.Save(ctx, sess); err != nil {
		return types.User{}, err
	}
	a.mu.Lock()
	a.current = &sess
	a.mu.Unlock()
	a.Logger.WithField("user", sess.User.ID).Info("app.login")
	return sess.User, nil
}

// Logout drops the cached session and closes the realtime channel.
func (a *App) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.current = nil
	ch := a.channel
	a.channel = nil
	a.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
	return a.sessions.Clear(ctx)
}

// Realtime starts the presence channel for the session user. Without a
// session the channel is returned closed.
func (a *App) Realtime(ctx context.Context) (*realtime.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel != nil {
		return a.channel, nil
	}

	var cfg realtime.Config
	if a.current != nil {
		wsBase, err := a.Config.WSBase()
		if err != nil {
			return nil, err
		}
		cfg = realtime.Config{
			BaseURL:  wsBase,
			Endpoint: a.Config.Realtime.Endpoint,
			Token:    a.current.Token,
			User:     a.current.User,
			Backoff: realtime.Backoff{
				Min:    a.Config.Realtime.MinDelay,
				Max:    a.Config.Realtime.MaxDelay,
				Factor: a.Config.Realtime.GrowFactor,
			},
		}
	}
	cfg.Dialer = a.dialer
	cfg.Logger = a.Logger

	ch, err := realtime.New(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Token != "" {
		if err := ch.Start(ctx); err != nil {
			return nil, err
		}
	}
	a.channel = ch
	return ch, nil
}

// BoardPage builds the Kanban page bound to h.
func (a *App) BoardPage(h filter.History) (*pages.BoardPage, error) {
	reconciler := board.NewReconciler(a.Coordinator, a.Client, a.Bus, a.Config.HasFlag(board.FlagPersistOrder), a.Logger)
	return pages.NewBoardPage(a.Coordinator, a.Client, reconciler, bind(h), a.Logger)
}

// CalendarPage builds the calendar page bound to h.
func (a *App) CalendarPage(h filter.History) (*pages.CalendarPage, error) {
	return pages.NewCalendarPage(a.Coordinator, a.Client, bind(h), a.Logger)
}

// Diagnostics builds a diagnostics runner against the API base.
func (a *App) Diagnostics() (*diagnostics.Runner, error) {
	return diagnostics.NewRunner(a.Client, a.Bus, func() bool {
		return a.Coordinator.CurrentMode().BackendReady
	}, a.Logger)
}

func bind(h filter.History) *filter.Binder {
	if h == nil {
		return nil
	}
	return filter.Bind(h)
}

// Stop tears everything down: poller, realtime channel, seed watcher, bus,
// then stores and log output. Safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		if a.Prober != nil {
			a.Prober.Stop()
		}
		a.mu.Lock()
		ch := a.channel
		a.channel = nil
		a.mu.Unlock()
		if ch != nil {
			_ = ch.Close()
		}
		if a.watcher != nil {
			_ = a.watcher.Stop()
		}
		if a.Bus != nil {
			a.Bus.Close()
		}
		if a.sessions != nil {
			_ = a.sessions.Close()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			_ = a.closers[i].Close()
		}
	})
}
