// Package probe polls the backend status endpoint and reports what it finds.
//
// The probe never returns errors. Every outcome is handed to a Sink, which in
// practice is the demo coordinator that owns the connectivity state.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

// Outcome classifies a single status check.
type Outcome int

const (
	// OutcomeSkipped means demo mode was already on and no request was sent.
	OutcomeSkipped Outcome = iota
	// OutcomeUnreachable means no HTTP response arrived.
	OutcomeUnreachable
	// OutcomeUnavailable means the backend answered 503 (no database configured).
	OutcomeUnavailable
	// OutcomeNotOK means any other non-2xx status.
	OutcomeNotOK
	// OutcomeReady means a 2xx status.
	OutcomeReady
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeNotOK:
		return "not-ok"
	case OutcomeReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Outcome      Outcome
	StatusCode   int
	DBConfigured bool
	Details      map[string]any
	Err          error
	CheckedAt    time.Time
}

// Sink receives check results.
type Sink interface {
	DemoMode() bool
	Observe(Result)
}

// Doer performs a raw authenticated request. *api.Client satisfies it.
type Doer interface {
	Raw(ctx context.Context, method, path string) (*http.Response, error)
}

// Config holds configuration for the prober.
type Config struct {
	// Interval between checks in Run
	Interval time.Duration

	// Path of the status endpoint
	Path string

	// Logger for probe activity
	Logger *log.Logger
}

// DefaultConfig returns the polling defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Second,
		Path:     "/status",
		Logger:   log.StandardLogger(),
	}
}

// Prober checks backend health on demand and on an interval.
type Prober struct {
	client Doer
	sink   Sink
	config *Config
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a prober. A nil config uses DefaultConfig.
func New(client Doer, sink Sink, config *Config) (*Prober, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Prober{client: client, sink: sink, config: config, now: time.Now}, nil
}

// Check runs one status check and reports it to the sink.
func (p *Prober) Check(ctx context.Context) Result {
	res := p.check(ctx)
	res.CheckedAt = p.now()
	if ctx.Err() != nil && res.Outcome == OutcomeUnreachable {
		// Shutting down; the state no longer matters.
		return res
	}
	p.config.Logger.WithFields(log.Fields{
		"outcome": res.Outcome.String(),
		"status":  res.StatusCode,
	}).Debug("probe.check")
	p.sink.Observe(res)
	return res
}

func (p *Prober) check(ctx context.Context) Result {
	if p.sink.DemoMode() {
		return Result{Outcome: OutcomeSkipped}
	}

	resp, err := p.client.Raw(ctx, http.MethodGet, p.config.Path)
	if err != nil {
		return Result{Outcome: OutcomeUnreachable, Err: err}
	}
	defer resp.Body.Close()

	res := Result{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		res.Outcome = OutcomeUnavailable
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		res.Outcome = OutcomeNotOK
	default:
		res.Outcome = OutcomeReady
		res.Details, res.DBConfigured = parseStatus(resp.Body)
	}
	return res
}

// parseStatus reads the status payload. A body that is not a JSON object is
// ignored and the database is reported as not configured.
func parseStatus(r io.Reader) (map[string]any, bool) {
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, false
	}
	var details map[string]any
	if err := sonic.Unmarshal(data, &details); err != nil {
		return nil, false
	}
	for _, key := range []string{"db_configured", "dbConfigured"} {
		if v, ok := details[key].(bool); ok {
			return details, v
		}
	}
	return details, false
}

// Run checks immediately and then on every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Start runs the polling loop in the background. Calling Start twice is a no-op.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run(ctx)
	}()
}

// Stop cancels the polling loop and waits for an in-flight check to finish.
func (p *Prober) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}
