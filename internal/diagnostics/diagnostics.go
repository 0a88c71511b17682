// Package diagnostics runs smoke checks against the backend and reports a
// summary on the notification bus.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/notify"
)

// RequiredStatusFields must all be present in the /status payload.
var RequiredStatusFields = []string{
	"app_version",
	"db_configured",
	"secret_key_configured",
	"cors_origins",
	"websocket_origins",
	"uptime_seconds",
}

// ErrNoAPIBase is returned when there is nothing to check against.
var ErrNoAPIBase = errors.New("api base url not configured")

const (
	summaryTimeout = 6 * time.Second
	maxBody        = 4096
)

// Doer performs raw backend requests. *api.Client satisfies it.
type Doer interface {
	Base() string
	Raw(ctx context.Context, method, path string) (*http.Response, error)
}

// Result is the outcome of one check.
type Result struct {
	Check     string
	URL       string
	Timestamp time.Time
	Status    int
	Duration  time.Duration
	Expected  string
	Pass      bool
	Body      string
	Notes     string
}

// Report collects every check of one run.
type Report struct {
	Base      string
	StartedAt time.Time
	Results   []Result
}

// Passed counts passing checks.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Pass {
			n++
		}
	}
	return n
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.Passed() == len(r.Results)
}

// Summary is the toast message for the run.
func (r Report) Summary() string {
	passed, total := r.Passed(), len(r.Results)
	if failed := total - passed; failed > 0 {
		return fmt.Sprintf("Diagnostics passed (%d/%d OK, %d needs attention).", passed, total, failed)
	}
	return fmt.Sprintf("Diagnostics passed (%d/%d OK).", passed, total)
}

// Runner executes the checks in order.
type Runner struct {
	client       Doer
	bus          *notify.Bus
	backendReady func() bool
	logger       *log.Logger
	now          func() time.Time
}

// NewRunner creates a runner. backendReady is consulted only when /status
// yields no payload to read db_configured from; nil means false.
func NewRunner(client Doer, bus *notify.Bus, backendReady func() bool, logger *log.Logger) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if backendReady == nil {
		backendReady = func() bool { return false }
	}
	return &Runner{
		client:       client,
		bus:          bus,
		backendReady: backendReady,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Run performs the three checks sequentially. Check failures are reported in
// the Report, not as errors.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	base := r.client.Base()
	if base == "" {
		r.push(notify.Toast(notify.LevelWarning, "Diagnostics",
			"API base URL not configured. Set api_base_url or run the backend on :3001."))
		return Report{}, ErrNoAPIBase
	}

	report := Report{Base: base, StartedAt: r.now()}

	root := r.fetch(ctx, "/")
	report.Results = append(report.Results, r.result("GET /", root, "200 OK", root.status == http.StatusOK, ""))

	status := r.fetch(ctx, "/status")
	var notes string
	if status.json != nil {
		if missing := missingFields(status.json); len(missing) > 0 {
			notes = "Missing fields: " + strings.Join(missing, ", ")
		}
	}
	report.Results = append(report.Results, r.result("GET /status", status,
		"200 JSON with fields: "+strings.Join(RequiredStatusFields, ", "),
		status.status == http.StatusOK && notes == "", notes))

	dbConfigured := r.backendReady()
	if status.json != nil {
		dbConfigured = truthy(status.json["db_configured"])
	}
	projects := r.fetch(ctx, "/api/projects")
	if dbConfigured {
		pass := projects.status == http.StatusOK || projects.status == http.StatusUnauthorized || projects.status == http.StatusForbidden
		report.Results = append(report.Results, r.result("GET /api/projects", projects,
			"200 or 401 (DB configured)", pass, "DB configured: guarded route may require auth."))
	} else {
		report.Results = append(report.Results, r.result("GET /api/projects", projects,
			"503 JSON (DB not configured)", projects.status == http.StatusServiceUnavailable,
			"DB not configured: 503 expected behavior."))
	}

	level := notify.LevelSuccess
	if !report.OK() {
		level = notify.LevelWarning
	}
	r.push(notify.Notification{
		Type:    level,
		Title:   "Diagnostics complete",
		Message: report.Summary(),
		Timeout: summaryTimeout,
	})
	r.logger.WithFields(log.Fields{
		"base":   base,
		"passed": report.Passed(),
		"total":  len(report.Results),
	}).Info("diagnostics.complete")
	return report, nil
}

type response struct {
	url      string
	status   int
	body     string
	json     map[string]any
	duration time.Duration
}

// fetch never fails; transport errors land in body with status 0.
func (r *Runner) fetch(ctx context.Context, path string) response {
	start := r.now()
	res := response{url: r.client.Base() + path}
	resp, err := r.client.Raw(ctx, http.MethodGet, path)
	if err != nil {
		res.body = err.Error()
		res.duration = r.now().Sub(start)
		return res
	}
	defer resp.Body.Close()

	res.status = resp.StatusCode
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	res.duration = r.now().Sub(start)
	if err != nil {
		res.body = err.Error()
		return res
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var obj map[string]any
		if sonic.Unmarshal(data, &obj) == nil {
			res.json = obj
		}
	}
	res.body = truncate(string(data))
	return res
}

func (r *Runner) result(check string, res response, expected string, pass bool, notes string) Result {
	return Result{
		Check:     check,
		URL:       res.url,
		Timestamp: r.now(),
		Status:    res.status,
		Duration:  res.duration,
		Expected:  expected,
		Pass:      pass,
		Body:      res.body,
		Notes:     notes,
	}
}

func (r *Runner) push(n notify.Notification) {
	if r.bus != nil {
		r.bus.Push(n)
	}
}

func missingFields(payload map[string]any) []string {
	var missing []string
	for _, field := range RequiredStatusFields {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != "" && b != "false" && b != "0"
	case float64:
		return b != 0
	default:
		return false
	}
}

func truncate(s string) string {
	if len(s) <= maxBody {
		return s
	}
	return s[:maxBody] + "\n...(truncated)"
}
