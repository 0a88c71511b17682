package diagnostics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/notify"
)

const fullStatus = `{"app_version":"1.0.0","db_configured":false,"secret_key_configured":true,` +
	`"cors_origins":["http://localhost:3000"],"websocket_origins":[],"uptime_seconds":12}`

func newBackend(t *testing.T, status string, projects int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(status))
	})
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(projects)
		w.Write([]byte(`{"error":"database not configured"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(t *testing.T, base string) (*Runner, *notify.Bus) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	bus := notify.NewBus(logger)
	t.Cleanup(bus.Close)
	r, err := NewRunner(api.New(base, api.WithLogger(logger)), bus, nil, logger)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r, bus
}

func TestRunAllPassWithoutDB(t *testing.T) {
	srv := newBackend(t, fullStatus, http.StatusServiceUnavailable)
	r, bus := newRunner(t, srv.URL)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 3 || !report.OK() {
		t.Fatalf("unexpected report: %+v", report.Results)
	}
	if report.Results[2].Expected != "503 JSON (DB not configured)" {
		t.Fatalf("expected = %q", report.Results[2].Expected)
	}

	active := bus.Active()
	if len(active) != 1 {
		t.Fatalf("expected one toast, got %d", len(active))
	}
	toast := active[0]
	if toast.Type != notify.LevelSuccess || toast.Title != "Diagnostics complete" ||
		toast.Message != "Diagnostics passed (3/3 OK)." || toast.Timeout != summaryTimeout {
		t.Fatalf("unexpected toast: %+v", toast)
	}
}

func TestRunFlagsMissingStatusFields(t *testing.T) {
	srv := newBackend(t, `{"db_configured":true}`, http.StatusUnauthorized)
	r, bus := newRunner(t, srv.URL)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	status := report.Results[1]
	if status.Pass || !strings.HasPrefix(status.Notes, "Missing fields: app_version") {
		t.Fatalf("status check = %+v", status)
	}
	if !report.Results[2].Pass {
		t.Fatalf("401 with DB configured should pass: %+v", report.Results[2])
	}

	toast := bus.Active()[0]
	if toast.Type != notify.LevelWarning || toast.Message != "Diagnostics passed (2/3 OK, 1 needs attention)." {
		t.Fatalf("unexpected toast: %+v", toast)
	}
}

func TestRunUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	r, _ := newRunner(t, base)
	r.backendReady = func() bool { return true }

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, res := range report.Results {
		if res.Pass || res.Status != 0 || res.Body == "" {
			t.Fatalf("check %s should fail with transport error: %+v", res.Check, res)
		}
	}
	if report.Results[2].Expected != "200 or 401 (DB configured)" {
		t.Fatalf("expected backendReady fallback, got %q", report.Results[2].Expected)
	}
}

func TestRunWithoutBase(t *testing.T) {
	r, bus := newRunner(t, "")

	if _, err := r.Run(context.Background()); !errors.Is(err, ErrNoAPIBase) {
		t.Fatalf("err = %v, want ErrNoAPIBase", err)
	}
	active := bus.Active()
	if len(active) != 1 || active[0].Type != notify.LevelWarning || !strings.Contains(active[0].Message, ":3001") {
		t.Fatalf("unexpected toasts: %+v", active)
	}
}

func TestNewRunnerRequiresClient(t *testing.T) {
	if _, err := NewRunner(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxBody+10)
	if got := truncate(long); !strings.HasSuffix(got, "(truncated)") || len(got) < maxBody {
		t.Fatalf("truncate produced %d bytes", len(got))
	}
	if truncate("short") != "short" {
		t.Fatal("short bodies must be untouched")
	}
}
