package demo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/probe"
	"github.com/taskboards/taskboards/internal/types"
)

func newTestCoordinator(t *testing.T, demoMode bool) *Coordinator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewCoordinator(demoMode, nil, logger)
}

func TestNewCoordinatorSeedsMode(t *testing.T) {
	live := newTestCoordinator(t, false).CurrentMode()
	if live.DemoMode || !live.BackendReady {
		t.Errorf("live start = %+v", live)
	}
	forced := newTestCoordinator(t, true).CurrentMode()
	if !forced.DemoMode || forced.BackendReady {
		t.Errorf("forced demo start = %+v", forced)
	}
}

func TestDemoModeIsStickyAcrossProbes(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
		fmt.Fprint(w, `{"db_configured":true}`)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	c := NewCoordinator(false, nil, logger)
	p, err := probe.New(api.New(srv.URL, api.WithLogger(logger)), c, &probe.Config{Logger: logger})
	if err != nil {
		t.Fatalf("probe.New: %v", err)
	}

	p.Check(context.Background())
	assertDemoState(t, c.State())

	status.Store(http.StatusOK)
	p.Check(context.Background())
	assertDemoState(t, c.State())

	if hits.Load() != 1 {
		t.Errorf("backend hit %d times, want 1", hits.Load())
	}
}

func assertDemoState(t *testing.T, s State) {
	t.Helper()
	if !s.DemoMode || s.BackendReady || s.DBConfigured == nil || *s.DBConfigured {
		t.Fatalf("state = %+v, want demo/not ready/db false", s)
	}
}

func TestObserveReadyAndUnreachable(t *testing.T) {
	c := newTestCoordinator(t, false)

	c.Observe(probe.Result{Outcome: probe.OutcomeReady, DBConfigured: true, Details: map[string]any{"app_version": "1.2"}})
	s := c.State()
	if !s.BackendReady || s.DBConfigured == nil || !*s.DBConfigured || s.StatusDetails["app_version"] != "1.2" {
		t.Fatalf("after ready: %+v", s)
	}

	c.Observe(probe.Result{Outcome: probe.OutcomeUnreachable})
	s = c.State()
	if s.BackendReady || s.DemoMode {
		t.Fatalf("after unreachable: %+v", s)
	}
	if s.DBConfigured == nil || !*s.DBConfigured {
		t.Errorf("unreachable should leave db flag alone")
	}
}

func TestStateIsACopy(t *testing.T) {
	c := newTestCoordinator(t, false)
	c.Observe(probe.Result{Outcome: probe.OutcomeReady, Details: map[string]any{"k": "v"}})

	s := c.State()
	s.StatusDetails["k"] = "changed"
	*s.DBConfigured = true

	again := c.State()
	if again.StatusDetails["k"] != "v" || *again.DBConfigured {
		t.Fatalf("state leaked: %+v", again)
	}
}

func TestRunWithFallbackSkipsOperationInDemoMode(t *testing.T) {
	c := newTestCoordinator(t, true)
	calls := 0
	op := func(context.Context) ([]types.Task, error) {
		calls++
		return nil, nil
	}

	tasks, err := RunWithFallback(context.Background(), c, op, Tasks)
	if err != nil {
		t.Fatalf("RunWithFallback: %v", err)
	}
	if calls != 0 {
		t.Fatalf("operation invoked %d times in demo mode", calls)
	}
	if len(tasks) != len(SeedTasks()) {
		t.Fatalf("got %d demo tasks, want %d", len(tasks), len(SeedTasks()))
	}
}

func TestRunWithFallbackFallbackVariants(t *testing.T) {
	c := newTestCoordinator(t, true)
	op := func(context.Context) (int, error) { return 1, nil }

	n, err := RunWithFallback(context.Background(), c, op, nil)
	if err != nil || n != 0 {
		t.Errorf("nil fallback = %d, %v; want 0, nil", n, err)
	}
	n, err = RunWithFallback(context.Background(), c, op, Constant(42))
	if err != nil || n != 42 {
		t.Errorf("constant fallback = %d, %v; want 42, nil", n, err)
	}
}

func TestRunWithFallbackEntersDemoOn503(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed", &api.HTTPError{Method: "GET", Path: "/tasks", StatusCode: 503}},
		{"message", errors.New("GET /api/boards failed: 503")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(t, false)
			op := func(context.Context) (string, error) { return "", tt.err }

			v, err := RunWithFallback(context.Background(), c, op, Constant("demo"))
			if err != nil {
				t.Fatalf("503 must not propagate: %v", err)
			}
			if v != "demo" {
				t.Errorf("value = %q, want fallback", v)
			}
			if m := c.CurrentMode(); !m.DemoMode || m.BackendReady {
				t.Errorf("mode = %+v", m)
			}
		})
	}
}

func TestRunWithFallbackPropagatesOtherErrors(t *testing.T) {
	c := newTestCoordinator(t, false)
	want := &api.HTTPError{Method: "GET", Path: "/tasks", StatusCode: 401}
	op := func(context.Context) ([]types.Task, error) { return nil, want }

	_, err := RunWithFallback(context.Background(), c, op, Tasks)
	if !errors.Is(err, want) || !errors.Is(err, api.ErrUnauthenticated) {
		t.Fatalf("err = %v, want the original auth error", err)
	}
	if c.DemoMode() {
		t.Fatal("auth error must not enable demo mode")
	}
}

func TestRunWithFallbackIgnores503OutsideTheStatus(t *testing.T) {
	logger, _ := test.NewNullLogger()

	t.Run("404 on a path containing 503", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		client := api.New(srv.URL, api.WithLogger(logger))
		c := newTestCoordinator(t, false)

		op := func(ctx context.Context) (types.Task, error) {
			var task types.Task
			err := client.Get(ctx, "/api/tasks/t503", &task)
			return task, err
		}
		_, err := RunWithFallback(context.Background(), c, op, nil)
		if !errors.Is(err, api.ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
		if c.DemoMode() {
			t.Fatal("404 must not enable demo mode")
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		client := api.New(srv.URL, api.WithLogger(logger))
		srv.Close()
		c := newTestCoordinator(t, false)

		op := func(ctx context.Context) (types.Task, error) {
			var task types.Task
			err := client.Get(ctx, "/api/tasks/t503", &task)
			return task, err
		}
		_, err := RunWithFallback(context.Background(), c, op, nil)
		if err == nil || api.StatusCode(err) != 0 {
			t.Fatalf("err = %v, want transport error", err)
		}
		if c.DemoMode() {
			t.Fatal("transport failure must not enable demo mode")
		}
	})
}

func TestLateReadyProbeKeepsDemoInvariant(t *testing.T) {
	c := newTestCoordinator(t, false)
	c.EnterDemo("503 from a data fetch")

	c.Observe(probe.Result{Outcome: probe.OutcomeReady, DBConfigured: true})

	if s := c.State(); !s.DemoMode || s.BackendReady {
		t.Fatalf("state = %+v, want demo and not ready", s)
	}
}

func TestRunWithFallbackReturnsLiveValue(t *testing.T) {
	c := newTestCoordinator(t, false)
	op := func(context.Context) (string, error) { return "live", nil }
	v, err := RunWithFallback(context.Background(), c, op, Constant("demo"))
	if err != nil || v != "live" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestGuard(t *testing.T) {
	wrote := false
	write := func(context.Context) error {
		wrote = true
		return nil
	}

	demo := newTestCoordinator(t, true)
	if err := demo.Guard(context.Background(), write); !errors.Is(err, ErrMutationsDisabled) {
		t.Fatalf("Guard in demo mode = %v", err)
	}
	if wrote {
		t.Fatal("write ran in demo mode")
	}

	live := newTestCoordinator(t, false)
	if err := live.Guard(context.Background(), write); err != nil || !wrote {
		t.Fatalf("Guard in live mode = %v, wrote = %v", err, wrote)
	}
}

func TestOnChangeFiresOnTransitionsOnly(t *testing.T) {
	c := newTestCoordinator(t, false)
	var states []State
	c.OnChange(func(s State) { states = append(states, s) })

	c.EnterDemo("test")
	c.EnterDemo("test again")

	if len(states) != 1 || !states[0].DemoMode {
		t.Fatalf("observer calls = %+v", states)
	}
}

func TestSetTasksReplacesDataset(t *testing.T) {
	c := newTestCoordinator(t, true)
	ctx := context.Background()
	if err := c.SetTasks(ctx, []types.Task{{ID: "x", Status: types.StatusDone}}); err != nil {
		t.Fatalf("SetTasks: %v", err)
	}
	got := c.Tasks(ctx)
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("Tasks = %+v", got)
	}
}
