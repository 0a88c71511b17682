// Package api is the REST client for the task board backend.
//
// Every non-2xx response becomes an *HTTPError whose message has the form
// "METHOD path failed: status", which is what the demo fallback logic keys on.
// Failures are also reported to an optional Notifier so the notification bus
// can surface them without the caller doing anything.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/taskboards/taskboards/internal/api"
	maxResponseSize = 4 << 20
	defaultTimeout  = 15 * time.Second
)

// Notifier receives request failures. status is 0 when no response arrived.
type Notifier func(op string, status int, err error)

// Client talks to the backend REST API.
type Client struct {
	base     string
	http     *http.Client
	token    func() string
	notifier Notifier
	logger   *log.Logger
	tracer   trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken supplies the bearer token lazily so logins and logouts take
// effect without rebuilding the client.
func WithToken(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithNotifier wires a failure callback, usually notify.Bus.APIErrorNotifier.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a client rooted at base (e.g. "http://localhost:3001").
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: defaultTimeout},
		logger: log.StandardLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the API base URL.
func (c *Client) Base() string {
	return c.base
}

// Get fetches path and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete removes the resource at path. An empty or non-JSON body is not an error.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

// Raw performs an authenticated request and hands back the response untouched.
// Status handling and notifications are left to the caller.
func (c *Client) Raw(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	op := method + " " + path
	ctx, span := c.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	start := time.Now()
	status := 0
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		fields := log.Fields{
			"op":          op,
			"status":      status,
			"duration_ms": float64(time.Since(start)) / float64(time.Millisecond),
		}
		if err != nil {
			fields["error"] = err.Error()
			c.logger.WithFields(fields).Debug("api.request.failed")
			return
		}
		c.logger.WithFields(fields).Debug("api.request")
	}()

	var payload []byte
	if body != nil {
		payload, err = sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", op, err)
		}
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		c.report(ctx, op, 0, err)
		return err
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		err = fmt.Errorf("failed to read %s response: %w", op, err)
		c.report(ctx, op, status, err)
		return err
	}

	if status < 200 || status >= 300 {
		httpErr := &HTTPError{Method: method, Path: path, StatusCode: status, Body: data}
		c.report(ctx, op, status, httpErr)
		return httpErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		if method == http.MethodDelete {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// report forwards failures to the notifier unless the caller went away.
func (c *Client) report(ctx context.Context, op string, status int, err error) {
	if c.notifier == nil || ctx.Err() != nil {
		return
	}
	c.notifier(op, status, err)
}
