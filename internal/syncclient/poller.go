// Package syncclient keeps local copies of the telemetry endpoints fresh.
// Each endpoint gets its own polling loop whose cadence follows the agent's
// reported survival tier; failures surface as a connectivity flag, never as
// errors to the consumer.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/automatonhq/sidecar/internal/otel"
)

// pollTimeout bounds one request well under the shortest poll interval
// (5s, critical/fast) so in-flight polls never overlap their own loop.
const pollTimeout = 4 * time.Second

// Snapshot is the consumer-facing poll state. Initialized flips true after
// the first poll completes, successful or not; from then on Data always
// holds something displayable.
type Snapshot[T any] struct {
	Data        T
	Connected   bool
	LastPoll    time.Time
	Initialized bool
}

// Poller polls one endpoint and holds its latest value. The anti-flicker
// rule: the placeholder is installed only when the very first poll fails;
// after any success, failures keep the last known-good value and just drop
// the connectivity flag.
type Poller[T any] struct {
	baseURL     string
	path        string
	speed       Speed
	placeholder T
	client      *http.Client
	log         *slog.Logger
	tracer      trace.Tracer
	metrics     *otel.Metrics
	now         func() time.Time

	mu     sync.Mutex
	snap   Snapshot[T]
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
	// gen invalidates torn-down loops: a poll that started before teardown
	// must not mutate state after it.
	gen int
}

// Option configures a Poller.
type Option[T any] func(*Poller[T])

func WithLogger[T any](log *slog.Logger) Option[T] {
	return func(p *Poller[T]) { p.log = log }
}

func WithHTTPClient[T any](c *http.Client) Option[T] {
	return func(p *Poller[T]) { p.client = c }
}

func WithTelemetry[T any](tracer trace.Tracer, metrics *otel.Metrics) Option[T] {
	return func(p *Poller[T]) {
		if tracer != nil {
			p.tracer = tracer
		}
		p.metrics = metrics
	}
}

func WithPollClock[T any](now func() time.Time) Option[T] {
	return func(p *Poller[T]) { p.now = now }
}

func NewPoller[T any](baseURL, path string, speed Speed, placeholder T, opts ...Option[T]) *Poller[T] {
	p := &Poller[T]{
		baseURL:     baseURL,
		path:        path,
		speed:       speed,
		placeholder: placeholder,
		client:      &http.Client{Timeout: pollTimeout},
		log:         slog.Default(),
		tracer:      nooptrace.NewTracerProvider().Tracer(otel.TracerName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling at the cadence for the given tier: one immediate
// poll, then a ticker. Calling Start on a running poller restarts it.
func (p *Poller[T]) Start(ctx context.Context, tier string) {
	p.teardown()

	p.mu.Lock()
	p.parent = ctx
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	p.gen++
	gen := p.gen
	interval := IntervalFor(tier, p.speed)
	p.mu.Unlock()

	go p.loop(loopCtx, gen, interval, done)
}

// Retier tears down the current loop and restarts at the new tier's
// cadence. The restart polls immediately, so a tier change is visible
// right away.
func (p *Poller[T]) Retier(tier string) {
	p.mu.Lock()
	parent := p.parent
	p.mu.Unlock()
	if parent == nil {
		return
	}
	p.Start(parent, tier)
}

// Stop halts the loop deterministically: when it returns, no further poll
// will fire and no in-flight poll will mutate the snapshot.
func (p *Poller[T]) Stop() {
	p.teardown()
	p.mu.Lock()
	p.parent = nil
	p.mu.Unlock()
}

func (p *Poller[T]) teardown() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.gen++
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Snapshot returns the current poll state.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *Poller[T]) loop(ctx context.Context, gen int, interval time.Duration, done chan struct{}) {
	defer close(done)

	p.pollOnce(ctx, gen)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, gen)
		}
	}
}

func (p *Poller[T]) pollOnce(ctx context.Context, gen int) {
	start := time.Now()
	data, err := p.fetch(ctx)
	if p.metrics != nil {
		p.metrics.PollDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(otel.AttrEndpoint.String(p.path)))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		// Torn down while the request was in flight.
		return
	}

	if err != nil {
		if p.metrics != nil {
			p.metrics.PollFailures.Add(ctx, 1,
				metric.WithAttributes(otel.AttrEndpoint.String(p.path)))
		}
		p.log.Debug("poll failed", "endpoint", p.path, "error", err)
		if !p.snap.Initialized {
			p.snap.Data = p.placeholder
		}
		p.snap.Connected = false
		p.snap.Initialized = true
		return
	}

	p.snap.Data = data
	p.snap.Connected = true
	p.snap.LastPoll = p.now()
	p.snap.Initialized = true
}

func (p *Poller[T]) fetch(ctx context.Context) (T, error) {
	var zero T

	ctx, span := otel.StartClientSpan(ctx, p.tracer, "syncclient.poll",
		otel.AttrEndpoint.String(p.path))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+p.path, nil)
	if err != nil {
		return zero, fmt.Errorf("build poll request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("poll %s: %w", p.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("poll %s: status %d", p.path, resp.StatusCode)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", p.path, err)
	}
	return out, nil
}
