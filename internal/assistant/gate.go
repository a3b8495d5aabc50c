package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"site-assistant/internal/domain"
)

const DefaultRetryInterval = 2 * time.Second

var (
	ErrEmptyPrompt = errors.New("assistant: prompt must not be empty")
	ErrGateClosed  = errors.New("assistant: gate closed")
)

type State int

const (
	StateNotReady State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "not_ready"
}

// Request is one chat call as seen by the gate.
type Request struct {
	Prompt  string
	Context string
	History []domain.ChatMessage
}

// Prober checks that the endpoint accepts requests.
type Prober interface {
	Probe(ctx context.Context) error
}

// Invoker performs the chat call itself.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

type callResult struct {
	content string
	err     error
}

type pendingCall struct {
	ctx    context.Context
	req    Request
	result chan callResult
}

// Gate holds chat calls until the endpoint has answered a readiness probe,
// then replays them in submission order. Ready is terminal.
type Gate struct {
	prober   Prober
	invoker  Invoker
	sched    Scheduler
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	queue   []*pendingCall
	started bool
	closed  bool
	probeCt context.Context
	retry   Task
}

type GateOption func(*Gate)

// WithoutProbe starts the gate Ready, for endpoints assumed reachable.
func WithoutProbe() GateOption {
	return func(g *Gate) {
		g.state = StateReady
	}
}

func WithRetryInterval(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

func WithScheduler(s Scheduler) GateOption {
	return func(g *Gate) {
		if s != nil {
			g.sched = s
		}
	}
}

func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGate(prober Prober, invoker Invoker, opts ...GateOption) (*Gate, error) {
	if invoker == nil {
		return nil, errors.New("assistant: invoker must not be nil")
	}
	g := &Gate{
		prober:   prober,
		invoker:  invoker,
		sched:    SystemScheduler(),
		interval: DefaultRetryInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:    StateNotReady,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.state == StateNotReady && g.prober == nil {
		return nil, errors.New("assistant: prober must not be nil unless probing is disabled")
	}
	g.logger = g.logger.With("module", "gate")
	return g, nil
}

// Start schedules the first readiness probe. Probing stops when ctx is done,
// when the gate becomes Ready or when Close is called. Calling Start on a
// Ready or already started gate does nothing.
func (g *Gate) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateReady || g.started || g.closed {
		return
	}
	g.started = true
	g.probeCt = ctx
	g.retry = g.sched.AfterFunc(0, g.probe)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the number of queued calls.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Submit runs req once the gate is Ready. While NotReady the call is queued
// without any I/O and Submit blocks until it is drained, ctx is done or the
// gate is closed.
func (g *Gate) Submit(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return "", ErrGateClosed
	}
	if g.state == StateReady {
		g.mu.Unlock()
		return g.invoker.Invoke(ctx, req)
	}
	call := &pendingCall{ctx: ctx, req: req, result: make(chan callResult, 1)}
	g.queue = append(g.queue, call)
	g.mu.Unlock()

	select {
	case res := <-call.result:
		return res.content, res.err
	case <-ctx.Done():
		g.remove(call)
		return "", ctx.Err()
	}
}

// Close stops probing and rejects every queued call with ErrGateClosed.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	if g.retry != nil {
		g.retry.Stop()
	}
	queue := g.queue
	g.queue = nil
	g.mu.Unlock()

	for _, call := range queue {
		call.result <- callResult{err: ErrGateClosed}
	}
}

func (g *Gate) remove(call *pendingCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range g.queue {
		if c == call {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			return
		}
	}
}

func (g *Gate) probe() {
	g.mu.Lock()
	ctx := g.probeCt
	if g.closed || g.state == StateReady || ctx.Err() != nil {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	if err := g.prober.Probe(ctx); err != nil {
		g.logger.Debug("readiness probe failed", "retryIn", g.interval, "err", err)
		g.mu.Lock()
		if !g.closed && ctx.Err() == nil {
			g.retry = g.sched.AfterFunc(g.interval, g.probe)
		}
		g.mu.Unlock()
		return
	}

	g.logger.Info("endpoint ready", "queued", g.Pending())
	g.drain()
}

// drain dispatches queued calls in submission order, each on its own
// goroutine so a slow call never holds up the ones behind it. The gate only
// turns Ready once the queue is empty, so calls submitted meanwhile are
// queued behind earlier ones instead of overtaking them.
func (g *Gate) drain() {
	for {
		g.mu.Lock()
		queue := g.queue
		g.queue = nil
		if len(queue) == 0 {
			if !g.closed {
				g.state = StateReady
			}
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		for _, call := range queue {
			g.dispatch(call)
		}
	}
}

// dispatch settles a call whose context is already done without I/O.
func (g *Gate) dispatch(call *pendingCall) {
	if err := call.ctx.Err(); err != nil {
		call.result <- callResult{err: err}
		return
	}
	go func() {
		content, err := g.invoker.Invoke(call.ctx, call.req)
		call.result <- callResult{content: content, err: err}
	}()
}
