package assistant

import (
	"html"
	"io"
	"log/slog"
	"sync"
	"time"
)

const DefaultTick = 20 * time.Millisecond

// Target receives the rendered markup of a growing reply.
type Target interface {
	Render(markup string)
}

// Scroller is implemented by targets that can follow the growing content.
type Scroller interface {
	ScrollToBottom()
}

// Streamer reveals replies one character per tick.
type Streamer struct {
	sched    Scheduler
	tick     time.Duration
	sanitize SanitizeFunc
	logger   *slog.Logger
}

type StreamerOption func(*Streamer)

func WithTick(d time.Duration) StreamerOption {
	return func(s *Streamer) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithStreamScheduler(sched Scheduler) StreamerOption {
	return func(s *Streamer) {
		if sched != nil {
			s.sched = sched
		}
	}
}

func WithSanitizer(fn SanitizeFunc) StreamerOption {
	return func(s *Streamer) {
		if fn != nil {
			s.sanitize = fn
		}
	}
}

func WithStreamLogger(logger *slog.Logger) StreamerOption {
	return func(s *Streamer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStreamer(opts ...StreamerOption) *Streamer {
	s := &Streamer{
		sched:    SystemScheduler(),
		tick:     DefaultTick,
		sanitize: Sanitize,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "streamer")
	return s
}

// Stream is the state of one reveal. Streams are independent of each other.
type Stream struct {
	source   []rune
	target   Target
	sanitize SanitizeFunc
	logger   *slog.Logger

	// renderMu is held for a whole tick so Stop can wait for it.
	renderMu sync.Mutex

	mu       sync.Mutex
	cursor   int
	revealed string
	task     Task
	finished bool
	done     chan struct{}
}

// Reveal starts revealing full into target and returns immediately. An empty
// reply finishes without rendering anything.
func (s *Streamer) Reveal(full string, target Target) *Stream {
	st := &Stream{
		source:   []rune(full),
		target:   target,
		sanitize: s.sanitize,
		logger:   s.logger,
		done:     make(chan struct{}),
	}
	if len(st.source) == 0 {
		st.finished = true
		close(st.done)
		return st
	}
	st.mu.Lock()
	st.task = s.sched.Every(s.tick, st.step)
	st.mu.Unlock()
	return st
}

func (st *Stream) step() {
	st.renderMu.Lock()
	defer st.renderMu.Unlock()

	st.mu.Lock()
	if st.finished {
		st.mu.Unlock()
		return
	}
	st.cursor++
	prefix := string(st.source[:st.cursor])
	markup, err := st.sanitize(prefix)
	if err != nil {
		st.logger.Debug("sanitize failed, rendering plain text", "cursor", st.cursor, "err", err)
		markup = html.EscapeString(prefix)
	}
	st.revealed = markup
	complete := st.cursor == len(st.source)
	if complete {
		st.finished = true
		if st.task != nil {
			st.task.Stop()
		}
	}
	st.mu.Unlock()

	if st.target != nil {
		st.target.Render(markup)
		if sc, ok := st.target.(Scroller); ok {
			sc.ScrollToBottom()
		}
	}
	if complete {
		close(st.done)
	}
}

func (st *Stream) finishLocked() {
	if st.finished {
		return
	}
	st.finished = true
	if st.task != nil {
		st.task.Stop()
	}
	close(st.done)
}

// Stop tears the stream down. A tick that is already rendering finishes
// before Stop returns, and the target is never touched afterwards. Stop must
// not be called from the target's Render.
func (st *Stream) Stop() {
	st.renderMu.Lock()
	defer st.renderMu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.finishLocked()
}

// Cursor is the number of characters revealed so far.
func (st *Stream) Cursor() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cursor
}

// Len is the length of the full reply in characters.
func (st *Stream) Len() int {
	return len(st.source)
}

func (st *Stream) Revealed() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.revealed
}

// Done is closed when the reply is fully revealed or the stream is stopped.
func (st *Stream) Done() <-chan struct{} {
	return st.done
}

// Wait blocks until the stream is done or the stop channel closes.
func (st *Stream) Wait(stop <-chan struct{}) bool {
	select {
	case <-st.done:
		return true
	case <-stop:
		return false
	}
}
