package assistant

import (
	"sync"
	"time"
)

// Task is a scheduled unit of work. Stop reports whether the call prevented
// any further run.
type Task interface {
	Stop() bool
}

// Scheduler runs delayed and recurring callbacks. The gate and the streamer
// never touch timers directly so tests can drive them deterministically.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
	Every(d time.Duration, f func()) Task
}

type systemScheduler struct{}

// SystemScheduler returns a Scheduler backed by the runtime timers.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// Every runs f once per interval on a single goroutine, so runs of one task
// never overlap.
func (systemScheduler) Every(d time.Duration, f func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.loop(f)
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) loop(f func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			f()
		}
	}
}

func (t *tickerTask) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
