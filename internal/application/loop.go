package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/rigpilot/internal/ports"
)

// Loop is the cooperative event loop every session component runs on. Posted
// callbacks execute one at a time, so component state needs no locks as long
// as it is only touched from loop callbacks. Blocking work goes through Go,
// which runs off the loop and posts its continuation back.
type Loop struct {
	clock ports.Clock

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	inflight sync.WaitGroup
}

func NewLoop(clock ports.Clock) *Loop {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Loop{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

func (l *Loop) Clock() ports.Clock {
	return l.clock
}

func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post enqueues fn. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on its own goroutine and posts the continuation it returns.
// A nil continuation posts nothing.
func (l *Loop) Go(work func() func()) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		if next := work(); next != nil {
			l.Post(next)
		}
	}()
}

// Call posts fn and blocks until it has run on the loop or ctx is done.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc schedules fn on the loop after d. Stopping the returned timer
// from a loop callback guarantees fn will not run, even if the underlying
// clock already fired.
func (l *Loop) AfterFunc(d time.Duration, fn func()) ports.Timer {
	t := &loopTimer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Every runs fn on the loop every d until the returned timer is stopped.
// The next occurrence is armed when the previous one fires, so a slow
// callback never causes a burst.
func (l *Loop) Every(d time.Duration, fn func()) ports.Timer {
	t := &loopTicker{loop: l, interval: d, fn: fn}
	t.arm()
	return t
}

// Run executes posted callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs every queued callback, including ones queued while draining,
// on the calling goroutine. It returns how many ran.
func (l *Loop) Drain() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return ran
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		ran++
	}
}

// Settle drains the loop and waits for in-flight work until nothing is left
// to run. Only meaningful when the caller is the goroutine driving the loop.
func (l *Loop) Settle() {
	for {
		l.inflight.Wait()
		if l.Drain() == 0 && l.pending() == 0 {
			return
		}
	}
}

func (l *Loop) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

type loopTimer struct {
	timer   ports.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	t.timer.Stop()
	return true
}

type loopTicker struct {
	loop     *Loop
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	current ports.Timer
	stopped bool
}

func (t *loopTicker) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.current = t.loop.AfterFunc(t.interval, t.fire)
}

func (t *loopTicker) fire() {
	t.arm()
	t.fn()
}

func (t *loopTicker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.current != nil {
		t.current.Stop()
	}
	return true
}
