// Package ui provides the single event loop that completion handlers run
// on, and the sink for transient user-visible messages.
package ui

import (
	"context"
	"errors"
	"sync"

	"github.com/gwlsn/signin/internal/logger"
)

var ErrLoopStopped = errors.New("ui loop stopped")

// Loop runs posted callbacks one at a time, in post order, on the goroutine
// that called Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewLoop creates a loop. Callbacks posted before Run starts are kept.
func NewLoop() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post queues fn. It never blocks, so callbacks may post further work.
// Callbacks posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.stopped:
		logger.Debug("Dropping callback posted to stopped ui loop")
		return
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks until ctx ends. A panicking callback is logged and
// does not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.stopped) })
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.invoke(fn)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Sync blocks until every callback posted before it has run.
func (l *Loop) Sync(ctx context.Context) error {
	done := make(chan struct{})
	l.Post(func() { close(done) })
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ui callback panicked", "panic", r)
		}
	}()
	fn()
}
