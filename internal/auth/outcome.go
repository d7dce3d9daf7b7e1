package auth

import (
	"context"
	"errors"
	"sync"
)

// Outcome is the result of one request: either a session (or a bare
// acknowledgement) on success, or the failure that ended it.
type Outcome struct {
	Session *Session
	Err     error
}

// Success builds a successful outcome. s may be nil for acknowledgements.
func Success(s *Session) Outcome {
	return Outcome{Session: s}
}

// Failure builds a failed outcome.
func Failure(err error) Outcome {
	if err == nil {
		err = ErrInvalidResponse
	}
	return Outcome{Err: err}
}

// OK reports success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Kind classifies the failure, KindNone on success.
func (o Outcome) Kind() Kind {
	return Classify(o.Err)
}

// Message returns the backend-supplied reason where one exists, else the error text.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	var rejection *RejectionError
	if errors.As(o.Err, &rejection) {
		return rejection.Error()
	}
	return o.Err.Error()
}

// Pending is a dispatched request. It resolves exactly once; callbacks
// registered with OnComplete run exactly once each, whether registered
// before or after resolution.
type Pending struct {
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	outcome   Outcome
	resolved  bool
	callbacks []func(Outcome)
}

// NewPending returns an unresolved request.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns a request that has already completed with o.
func Resolved(o Outcome) *Pending {
	p := NewPending()
	p.Resolve(o)
	return p
}

// Go runs fn on its own goroutine and resolves the request with its result.
func Go(ctx context.Context, fn func(ctx context.Context) Outcome) *Pending {
	p := NewPending()
	go func() {
		p.Resolve(fn(ctx))
	}()
	return p
}

// Resolve completes the request. Only the first call has any effect.
// It returns false if the request was already resolved.
func (p *Pending) Resolve(o Outcome) bool {
	first := false
	p.once.Do(func() {
		first = true
		p.mu.Lock()
		p.outcome = o
		p.resolved = true
		callbacks := p.callbacks
		p.callbacks = nil
		p.mu.Unlock()

		close(p.done)
		for _, fn := range callbacks {
			fn(o)
		}
	})
	return first
}

// Done is closed once the request resolves.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the result and whether the request has resolved.
func (p *Pending) Outcome() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome, p.resolved
}

// Wait blocks until the request resolves or ctx ends. A ctx ending does not
// cancel the request itself.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		o, _ := p.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// OnComplete registers fn to run once with the outcome. If the request has
// already resolved, fn runs immediately on the caller's goroutine.
func (p *Pending) OnComplete(fn func(Outcome)) {
	p.mu.Lock()
	if !p.resolved {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	o := p.outcome
	p.mu.Unlock()
	fn(o)
}
