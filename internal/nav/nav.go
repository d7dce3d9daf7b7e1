// Package nav keeps the route back stack for the screens.
package nav

import (
	"errors"
	"fmt"
	"sync"
)

// Route names a screen.
type Route string

const (
	Login  Route = "login"
	Home   Route = "home"
	Signup Route = "signup"
)

var ErrUnknownRoute = errors.New("unknown route")

// Option adjusts a single navigation.
type Option func(*navigation)

type navigation struct {
	popUpTo   Route
	inclusive bool
}

// PopUpTo removes every entry above route before pushing the destination,
// and route itself when inclusive is set. If route is not on the stack
// nothing is removed.
func PopUpTo(route Route, inclusive bool) Option {
	return func(n *navigation) {
		n.popUpTo = route
		n.inclusive = inclusive
	}
}

// Navigator is a back stack of routes. It is safe for concurrent use.
type Navigator struct {
	mu     sync.RWMutex
	stack  []Route
	routes map[Route]bool
}

// New returns a navigator showing start.
func New(start Route) *Navigator {
	return &Navigator{
		stack:  []Route{start},
		routes: map[Route]bool{Login: true, Home: true, Signup: true},
	}
}

// Navigate pushes dest, applying opts first.
func (n *Navigator) Navigate(dest Route, opts ...Option) error {
	if !n.routes[dest] {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, dest)
	}
	var nv navigation
	for _, opt := range opts {
		opt(&nv)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if nv.popUpTo != "" {
		for i := len(n.stack) - 1; i >= 0; i-- {
			if n.stack[i] != nv.popUpTo {
				continue
			}
			if nv.inclusive {
				n.stack = n.stack[:i]
			} else {
				n.stack = n.stack[:i+1]
			}
			break
		}
	}
	n.stack = append(n.stack, dest)
	return nil
}

// Current returns the route on top of the stack, or "" when it is empty.
func (n *Navigator) Current() Route {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.stack) == 0 {
		return ""
	}
	return n.stack[len(n.stack)-1]
}

// BackStack returns a copy of the stack, bottom first.
func (n *Navigator) BackStack() []Route {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Route(nil), n.stack...)
}

// Back pops the current route. It reports false when there is nothing to
// go back to, leaving the last route in place.
func (n *Navigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) <= 1 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	return true
}
