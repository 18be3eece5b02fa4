// Package scope implements dynamically scoped state with guard objects.
//
// A Stack holds a value that nested code sees as "current"; Push installs
// a new value for the extent of a guard and Release restores the previous
// one. With and WithValue tie the guard to a function body so the
// restore happens on every exit path, including panics.
//
// Guards on one Stack or Var nest. Release only accepts the innermost
// open guard; Unwind releases a guard together with every guard entered
// after it.
package scope

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/panicz/clops/errors"
)

// Guard undoes one scoped override.
type Guard struct {
	leave    func(g *Guard, unwind bool) error
	released atomic.Bool
}

// Release undoes the override. It fails with a precondition error while
// guards entered after g are still open, and leaves the state untouched
// in that case. Calls after the first successful one return nil.
func (g *Guard) Release() error {
	if g == nil {
		return nil
	}
	return g.leave(g, false)
}

// Unwind releases every open guard entered after g, innermost first, and
// then g itself.
func (g *Guard) Unwind() {
	if g == nil {
		return
	}
	g.leave(g, true)
}

// Released reports whether the override has been undone.
func (g *Guard) Released() bool { return g != nil && g.released.Load() }

// nesting tracks the open guards of one Stack or Var, outermost first.
// Callers hold the owner's mutex.
type nesting struct {
	open []*Guard
}

func (n *nesting) enter(leave func(*Guard, bool) error) *Guard {
	g := &Guard{leave: leave}
	n.open = append(n.open, g)
	return g
}

// exit returns how many guards to close for releasing g, or 0 if g is
// already closed.
func (n *nesting) exit(g *Guard, unwind bool) (int, error) {
	i := slices.Index(n.open, g)
	if i < 0 {
		return 0, nil
	}
	count := len(n.open) - i
	if count > 1 && !unwind {
		return 0, errors.Precondition(errors.PhaseScope, []string{"leave"},
			"guard released out of order: %d inner guards still open", count-1)
	}
	for _, inner := range n.open[i:] {
		inner.released.Store(true)
	}
	clear(n.open[i:])
	n.open = n.open[:i]
	return count, nil
}

// Stack is a stack of values whose top is the current value.
// The zero value is an empty stack ready for use.
type Stack[T any] struct {
	mu     sync.Mutex
	frames []T
	guards nesting
}

// Push makes v current until the returned guard is released.
func (s *Stack[T]) Push(v T) *Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, v)
	return s.guards.enter(s.leave)
}

func (s *Stack[T]) leave(g *Guard, unwind bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, err := s.guards.exit(g, unwind)
	if err != nil {
		return err
	}
	n := len(s.frames) - count
	clear(s.frames[n:])
	s.frames = s.frames[:n]
	return nil
}

// SetTop replaces the current value. On an empty stack it pushes v, and
// that frame is never popped by a guard.
func (s *Stack[T]) SetTop(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.frames); n > 0 {
		s.frames[n-1] = v
		return
	}
	s.frames = append(s.frames, v)
}

// Top returns the current value, or false on an empty stack.
func (s *Stack[T]) Top() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.frames); n > 0 {
		return s.frames[n-1], true
	}
	var zero T
	return zero, false
}

// Depth returns the number of frames.
func (s *Stack[T]) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// With runs body with v pushed and pops it when body returns or panics.
// Guards body entered on s and left open are unwound too.
func With[T any](s *Stack[T], v T, body func() error) error {
	g := s.Push(v)
	defer g.Unwind()
	return body()
}

// Var is a single dynamically scoped value.
// The zero value holds the zero T.
type Var[T any] struct {
	mu     sync.Mutex
	cur    T
	saved  []T
	guards nesting
}

// NewVar returns a Var holding initial.
func NewVar[T any](initial T) *Var[T] {
	return &Var[T]{cur: initial}
}

// Get returns the current value.
func (v *Var[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Override installs val and returns a guard restoring the value that was
// current before.
func (v *Var[T]) Override(val T) *Guard {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.saved = append(v.saved, v.cur)
	v.cur = val
	return v.guards.enter(v.leave)
}

func (v *Var[T]) leave(g *Guard, unwind bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	count, err := v.guards.exit(g, unwind)
	if err != nil || count == 0 {
		return err
	}
	n := len(v.saved) - count
	v.cur = v.saved[n]
	clear(v.saved[n:])
	v.saved = v.saved[:n]
	return nil
}

// WithValue runs body with val installed and restores the previous value
// when body returns or panics.
func WithValue[T any](v *Var[T], val T, body func() error) error {
	g := v.Override(val)
	defer g.Unwind()
	return body()
}
