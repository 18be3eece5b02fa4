package cl

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/resource"
)

// object is the base of wrappers that own a native resource: the kind
// tag plus a release-once cell.
type object struct {
	kind     resource.Kind
	once     sync.Once
	released atomic.Bool
	cleanup  runtime.Cleanup
	release  func() error
}

// releaser is the native release call for one object. It must not refer
// to the wrapper, or the wrapper would never become unreachable.
type releaser struct {
	op  string
	fn  func() error
	log *zap.Logger
}

func (r releaser) run() error {
	err := r.fn()
	if err != nil {
		r.log.Warn(r.op+" failed",
			zap.Stringer("status", native.StatusOf(err)),
			zap.String("cause", native.StatusOf(err).Message()))
	}
	return err
}

// own arms the object: r runs exactly once, on Release or, for a wrapper
// that becomes unreachable first, from a GC cleanup.
func own[T any](w *T, o *object, kind resource.Kind, r releaser) {
	o.kind = kind
	o.release = r.run
	o.cleanup = runtime.AddCleanup(w, func(r releaser) {
		r.log.Debug("released by cleanup", zap.String("op", r.op))
		r.run()
	}, r)
}

// Kind returns the registered kind tag.
func (o *object) Kind() resource.Kind { return o.kind }

// Released reports whether Release has been called.
func (o *object) Released() bool { return o.released.Load() }

// Release releases the native object. Calls after the first return nil.
func (o *object) Release() error {
	var err error
	o.once.Do(func() {
		o.released.Store(true)
		o.cleanup.Stop()
		if o.release != nil {
			err = o.release()
		}
	})
	return err
}

// Drop is the handle table's destroy hook.
func (o *object) Drop() error { return o.Release() }

// live returns a released error when the object can no longer be used.
func (o *object) live(phase errors.Phase) error {
	if o.released.Load() {
		return errors.Released(phase, o.kind.String())
	}
	return nil
}
