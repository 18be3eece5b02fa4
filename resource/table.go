package resource

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/panicz/clops/errors"
)

// Table maps handles to wrapped objects, with kind checks and observers.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Wrap stores obj and returns its handle, or 0 if the table is closed.
func (t *Table) Wrap(obj Object) Handle {
	handle, err := t.backend.Create(obj)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Kind:   obj.Kind(),
		Value:  obj,
	})

	return handle
}

// Get retrieves an object by handle.
func (t *Table) Get(handle Handle) (Object, bool) {
	obj, _, ok := t.backend.Get(handle)
	return obj, ok
}

// AssertKind returns the object stored under handle if it has the given
// kind. The table is left untouched on failure.
func (t *Table) AssertKind(kind Kind, handle Handle) (Object, error) {
	obj, actual, ok := t.backend.Get(handle)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegistry, "handle", handle)
	}
	if actual != kind {
		err := errors.TypeMismatch(errors.PhaseRegistry, kind.String(), actual.String())
		err.Value = handle
		return nil, err
	}
	return obj, nil
}

// As is AssertKind followed by a conversion to the wrapper type.
func As[T Object](t *Table, kind Kind, handle Handle) (T, error) {
	var zero T
	obj, err := t.AssertKind(kind, handle)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseRegistry, fmt.Sprintf("%T", zero), fmt.Sprintf("%T", obj))
	}
	return v, nil
}

// Render returns the display form of the object under handle.
func (t *Table) Render(handle Handle) string {
	obj, _, ok := t.backend.Get(handle)
	if !ok {
		return fmt.Sprintf("#<invalid handle %d>", handle)
	}
	return obj.String()
}

// Destroy removes handle and runs the object's Drop hook. The slot is
// freed even if Drop fails.
func (t *Table) Destroy(handle Handle) error {
	value, err := t.backend.Drop(handle)
	if err != nil {
		return err
	}

	var dropErr error
	if d, ok := value.(Dropper); ok {
		dropErr = d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Kind:   value.Kind(),
		Value:  value,
	})

	return dropErr
}

// Borrow marks handle as in use by a pending operation.
func (t *Table) Borrow(handle Handle) error {
	if !t.backend.Borrow(handle) {
		return errors.NotFound(errors.PhaseRegistry, "handle", handle)
	}
	t.notifyHandle(EventBorrowed, handle)
	return nil
}

// ReturnBorrow releases one borrow taken with Borrow.
func (t *Table) ReturnBorrow(handle Handle) error {
	if !t.backend.ReturnBorrow(handle) {
		return errors.New(errors.PhaseRegistry, errors.KindNotFound).
			Value(handle).
			Detail("handle %d has no outstanding borrow", handle).
			Build()
	}
	t.notifyHandle(EventBorrowReturned, handle)
	return nil
}

// Borrows returns the outstanding borrow count of handle.
func (t *Table) Borrows(handle Handle) int {
	return int(t.backend.Borrows(handle))
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. Only comparable observers can be
// removed.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Each calls fn for every live handle until fn returns false.
func (t *Table) Each(fn func(Handle, Object) bool) {
	t.backend.Each(fn)
}

// Close destroys every live object and stops accepting new ones. Drop
// errors are combined. Borrows are ignored.
func (t *Table) Close() error {
	var err error
	for _, value := range t.backend.Close() {
		if d, ok := value.(Dropper); ok {
			err = multierr.Append(err, d.Drop())
		}
	}
	return err
}

func (t *Table) notifyHandle(typ EventType, handle Handle) {
	obj, kind, ok := t.backend.Get(handle)
	if !ok {
		return
	}
	t.notify(Event{Type: typ, Handle: handle, Kind: kind, Value: obj})
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
