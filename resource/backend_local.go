package resource

import (
	"sync"

	"github.com/panicz/clops/errors"
)

// LocalBackend is an in-memory handle store with borrow tracking.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       Object
	kind        Kind
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(value Object) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.New(errors.PhaseRegistry, errors.KindClosed).Detail("handle table closed").Build()
	}

	e := entry{
		kind:  value.Kind(),
		value: value,
		valid: true,
	}

	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// lookup returns the live entry for handle. Callers hold mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 || int(handle-1) >= len(b.entries) {
		return nil
	}
	e := &b.entries[handle-1]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value and its kind by handle.
func (b *LocalBackend) Get(handle Handle) (Object, Kind, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, 0, false
	}
	return e.value, e.kind, true
}

// Drop frees the slot of handle and returns the value it held. It fails
// for unknown handles and for handles with outstanding borrows.
func (b *LocalBackend) Drop(handle Handle) (Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, errors.NotFound(errors.PhaseRegistry, "handle", handle)
	}
	if e.borrowCount > 0 {
		return nil, errors.New(errors.PhaseRegistry, errors.KindBorrowed).
			Value(handle).
			Got(e.kind.String()).
			Detail("handle %d has %d outstanding borrows", handle, e.borrowCount).
			Build()
	}

	value := e.value
	e.valid = false
	e.value = nil
	e.borrowCount = 0
	b.freeList = append(b.freeList, handle)

	return value, nil
}

// Close marks the backend closed and returns the values that were still
// live, in handle order. The caller runs their destroy hooks.
func (b *LocalBackend) Close() []Object {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var live []Object
	for i := range b.entries {
		if b.entries[i].valid {
			live = append(live, b.entries[i].value)
		}
	}

	b.entries = nil
	b.freeList = nil
	return live
}

// Borrow increments the borrow count for a handle.
func (b *LocalBackend) Borrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return false
	}
	e.borrowCount++
	return true
}

// ReturnBorrow decrements the borrow count for a handle.
func (b *LocalBackend) ReturnBorrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return false
	}
	e.borrowCount--
	return true
}

// Borrows returns the outstanding borrow count for a handle.
func (b *LocalBackend) Borrows(handle Handle) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0
	}
	return e.borrowCount
}

// Len returns the number of live handles.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live handles in handle order.
func (b *LocalBackend) Each(fn func(Handle, Object) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}
