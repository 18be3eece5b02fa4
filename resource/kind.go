package resource

import (
	"fmt"
	"sync"
)

// Kind is a registered object kind. The zero Kind is never registered.
type Kind uint32

var kinds = struct {
	sync.RWMutex
	names  []string
	byName map[string]Kind
}{
	names:  []string{""},
	byName: make(map[string]Kind),
}

// RegisterKind returns the tag for name, registering it on first use.
// Registering the same name again returns the existing tag.
func RegisterKind(name string) Kind {
	kinds.Lock()
	defer kinds.Unlock()
	if k, ok := kinds.byName[name]; ok {
		return k
	}
	k := Kind(len(kinds.names))
	kinds.names = append(kinds.names, name)
	kinds.byName[name] = k
	return k
}

// LookupKind returns the tag registered for name.
func LookupKind(name string) (Kind, bool) {
	kinds.RLock()
	defer kinds.RUnlock()
	k, ok := kinds.byName[name]
	return k, ok
}

// String returns the registered name.
func (k Kind) String() string {
	kinds.RLock()
	defer kinds.RUnlock()
	if k == 0 || int(k) >= len(kinds.names) {
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
	return kinds.names[k]
}
