package native

import (
	"fmt"
	"sort"
	"sync"
)

// Factory opens a driver instance.
type Factory func() (API, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register makes a driver available under name. It panics if Register is
// called twice with the same name or with a nil factory.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if f == nil {
		panic("native: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("native: Register called twice for driver " + name)
	}
	drivers[name] = f
}

// Open instantiates the driver registered under name.
func Open(name string) (API, error) {
	driversMu.RLock()
	f, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("native: unknown driver %q (available: %v)", name, Drivers())
	}
	return f()
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
