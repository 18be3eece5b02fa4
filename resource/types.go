package resource

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Object is a wrapped native value.
type Object interface {
	// Kind returns the registered kind tag.
	Kind() Kind

	// String renders the object for display. It must not fail; wrappers
	// fall back to "???" for fields that cannot be queried.
	String() string
}

// Dropper is implemented by objects that own a native resource.
type Dropper interface {
	Drop() error
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	}
	return "unknown"
}

// Event represents an object lifecycle event.
type Event struct {
	Value  Object
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
