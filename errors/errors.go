package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which binding operation produced the error
type Phase string

const (
	PhaseRegistry  Phase = "registry"  // handle table operations
	PhaseParse     Phase = "parse"     // symbolic option parsing
	PhaseScope     Phase = "scope"     // context and build-options stacks
	PhaseEnumerate Phase = "enumerate" // platform and device enumeration
	PhaseCreate    Phase = "create"    // resource factories
	PhaseBind      Phase = "bind"      // kernel argument binding
	PhaseEnqueue   Phase = "enqueue"   // read/write/kernel submission
	PhaseHost      Phase = "host"      // wasm host module boundary
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch     Kind = "type_mismatch"
	KindNoCurrentContext Kind = "no_current_context"
	KindPrecondition     Kind = "precondition"
	KindPlatformMismatch Kind = "platform_mismatch"
	KindInvalidInput     Kind = "invalid_input"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindNotFound         Kind = "not_found"
	KindReleased         Kind = "released"
	KindBorrowed         Kind = "borrowed"
	KindClosed           Kind = "closed"
	KindRegistration     Kind = "registration"
)

// Error is the structured error type used throughout the binding
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Want   string
	Got    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Want != "" || e.Got != "" {
		b.WriteString(": ")
		if e.Want != "" && e.Got != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
			b.WriteString(", got ")
			b.WriteString(e.Got)
		} else if e.Want != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
		} else {
			b.WriteString("got ")
			b.WriteString(e.Got)
		}
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return (t.Phase == "" || e.Phase == t.Phase) && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the operation path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Want sets the expected resource kind or value description
func (b *Builder) Want(s string) *Builder {
	b.err.Want = s
	return b
}

// Got sets the actual resource kind or value description
func (b *Builder) Got(s string) *Builder {
	b.err.Got = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error for a resource of the wrong kind
func TypeMismatch(phase Phase, want, got string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTypeMismatch,
		Want:  want,
		Got:   got,
	}
}

// NoCurrentContext is returned when an operation needs the current
// context and the context stack is empty.
func NoCurrentContext(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNoCurrentContext,
		Detail: "no current context; use WithContext or SetCurrentContext",
	}
}

// Precondition creates a caller-misuse error
func Precondition(phase Phase, path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindPrecondition,
		Path:   path,
		Detail: detail,
	}
}

// PlatformMismatch reports devices from different platforms in one request
func PlatformMismatch(phase Phase, index int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPlatformMismatch,
		Detail: fmt.Sprintf("device %d belongs to a different platform than device 0", index),
		Value:  index,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Released reports use of a wrapper after its native resource was released
func Released(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		Got:    what,
		Detail: "resource already released",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %v not found", what, id),
		Value:  id,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host function registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
