// Package errors provides structured error types for the clops binding.
//
// Errors are categorized by Phase (which binding operation raised them) and
// Kind (error category). Only host-side misuse is reported through this
// package: a resource of the wrong kind, an empty context stack, work
// dimensions that violate their preconditions. Failures reported by the
// native compute API travel as *native.Error instead.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEnqueue, errors.KindPrecondition).
//		Path("enqueue-kernel", "local").
//		Detail("local size %d exceeds global size %d", 17, 16).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseBind, "OpenCL kernel", "OpenCL buffer")
//	err := errors.NoCurrentContext(errors.PhaseCreate)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
