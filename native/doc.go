// Package native defines the boundary between the clops binding and a
// vendor compute runtime.
//
// The binding never talks to libOpenCL directly. Everything it needs from
// the native side (enumeration, object creation and release, argument
// binding, enqueue and finish) goes through the API interface, so the same
// binding runs on top of the real OpenCL ICD loader (package
// native/opencl, built with -tags opencl) or on the in-process simulator
// (package native/sim).
//
// # Handles
//
// Native objects are identified by typed handles (PlatformID, DeviceID,
// ContextID, ...). The zero value of every handle type is invalid. A
// driver chooses the handle values; the binding only compares and passes
// them back.
//
// # Flags
//
// DeviceType, QueueProperties and MemFlags carry the bit values defined by
// the OpenCL 1.2 headers, so a cgo driver can pass them through unchanged.
//
// # Errors
//
// Drivers report failures as *Error, which pairs the failing entry point
// with a Status code. Status.Message returns the human readable cause the
// binding logs.
//
// # Drivers
//
// Drivers register themselves by name, in the style of database/sql:
//
//	api, err := native.Open("sim")
package native
