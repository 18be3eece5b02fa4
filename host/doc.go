// Package host exposes a cl.Session to WebAssembly guests as the wazero
// host module "clops".
//
// # Handles
//
// Every object the guest sees is an i32 handle into a resource.Table.
// Handle 0 is the failure sentinel: a function that creates an object
// returns 0 when the native driver reports a failure, which is logged by
// the session. Functions that return a count or a status return the
// negative native status code instead.
//
// platforms and devices hand out one handle per native platform or
// device: repeated enumeration returns the same handles until the guest
// drops them.
//
// # Traps
//
// Misuse is not a native failure and is not reported through the return
// value. A handle of the wrong kind, a released object, a missing current
// context or an out-of-range guest pointer aborts the call, which traps
// the guest with the error as the trap reason.
//
// # Memory
//
// Strings and lists are passed as (pointer, length) pairs into the
// caller's exported memory. Lists of handles and extents are arrays of
// little-endian u32. A host buffer created by make-host-buffer keeps a
// view of guest memory; growing the memory invalidates the view, so
// guests that create host buffers must not grow memory while the buffer
// is alive.
//
// enqueue-write-buffer and enqueue-read-buffer apply their offset to the
// host buffer and to the device buffer alike, so a region transfer moves
// host[offset:offset+size].
//
// Transfers are asynchronous. A buffer passed to enqueue-write-buffer or
// enqueue-read-buffer stays borrowed until finish is called on the queue,
// and dropping a borrowed buffer traps.
//
// # Example
//
//	r := wazero.NewRuntime(ctx)
//	m := host.New(host.WithSession(session))
//	if _, err := m.Instantiate(ctx, r); err != nil {
//		return err
//	}
//	guest, err := r.Instantiate(ctx, wasm)
package host
