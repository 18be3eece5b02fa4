// Package resource is the handle registry for wrapped native objects.
//
// Every native object the binding hands out (platform, device, context,
// queue, program, kernel, buffer, event) is wrapped in a Go value that
// implements Object and carries a kind tag. Kinds are registered once per
// process by name:
//
//	var KindKernel = resource.RegisterKind("OpenCL kernel")
//
// # Handle Table
//
// Table maps small integer handles to objects, which is how the wasm host
// module refers to them:
//
//	table := resource.NewTable()
//
//	h := table.Wrap(kernel)              // 0 if the table is closed
//	obj, err := table.AssertKind(KindKernel, h)
//	s := table.Render(h)                 // "#<OpenCL kernel vadd>"
//	err = table.Destroy(h)               // runs Drop exactly once
//
// AssertKind fails with a type_mismatch error naming the expected and the
// actual kind. Destroy of an unknown or already destroyed handle reports
// not_found; the object's Drop hook never runs twice through the table.
//
// # Borrows
//
// A handle may be borrowed while an asynchronous operation still uses the
// object (a buffer being filled by a non-blocking read). Destroy refuses
// borrowed handles.
//
// # Observers
//
// Observers receive lifecycle events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%v %d %v", e.Type, e.Handle, e.Kind)
//	}))
//
// Close destroys every live object and aggregates the Drop errors.
package resource
