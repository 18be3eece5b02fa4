// Package clops is a Go binding for OpenCL compute devices.
//
// The binding wraps native platforms, devices, contexts, command queues,
// programs, kernels, buffers and events as Go values that release their
// native object exactly once. Code runs against a current context and a
// current set of compiler options held in dynamically scoped stacks, so
// factories take only what varies per call.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	clops/
//	├── cl/              Sessions, resource wrappers, kernel invocation
//	├── native/          Native API interface, status codes, driver registry
//	│   ├── sim/         Simulated driver with Go kernel functions
//	│   └── opencl/      cgo driver for the system OpenCL library (-tags opencl)
//	├── host/            wazero host module exposing a session to wasm guests
//	├── resource/        Handle table with kind tags, borrows and observers
//	├── options/         Symbol grammars for device types, queue and memory flags
//	├── scope/           Dynamically scoped stacks and guards
//	├── errors/          Structured error types for host-side misuse
//	└── cmd/clinfo/      Platform listing, demo and interactive browser
//
// # Quick Start
//
// Add two vectors on the first GPU:
//
//	s, err := cl.Open("opencl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	platforms, _ := s.Platforms()
//	gpus, _ := platforms[0].Devices("gpu")
//
//	ctx, err := s.CreateContext(gpus[0])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Release()
//
//	err = s.WithContext(ctx, func() error {
//	    q, _ := s.CreateCommandQueue(gpus[0])
//	    prog, _ := s.CreateProgram(source)
//	    k, _ := prog.Kernel("vadd")
//	    a, _ := s.CreateHostBuffer(x, "read-only", "copy-host-ptr")
//	    b, _ := s.CreateHostBuffer(y, "read-only", "copy-host-ptr")
//	    c, _ := s.CreateHostBuffer(out, "write-only", "copy-host-ptr")
//	    k.BindArguments(a, b, c)
//	    q.EnqueueKernel(k, cl.Dims{len(out)}, nil)
//	    q.EnqueueRead(c)
//	    return q.Finish()
//	})
//
// # Errors
//
// Failures reported by the driver are logged with the decoded status and
// returned as *native.Error. Misuse of the binding (a nil context, a
// released object, an invalid work size) is returned as *errors.Error and
// is not logged.
//
// # Thread Safety
//
// A Session may be shared, but the current-context and build-option
// stacks are meant for single-threaded nesting. Only CommandQueue.Finish
// blocks; transfers and kernel launches return as soon as the command is
// queued.
package clops
