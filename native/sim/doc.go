// Package sim is an in-process implementation of native.API.
//
// The simulator models the parts of an OpenCL runtime the binding relies
// on: platforms and devices with queryable info strings, contexts with an
// asynchronous error callback, command queues that execute on their own
// goroutine (serially, or concurrently when created out-of-order), a
// miniature "compiler" that extracts kernel signatures from OpenCL C
// source, memory objects honouring the host pointer flags, and events.
//
// Kernels have no device code to run; instead a Go function registered
// with WithKernel is invoked once per work item with the bound memory
// objects as byte slices. Kernels without a registered function complete
// without side effects.
//
//	drv := sim.New(sim.WithKernel("vadd", func(it sim.WorkItem, args [][]byte) error {
//		i := it.ID[0]
//		args[2][i] = args[0][i] + args[1][i]
//		return nil
//	}))
//
// Every native entry point is counted (Calls) and live objects are tracked
// (Live), which lets tests assert that the binding issues each release
// exactly once.
package sim
