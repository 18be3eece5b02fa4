// Package cl is the Go binding over a native compute driver.
//
// A Session owns the driver and the binding's dynamic state: a stack of
// current contexts and the current program build options. Factories that
// need a context (command queues, programs, buffers) take it from the
// session rather than from a parameter:
//
//	s := cl.NewSession(api, cl.WithLogger(logger))
//	platforms, _ := s.Platforms()
//	gpus, _ := platforms[0].Devices("gpu")
//	ctx, _ := s.CreateContext(gpus...)
//
//	err := s.WithContext(ctx, func() error {
//		q, err := s.CreateCommandQueue(gpus[0])
//		...
//		return s.WithBuildOptions("-cl-fast-relaxed-math", func() error {
//			prog, err := s.CreateProgram(source)
//			...
//		})
//	})
//
// # Errors
//
// Failures of the native driver are logged with their decoded cause and
// returned as *native.Error together with a nil result; IsNativeFailure
// tells them apart. Misuse of the binding itself (a released wrapper, no
// current context, an NDRange whose local size exceeds the global size)
// is returned as *errors.Error and not logged.
//
// A program whose build fails is still returned. The failure is logged
// with the compiler output and shows up later when a kernel lookup fails.
//
// # Lifetime
//
// Wrappers that own a native object have an idempotent Release. An
// unreachable wrapper that was never released is released by a GC
// cleanup. Platforms and devices are never released.
package cl
