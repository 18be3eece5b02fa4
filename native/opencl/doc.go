// Package opencl is the native driver for a system OpenCL installation.
//
// The driver is compiled only with the opencl build tag and cgo, and links
// against libOpenCL (the framework on darwin). Importing the package
// registers it as "opencl":
//
//	import _ "github.com/panicz/clops/native/opencl"
//
//	session, err := cl.Open("opencl")
//
// Without the tag the package is empty and only the simulated driver is
// available.
package opencl
