package cl

import (
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/resource"
)

// Kind tags of the wrapped native objects.
var (
	KindPlatform     = resource.RegisterKind("OpenCL platform")
	KindDevice       = resource.RegisterKind("OpenCL device")
	KindContext      = resource.RegisterKind("OpenCL context")
	KindCommandQueue = resource.RegisterKind("OpenCL command queue")
	KindProgram      = resource.RegisterKind("OpenCL program")
	KindKernel       = resource.RegisterKind("OpenCL kernel")
	KindBuffer       = resource.RegisterKind("OpenCL buffer")
	KindSampler      = resource.RegisterKind("OpenCL sampler")
	KindImage2D      = resource.RegisterKind("OpenCL 2D image")
	KindImage3D      = resource.RegisterKind("OpenCL 3D image")
	KindEvent        = resource.RegisterKind("OpenCL event")
)

// MemObject is implemented by wrappers that bind to a kernel argument as
// a memory object: buffers, samplers and images.
type MemObject interface {
	resource.Object
	mem() (native.MemID, error)
}
