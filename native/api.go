package native

// Typed handles for native objects. Zero is never a valid handle.
type (
	PlatformID uintptr
	DeviceID   uintptr
	ContextID  uintptr
	QueueID    uintptr
	ProgramID  uintptr
	KernelID   uintptr
	MemID      uintptr
	EventID    uintptr
)

// ContextNotify receives asynchronous error reports for a context.
// Drivers may invoke it from any goroutine.
type ContextNotify func(errinfo string)

// API is the native compute interface consumed by the binding.
//
// Enumeration follows the size-then-fill convention of the C API: calling
// with a nil destination returns the number of available entries; calling
// again with a slice fills at most len(dst) entries.
type API interface {
	// GetPlatformIDs returns the number of platforms and fills dst.
	GetPlatformIDs(dst []PlatformID) (int, error)

	// PlatformInfo queries a string parameter of a platform.
	PlatformInfo(p PlatformID, param PlatformInfo) (string, error)

	// GetDeviceIDs returns the number of matching devices and fills dst.
	GetDeviceIDs(p PlatformID, t DeviceType, dst []DeviceID) (int, error)

	// DeviceInfo queries a string parameter of a device.
	DeviceInfo(d DeviceID, param DeviceInfo) (string, error)

	// DeviceType returns the type bits of a device.
	DeviceType(d DeviceID) (DeviceType, error)

	CreateContext(p PlatformID, devices []DeviceID, notify ContextNotify) (ContextID, error)
	ReleaseContext(c ContextID) error

	CreateCommandQueue(c ContextID, d DeviceID, props QueueProperties) (QueueID, error)
	ReleaseCommandQueue(q QueueID) error

	CreateProgramWithSource(c ContextID, sources []string) (ProgramID, error)

	// BuildProgram compiles the program for devices (all context devices
	// when devices is empty) using the given compiler options.
	BuildProgram(p ProgramID, devices []DeviceID, options string) error

	// ProgramBuildLog returns the compiler output for one device.
	ProgramBuildLog(p ProgramID, d DeviceID) (string, error)
	ReleaseProgram(p ProgramID) error

	CreateKernel(p ProgramID, name string) (KernelID, error)
	ReleaseKernel(k KernelID) error

	// CreateBuffer allocates a memory object of size bytes. host may be
	// nil; when flags include MemUseHostPtr the driver keeps using host
	// as backing storage and the caller must keep it valid.
	CreateBuffer(c ContextID, flags MemFlags, size int, host []byte) (MemID, error)
	ReleaseMemObject(m MemID) error

	// SetKernelArgMem binds a memory object to argument index.
	SetKernelArgMem(k KernelID, index int, m MemID) error

	// SetKernelArgNull binds a zero-size null argument to index.
	SetKernelArgNull(k KernelID, index int) error

	// EnqueueWriteBuffer copies src into the buffer starting at offset.
	// A non-blocking call returns before the copy happens; src must stay
	// valid until the returned event completes.
	EnqueueWriteBuffer(q QueueID, m MemID, blocking bool, offset int, src []byte) (EventID, error)

	// EnqueueReadBuffer copies len(dst) bytes from offset into dst.
	EnqueueReadBuffer(q QueueID, m MemID, blocking bool, offset int, dst []byte) (EventID, error)

	// EnqueueNDRangeKernel launches k over global work items grouped by
	// local; local may be nil to let the driver choose.
	EnqueueNDRangeKernel(q QueueID, k KernelID, global, local []int) (EventID, error)

	EventStatus(e EventID) (ExecStatus, error)
	ReleaseEvent(e EventID) error

	// Finish blocks until every command enqueued on q has completed.
	Finish(q QueueID) error
}
