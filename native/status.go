package native

import (
	"errors"
	"fmt"
)

// Status is a native result code (cl_int).
type Status int32

const (
	StatusSuccess                   Status = 0
	StatusDeviceNotFound            Status = -1
	StatusDeviceNotAvailable        Status = -2
	StatusCompilerNotAvailable      Status = -3
	StatusMemObjectAllocFailure     Status = -4
	StatusOutOfResources            Status = -5
	StatusOutOfHostMemory           Status = -6
	StatusProfilingInfoNotAvailable Status = -7
	StatusMemCopyOverlap            Status = -8
	StatusBuildProgramFailure       Status = -11
	StatusInvalidValue              Status = -30
	StatusInvalidDeviceType         Status = -31
	StatusInvalidPlatform           Status = -32
	StatusInvalidDevice             Status = -33
	StatusInvalidContext            Status = -34
	StatusInvalidQueueProperties    Status = -35
	StatusInvalidCommandQueue       Status = -36
	StatusInvalidHostPtr            Status = -37
	StatusInvalidMemObject          Status = -38
	StatusInvalidSampler            Status = -41
	StatusInvalidBuildOptions       Status = -43
	StatusInvalidProgram            Status = -44
	StatusInvalidProgramExecutable  Status = -45
	StatusInvalidKernelName         Status = -46
	StatusInvalidKernelDefinition   Status = -47
	StatusInvalidKernel             Status = -48
	StatusInvalidArgIndex           Status = -49
	StatusInvalidArgValue           Status = -50
	StatusInvalidArgSize            Status = -51
	StatusInvalidKernelArgs         Status = -52
	StatusInvalidWorkDimension      Status = -53
	StatusInvalidWorkGroupSize      Status = -54
	StatusInvalidWorkItemSize       Status = -55
	StatusInvalidGlobalOffset       Status = -56
	StatusInvalidEventWaitList      Status = -57
	StatusInvalidEvent              Status = -58
	StatusInvalidOperation          Status = -59
	StatusInvalidBufferSize         Status = -61
	StatusInvalidGlobalWorkSize     Status = -63
)

var statusNames = map[Status]string{
	StatusSuccess:                   "CL_SUCCESS",
	StatusDeviceNotFound:            "CL_DEVICE_NOT_FOUND",
	StatusDeviceNotAvailable:        "CL_DEVICE_NOT_AVAILABLE",
	StatusCompilerNotAvailable:      "CL_COMPILER_NOT_AVAILABLE",
	StatusMemObjectAllocFailure:     "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	StatusOutOfResources:            "CL_OUT_OF_RESOURCES",
	StatusOutOfHostMemory:           "CL_OUT_OF_HOST_MEMORY",
	StatusProfilingInfoNotAvailable: "CL_PROFILING_INFO_NOT_AVAILABLE",
	StatusMemCopyOverlap:            "CL_MEM_COPY_OVERLAP",
	StatusBuildProgramFailure:       "CL_BUILD_PROGRAM_FAILURE",
	StatusInvalidValue:              "CL_INVALID_VALUE",
	StatusInvalidDeviceType:         "CL_INVALID_DEVICE_TYPE",
	StatusInvalidPlatform:           "CL_INVALID_PLATFORM",
	StatusInvalidDevice:             "CL_INVALID_DEVICE",
	StatusInvalidContext:            "CL_INVALID_CONTEXT",
	StatusInvalidQueueProperties:    "CL_INVALID_QUEUE_PROPERTIES",
	StatusInvalidCommandQueue:       "CL_INVALID_COMMAND_QUEUE",
	StatusInvalidHostPtr:            "CL_INVALID_HOST_PTR",
	StatusInvalidMemObject:          "CL_INVALID_MEM_OBJECT",
	StatusInvalidSampler:            "CL_INVALID_SAMPLER",
	StatusInvalidBuildOptions:       "CL_INVALID_BUILD_OPTIONS",
	StatusInvalidProgram:            "CL_INVALID_PROGRAM",
	StatusInvalidProgramExecutable:  "CL_INVALID_PROGRAM_EXECUTABLE",
	StatusInvalidKernelName:         "CL_INVALID_KERNEL_NAME",
	StatusInvalidKernelDefinition:   "CL_INVALID_KERNEL_DEFINITION",
	StatusInvalidKernel:             "CL_INVALID_KERNEL",
	StatusInvalidArgIndex:           "CL_INVALID_ARG_INDEX",
	StatusInvalidArgValue:           "CL_INVALID_ARG_VALUE",
	StatusInvalidArgSize:            "CL_INVALID_ARG_SIZE",
	StatusInvalidKernelArgs:         "CL_INVALID_KERNEL_ARGS",
	StatusInvalidWorkDimension:      "CL_INVALID_WORK_DIMENSION",
	StatusInvalidWorkGroupSize:      "CL_INVALID_WORK_GROUP_SIZE",
	StatusInvalidWorkItemSize:       "CL_INVALID_WORK_ITEM_SIZE",
	StatusInvalidGlobalOffset:       "CL_INVALID_GLOBAL_OFFSET",
	StatusInvalidEventWaitList:      "CL_INVALID_EVENT_WAIT_LIST",
	StatusInvalidEvent:              "CL_INVALID_EVENT",
	StatusInvalidOperation:          "CL_INVALID_OPERATION",
	StatusInvalidBufferSize:         "CL_INVALID_BUFFER_SIZE",
	StatusInvalidGlobalWorkSize:     "CL_INVALID_GLOBAL_WORK_SIZE",
}

var statusMessages = map[Status]string{
	StatusSuccess:                  "success",
	StatusDeviceNotFound:           "device not found",
	StatusDeviceNotAvailable:       "device not available",
	StatusCompilerNotAvailable:     "compiler not available",
	StatusMemObjectAllocFailure:    "memory object allocation failure",
	StatusOutOfResources:           "out of resources",
	StatusOutOfHostMemory:          "out of host memory",
	StatusBuildProgramFailure:      "program build failure",
	StatusInvalidValue:             "invalid value",
	StatusInvalidDeviceType:        "invalid device type",
	StatusInvalidPlatform:          "invalid platform",
	StatusInvalidDevice:            "invalid device",
	StatusInvalidContext:           "invalid context",
	StatusInvalidQueueProperties:   "invalid command queue properties",
	StatusInvalidCommandQueue:      "invalid command queue",
	StatusInvalidHostPtr:           "invalid host pointer (did you forget the copy/use host pointer flag?)",
	StatusInvalidMemObject:         "invalid memory object",
	StatusInvalidSampler:           "invalid sampler",
	StatusInvalidBuildOptions:      "invalid build options",
	StatusInvalidProgram:           "invalid program",
	StatusInvalidProgramExecutable: "invalid program executable",
	StatusInvalidKernelName:        "invalid kernel name",
	StatusInvalidKernel:            "invalid kernel",
	StatusInvalidArgIndex:          "invalid argument index",
	StatusInvalidArgValue:          "invalid argument value",
	StatusInvalidArgSize:           "invalid argument size",
	StatusInvalidKernelArgs:        "invalid kernel argument",
	StatusInvalidWorkDimension:     "invalid work dimension",
	StatusInvalidWorkGroupSize:     "invalid work group size",
	StatusInvalidWorkItemSize:      "invalid work item size",
	StatusInvalidGlobalOffset:      "invalid global offset",
	StatusInvalidEventWaitList:     "invalid event wait list",
	StatusInvalidEvent:             "invalid event",
	StatusInvalidOperation:         "invalid operation",
	StatusInvalidBufferSize:        "invalid buffer size",
	StatusInvalidGlobalWorkSize:    "invalid global work size",
}

// String returns the C constant name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CL_UNKNOWN_ERROR(%d)", int32(s))
}

// Message returns a human readable description of the status.
func (s Status) Message() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error: 0x%x", uint32(s))
}

// Error is a failed native call.
type Error struct {
	Op     string
	Status Status
}

// NewError returns an *Error for op, or nil when status is StatusSuccess.
func NewError(op string, status Status) error {
	if status == StatusSuccess {
		return nil
	}
	return &Error{Op: op, Status: status}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Status.Message(), e.Status)
}

// Is matches another *Error with the same status; the op is ignored.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

// StatusOf extracts the native status from err. It returns StatusSuccess
// for nil and StatusInvalidValue for errors that did not come from a
// driver.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Status
	}
	return StatusInvalidValue
}
