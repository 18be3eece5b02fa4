package native

import (
	"fmt"
	"strings"
)

// DeviceType selects devices by class (cl_device_type).
type DeviceType uint64

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeCustom      DeviceType = 1 << 4
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

// String renders a single device class the way device listings show it.
// Masks with several bits render as their bit names joined by '|'.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeCPU:
		return "CPU"
	case DeviceTypeAccelerator:
		return "ACCELERATOR"
	case DeviceTypeCustom:
		return "CUSTOM"
	case DeviceTypeDefault:
		return "DEFAULT"
	case DeviceTypeAll:
		return "ALL"
	case 0:
		return "NONE"
	}
	return joinBits(uint64(t), []bitName{
		{uint64(DeviceTypeDefault), "DEFAULT"},
		{uint64(DeviceTypeCPU), "CPU"},
		{uint64(DeviceTypeGPU), "GPU"},
		{uint64(DeviceTypeAccelerator), "ACCELERATOR"},
		{uint64(DeviceTypeCustom), "CUSTOM"},
	})
}

// QueueProperties configures a command queue (cl_command_queue_properties).
type QueueProperties uint64

const (
	QueueOutOfOrderExecMode QueueProperties = 1 << 0
	QueueProfiling          QueueProperties = 1 << 1
)

func (p QueueProperties) String() string {
	if p == 0 {
		return "in-order"
	}
	return joinBits(uint64(p), []bitName{
		{uint64(QueueOutOfOrderExecMode), "out-of-order-execution-mode"},
		{uint64(QueueProfiling), "profiling"},
	})
}

// MemFlags configures a memory object (cl_mem_flags).
type MemFlags uint64

const (
	MemReadWrite    MemFlags = 1 << 0
	MemWriteOnly    MemFlags = 1 << 1
	MemReadOnly     MemFlags = 1 << 2
	MemUseHostPtr   MemFlags = 1 << 3
	MemAllocHostPtr MemFlags = 1 << 4
	MemCopyHostPtr  MemFlags = 1 << 5
)

func (f MemFlags) String() string {
	if f == 0 {
		return "none"
	}
	return joinBits(uint64(f), []bitName{
		{uint64(MemReadWrite), "read-write"},
		{uint64(MemWriteOnly), "write-only"},
		{uint64(MemReadOnly), "read-only"},
		{uint64(MemUseHostPtr), "use-host-pointer"},
		{uint64(MemAllocHostPtr), "allocate-host-pointer"},
		{uint64(MemCopyHostPtr), "copy-host-pointer"},
	})
}

// ExecStatus is the execution state of an enqueued command.
type ExecStatus int32

const (
	ExecComplete  ExecStatus = 0
	ExecRunning   ExecStatus = 1
	ExecSubmitted ExecStatus = 2
	ExecQueued    ExecStatus = 3
)

func (s ExecStatus) String() string {
	switch s {
	case ExecComplete:
		return "complete"
	case ExecRunning:
		return "running"
	case ExecSubmitted:
		return "submitted"
	case ExecQueued:
		return "queued"
	}
	if s < 0 {
		return "failed: " + Status(s).Message()
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// PlatformInfo names a platform query (cl_platform_info).
type PlatformInfo uint32

const (
	PlatformProfile    PlatformInfo = 0x0900
	PlatformVersion    PlatformInfo = 0x0901
	PlatformName       PlatformInfo = 0x0902
	PlatformVendor     PlatformInfo = 0x0903
	PlatformExtensions PlatformInfo = 0x0904
)

// DeviceInfo names a string-valued device query (cl_device_info).
type DeviceInfo uint32

const (
	DeviceName          DeviceInfo = 0x102B
	DeviceVendor        DeviceInfo = 0x102C
	DeviceDriverVersion DeviceInfo = 0x102D
	DeviceProfile       DeviceInfo = 0x102E
	DeviceVersion       DeviceInfo = 0x102F
)

type bitName struct {
	bit  uint64
	name string
}

func joinBits(v uint64, names []bitName) string {
	var parts []string
	for _, n := range names {
		if v&n.bit != 0 {
			parts = append(parts, n.name)
			v &^= n.bit
		}
	}
	if v != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", v))
	}
	return strings.Join(parts, "|")
}
