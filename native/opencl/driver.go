//go:build opencl && cgo

package opencl

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo windows LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <stdint.h>
#include <stdlib.h>
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

extern void clopsContextNotify(char *errinfo, void *private_info, size_t cb, void *user_data);

static cl_context clops_create_context(cl_platform_id platform, cl_uint n, const cl_device_id *devices, uintptr_t handle, cl_int *status) {
	cl_context_properties props[] = {CL_CONTEXT_PLATFORM, (cl_context_properties)platform, 0};
	return clCreateContext(props, n, devices,
		(void (CL_CALLBACK *)(const char *, const void *, size_t, void *))clopsContextNotify,
		(void *)handle, status);
}
*/
import "C"

import (
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/panicz/clops/native"
)

func init() {
	native.Register("opencl", func() (native.API, error) { return New(), nil })
}

// Driver calls the system OpenCL library. Go memory handed to the library
// beyond a single call (use-host-pointer buffers, non-blocking transfers)
// is pinned until the library is done with it.
type Driver struct {
	mu       sync.Mutex
	notifies map[native.ContextID]cgo.Handle
	buffers  map[native.MemID]*runtime.Pinner
	inflight map[native.QueueID][]*runtime.Pinner
}

// New returns a driver for the system OpenCL library.
func New() *Driver {
	return &Driver{
		notifies: make(map[native.ContextID]cgo.Handle),
		buffers:  make(map[native.MemID]*runtime.Pinner),
		inflight: make(map[native.QueueID][]*runtime.Pinner),
	}
}

var _ native.API = (*Driver)(nil)

func check(op string, status C.cl_int) error {
	if status == C.CL_SUCCESS {
		return nil
	}
	return native.NewError(op, native.Status(status))
}

func ptr[T ~uintptr](h T) unsafe.Pointer { return unsafe.Pointer(uintptr(h)) }

func (d *Driver) GetPlatformIDs(dst []native.PlatformID) (int, error) {
	var n C.cl_uint
	if err := check("clGetPlatformIDs", C.clGetPlatformIDs(0, nil, &n)); err != nil {
		return 0, err
	}
	if len(dst) == 0 || n == 0 {
		return int(n), nil
	}
	ids := make([]C.cl_platform_id, min(int(n), len(dst)))
	if err := check("clGetPlatformIDs", C.clGetPlatformIDs(C.cl_uint(len(ids)), &ids[0], nil)); err != nil {
		return 0, err
	}
	for i, id := range ids {
		dst[i] = native.PlatformID(uintptr(unsafe.Pointer(id)))
	}
	return int(n), nil
}

// infoString runs the size-then-fill protocol of the string info queries.
func infoString(op string, query func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int) (string, error) {
	var size C.size_t
	if err := check(op, query(0, nil, &size)); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	if err := check(op, query(size, unsafe.Pointer(&buf[0]), nil)); err != nil {
		return "", err
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}

func (d *Driver) PlatformInfo(p native.PlatformID, param native.PlatformInfo) (string, error) {
	return infoString("clGetPlatformInfo", func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int {
		return C.clGetPlatformInfo(C.cl_platform_id(ptr(p)), C.cl_platform_info(param), size, value, ret)
	})
}

func (d *Driver) GetDeviceIDs(p native.PlatformID, t native.DeviceType, dst []native.DeviceID) (int, error) {
	platform := C.cl_platform_id(ptr(p))
	var n C.cl_uint
	if err := check("clGetDeviceIDs", C.clGetDeviceIDs(platform, C.cl_device_type(t), 0, nil, &n)); err != nil {
		return 0, err
	}
	if len(dst) == 0 || n == 0 {
		return int(n), nil
	}
	ids := make([]C.cl_device_id, min(int(n), len(dst)))
	if err := check("clGetDeviceIDs", C.clGetDeviceIDs(platform, C.cl_device_type(t), C.cl_uint(len(ids)), &ids[0], nil)); err != nil {
		return 0, err
	}
	for i, id := range ids {
		dst[i] = native.DeviceID(uintptr(unsafe.Pointer(id)))
	}
	return int(n), nil
}

func (d *Driver) DeviceInfo(dev native.DeviceID, param native.DeviceInfo) (string, error) {
	return infoString("clGetDeviceInfo", func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int {
		return C.clGetDeviceInfo(C.cl_device_id(ptr(dev)), C.cl_device_info(param), size, value, ret)
	})
}

func (d *Driver) DeviceType(dev native.DeviceID) (native.DeviceType, error) {
	var t C.cl_device_type
	status := C.clGetDeviceInfo(C.cl_device_id(ptr(dev)), C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(t)), unsafe.Pointer(&t), nil)
	if err := check("clGetDeviceInfo", status); err != nil {
		return 0, err
	}
	return native.DeviceType(t), nil
}

func deviceList(devices []native.DeviceID) []C.cl_device_id {
	ids := make([]C.cl_device_id, len(devices))
	for i, dev := range devices {
		ids[i] = C.cl_device_id(ptr(dev))
	}
	return ids
}

func (d *Driver) CreateContext(p native.PlatformID, devices []native.DeviceID, notify native.ContextNotify) (native.ContextID, error) {
	if len(devices) == 0 {
		return 0, native.NewError("clCreateContext", native.StatusInvalidValue)
	}
	ids := deviceList(devices)
	h := cgo.NewHandle(notify)
	var status C.cl_int
	c := C.clops_create_context(C.cl_platform_id(ptr(p)), C.cl_uint(len(ids)), &ids[0], C.uintptr_t(h), &status)
	if err := check("clCreateContext", status); err != nil {
		h.Delete()
		return 0, err
	}
	id := native.ContextID(uintptr(unsafe.Pointer(c)))
	d.mu.Lock()
	d.notifies[id] = h
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) ReleaseContext(c native.ContextID) error {
	if err := check("clReleaseContext", C.clReleaseContext(C.cl_context(ptr(c)))); err != nil {
		return err
	}
	d.mu.Lock()
	h, ok := d.notifies[c]
	delete(d.notifies, c)
	d.mu.Unlock()
	if ok {
		h.Delete()
	}
	return nil
}

func (d *Driver) CreateCommandQueue(c native.ContextID, dev native.DeviceID, props native.QueueProperties) (native.QueueID, error) {
	var status C.cl_int
	q := C.clCreateCommandQueue(C.cl_context(ptr(c)), C.cl_device_id(ptr(dev)), C.cl_command_queue_properties(props), &status)
	if err := check("clCreateCommandQueue", status); err != nil {
		return 0, err
	}
	return native.QueueID(uintptr(unsafe.Pointer(q))), nil
}

func (d *Driver) ReleaseCommandQueue(q native.QueueID) error {
	queue := C.cl_command_queue(ptr(q))
	// Pinned transfers must complete before their memory is unpinned.
	C.clFinish(queue)
	d.unpin(q)
	return check("clReleaseCommandQueue", C.clReleaseCommandQueue(queue))
}

func (d *Driver) CreateProgramWithSource(c native.ContextID, sources []string) (native.ProgramID, error) {
	if len(sources) == 0 {
		return 0, native.NewError("clCreateProgramWithSource", native.StatusInvalidValue)
	}
	strs := make([]*C.char, len(sources))
	lens := make([]C.size_t, len(sources))
	for i, src := range sources {
		strs[i] = C.CString(src)
		lens[i] = C.size_t(len(src))
	}
	defer func() {
		for _, s := range strs {
			C.free(unsafe.Pointer(s))
		}
	}()
	var status C.cl_int
	p := C.clCreateProgramWithSource(C.cl_context(ptr(c)), C.cl_uint(len(strs)), &strs[0], &lens[0], &status)
	if err := check("clCreateProgramWithSource", status); err != nil {
		return 0, err
	}
	return native.ProgramID(uintptr(unsafe.Pointer(p))), nil
}

func (d *Driver) BuildProgram(p native.ProgramID, devices []native.DeviceID, options string) error {
	opts := C.CString(options)
	defer C.free(unsafe.Pointer(opts))
	var list *C.cl_device_id
	ids := deviceList(devices)
	if len(ids) > 0 {
		list = &ids[0]
	}
	return check("clBuildProgram", C.clBuildProgram(C.cl_program(ptr(p)), C.cl_uint(len(ids)), list, opts, nil, nil))
}

func (d *Driver) ProgramBuildLog(p native.ProgramID, dev native.DeviceID) (string, error) {
	return infoString("clGetProgramBuildInfo", func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int {
		return C.clGetProgramBuildInfo(C.cl_program(ptr(p)), C.cl_device_id(ptr(dev)), C.CL_PROGRAM_BUILD_LOG, size, value, ret)
	})
}

func (d *Driver) ReleaseProgram(p native.ProgramID) error {
	return check("clReleaseProgram", C.clReleaseProgram(C.cl_program(ptr(p))))
}

func (d *Driver) CreateKernel(p native.ProgramID, name string) (native.KernelID, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var status C.cl_int
	k := C.clCreateKernel(C.cl_program(ptr(p)), cname, &status)
	if err := check("clCreateKernel", status); err != nil {
		return 0, err
	}
	return native.KernelID(uintptr(unsafe.Pointer(k))), nil
}

func (d *Driver) ReleaseKernel(k native.KernelID) error {
	return check("clReleaseKernel", C.clReleaseKernel(C.cl_kernel(ptr(k))))
}

func (d *Driver) CreateBuffer(c native.ContextID, flags native.MemFlags, size int, host []byte) (native.MemID, error) {
	var hostPtr unsafe.Pointer
	var pin *runtime.Pinner
	if len(host) > 0 {
		hostPtr = unsafe.Pointer(&host[0])
		if flags&native.MemUseHostPtr != 0 {
			pin = new(runtime.Pinner)
			pin.Pin(hostPtr)
		}
	}
	var status C.cl_int
	m := C.clCreateBuffer(C.cl_context(ptr(c)), C.cl_mem_flags(flags), C.size_t(size), hostPtr, &status)
	if err := check("clCreateBuffer", status); err != nil {
		if pin != nil {
			pin.Unpin()
		}
		return 0, err
	}
	id := native.MemID(uintptr(unsafe.Pointer(m)))
	if pin != nil {
		d.mu.Lock()
		d.buffers[id] = pin
		d.mu.Unlock()
	}
	return id, nil
}

func (d *Driver) ReleaseMemObject(m native.MemID) error {
	if err := check("clReleaseMemObject", C.clReleaseMemObject(C.cl_mem(ptr(m)))); err != nil {
		return err
	}
	d.mu.Lock()
	pin := d.buffers[m]
	delete(d.buffers, m)
	d.mu.Unlock()
	if pin != nil {
		pin.Unpin()
	}
	return nil
}

func (d *Driver) SetKernelArgMem(k native.KernelID, index int, m native.MemID) error {
	mem := C.cl_mem(ptr(m))
	status := C.clSetKernelArg(C.cl_kernel(ptr(k)), C.cl_uint(index), C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	return check("clSetKernelArg", status)
}

func (d *Driver) SetKernelArgNull(k native.KernelID, index int) error {
	return check("clSetKernelArg", C.clSetKernelArg(C.cl_kernel(ptr(k)), C.cl_uint(index), 0, nil))
}

// pinTransfer pins buf for a non-blocking transfer on q.
func (d *Driver) pinTransfer(q native.QueueID, buf []byte) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	p := unsafe.Pointer(&buf[0])
	pin := new(runtime.Pinner)
	pin.Pin(p)
	d.mu.Lock()
	d.inflight[q] = append(d.inflight[q], pin)
	d.mu.Unlock()
	return p
}

func (d *Driver) unpin(q native.QueueID) {
	d.mu.Lock()
	pins := d.inflight[q]
	delete(d.inflight, q)
	d.mu.Unlock()
	for _, pin := range pins {
		pin.Unpin()
	}
}

func blockingFlag(b bool) C.cl_bool {
	if b {
		return C.CL_TRUE
	}
	return C.CL_FALSE
}

func (d *Driver) EnqueueWriteBuffer(q native.QueueID, m native.MemID, blocking bool, offset int, src []byte) (native.EventID, error) {
	p := d.pinTransfer(q, src)
	var ev C.cl_event
	status := C.clEnqueueWriteBuffer(C.cl_command_queue(ptr(q)), C.cl_mem(ptr(m)), blockingFlag(blocking),
		C.size_t(offset), C.size_t(len(src)), p, 0, nil, &ev)
	if err := check("clEnqueueWriteBuffer", status); err != nil {
		return 0, err
	}
	return native.EventID(uintptr(unsafe.Pointer(ev))), nil
}

func (d *Driver) EnqueueReadBuffer(q native.QueueID, m native.MemID, blocking bool, offset int, dst []byte) (native.EventID, error) {
	p := d.pinTransfer(q, dst)
	var ev C.cl_event
	status := C.clEnqueueReadBuffer(C.cl_command_queue(ptr(q)), C.cl_mem(ptr(m)), blockingFlag(blocking),
		C.size_t(offset), C.size_t(len(dst)), p, 0, nil, &ev)
	if err := check("clEnqueueReadBuffer", status); err != nil {
		return 0, err
	}
	return native.EventID(uintptr(unsafe.Pointer(ev))), nil
}

func sizes(dims []int) []C.size_t {
	out := make([]C.size_t, len(dims))
	for i, n := range dims {
		out[i] = C.size_t(n)
	}
	return out
}

func (d *Driver) EnqueueNDRangeKernel(q native.QueueID, k native.KernelID, global, local []int) (native.EventID, error) {
	if len(global) == 0 {
		return 0, native.NewError("clEnqueueNDRangeKernel", native.StatusInvalidWorkDimension)
	}
	g := sizes(global)
	var l *C.size_t
	if local != nil {
		ls := sizes(local)
		if len(ls) > 0 {
			l = &ls[0]
		}
	}
	var ev C.cl_event
	status := C.clEnqueueNDRangeKernel(C.cl_command_queue(ptr(q)), C.cl_kernel(ptr(k)), C.cl_uint(len(g)),
		nil, &g[0], l, 0, nil, &ev)
	if err := check("clEnqueueNDRangeKernel", status); err != nil {
		return 0, err
	}
	return native.EventID(uintptr(unsafe.Pointer(ev))), nil
}

func (d *Driver) EventStatus(e native.EventID) (native.ExecStatus, error) {
	var st C.cl_int
	status := C.clGetEventInfo(C.cl_event(ptr(e)), C.CL_EVENT_COMMAND_EXECUTION_STATUS,
		C.size_t(unsafe.Sizeof(st)), unsafe.Pointer(&st), nil)
	if err := check("clGetEventInfo", status); err != nil {
		return 0, err
	}
	return native.ExecStatus(st), nil
}

func (d *Driver) ReleaseEvent(e native.EventID) error {
	return check("clReleaseEvent", C.clReleaseEvent(C.cl_event(ptr(e))))
}

func (d *Driver) Finish(q native.QueueID) error {
	if err := check("clFinish", C.clFinish(C.cl_command_queue(ptr(q)))); err != nil {
		return err
	}
	d.unpin(q)
	return nil
}
