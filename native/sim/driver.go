package sim

import (
	"sync"

	"github.com/panicz/clops/native"
)

// DefaultVersion is the version string reported by the default platform
// and its devices.
const DefaultVersion = "OpenCL 1.2 clops-sim"

func init() {
	native.Register("sim", func() (native.API, error) {
		return New(), nil
	})
}

// DeviceSpec describes a simulated device.
type DeviceSpec struct {
	Name          string
	Vendor        string
	Version       string
	DriverVersion string
	Profile       string
	Type          native.DeviceType
}

// PlatformSpec describes a simulated platform and its devices.
type PlatformSpec struct {
	Name       string
	Vendor     string
	Version    string
	Profile    string
	Extensions string
	Devices    []DeviceSpec
}

// DefaultPlatform is used when New is called without WithPlatform.
func DefaultPlatform() PlatformSpec {
	return PlatformSpec{
		Name:    "clops simulator",
		Vendor:  "clops",
		Version: DefaultVersion,
		Profile: "FULL_PROFILE",
		Devices: []DeviceSpec{
			{Name: "sim-cpu", Type: native.DeviceTypeCPU},
			{Name: "sim-gpu", Type: native.DeviceTypeGPU},
		},
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithPlatform adds a platform. The first WithPlatform replaces the
// default platform; later ones append.
func WithPlatform(spec PlatformSpec) Option {
	return func(d *Driver) {
		d.specs = append(d.specs, spec)
	}
}

// WithKernel registers the Go function executed for kernels named name.
func WithKernel(name string, fn KernelFunc) Option {
	return func(d *Driver) {
		d.funcs[name] = fn
	}
}

// WithMaxWorkGroupSize limits the product of local sizes accepted by
// EnqueueNDRangeKernel. The default is 1024.
func WithMaxWorkGroupSize(n int) Option {
	return func(d *Driver) {
		d.maxGroup = n
	}
}

// Driver is a simulated native.API. All methods are safe for concurrent use.
type Driver struct {
	mu       sync.Mutex
	next     uintptr
	specs    []PlatformSpec
	funcs    map[string]KernelFunc
	maxGroup int

	platforms []*platform
	devices   map[native.DeviceID]*device
	contexts  map[native.ContextID]*context
	queues    map[native.QueueID]*queue
	programs  map[native.ProgramID]*program
	kernels   map[native.KernelID]*kernel
	mems      map[native.MemID]*mem
	events    map[native.EventID]*event

	calls map[string]int
}

var _ native.API = (*Driver)(nil)

// New creates a simulated driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		next:     0x1000,
		funcs:    make(map[string]KernelFunc),
		maxGroup: 1024,
		devices:  make(map[native.DeviceID]*device),
		contexts: make(map[native.ContextID]*context),
		queues:   make(map[native.QueueID]*queue),
		programs: make(map[native.ProgramID]*program),
		kernels:  make(map[native.KernelID]*kernel),
		mems:     make(map[native.MemID]*mem),
		events:   make(map[native.EventID]*event),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.specs) == 0 {
		d.specs = []PlatformSpec{DefaultPlatform()}
	}
	for _, spec := range d.specs {
		p := &platform{id: native.PlatformID(d.alloc()), spec: spec}
		for _, ds := range spec.Devices {
			if ds.Vendor == "" {
				ds.Vendor = spec.Vendor
			}
			if ds.Version == "" {
				ds.Version = spec.Version
			}
			if ds.DriverVersion == "" {
				ds.DriverVersion = "1.0"
			}
			if ds.Profile == "" {
				ds.Profile = spec.Profile
			}
			dev := &device{id: native.DeviceID(d.alloc()), platform: p, spec: ds}
			p.devices = append(p.devices, dev)
			d.devices[dev.id] = dev
		}
		d.platforms = append(d.platforms, p)
	}
	return d
}

// alloc returns a fresh handle value. Callers hold mu or own d exclusively.
func (d *Driver) alloc() uintptr {
	d.next += 0x10
	return d.next
}

// count records a call to a native entry point. Callers hold mu.
func (d *Driver) count(op string) {
	d.calls[op]++
}

// Calls returns how many times the named entry point was invoked, using
// the C function names ("clCreateContext", "clReleaseKernel", ...).
func (d *Driver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Counts reports the number of live objects per kind.
type Counts struct {
	Contexts int
	Queues   int
	Programs int
	Kernels  int
	Mems     int
	Events   int
}

// Live returns the number of created and not yet released objects.
func (d *Driver) Live() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{
		Contexts: len(d.contexts),
		Queues:   len(d.queues),
		Programs: len(d.programs),
		Kernels:  len(d.kernels),
		Mems:     len(d.mems),
		Events:   len(d.events),
	}
}

// Storage returns the backing bytes of a memory object. Tests use it to
// observe device-side state without enqueueing a read.
func (d *Driver) Storage(m native.MemID) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.mems[m]
	if !ok {
		return nil, false
	}
	return obj.storage, true
}

func (d *Driver) GetPlatformIDs(dst []native.PlatformID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetPlatformIDs")
	for i := 0; i < len(dst) && i < len(d.platforms); i++ {
		dst[i] = d.platforms[i].id
	}
	return len(d.platforms), nil
}

func (d *Driver) PlatformInfo(id native.PlatformID, param native.PlatformInfo) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetPlatformInfo")
	p := d.platform(id)
	if p == nil {
		return "", native.NewError("clGetPlatformInfo", native.StatusInvalidPlatform)
	}
	switch param {
	case native.PlatformProfile:
		return p.spec.Profile, nil
	case native.PlatformVersion:
		return p.spec.Version, nil
	case native.PlatformName:
		return p.spec.Name, nil
	case native.PlatformVendor:
		return p.spec.Vendor, nil
	case native.PlatformExtensions:
		return p.spec.Extensions, nil
	}
	return "", native.NewError("clGetPlatformInfo", native.StatusInvalidValue)
}

func (d *Driver) GetDeviceIDs(id native.PlatformID, t native.DeviceType, dst []native.DeviceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetDeviceIDs")
	p := d.platform(id)
	if p == nil {
		return 0, native.NewError("clGetDeviceIDs", native.StatusInvalidPlatform)
	}
	if t == 0 {
		return 0, native.NewError("clGetDeviceIDs", native.StatusInvalidDeviceType)
	}
	n := 0
	for i, dev := range p.devices {
		if !dev.matches(t, i == 0) {
			continue
		}
		if n < len(dst) {
			dst[n] = dev.id
		}
		n++
	}
	if n == 0 {
		return 0, native.NewError("clGetDeviceIDs", native.StatusDeviceNotFound)
	}
	return n, nil
}

func (d *Driver) DeviceInfo(id native.DeviceID, param native.DeviceInfo) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetDeviceInfo")
	dev, ok := d.devices[id]
	if !ok {
		return "", native.NewError("clGetDeviceInfo", native.StatusInvalidDevice)
	}
	switch param {
	case native.DeviceName:
		return dev.spec.Name, nil
	case native.DeviceVendor:
		return dev.spec.Vendor, nil
	case native.DeviceDriverVersion:
		return dev.spec.DriverVersion, nil
	case native.DeviceProfile:
		return dev.spec.Profile, nil
	case native.DeviceVersion:
		return dev.spec.Version, nil
	}
	return "", native.NewError("clGetDeviceInfo", native.StatusInvalidValue)
}

func (d *Driver) DeviceType(id native.DeviceID) (native.DeviceType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetDeviceInfo")
	dev, ok := d.devices[id]
	if !ok {
		return 0, native.NewError("clGetDeviceInfo", native.StatusInvalidDevice)
	}
	return dev.spec.Type, nil
}

func (d *Driver) platform(id native.PlatformID) *platform {
	for _, p := range d.platforms {
		if p.id == id {
			return p
		}
	}
	return nil
}

type platform struct {
	id      native.PlatformID
	spec    PlatformSpec
	devices []*device
}

type device struct {
	id       native.DeviceID
	platform *platform
	spec     DeviceSpec
}

// matches applies a device type selector. DeviceTypeDefault selects the
// first device of the platform.
func (dev *device) matches(t native.DeviceType, first bool) bool {
	if t == native.DeviceTypeAll {
		return true
	}
	if t&dev.spec.Type != 0 {
		return true
	}
	return t&native.DeviceTypeDefault != 0 && first
}
