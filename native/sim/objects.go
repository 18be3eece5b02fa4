package sim

import (
	"github.com/panicz/clops/native"
)

type context struct {
	id       native.ContextID
	platform *platform
	devices  []*device
	notify   native.ContextNotify
}

func (c *context) has(id native.DeviceID) bool {
	for _, dev := range c.devices {
		if dev.id == id {
			return true
		}
	}
	return false
}

type program struct {
	id      native.ProgramID
	ctx     *context
	source  string
	built   bool
	options string
	logs    map[native.DeviceID]string
	sigs    []signature
	kernels int
}

type kernel struct {
	id   native.KernelID
	prog *program
	sig  signature
	fn   KernelFunc
	args []arg
}

type arg struct {
	set bool
	mem *mem
}

type mem struct {
	id      native.MemID
	ctx     *context
	flags   native.MemFlags
	storage []byte
}

func (d *Driver) CreateContext(p native.PlatformID, devices []native.DeviceID, notify native.ContextNotify) (native.ContextID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clCreateContext")
	plat := d.platform(p)
	if plat == nil {
		return 0, native.NewError("clCreateContext", native.StatusInvalidPlatform)
	}
	if len(devices) == 0 {
		return 0, native.NewError("clCreateContext", native.StatusInvalidValue)
	}
	c := &context{platform: plat, notify: notify}
	for _, id := range devices {
		dev, ok := d.devices[id]
		if !ok || dev.platform != plat {
			return 0, native.NewError("clCreateContext", native.StatusInvalidDevice)
		}
		c.devices = append(c.devices, dev)
	}
	c.id = native.ContextID(d.alloc())
	d.contexts[c.id] = c
	return c.id, nil
}

func (d *Driver) ReleaseContext(id native.ContextID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clReleaseContext")
	if _, ok := d.contexts[id]; !ok {
		return native.NewError("clReleaseContext", native.StatusInvalidContext)
	}
	delete(d.contexts, id)
	return nil
}

func (d *Driver) CreateCommandQueue(c native.ContextID, dev native.DeviceID, props native.QueueProperties) (native.QueueID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clCreateCommandQueue")
	ctx, ok := d.contexts[c]
	if !ok {
		return 0, native.NewError("clCreateCommandQueue", native.StatusInvalidContext)
	}
	if !ctx.has(dev) {
		return 0, native.NewError("clCreateCommandQueue", native.StatusInvalidDevice)
	}
	if props&^(native.QueueOutOfOrderExecMode|native.QueueProfiling) != 0 {
		return 0, native.NewError("clCreateCommandQueue", native.StatusInvalidValue)
	}
	q := newQueue(native.QueueID(d.alloc()), ctx, props)
	d.queues[q.id] = q
	return q.id, nil
}

func (d *Driver) ReleaseCommandQueue(id native.QueueID) error {
	d.mu.Lock()
	q, ok := d.queues[id]
	d.count("clReleaseCommandQueue")
	if !ok {
		d.mu.Unlock()
		return native.NewError("clReleaseCommandQueue", native.StatusInvalidCommandQueue)
	}
	delete(d.queues, id)
	d.mu.Unlock()

	// Releasing a queue flushes it; commands already enqueued still run.
	q.close()
	return nil
}

func (d *Driver) CreateProgramWithSource(c native.ContextID, sources []string) (native.ProgramID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clCreateProgramWithSource")
	ctx, ok := d.contexts[c]
	if !ok {
		return 0, native.NewError("clCreateProgramWithSource", native.StatusInvalidContext)
	}
	if len(sources) == 0 {
		return 0, native.NewError("clCreateProgramWithSource", native.StatusInvalidValue)
	}
	var src string
	for _, s := range sources {
		src += s
	}
	p := &program{
		id:     native.ProgramID(d.alloc()),
		ctx:    ctx,
		source: src,
		logs:   make(map[native.DeviceID]string),
	}
	d.programs[p.id] = p
	return p.id, nil
}

func (d *Driver) BuildProgram(id native.ProgramID, devices []native.DeviceID, options string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clBuildProgram")
	p, ok := d.programs[id]
	if !ok {
		return native.NewError("clBuildProgram", native.StatusInvalidProgram)
	}
	if p.kernels > 0 {
		return native.NewError("clBuildProgram", native.StatusInvalidOperation)
	}
	targets := devices
	if len(targets) == 0 {
		for _, dev := range p.ctx.devices {
			targets = append(targets, dev.id)
		}
	}
	for _, dev := range targets {
		if !p.ctx.has(dev) {
			return native.NewError("clBuildProgram", native.StatusInvalidDevice)
		}
	}
	if err := checkOptions(options); err != nil {
		return native.NewError("clBuildProgram", native.StatusInvalidBuildOptions)
	}

	p.options = options
	sigs, err := compile(p.source)
	for _, dev := range targets {
		if err != nil {
			p.logs[dev] = "<program source>:" + err.Error() + "\n"
		} else {
			p.logs[dev] = ""
		}
	}
	if err != nil {
		p.built = false
		p.sigs = nil
		return native.NewError("clBuildProgram", native.StatusBuildProgramFailure)
	}
	p.built = true
	p.sigs = sigs
	return nil
}

func (d *Driver) ProgramBuildLog(id native.ProgramID, dev native.DeviceID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetProgramBuildInfo")
	p, ok := d.programs[id]
	if !ok {
		return "", native.NewError("clGetProgramBuildInfo", native.StatusInvalidProgram)
	}
	if !p.ctx.has(dev) {
		return "", native.NewError("clGetProgramBuildInfo", native.StatusInvalidDevice)
	}
	return p.logs[dev], nil
}

func (d *Driver) ReleaseProgram(id native.ProgramID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clReleaseProgram")
	if _, ok := d.programs[id]; !ok {
		return native.NewError("clReleaseProgram", native.StatusInvalidProgram)
	}
	delete(d.programs, id)
	return nil
}

func (d *Driver) CreateKernel(id native.ProgramID, name string) (native.KernelID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clCreateKernel")
	p, ok := d.programs[id]
	if !ok {
		return 0, native.NewError("clCreateKernel", native.StatusInvalidProgram)
	}
	if !p.built {
		return 0, native.NewError("clCreateKernel", native.StatusInvalidProgramExecutable)
	}
	for _, sig := range p.sigs {
		if sig.name != name {
			continue
		}
		k := &kernel{
			id:   native.KernelID(d.alloc()),
			prog: p,
			sig:  sig,
			fn:   d.funcs[name],
			args: make([]arg, sig.params),
		}
		p.kernels++
		d.kernels[k.id] = k
		return k.id, nil
	}
	return 0, native.NewError("clCreateKernel", native.StatusInvalidKernelName)
}

func (d *Driver) ReleaseKernel(id native.KernelID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clReleaseKernel")
	k, ok := d.kernels[id]
	if !ok {
		return native.NewError("clReleaseKernel", native.StatusInvalidKernel)
	}
	k.prog.kernels--
	delete(d.kernels, id)
	return nil
}

func (d *Driver) CreateBuffer(c native.ContextID, flags native.MemFlags, size int, host []byte) (native.MemID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clCreateBuffer")
	ctx, ok := d.contexts[c]
	if !ok {
		return 0, native.NewError("clCreateBuffer", native.StatusInvalidContext)
	}
	if status := checkMemFlags(flags, size, host); status != native.StatusSuccess {
		return 0, native.NewError("clCreateBuffer", status)
	}

	m := &mem{id: native.MemID(d.alloc()), ctx: ctx, flags: flags}
	switch {
	case flags&native.MemUseHostPtr != 0:
		m.storage = host[:size:size]
	case flags&native.MemCopyHostPtr != 0:
		m.storage = make([]byte, size)
		copy(m.storage, host)
	default:
		m.storage = make([]byte, size)
	}
	d.mems[m.id] = m
	return m.id, nil
}

func checkMemFlags(flags native.MemFlags, size int, host []byte) native.Status {
	if size <= 0 {
		return native.StatusInvalidBufferSize
	}
	access := flags & (native.MemReadWrite | native.MemWriteOnly | native.MemReadOnly)
	if access&(access-1) != 0 {
		return native.StatusInvalidValue
	}
	if flags&native.MemUseHostPtr != 0 && flags&(native.MemAllocHostPtr|native.MemCopyHostPtr) != 0 {
		return native.StatusInvalidValue
	}
	wantsHost := flags&(native.MemUseHostPtr|native.MemCopyHostPtr) != 0
	switch {
	case wantsHost && host == nil:
		return native.StatusInvalidHostPtr
	case !wantsHost && host != nil:
		return native.StatusInvalidHostPtr
	case wantsHost && len(host) < size:
		return native.StatusInvalidHostPtr
	}
	return native.StatusSuccess
}

func (d *Driver) ReleaseMemObject(id native.MemID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clReleaseMemObject")
	if _, ok := d.mems[id]; !ok {
		return native.NewError("clReleaseMemObject", native.StatusInvalidMemObject)
	}
	delete(d.mems, id)
	return nil
}

func (d *Driver) SetKernelArgMem(id native.KernelID, index int, m native.MemID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clSetKernelArg")
	k, ok := d.kernels[id]
	if !ok {
		return native.NewError("clSetKernelArg", native.StatusInvalidKernel)
	}
	if index < 0 || index >= len(k.args) {
		return native.NewError("clSetKernelArg", native.StatusInvalidArgIndex)
	}
	obj, ok := d.mems[m]
	if !ok || obj.ctx != k.prog.ctx {
		return native.NewError("clSetKernelArg", native.StatusInvalidMemObject)
	}
	k.args[index] = arg{set: true, mem: obj}
	return nil
}

func (d *Driver) SetKernelArgNull(id native.KernelID, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clSetKernelArg")
	k, ok := d.kernels[id]
	if !ok {
		return native.NewError("clSetKernelArg", native.StatusInvalidKernel)
	}
	if index < 0 || index >= len(k.args) {
		return native.NewError("clSetKernelArg", native.StatusInvalidArgIndex)
	}
	k.args[index] = arg{set: true}
	return nil
}
