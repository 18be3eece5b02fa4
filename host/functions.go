package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/panicz/clops/cl"
	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/options"
	"github.com/panicz/clops/resource"
)

var i32 = api.ValueTypeI32

func i32s(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = i32
	}
	return types
}

func (m *Module) functions() []funcDef {
	return []funcDef{
		{"platforms", m.platforms, i32s(2), i32s(1)},
		{"devices", m.devices, i32s(5), i32s(1)},
		{"make-context", m.makeContext, i32s(2), i32s(1)},
		{"enter-context", m.enterContext, i32s(1), i32s(1)},
		{"set-current-context", m.setCurrentContext, i32s(1), nil},
		{"enter-build-options", m.enterBuildOptions, i32s(2), i32s(1)},
		{"leave", m.leave, i32s(1), nil},
		{"make-command-queue", m.makeCommandQueue, i32s(3), i32s(1)},
		{"make-program", m.makeProgram, i32s(2), i32s(1)},
		{"program-built", m.programBuilt, i32s(1), i32s(1)},
		{"kernel", m.kernel, i32s(3), i32s(1)},
		{"make-buffer", m.makeBuffer, i32s(3), i32s(1)},
		{"make-host-buffer", m.makeHostBuffer, i32s(4), i32s(1)},
		{"bind-arguments", m.bindArguments, i32s(3), i32s(1)},
		{"enqueue-write-buffer", m.enqueueWrite, i32s(4), i32s(1)},
		{"enqueue-read-buffer", m.enqueueRead, i32s(4), i32s(1)},
		{"enqueue-kernel", m.enqueueKernel, i32s(6), i32s(1)},
		{"finish", m.finish, i32s(1), i32s(1)},
		{"render", m.render, i32s(3), i32s(1)},
		{"drop", m.drop, i32s(1), i32s(1)},
	}
}

// get resolves a guest handle to a wrapper of the given kind, trapping on
// unknown handles and kind mismatches.
func get[T resource.Object](m *Module, kind resource.Kind, h uint64) T {
	v, err := resource.As[T](m.table, kind, resource.Handle(api.DecodeU32(h)))
	if err != nil {
		panic(err)
	}
	return v
}

// failed reports whether err is a native failure, which the guest sees
// as a sentinel result. Any other error traps.
func failed(err error) bool {
	if err == nil {
		return false
	}
	if cl.IsNativeFailure(err) {
		return true
	}
	panic(err)
}

func status(err error) uint64 {
	return api.EncodeI32(int32(native.StatusOf(err)))
}

func (m *Module) wrap(obj resource.Object) uint64 {
	return api.EncodeU32(uint32(m.table.Wrap(obj)))
}

func (m *Module) writeHandles(mod api.Module, fn string, out, capacity uint32, objs []resource.Object) {
	n := min(len(objs), int(capacity))
	handles := make([]uint32, n)
	for i := range handles {
		handles[i] = uint32(m.enumerate(objs[i]))
	}
	writeU32s(mod, fn, out, handles)
}

// enumerate returns the handle of a platform or device, reusing the one
// handed out by an earlier enumeration while the guest has not dropped it.
func (m *Module) enumerate(obj resource.Object) resource.Handle {
	key := nativeID(obj)
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.enumerated[key]; ok {
		if cur, ok := m.table.Get(h); ok && nativeID(cur) == key {
			return h
		}
	}
	h := m.table.Wrap(obj)
	m.enumerated[key] = h
	return h
}

func nativeID(obj resource.Object) any {
	switch v := obj.(type) {
	case *cl.Platform:
		return v.ID()
	case *cl.Device:
		return v.ID()
	}
	return nil
}

// platforms(out, cap) -> count
func (m *Module) platforms(_ context.Context, mod api.Module, stack []uint64) {
	ps, err := m.session.Platforms()
	if failed(err) {
		stack[0] = status(err)
		return
	}
	objs := make([]resource.Object, len(ps))
	for i, p := range ps {
		objs[i] = p
	}
	m.writeHandles(mod, "platforms", api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), objs)
	stack[0] = api.EncodeI32(int32(len(ps)))
}

// devices(platform, types, types_len, out, cap) -> count
func (m *Module) devices(_ context.Context, mod api.Module, stack []uint64) {
	p := get[*cl.Platform](m, cl.KindPlatform, stack[0])
	types := options.Split(readString(mod, "devices", api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
	devs, err := p.Devices(types...)
	if failed(err) {
		stack[0] = status(err)
		return
	}
	objs := make([]resource.Object, len(devs))
	for i, d := range devs {
		objs[i] = d
	}
	m.writeHandles(mod, "devices", api.DecodeU32(stack[3]), api.DecodeU32(stack[4]), objs)
	stack[0] = api.EncodeI32(int32(len(devs)))
}

// make-context(devices, count) -> context
func (m *Module) makeContext(_ context.Context, mod api.Module, stack []uint64) {
	handles := readU32s(mod, "make-context", api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	devs := make([]*cl.Device, len(handles))
	for i, h := range handles {
		devs[i] = get[*cl.Device](m, cl.KindDevice, uint64(h))
	}
	ctx, err := m.session.CreateContext(devs...)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(ctx)
}

// enter-context(context) -> guard
func (m *Module) enterContext(_ context.Context, _ api.Module, stack []uint64) {
	ctx := get[*cl.Context](m, cl.KindContext, stack[0])
	g, err := m.session.EnterContext(ctx)
	if err != nil {
		panic(err)
	}
	stack[0] = m.enter(&guard{g: g, what: "context"})
}

// set-current-context(context)
func (m *Module) setCurrentContext(_ context.Context, _ api.Module, stack []uint64) {
	ctx := get[*cl.Context](m, cl.KindContext, stack[0])
	if err := m.session.SetCurrentContext(ctx); err != nil {
		panic(err)
	}
}

// enter-build-options(options, len) -> guard
func (m *Module) enterBuildOptions(_ context.Context, mod api.Module, stack []uint64) {
	opts := readString(mod, "enter-build-options", api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	stack[0] = m.enter(&guard{g: m.session.EnterBuildOptions(opts), what: "build options"})
}

// leave(guard)
//
// Leaving a guard while guards entered after it are open traps and keeps
// the handle.
func (m *Module) leave(_ context.Context, _ api.Module, stack []uint64) {
	g := get[*guard](m, KindGuard, stack[0])
	m.leaveGuard(resource.Handle(api.DecodeU32(stack[0])), g)
}

func (m *Module) leaveGuard(h resource.Handle, g *guard) {
	if err := g.g.Release(); err != nil {
		panic(err)
	}
	m.forget(g)
	if err := m.table.Destroy(h); err != nil {
		panic(err)
	}
}

// make-command-queue(device, props, props_len) -> queue
func (m *Module) makeCommandQueue(_ context.Context, mod api.Module, stack []uint64) {
	dev := get[*cl.Device](m, cl.KindDevice, stack[0])
	props := options.Split(readString(mod, "make-command-queue", api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
	q, err := m.session.CreateCommandQueue(dev, props...)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(q)
}

// make-program(source, len) -> program
func (m *Module) makeProgram(_ context.Context, mod api.Module, stack []uint64) {
	src := readString(mod, "make-program", api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	p, err := m.session.CreateProgram(src)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(p)
}

// program-built(program) -> 0 | 1
func (m *Module) programBuilt(_ context.Context, _ api.Module, stack []uint64) {
	p := get[*cl.Program](m, cl.KindProgram, stack[0])
	stack[0] = 0
	if p.Built() {
		stack[0] = 1
	}
}

// kernel(program, name, len) -> kernel
func (m *Module) kernel(_ context.Context, mod api.Module, stack []uint64) {
	p := get[*cl.Program](m, cl.KindProgram, stack[0])
	name := readString(mod, "kernel", api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	k, err := p.Kernel(name)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(k)
}

// make-buffer(size, flags, flags_len) -> buffer
func (m *Module) makeBuffer(_ context.Context, mod api.Module, stack []uint64) {
	size := int(api.DecodeI32(stack[0]))
	flags := options.Split(readString(mod, "make-buffer", api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
	b, err := m.session.CreateBuffer(size, flags...)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(b)
}

// make-host-buffer(ptr, len, flags, flags_len) -> buffer
func (m *Module) makeHostBuffer(_ context.Context, mod api.Module, stack []uint64) {
	host := view(mod, "make-host-buffer", api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	flags := options.Split(readString(mod, "make-host-buffer", api.DecodeU32(stack[2]), api.DecodeU32(stack[3])))
	b, err := m.session.CreateHostBuffer(host, flags...)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(b)
}

// bind-arguments(kernel, args, count) -> status
//
// Each argument is a handle. Handles that do not name a live object are
// passed through as plain integers, which the kernel binds as null.
func (m *Module) bindArguments(_ context.Context, mod api.Module, stack []uint64) {
	k := get[*cl.Kernel](m, cl.KindKernel, stack[0])
	handles := readU32s(mod, "bind-arguments", api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	args := make([]any, len(handles))
	for i, h := range handles {
		if obj, ok := m.table.Get(resource.Handle(h)); ok {
			args[i] = obj
		} else {
			args[i] = h
		}
	}
	err := k.BindArguments(args...)
	failed(err)
	stack[0] = status(err)
}

type transferFunc func(q *cl.CommandQueue, b *cl.Buffer, offset, n int) (*cl.Event, error)

func (m *Module) transfer(stack []uint64, do transferFunc) {
	qh, bh := stack[0], stack[1]
	q := get[*cl.CommandQueue](m, cl.KindCommandQueue, qh)
	b := get[*cl.Buffer](m, cl.KindBuffer, bh)
	offset := int(api.DecodeI32(stack[2]))
	n := int(api.DecodeI32(stack[3]))
	if n < 0 {
		n = b.Size() - offset
	}
	ev, err := do(q, b, offset, n)
	if failed(err) {
		stack[0] = 0
		return
	}
	m.borrow(resource.Handle(api.DecodeU32(qh)), resource.Handle(api.DecodeU32(bh)))
	stack[0] = m.wrap(ev)
}

// enqueue-write-buffer(queue, buffer, offset, size) -> event
//
// A negative size transfers the rest of the buffer from offset.
func (m *Module) enqueueWrite(_ context.Context, _ api.Module, stack []uint64) {
	m.transfer(stack, (*cl.CommandQueue).EnqueueWriteRegion)
}

// enqueue-read-buffer(queue, buffer, offset, size) -> event
func (m *Module) enqueueRead(_ context.Context, _ api.Module, stack []uint64) {
	m.transfer(stack, (*cl.CommandQueue).EnqueueReadRegion)
}

func dims(vals []uint32) cl.Dims {
	if vals == nil {
		return nil
	}
	d := make(cl.Dims, len(vals))
	for i, v := range vals {
		d[i] = int(int32(v))
	}
	return d
}

// enqueue-kernel(queue, kernel, global, rank, local, local_rank) -> event
//
// A local rank of 0 leaves the work-group size to the driver.
func (m *Module) enqueueKernel(_ context.Context, mod api.Module, stack []uint64) {
	q := get[*cl.CommandQueue](m, cl.KindCommandQueue, stack[0])
	k := get[*cl.Kernel](m, cl.KindKernel, stack[1])
	global := dims(readU32s(mod, "enqueue-kernel", api.DecodeU32(stack[2]), api.DecodeU32(stack[3])))
	var local cl.Dims
	if rank := api.DecodeU32(stack[5]); rank > 0 {
		local = dims(readU32s(mod, "enqueue-kernel", api.DecodeU32(stack[4]), rank))
	}
	ev, err := q.EnqueueKernel(k, global, local)
	if failed(err) {
		stack[0] = 0
		return
	}
	stack[0] = m.wrap(ev)
}

// finish(queue) -> status
func (m *Module) finish(_ context.Context, _ api.Module, stack []uint64) {
	q := get[*cl.CommandQueue](m, cl.KindCommandQueue, stack[0])
	err := q.Finish()
	m.settle(resource.Handle(api.DecodeU32(stack[0])))
	failed(err)
	stack[0] = status(err)
}

// render(handle, out, cap) -> length
//
// The rendering is truncated to cap bytes; the full length is returned
// so a guest can retry with a larger buffer.
func (m *Module) render(_ context.Context, mod api.Module, stack []uint64) {
	text := m.table.Render(resource.Handle(api.DecodeU32(stack[0])))
	out, capacity := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	writeBytes(mod, "render", out, []byte(text[:min(len(text), int(capacity))]))
	stack[0] = api.EncodeI32(int32(len(text)))
}

// drop(handle) -> status
//
// Dropping a queue with transfers in flight finishes it first. Dropping a
// guard is leave.
func (m *Module) drop(_ context.Context, _ api.Module, stack []uint64) {
	h := resource.Handle(api.DecodeU32(stack[0]))
	obj, ok := m.table.Get(h)
	if !ok {
		panic(errors.NotFound(errors.PhaseHost, "handle", h))
	}
	if g, ok := obj.(*guard); ok {
		m.leaveGuard(h, g)
		stack[0] = 0
		return
	}
	if q, ok := obj.(*cl.CommandQueue); ok && m.hasPending(h) {
		if err := q.Finish(); err != nil && !cl.IsNativeFailure(err) {
			panic(err)
		}
		m.settle(h)
	}
	err := m.table.Destroy(h)
	failed(err)
	stack[0] = status(err)
}
