package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panicz/clops/native"
)

// WorkItem identifies one invocation of a kernel function.
type WorkItem struct {
	ID         [3]int
	Local      [3]int
	Group      [3]int
	GlobalSize [3]int
	LocalSize  [3]int
	Dims       int
}

// KernelFunc stands in for device code. args holds the storage of the
// memory objects bound to each kernel argument, nil for null arguments.
// Returning an error (or panicking) fails the launch: the event reports
// StatusOutOfResources and the context's notify callback receives the
// error text.
type KernelFunc func(item WorkItem, args [][]byte) error

type event struct {
	id     native.EventID
	status atomic.Int32
	done   chan struct{}
}

func newEvent(id native.EventID) *event {
	ev := &event{id: id, done: make(chan struct{})}
	ev.status.Store(int32(native.ExecQueued))
	return ev
}

type command struct {
	name string
	ev   *event
	run  func() error
}

type queue struct {
	id      native.QueueID
	ctx     *context
	props   native.QueueProperties
	cmds    chan *command
	pending sync.WaitGroup
	once    sync.Once
}

func newQueue(id native.QueueID, ctx *context, props native.QueueProperties) *queue {
	q := &queue{id: id, ctx: ctx, props: props, cmds: make(chan *command, 64)}
	go q.loop()
	return q
}

func (q *queue) loop() {
	for cmd := range q.cmds {
		if q.props&native.QueueOutOfOrderExecMode != 0 {
			go q.exec(cmd)
			continue
		}
		q.exec(cmd)
	}
}

func (q *queue) exec(cmd *command) {
	defer q.pending.Done()
	defer close(cmd.ev.done)

	cmd.ev.status.Store(int32(native.ExecRunning))
	if err := safeRun(cmd.run); err != nil {
		cmd.ev.status.Store(int32(native.StatusOutOfResources))
		if q.ctx.notify != nil {
			q.ctx.notify(fmt.Sprintf("clops-sim: %s: %v", cmd.name, err))
		}
		return
	}
	cmd.ev.status.Store(int32(native.ExecComplete))
}

func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// submit hands cmd to the queue goroutine. Callers hold the driver mutex,
// which orders submit against close.
func (q *queue) submit(cmd *command) {
	q.pending.Add(1)
	cmd.ev.status.Store(int32(native.ExecSubmitted))
	q.cmds <- cmd
}

func (q *queue) close() {
	q.once.Do(func() { close(q.cmds) })
}

// enqueue registers an event for a new command and submits it. Callers
// hold the driver mutex.
func (d *Driver) enqueue(q *queue, name string, run func() error) *event {
	ev := newEvent(native.EventID(d.alloc()))
	d.events[ev.id] = ev
	q.submit(&command{name: name, ev: ev, run: run})
	return ev
}

func wait(ev *event, op string) error {
	<-ev.done
	if st := ev.status.Load(); st < 0 {
		return native.NewError(op, native.Status(st))
	}
	return nil
}

func (d *Driver) lookupTransfer(op string, qid native.QueueID, mid native.MemID, offset, n int) (*queue, *mem, error) {
	q, ok := d.queues[qid]
	if !ok {
		return nil, nil, native.NewError(op, native.StatusInvalidCommandQueue)
	}
	m, ok := d.mems[mid]
	if !ok {
		return nil, nil, native.NewError(op, native.StatusInvalidMemObject)
	}
	if m.ctx != q.ctx {
		return nil, nil, native.NewError(op, native.StatusInvalidContext)
	}
	if offset < 0 || n < 0 || offset+n > len(m.storage) {
		return nil, nil, native.NewError(op, native.StatusInvalidValue)
	}
	return q, m, nil
}

func (d *Driver) EnqueueWriteBuffer(qid native.QueueID, mid native.MemID, blocking bool, offset int, src []byte) (native.EventID, error) {
	const op = "clEnqueueWriteBuffer"
	d.mu.Lock()
	d.count(op)
	q, m, err := d.lookupTransfer(op, qid, mid, offset, len(src))
	if err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if src == nil {
		d.mu.Unlock()
		return 0, native.NewError(op, native.StatusInvalidValue)
	}
	ev := d.enqueue(q, "write buffer", func() error {
		copy(m.storage[offset:], src)
		return nil
	})
	d.mu.Unlock()

	if blocking {
		return ev.id, wait(ev, op)
	}
	return ev.id, nil
}

func (d *Driver) EnqueueReadBuffer(qid native.QueueID, mid native.MemID, blocking bool, offset int, dst []byte) (native.EventID, error) {
	const op = "clEnqueueReadBuffer"
	d.mu.Lock()
	d.count(op)
	q, m, err := d.lookupTransfer(op, qid, mid, offset, len(dst))
	if err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if dst == nil {
		d.mu.Unlock()
		return 0, native.NewError(op, native.StatusInvalidValue)
	}
	ev := d.enqueue(q, "read buffer", func() error {
		copy(dst, m.storage[offset:offset+len(dst)])
		return nil
	})
	d.mu.Unlock()

	if blocking {
		return ev.id, wait(ev, op)
	}
	return ev.id, nil
}

func (d *Driver) EnqueueNDRangeKernel(qid native.QueueID, kid native.KernelID, global, local []int) (native.EventID, error) {
	const op = "clEnqueueNDRangeKernel"
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count(op)

	q, ok := d.queues[qid]
	if !ok {
		return 0, native.NewError(op, native.StatusInvalidCommandQueue)
	}
	k, ok := d.kernels[kid]
	if !ok {
		return 0, native.NewError(op, native.StatusInvalidKernel)
	}
	if k.prog.ctx != q.ctx {
		return 0, native.NewError(op, native.StatusInvalidContext)
	}
	item, status := d.geometry(global, local)
	if status != native.StatusSuccess {
		return 0, native.NewError(op, status)
	}

	args := make([][]byte, len(k.args))
	for i, a := range k.args {
		if !a.set {
			return 0, native.NewError(op, native.StatusInvalidKernelArgs)
		}
		if a.mem != nil {
			args[i] = a.mem.storage
		}
	}

	name, fn := k.sig.name, k.fn
	ev := d.enqueue(q, "kernel "+name, func() error {
		if fn == nil {
			return nil
		}
		return launch(item, args, fn)
	})
	return ev.id, nil
}

// geometry validates an NDRange and returns the template work item with
// sizes filled in. Unused dimensions have size 1.
func (d *Driver) geometry(global, local []int) (WorkItem, native.Status) {
	var it WorkItem
	if len(global) < 1 || len(global) > 3 {
		return it, native.StatusInvalidWorkDimension
	}
	if local != nil && len(local) != len(global) {
		return it, native.StatusInvalidWorkDimension
	}
	it.Dims = len(global)
	group := 1
	for i := 0; i < 3; i++ {
		it.GlobalSize[i], it.LocalSize[i] = 1, 1
		if i >= len(global) {
			continue
		}
		if global[i] <= 0 {
			return it, native.StatusInvalidGlobalWorkSize
		}
		it.GlobalSize[i] = global[i]
		if local == nil {
			continue
		}
		if local[i] <= 0 || global[i]%local[i] != 0 {
			return it, native.StatusInvalidWorkGroupSize
		}
		it.LocalSize[i] = local[i]
		group *= local[i]
	}
	if group > d.maxGroup {
		return it, native.StatusInvalidWorkGroupSize
	}
	return it, native.StatusSuccess
}

func launch(tmpl WorkItem, args [][]byte, fn KernelFunc) error {
	g := tmpl.GlobalSize
	for z := 0; z < g[2]; z++ {
		for y := 0; y < g[1]; y++ {
			for x := 0; x < g[0]; x++ {
				it := tmpl
				it.ID = [3]int{x, y, z}
				for i := range 3 {
					it.Local[i] = it.ID[i] % it.LocalSize[i]
					it.Group[i] = it.ID[i] / it.LocalSize[i]
				}
				if err := fn(it, args); err != nil {
					return fmt.Errorf("work item %v: %w", it.ID[:tmpl.Dims], err)
				}
			}
		}
	}
	return nil
}

func (d *Driver) EventStatus(id native.EventID) (native.ExecStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clGetEventInfo")
	ev, ok := d.events[id]
	if !ok {
		return 0, native.NewError("clGetEventInfo", native.StatusInvalidEvent)
	}
	return native.ExecStatus(ev.status.Load()), nil
}

func (d *Driver) ReleaseEvent(id native.EventID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("clReleaseEvent")
	if _, ok := d.events[id]; !ok {
		return native.NewError("clReleaseEvent", native.StatusInvalidEvent)
	}
	delete(d.events, id)
	return nil
}

func (d *Driver) Finish(id native.QueueID) error {
	d.mu.Lock()
	d.count("clFinish")
	q, ok := d.queues[id]
	d.mu.Unlock()
	if !ok {
		return native.NewError("clFinish", native.StatusInvalidCommandQueue)
	}
	q.pending.Wait()
	return nil
}
