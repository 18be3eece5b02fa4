package cl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/options"
)

// CommandQueue is a native command queue on one device of the current
// context.
type CommandQueue struct {
	object
	s      *Session
	id     native.QueueID
	device *Device
	props  native.QueueProperties
}

// CreateCommandQueue creates a queue for device in the current context.
// Properties are queue property symbols ("out-of-order-execution-mode",
// "profiling").
func (s *Session) CreateCommandQueue(device *Device, props ...string) (*CommandQueue, error) {
	return s.CreateCommandQueueWithProperties(device, options.QueueProperties(props...))
}

// CreateCommandQueueWithProperties is CreateCommandQueue with an already
// parsed property mask.
func (s *Session) CreateCommandQueueWithProperties(device *Device, props native.QueueProperties) (*CommandQueue, error) {
	if device == nil {
		return nil, errors.TypeMismatch(errors.PhaseCreate, KindDevice.String(), "nil")
	}
	ctx, err := s.current(errors.PhaseCreate)
	if err != nil {
		return nil, err
	}
	api := s.api
	id, err := api.CreateCommandQueue(ctx.id, device.id, props)
	if err != nil {
		return nil, s.fail("failed to create command queue", err, zap.Stringer("properties", props))
	}
	q := &CommandQueue{s: s, id: id, device: device, props: props}
	own(q, &q.object, KindCommandQueue, releaser{
		op:  "clReleaseCommandQueue",
		fn:  func() error { return api.ReleaseCommandQueue(id) },
		log: s.log,
	})
	return q, nil
}

// ID returns the native handle.
func (q *CommandQueue) ID() native.QueueID { return q.id }

// Device returns the device the queue submits to.
func (q *CommandQueue) Device() *Device { return q.device }

// Properties returns the queue properties.
func (q *CommandQueue) Properties() native.QueueProperties { return q.props }

func (q *CommandQueue) String() string {
	if q.Released() {
		return "#<OpenCL command queue (released)>"
	}
	return fmt.Sprintf("#<OpenCL command queue %x %s %s>", uintptr(q.id), q.device.Name(), q.props)
}

// EnqueueWrite copies the buffer's whole host memory to the device
// without blocking.
func (q *CommandQueue) EnqueueWrite(b *Buffer) (*Event, error) {
	if b == nil {
		return nil, errors.TypeMismatch(errors.PhaseEnqueue, KindBuffer.String(), "nil")
	}
	return q.EnqueueWriteRegion(b, 0, b.size)
}

// EnqueueWriteRegion copies n bytes at offset of the buffer's host memory
// to the same offset on the device without blocking. offset applies to
// both sides: the source is host[offset:offset+n], not the start of the
// host memory. The host memory must not change until the returned event
// completes.
func (q *CommandQueue) EnqueueWriteRegion(b *Buffer, offset, n int) (*Event, error) {
	return q.transfer("clEnqueueWriteBuffer", b, offset, n, func(host []byte) (native.EventID, error) {
		return q.s.api.EnqueueWriteBuffer(q.id, b.id, false, offset, host)
	})
}

// EnqueueRead copies the whole buffer from the device into its host
// memory without blocking.
func (q *CommandQueue) EnqueueRead(b *Buffer) (*Event, error) {
	if b == nil {
		return nil, errors.TypeMismatch(errors.PhaseEnqueue, KindBuffer.String(), "nil")
	}
	return q.EnqueueReadRegion(b, 0, b.size)
}

// EnqueueReadRegion copies n bytes at offset from the device into the
// same offset of the buffer's host memory without blocking: the bytes land
// in host[offset:offset+n], not at the start of the host memory. The host
// memory holds the data once the returned event completes.
func (q *CommandQueue) EnqueueReadRegion(b *Buffer, offset, n int) (*Event, error) {
	return q.transfer("clEnqueueReadBuffer", b, offset, n, func(host []byte) (native.EventID, error) {
		return q.s.api.EnqueueReadBuffer(q.id, b.id, false, offset, host)
	})
}

func (q *CommandQueue) transfer(op string, b *Buffer, offset, n int, call func([]byte) (native.EventID, error)) (*Event, error) {
	if err := q.live(errors.PhaseEnqueue); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.TypeMismatch(errors.PhaseEnqueue, KindBuffer.String(), "nil")
	}
	if err := b.live(errors.PhaseEnqueue); err != nil {
		return nil, err
	}
	if offset < 0 || n < 0 || offset > b.size || n > b.size-offset {
		return nil, errors.OutOfBounds(errors.PhaseEnqueue, []string{op}, offset, b.size)
	}
	fields := []zap.Field{zap.Stringer("buffer", b), zap.Int("offset", offset), zap.Int("size", n)}
	if b.host == nil {
		return nil, q.s.fail("buffer transfer failed", native.NewError(op, native.StatusInvalidHostPtr), fields...)
	}
	id, err := call(b.host[offset : offset+n])
	if err != nil {
		return nil, q.s.fail("buffer transfer failed", err, fields...)
	}
	return q.s.newEvent(id), nil
}

// EnqueueKernel launches k over global work items, grouped by local when
// local is not nil.
func (q *CommandQueue) EnqueueKernel(k *Kernel, global, local Dims) (*Event, error) {
	if err := q.live(errors.PhaseEnqueue); err != nil {
		return nil, err
	}
	if k == nil {
		return nil, errors.TypeMismatch(errors.PhaseEnqueue, KindKernel.String(), "nil")
	}
	if err := k.live(errors.PhaseEnqueue); err != nil {
		return nil, err
	}
	if err := checkLaunch(global, local); err != nil {
		return nil, err
	}
	id, err := q.s.api.EnqueueNDRangeKernel(q.id, k.id, global, local)
	if err != nil {
		return nil, q.s.fail("failed to enqueue kernel", err,
			zap.String("kernel", k.Name()),
			zap.Ints("global", global),
			zap.Ints("local", local))
	}
	return q.s.newEvent(id), nil
}

// Finish blocks until every command enqueued on q has completed.
func (q *CommandQueue) Finish() error {
	if err := q.live(errors.PhaseEnqueue); err != nil {
		return err
	}
	if err := q.s.api.Finish(q.id); err != nil {
		return q.s.fail("finish failed", err)
	}
	return nil
}
