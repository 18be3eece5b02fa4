package cl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/options"
)

// Buffer is a native memory object. A buffer created from a host slice
// keeps that slice as a non-owning view: transfers move bytes between
// the view and the device, and the binding never copies it.
type Buffer struct {
	object
	s     *Session
	id    native.MemID
	size  int
	flags native.MemFlags
	host  []byte
}

var _ MemObject = (*Buffer)(nil)

// CreateBuffer allocates a device buffer of size bytes in the current
// context. Flags are memory flag symbols; none means read-write.
func (s *Session) CreateBuffer(size int, flags ...string) (*Buffer, error) {
	if size < 0 {
		return nil, errors.Precondition(errors.PhaseCreate, []string{"make-buffer"}, "negative size %d", size)
	}
	mask := options.ResolveMemFlags(options.MemFlags(flags...), false)
	return s.createBuffer(size, mask, nil)
}

// CreateHostBuffer creates a buffer associated with host. Flags are memory
// flag symbols; none means use-host-pointer, so the device works on host
// directly. The caller keeps ownership of host.
func (s *Session) CreateHostBuffer(host []byte, flags ...string) (*Buffer, error) {
	if host == nil {
		return nil, errors.TypeMismatch(errors.PhaseCreate, "byte slice", "nil")
	}
	mask := options.ResolveMemFlags(options.MemFlags(flags...), true)
	return s.createBuffer(len(host), mask, host)
}

// CreateBufferWithFlags is CreateBuffer/CreateHostBuffer with an already
// parsed mask. host may be nil.
func (s *Session) CreateBufferWithFlags(size int, mask native.MemFlags, host []byte) (*Buffer, error) {
	if host != nil {
		size = len(host)
	}
	return s.createBuffer(size, options.ResolveMemFlags(mask, host != nil), host)
}

func (s *Session) createBuffer(size int, mask native.MemFlags, host []byte) (*Buffer, error) {
	ctx, err := s.current(errors.PhaseCreate)
	if err != nil {
		return nil, err
	}
	id, err := s.api.CreateBuffer(ctx.id, mask, size, host)
	if err != nil {
		return nil, s.fail("failed to initialize buffer", err,
			zap.Int("size", size),
			zap.Stringer("flags", mask))
	}
	b := &Buffer{s: s, id: id, size: size, flags: mask, host: host}
	own(b, &b.object, KindBuffer, s.memReleaser(id))
	return b, nil
}

// ID returns the native handle.
func (b *Buffer) ID() native.MemID { return b.id }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.size }

// Flags returns the memory flags the buffer was created with.
func (b *Buffer) Flags() native.MemFlags { return b.flags }

// Host returns the associated host memory, or nil.
func (b *Buffer) Host() []byte { return b.host }

func (b *Buffer) mem() (native.MemID, error) {
	if err := b.live(errors.PhaseBind); err != nil {
		return 0, err
	}
	return b.id, nil
}

func (b *Buffer) String() string {
	if b.Released() {
		return "#<OpenCL buffer (released)>"
	}
	return fmt.Sprintf("#<OpenCL buffer %x %d bytes %s>", uintptr(b.id), b.size, b.flags)
}

// image is the shared representation of samplers and images, which the
// binding does not create but can bind as kernel arguments.
type image struct {
	object
	id native.MemID
}

func (im *image) mem() (native.MemID, error) {
	if err := im.live(errors.PhaseBind); err != nil {
		return 0, err
	}
	return im.id, nil
}

func (im *image) render() string {
	if im.Released() {
		return "#<" + im.kind.String() + " (released)>"
	}
	return fmt.Sprintf("#<%s %x>", im.kind, uintptr(im.id))
}

// Sampler wraps a native sampler created outside the binding.
type Sampler struct{ image }

// Image2D wraps a native 2D image created outside the binding.
type Image2D struct{ image }

// Image3D wraps a native 3D image created outside the binding.
type Image3D struct{ image }

func (x *Sampler) String() string { return x.render() }
func (x *Image2D) String() string { return x.render() }
func (x *Image3D) String() string { return x.render() }

var (
	_ MemObject = (*Sampler)(nil)
	_ MemObject = (*Image2D)(nil)
	_ MemObject = (*Image3D)(nil)
)

func (s *Session) memReleaser(id native.MemID) releaser {
	api := s.api
	return releaser{
		op:  "clReleaseMemObject",
		fn:  func() error { return api.ReleaseMemObject(id) },
		log: s.log,
	}
}

// AdoptSampler takes ownership of a native sampler handle.
func (s *Session) AdoptSampler(id native.MemID) *Sampler {
	x := &Sampler{image{id: id}}
	own(x, &x.object, KindSampler, s.memReleaser(id))
	return x
}

// AdoptImage2D takes ownership of a native 2D image handle.
func (s *Session) AdoptImage2D(id native.MemID) *Image2D {
	x := &Image2D{image{id: id}}
	own(x, &x.object, KindImage2D, s.memReleaser(id))
	return x
}

// AdoptImage3D takes ownership of a native 3D image handle.
func (s *Session) AdoptImage3D(id native.MemID) *Image3D {
	x := &Image3D{image{id: id}}
	own(x, &x.object, KindImage3D, s.memReleaser(id))
	return x
}
