package cl

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
)

// Program is a native program created from one source unit.
type Program struct {
	object
	s       *Session
	id      native.ProgramID
	devices []native.DeviceID
	options string
	built   bool
	logs    []string
}

// CreateProgram creates a program from source in the current context and
// builds it with the current build options for devices, or for every
// device of the context when none are given.
//
// A build failure is logged together with the compiler output; the
// program is still returned and Built reports false.
func (s *Session) CreateProgram(source string, devices ...*Device) (*Program, error) {
	ctx, err := s.current(errors.PhaseCreate)
	if err != nil {
		return nil, err
	}
	var ids []native.DeviceID
	for _, d := range devices {
		if d == nil {
			return nil, errors.TypeMismatch(errors.PhaseCreate, KindDevice.String(), "nil")
		}
		ids = append(ids, d.id)
	}

	api := s.api
	id, err := api.CreateProgramWithSource(ctx.id, []string{source})
	if err != nil {
		return nil, s.fail("failed to create program", err)
	}
	p := &Program{s: s, id: id, devices: ids, options: s.BuildOptions()}
	own(p, &p.object, KindProgram, releaser{
		op:  "clReleaseProgram",
		fn:  func() error { return api.ReleaseProgram(id) },
		log: s.log,
	})

	err = api.BuildProgram(id, ids, p.options)
	p.built = err == nil
	if err != nil {
		targets := ids
		if len(targets) == 0 {
			targets = ctx.deviceIDs()
		}
		for _, dev := range targets {
			if log, lerr := api.ProgramBuildLog(id, dev); lerr == nil {
				p.logs = append(p.logs, log)
			}
		}
		s.fail("failed to build program", err,
			zap.String("options", p.options),
			zap.String("log", p.BuildLog()))
	}
	return p, nil
}

// ID returns the native handle.
func (p *Program) ID() native.ProgramID { return p.id }

// Built reports whether the build succeeded.
func (p *Program) Built() bool { return p.built }

// Options returns the build options the program was built with.
func (p *Program) Options() string { return p.options }

// BuildLog returns the compiler output of a failed build, one block per
// device with a non-empty log. Identical blocks are reported once.
func (p *Program) BuildLog() string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, log := range p.logs {
		if log = strings.TrimSpace(log); log == "" || seen[log] {
			continue
		}
		seen[log] = true
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(log)
	}
	return b.String()
}

func (p *Program) String() string {
	if p.Released() {
		return "#<OpenCL program (released)>"
	}
	state := "built"
	if !p.built {
		state = "unbuilt"
	}
	return fmt.Sprintf("#<OpenCL program %x %s>", uintptr(p.id), state)
}

// Kernel is a native kernel together with its name, which the wrapper
// owns and clears on release.
type Kernel struct {
	object
	s    *Session
	id   native.KernelID
	mu   sync.Mutex
	name string
}

// Kernel looks up the kernel function name in the program.
func (p *Program) Kernel(name string) (*Kernel, error) {
	if err := p.live(errors.PhaseCreate); err != nil {
		return nil, err
	}
	s := p.s
	api := s.api
	id, err := api.CreateKernel(p.id, name)
	if err != nil {
		return nil, s.fail("failed to create kernel", err,
			zap.String("kernel", name),
			zap.Bool("built", p.built))
	}
	k := &Kernel{s: s, id: id, name: name}
	own(k, &k.object, KindKernel, releaser{
		op:  "clReleaseKernel",
		fn:  func() error { return api.ReleaseKernel(id) },
		log: s.log,
	})
	return k, nil
}

// ID returns the native handle.
func (k *Kernel) ID() native.KernelID { return k.id }

// Name returns the kernel function name; empty after release.
func (k *Kernel) Name() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.name
}

// Release releases the native kernel and clears the name.
func (k *Kernel) Release() error {
	err := k.object.Release()
	k.mu.Lock()
	k.name = ""
	k.mu.Unlock()
	return err
}

// Drop is the handle table's destroy hook.
func (k *Kernel) Drop() error { return k.Release() }

// String renders "#<OpenCL kernel NAME>".
func (k *Kernel) String() string {
	if k.Released() {
		return "#<OpenCL kernel (released)>"
	}
	return "#<OpenCL kernel " + k.Name() + ">"
}

// BindArguments binds args to the kernel by position. Buffers, samplers
// and images bind as memory objects; any other value, a nil wrapper
// included, is logged and bound as a null argument. Every argument is attempted; native failures are
// logged per argument and the first one is returned.
func (k *Kernel) BindArguments(args ...any) error {
	if err := k.live(errors.PhaseBind); err != nil {
		return err
	}
	s := k.s
	name := k.Name()
	var first error
	for i, arg := range args {
		var err error
		if m, ok := memObject(arg); ok {
			id, merr := m.mem()
			if merr != nil {
				return merr
			}
			err = s.api.SetKernelArgMem(k.id, i, id)
		} else {
			s.log.Warn("unrecognized argument type",
				zap.String("kernel", name),
				zap.Int("index", i),
				zap.String("type", fmt.Sprintf("%T", arg)))
			err = s.api.SetKernelArgNull(k.id, i)
		}
		if err != nil {
			s.fail("binding argument failed", err,
				zap.String("kernel", name),
				zap.Int("index", i))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// memObject returns arg as a bindable memory object. Nil wrappers, which
// the factories return on native failure, are not bindable.
func memObject(arg any) (MemObject, bool) {
	switch v := arg.(type) {
	case *Buffer:
		return v, v != nil
	case *Sampler:
		return v, v != nil
	case *Image2D:
		return v, v != nil
	case *Image3D:
		return v, v != nil
	}
	return nil, false
}
