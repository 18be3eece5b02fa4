package cl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/resource"
)

// Context is a native context over devices of one platform.
type Context struct {
	object
	s       *Session
	id      native.ContextID
	devices []*Device
}

var _ resource.Dropper = (*Context)(nil)

// CreateContext creates a context over devices, which must all belong to
// the same platform. Asynchronous errors reported by the driver for the
// context are logged.
func (s *Session) CreateContext(devices ...*Device) (*Context, error) {
	if len(devices) == 0 {
		return nil, errors.Precondition(errors.PhaseCreate, []string{"make-context"}, "no devices for context")
	}
	ids := make([]native.DeviceID, len(devices))
	for i, d := range devices {
		if d == nil {
			return nil, errors.TypeMismatch(errors.PhaseCreate, KindDevice.String(), "nil")
		}
		if d.platform != devices[0].platform {
			s.log.Warn("requested context for devices from different platforms",
				zap.Int("index", i))
			return nil, errors.PlatformMismatch(errors.PhaseCreate, i)
		}
		ids[i] = d.id
	}

	log := s.log
	notify := func(errinfo string) {
		log.Warn("context error", zap.String("errinfo", errinfo))
	}
	api := s.api
	id, err := api.CreateContext(devices[0].platform, ids, notify)
	if err != nil {
		return nil, s.fail("failed to create context", err, zap.Int("devices", len(ids)))
	}

	ctx := &Context{s: s, id: id, devices: append([]*Device(nil), devices...)}
	own(ctx, &ctx.object, KindContext, releaser{
		op:  "clReleaseContext",
		fn:  func() error { return api.ReleaseContext(id) },
		log: log,
	})
	return ctx, nil
}

// ID returns the native handle.
func (c *Context) ID() native.ContextID { return c.id }

// Devices returns the devices the context was created for.
func (c *Context) Devices() []*Device {
	return append([]*Device(nil), c.devices...)
}

func (c *Context) deviceIDs() []native.DeviceID {
	ids := make([]native.DeviceID, len(c.devices))
	for i, d := range c.devices {
		ids[i] = d.id
	}
	return ids
}

func (c *Context) String() string {
	if c.Released() {
		return "#<OpenCL context (released)>"
	}
	return fmt.Sprintf("#<OpenCL context %x %d devices>", uintptr(c.id), len(c.devices))
}
