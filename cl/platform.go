package cl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/panicz/clops/native"
	"github.com/panicz/clops/options"
	"github.com/panicz/clops/resource"
)

const unknownInfo = "???"

// Platform is an enumerated native platform. Platforms are never released.
type Platform struct {
	s  *Session
	id native.PlatformID
}

var _ resource.Object = (*Platform)(nil)

// Platforms enumerates the native platforms.
func (s *Session) Platforms() ([]*Platform, error) {
	n, err := s.api.GetPlatformIDs(nil)
	if err != nil {
		return nil, s.fail("platform count query failed", err)
	}
	ids := make([]native.PlatformID, n)
	if n > 0 {
		if _, err := s.api.GetPlatformIDs(ids); err != nil {
			return nil, s.fail("platform enumeration failed", err, zap.Int("count", n))
		}
	}
	out := make([]*Platform, n)
	for i, id := range ids {
		out[i] = &Platform{s: s, id: id}
	}
	return out, nil
}

// ID returns the native handle.
func (p *Platform) ID() native.PlatformID { return p.id }

func (p *Platform) Kind() resource.Kind { return KindPlatform }

// Info queries a platform string, falling back to "???".
func (p *Platform) Info(param native.PlatformInfo) string {
	v, err := p.s.api.PlatformInfo(p.id, param)
	if err != nil {
		return unknownInfo
	}
	return v
}

// Name returns the platform name.
func (p *Platform) Name() string { return p.Info(native.PlatformName) }

// Version returns the platform version string.
func (p *Platform) Version() string { return p.Info(native.PlatformVersion) }

// String renders "#<OpenCL platform ID NAME PROFILE VERSION>".
func (p *Platform) String() string {
	return fmt.Sprintf("#<OpenCL platform %x %s %s %s>", uintptr(p.id),
		p.Info(native.PlatformName),
		p.Info(native.PlatformProfile),
		p.Info(native.PlatformVersion))
}

// Devices enumerates the platform's devices matching the type symbols
// ("gpu", "cpu", ...). No symbols selects every device. A platform
// without matching devices yields an empty list.
func (p *Platform) Devices(types ...string) ([]*Device, error) {
	return p.DevicesOfType(options.DeviceTypes(types...))
}

// DevicesOfType enumerates the devices matching a type mask.
func (p *Platform) DevicesOfType(t native.DeviceType) ([]*Device, error) {
	s := p.s
	n, err := s.api.GetDeviceIDs(p.id, t, nil)
	if native.StatusOf(err) == native.StatusDeviceNotFound {
		return []*Device{}, nil
	}
	if err != nil {
		return nil, s.fail("device count query failed", err, zap.Stringer("type", t))
	}
	ids := make([]native.DeviceID, n)
	if n > 0 {
		if _, err := s.api.GetDeviceIDs(p.id, t, ids); err != nil {
			return nil, s.fail("device enumeration failed", err,
				zap.Stringer("type", t),
				zap.Int("count", n))
		}
	}
	out := make([]*Device, n)
	for i, id := range ids {
		out[i] = &Device{s: s, id: id, platform: p.id}
	}
	return out, nil
}

// Device is an enumerated native device. It remembers its owning
// platform. Devices are never released.
type Device struct {
	s        *Session
	id       native.DeviceID
	platform native.PlatformID
}

var _ resource.Object = (*Device)(nil)

// ID returns the native handle.
func (d *Device) ID() native.DeviceID { return d.id }

// PlatformID returns the owning platform's native handle.
func (d *Device) PlatformID() native.PlatformID { return d.platform }

func (d *Device) Kind() resource.Kind { return KindDevice }

// Info queries a device string, falling back to "???".
func (d *Device) Info(param native.DeviceInfo) string {
	v, err := d.s.api.DeviceInfo(d.id, param)
	if err != nil {
		return unknownInfo
	}
	return v
}

// Name returns the device name.
func (d *Device) Name() string { return d.Info(native.DeviceName) }

// Type renders the device class: GPU, CPU, ACCELERATOR, CUSTOM, DEFAULT,
// UNKNOWN for anything else, or ??? when the query fails.
func (d *Device) Type() string {
	t, err := d.s.api.DeviceType(d.id)
	if err != nil {
		return unknownInfo
	}
	switch t {
	case native.DeviceTypeGPU, native.DeviceTypeCPU, native.DeviceTypeAccelerator,
		native.DeviceTypeCustom, native.DeviceTypeDefault:
		return t.String()
	}
	return "UNKNOWN"
}

// String renders "#<OpenCL device ID TYPE VENDOR VERSION DRIVER>".
func (d *Device) String() string {
	return fmt.Sprintf("#<OpenCL device %x %s %s %s %s>", uintptr(d.id),
		d.Type(),
		d.Info(native.DeviceVendor),
		d.Info(native.DeviceVersion),
		d.Info(native.DeviceDriverVersion))
}
