package cl

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/native/sim"
)

func TestPlatformsAndDevices(t *testing.T) {
	f := newFixture(t)
	ps, err := f.s.Platforms()
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 {
		t.Fatalf("platforms = %d", len(ps))
	}

	want := "#<OpenCL platform 1010 clops simulator FULL_PROFILE " + sim.DefaultVersion + ">"
	if got := ps[0].String(); got != want {
		t.Errorf("platform renders %q, want %q", got, want)
	}

	tests := []struct {
		name  string
		types []string
		want  []string
	}{
		{"empty selector", nil, []string{"sim-cpu", "sim-gpu"}},
		{"gpu", []string{"gpu"}, []string{"sim-gpu"}},
		{"gpu and cpu", []string{"gpu", "cpu"}, []string{"sim-cpu", "sim-gpu"}},
		{"unknown ignored", []string{"GPU", "tpu"}, []string{"sim-gpu"}},
		{"none matching", []string{"accelerator"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devs, err := ps[0].Devices(tt.types...)
			if err != nil {
				t.Fatal(err)
			}
			got := []string{}
			for _, d := range devs {
				got = append(got, d.Name())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("devices mismatch (-want +got):\n%s", diff)
			}
		})
	}

	gpu := f.devices(t, "gpu")[0]
	want = "#<OpenCL device 1030 GPU clops " + sim.DefaultVersion + " 1.0>"
	if got := gpu.String(); got != want {
		t.Errorf("device renders %q, want %q", got, want)
	}
	if gpu.PlatformID() != ps[0].ID() {
		t.Error("device should remember its platform")
	}
	if f.warnings("unsupported option") != 0 {
		t.Error("option warnings go to the options logger, not the session")
	}
}

func TestDevices_NativeFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	ps, _ := f.s.Platforms()

	devs, err := ps[0].DevicesOfType(0)
	if devs != nil || !IsNativeFailure(err) {
		t.Fatalf("DevicesOfType(0) = %v, %v", devs, err)
	}
	if native.StatusOf(err) != native.StatusInvalidDeviceType {
		t.Errorf("status = %v", native.StatusOf(err))
	}
	entries := f.logs.FilterMessage("device count query failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries", len(entries))
	}
	if cause := entries[0].ContextMap()["cause"]; cause != "invalid device type" {
		t.Errorf("cause = %v", cause)
	}
}

func TestCreateContext(t *testing.T) {
	f := newFixture(t,
		sim.WithPlatform(sim.DefaultPlatform()),
		sim.WithPlatform(sim.PlatformSpec{Name: "second", Devices: []sim.DeviceSpec{{Name: "other-gpu", Type: native.DeviceTypeGPU}}}),
	)
	ps, _ := f.s.Platforms()
	a, _ := ps[0].Devices()
	b, _ := ps[1].Devices()

	ctx, err := f.s.CreateContext(a...)
	if err != nil {
		t.Fatalf("consistent platform: %v", err)
	}
	if len(ctx.Devices()) != 2 {
		t.Errorf("context devices = %d", len(ctx.Devices()))
	}
	calls := f.drv.Calls("clCreateContext")

	_, err = f.s.CreateContext(a[0], b[0])
	if !errors.IsKind(err, errors.KindPlatformMismatch) {
		t.Fatalf("mixed platforms = %v", err)
	}
	if f.drv.Calls("clCreateContext") != calls {
		t.Error("native create must not be issued for mixed platforms")
	}
	if f.warnings("requested context for devices from different platforms") != 1 {
		t.Error("platform mismatch should be logged")
	}

	if _, err := f.s.CreateContext(); !errors.IsKind(err, errors.KindPrecondition) {
		t.Errorf("empty device list = %v", err)
	}
	if f.drv.Calls("clCreateContext") != calls {
		t.Error("native create must not be issued for an empty device list")
	}
}

func TestContextErrorsAreLogged(t *testing.T) {
	f := newFixture(t, sim.WithKernel("fail", func(sim.WorkItem, [][]byte) error {
		return errors.InvalidInput(errors.PhaseEnqueue, "bad input")
	}))
	f.context(t)
	dev := f.devices(t, "cpu")[0]

	q, _ := f.s.CreateCommandQueue(dev)
	prog, _ := f.s.CreateProgram("__kernel void fail() {}")
	k, err := prog.Kernel("fail")
	if err != nil {
		t.Fatal(err)
	}
	ev, err := q.EnqueueKernel(k, Dims{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Finish(); err != nil {
		t.Fatal(err)
	}

	entries := f.logs.FilterMessage("context error").All()
	if len(entries) != 1 || !strings.Contains(entries[0].ContextMap()["errinfo"].(string), "bad input") {
		t.Fatalf("context error entries = %v", entries)
	}
	st, _ := ev.Status()
	if st >= 0 {
		t.Errorf("event status = %v, want failure", st)
	}
}

func TestCreateCommandQueue(t *testing.T) {
	f := newFixture(t)
	dev := f.devices(t, "gpu")[0]

	if _, err := f.s.CreateCommandQueue(dev); !errors.IsKind(err, errors.KindNoCurrentContext) {
		t.Fatalf("queue without context = %v", err)
	}

	f.context(t)
	q, err := f.s.CreateCommandQueue(dev, "out-of-order-execution-mode", "profiling", "bogus")
	if err != nil {
		t.Fatal(err)
	}
	if q.Properties() != native.QueueOutOfOrderExecMode|native.QueueProfiling {
		t.Errorf("properties = %v", q.Properties())
	}
	if !strings.Contains(q.String(), "sim-gpu out-of-order-execution-mode|profiling") {
		t.Errorf("queue renders %q", q.String())
	}
}

func TestCreateProgram_BuildFailure(t *testing.T) {
	f := newFixture(t)
	f.context(t)

	prog, err := f.s.CreateProgram("#error missing header\n" + vaddSource)
	if err != nil {
		t.Fatalf("a failed build still returns the program: %v", err)
	}
	if prog.Built() {
		t.Fatal("program should not be built")
	}
	if !strings.Contains(prog.BuildLog(), "missing header") {
		t.Errorf("build log = %q", prog.BuildLog())
	}
	entries := f.logs.FilterMessage("failed to build program").All()
	if len(entries) != 1 {
		t.Fatalf("build failure logged %d times", len(entries))
	}
	if log := entries[0].ContextMap()["log"]; !strings.Contains(log.(string), "missing header") {
		t.Errorf("logged build log = %v", log)
	}

	k, err := prog.Kernel("vadd")
	if k != nil || native.StatusOf(err) != native.StatusInvalidProgramExecutable {
		t.Errorf("kernel of unbuilt program = %v, %v", k, err)
	}
	if f.warnings("failed to create kernel") != 1 {
		t.Error("kernel lookup failure should be logged")
	}
}

func TestProgram_Kernel(t *testing.T) {
	f := newFixture(t)
	f.context(t)

	prog, _ := f.s.CreateProgram(vaddSource, f.devices(t, "gpu")...)
	if !prog.Built() {
		t.Fatal("program should build")
	}
	if _, err := prog.Kernel("vsub"); native.StatusOf(err) != native.StatusInvalidKernelName {
		t.Errorf("unknown kernel = %v", err)
	}

	k, err := prog.Kernel("vadd")
	if err != nil {
		t.Fatal(err)
	}
	if k.String() != "#<OpenCL kernel vadd>" {
		t.Errorf("kernel renders %q", k.String())
	}
}

func TestKernel_ReleaseOnce(t *testing.T) {
	f := newFixture(t)
	f.context(t)
	prog, _ := f.s.CreateProgram(vaddSource)
	k, _ := prog.Kernel("vadd")

	if err := k.Release(); err != nil {
		t.Fatal(err)
	}
	if err := k.Release(); err != nil {
		t.Fatalf("second Release = %v, want nil", err)
	}
	if got := f.drv.Calls("clReleaseKernel"); got != 1 {
		t.Errorf("clReleaseKernel issued %d times, want 1", got)
	}
	if k.Name() != "" {
		t.Errorf("name not cleared: %q", k.Name())
	}
	if k.String() != "#<OpenCL kernel (released)>" {
		t.Errorf("released kernel renders %q", k.String())
	}
	if err := k.BindArguments(); !errors.IsKind(err, errors.KindReleased) {
		t.Errorf("BindArguments after release = %v", err)
	}
}

func TestCreateBuffer_DefaultFlags(t *testing.T) {
	f := newFixture(t)
	f.context(t)

	host := make([]byte, 32)
	hb, err := f.s.CreateHostBuffer(host)
	if err != nil {
		t.Fatal(err)
	}
	if hb.Flags() != native.MemUseHostPtr || hb.Size() != 32 {
		t.Errorf("host buffer: flags %v size %d", hb.Flags(), hb.Size())
	}

	b, err := f.s.CreateBuffer(64)
	if err != nil {
		t.Fatal(err)
	}
	if b.Flags() != native.MemReadWrite || b.Host() != nil {
		t.Errorf("sized buffer: flags %v", b.Flags())
	}

	cb, err := f.s.CreateHostBuffer(host, "read-only", "copy-host-ptr")
	if err != nil {
		t.Fatal(err)
	}
	if cb.Flags() != native.MemReadOnly|native.MemCopyHostPtr {
		t.Errorf("explicit flags: %v", cb.Flags())
	}
	if got := cb.String(); !strings.HasSuffix(got, " 32 bytes read-only|copy-host-pointer>") {
		t.Errorf("buffer renders %q", got)
	}
}

func TestCreateBuffer_NativeFailure(t *testing.T) {
	f := newFixture(t)
	f.context(t)

	b, err := f.s.CreateBuffer(0)
	if b != nil || native.StatusOf(err) != native.StatusInvalidBufferSize {
		t.Fatalf("CreateBuffer(0) = %v, %v", b, err)
	}
	entries := f.logs.FilterMessage("failed to initialize buffer").All()
	if len(entries) != 1 || entries[0].ContextMap()["cause"] != "invalid buffer size" {
		t.Fatalf("entries = %v", entries)
	}

	if _, err := f.s.CreateBuffer(-1); !errors.IsKind(err, errors.KindPrecondition) {
		t.Errorf("negative size = %v", err)
	}
	if _, err := f.s.CreateHostBuffer(nil); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("nil host = %v", err)
	}
}

func TestWrappersReleaseNativeObjects(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t)
	q, _ := f.s.CreateCommandQueue(f.devices(t)[0])
	prog, _ := f.s.CreateProgram(vaddSource)
	k, _ := prog.Kernel("vadd")
	b, _ := f.s.CreateBuffer(8)
	hb, _ := f.s.CreateHostBuffer(make([]byte, 8))
	ev, _ := q.EnqueueRead(hb)
	q.Finish()

	want := sim.Counts{Contexts: 1, Queues: 1, Programs: 1, Kernels: 1, Mems: 2, Events: 1}
	if diff := cmp.Diff(want, f.drv.Live()); diff != "" {
		t.Fatalf("live mismatch (-want +got):\n%s", diff)
	}

	for _, r := range []interface{ Release() error }{ev, b, hb, k, prog, q, ctx} {
		if err := r.Release(); err != nil {
			t.Fatal(err)
		}
		if err := r.Release(); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(sim.Counts{}, f.drv.Live()); diff != "" {
		t.Errorf("live after release (-want +got):\n%s", diff)
	}
	if f.warnings("clReleaseKernel failed") != 0 {
		t.Error("no release should fail")
	}
}
