package sim

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/panicz/clops/native"
)

const vaddSource = `
__kernel void vadd(__global const uchar *a, __global const uchar *b, __global uchar *c)
{
	int i = get_global_id(0);
	c[i] = a[i] + b[i];
}
`

func vadd(it WorkItem, args [][]byte) error {
	i := it.ID[0]
	args[2][i] = args[0][i] + args[1][i]
	return nil
}

func platforms(t *testing.T, d *Driver) []native.PlatformID {
	t.Helper()
	n, err := d.GetPlatformIDs(nil)
	if err != nil {
		t.Fatalf("GetPlatformIDs: %v", err)
	}
	ids := make([]native.PlatformID, n)
	if _, err := d.GetPlatformIDs(ids); err != nil {
		t.Fatalf("GetPlatformIDs: %v", err)
	}
	return ids
}

func devices(t *testing.T, d *Driver, p native.PlatformID, typ native.DeviceType) []native.DeviceID {
	t.Helper()
	n, err := d.GetDeviceIDs(p, typ, nil)
	if err != nil {
		t.Fatalf("GetDeviceIDs: %v", err)
	}
	ids := make([]native.DeviceID, n)
	if _, err := d.GetDeviceIDs(p, typ, ids); err != nil {
		t.Fatalf("GetDeviceIDs: %v", err)
	}
	return ids
}

// setup returns a driver with a context over every default device and an
// in-order queue on the first one.
func setup(t *testing.T, opts ...Option) (*Driver, native.ContextID, native.QueueID) {
	t.Helper()
	d := New(opts...)
	p := platforms(t, d)[0]
	devs := devices(t, d, p, native.DeviceTypeAll)
	ctx, err := d.CreateContext(p, devs, nil)
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	q, err := d.CreateCommandQueue(ctx, devs[0], 0)
	if err != nil {
		t.Fatalf("CreateCommandQueue: %v", err)
	}
	return d, ctx, q
}

func TestDriver_Enumeration(t *testing.T) {
	d := New()
	ps := platforms(t, d)
	if len(ps) != 1 {
		t.Fatalf("platforms = %d, want 1", len(ps))
	}

	name, err := d.PlatformInfo(ps[0], native.PlatformName)
	if err != nil || name != "clops simulator" {
		t.Errorf("PlatformName = %q, %v", name, err)
	}
	version, _ := d.PlatformInfo(ps[0], native.PlatformVersion)
	if !native.AtLeast(version, "1.2") {
		t.Errorf("PlatformVersion = %q", version)
	}
	if _, err := d.PlatformInfo(ps[0], native.PlatformInfo(0x1)); native.StatusOf(err) != native.StatusInvalidValue {
		t.Errorf("unknown param: %v", err)
	}

	tests := []struct {
		typ  native.DeviceType
		want []string
	}{
		{native.DeviceTypeAll, []string{"sim-cpu", "sim-gpu"}},
		{native.DeviceTypeGPU, []string{"sim-gpu"}},
		{native.DeviceTypeGPU | native.DeviceTypeCPU, []string{"sim-cpu", "sim-gpu"}},
		{native.DeviceTypeDefault, []string{"sim-cpu"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			var got []string
			for _, id := range devices(t, d, ps[0], tt.typ) {
				n, err := d.DeviceInfo(id, native.DeviceName)
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, n)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("devices mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := d.GetDeviceIDs(ps[0], native.DeviceTypeAccelerator, nil); native.StatusOf(err) != native.StatusDeviceNotFound {
		t.Errorf("accelerator lookup: %v", err)
	}
	if _, err := d.GetDeviceIDs(ps[0], 0, nil); native.StatusOf(err) != native.StatusInvalidDeviceType {
		t.Errorf("zero type: %v", err)
	}
}

func TestDriver_DeviceInheritsPlatformInfo(t *testing.T) {
	d := New(WithPlatform(PlatformSpec{
		Name:    "acme",
		Vendor:  "ACME Corp",
		Version: "OpenCL 3.0 acme",
		Profile: "EMBEDDED_PROFILE",
		Devices: []DeviceSpec{{Name: "rocket", Type: native.DeviceTypeAccelerator}},
	}))
	p := platforms(t, d)[0]
	dev := devices(t, d, p, native.DeviceTypeAccelerator)[0]

	got := map[native.DeviceInfo]string{}
	for _, param := range []native.DeviceInfo{native.DeviceName, native.DeviceVendor, native.DeviceVersion, native.DeviceProfile, native.DeviceDriverVersion} {
		v, err := d.DeviceInfo(dev, param)
		if err != nil {
			t.Fatal(err)
		}
		got[param] = v
	}
	want := map[native.DeviceInfo]string{
		native.DeviceName:          "rocket",
		native.DeviceVendor:        "ACME Corp",
		native.DeviceVersion:       "OpenCL 3.0 acme",
		native.DeviceProfile:       "EMBEDDED_PROFILE",
		native.DeviceDriverVersion: "1.0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("device info mismatch (-want +got):\n%s", diff)
	}
	typ, _ := d.DeviceType(dev)
	if typ != native.DeviceTypeAccelerator {
		t.Errorf("DeviceType = %v", typ)
	}
}

func TestDriver_CreateContextRejectsForeignDevice(t *testing.T) {
	d := New(
		WithPlatform(DefaultPlatform()),
		WithPlatform(PlatformSpec{Name: "other", Devices: []DeviceSpec{{Name: "x", Type: native.DeviceTypeGPU}}}),
	)
	ps := platforms(t, d)
	a := devices(t, d, ps[0], native.DeviceTypeAll)
	b := devices(t, d, ps[1], native.DeviceTypeAll)

	_, err := d.CreateContext(ps[0], append(a, b...), nil)
	if native.StatusOf(err) != native.StatusInvalidDevice {
		t.Fatalf("CreateContext = %v, want invalid device", err)
	}
	if _, err := d.CreateContext(ps[0], nil, nil); native.StatusOf(err) != native.StatusInvalidValue {
		t.Errorf("empty device list: %v", err)
	}
	if d.Live().Contexts != 0 {
		t.Error("no context should be live")
	}
}

func TestDriver_BuildProgram(t *testing.T) {
	d, ctx, _ := setup(t)
	p := platforms(t, d)[0]
	dev := devices(t, d, p, native.DeviceTypeAll)[0]

	tests := []struct {
		name    string
		source  string
		options string
		status  native.Status
		log     string
	}{
		{"ok", vaddSource, "-cl-fast-relaxed-math -D N=4", native.StatusSuccess, ""},
		{"error directive", "#error not today\n" + vaddSource, "", native.StatusBuildProgramFailure, "line 1: error: not today"},
		{"unbalanced", "__kernel void f(void) {", "", native.StatusBuildProgramFailure, "expected '}'"},
		{"bad option", vaddSource, "fast", native.StatusInvalidBuildOptions, ""},
		{"dangling define", vaddSource, "-D", native.StatusInvalidBuildOptions, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := d.CreateProgramWithSource(ctx, []string{tt.source})
			if err != nil {
				t.Fatal(err)
			}
			defer d.ReleaseProgram(prog)

			err = d.BuildProgram(prog, nil, tt.options)
			if native.StatusOf(err) != tt.status {
				t.Fatalf("BuildProgram = %v, want %v", err, tt.status)
			}
			if tt.log == "" {
				return
			}
			log, err := d.ProgramBuildLog(prog, dev)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(log, tt.log) {
				t.Errorf("build log %q does not contain %q", log, tt.log)
			}
		})
	}
}

func TestDriver_CreateKernel(t *testing.T) {
	d, ctx, _ := setup(t)
	prog, _ := d.CreateProgramWithSource(ctx, []string{vaddSource})

	if _, err := d.CreateKernel(prog, "vadd"); native.StatusOf(err) != native.StatusInvalidProgramExecutable {
		t.Errorf("kernel before build: %v", err)
	}
	if err := d.BuildProgram(prog, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateKernel(prog, "vsub"); native.StatusOf(err) != native.StatusInvalidKernelName {
		t.Errorf("unknown kernel: %v", err)
	}
	k, err := d.CreateKernel(prog, "vadd")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetKernelArgNull(k, 3); native.StatusOf(err) != native.StatusInvalidArgIndex {
		t.Errorf("arg 3 of 3: %v", err)
	}
	if err := d.BuildProgram(prog, nil, ""); native.StatusOf(err) != native.StatusInvalidOperation {
		t.Errorf("rebuild with live kernel: %v", err)
	}

	if err := d.ReleaseKernel(k); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseKernel(k); native.StatusOf(err) != native.StatusInvalidKernel {
		t.Errorf("second release: %v", err)
	}
	if got := d.Calls("clReleaseKernel"); got != 2 {
		t.Errorf("clReleaseKernel calls = %d", got)
	}
}

func TestDriver_CreateBufferFlags(t *testing.T) {
	d, ctx, _ := setup(t)
	host := []byte{1, 2, 3, 4}

	tests := []struct {
		name   string
		flags  native.MemFlags
		size   int
		host   []byte
		status native.Status
	}{
		{"plain", native.MemReadWrite, 16, nil, native.StatusSuccess},
		{"use host", native.MemUseHostPtr, 4, host, native.StatusSuccess},
		{"copy host", native.MemCopyHostPtr | native.MemReadOnly, 4, host, native.StatusSuccess},
		{"zero size", native.MemReadWrite, 0, nil, native.StatusInvalidBufferSize},
		{"host without flag", native.MemReadWrite, 4, host, native.StatusInvalidHostPtr},
		{"flag without host", native.MemUseHostPtr, 4, nil, native.StatusInvalidHostPtr},
		{"host too small", native.MemCopyHostPtr, 8, host, native.StatusInvalidHostPtr},
		{"two access modes", native.MemReadOnly | native.MemWriteOnly, 4, nil, native.StatusInvalidValue},
		{"use and copy", native.MemUseHostPtr | native.MemCopyHostPtr, 4, host, native.StatusInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := d.CreateBuffer(ctx, tt.flags, tt.size, tt.host)
			if native.StatusOf(err) != tt.status {
				t.Fatalf("CreateBuffer = %v, want %v", err, tt.status)
			}
			if err == nil {
				d.ReleaseMemObject(m)
			}
		})
	}
}

func TestDriver_UseHostPtrAliasesHostMemory(t *testing.T) {
	d, ctx, _ := setup(t)
	host := []byte{1, 2, 3, 4}

	use, _ := d.CreateBuffer(ctx, native.MemUseHostPtr, 4, host)
	cp, _ := d.CreateBuffer(ctx, native.MemCopyHostPtr, 4, host)
	host[0] = 42

	s, _ := d.Storage(use)
	if s[0] != 42 {
		t.Error("use-host-pointer storage should alias host memory")
	}
	s, _ = d.Storage(cp)
	if s[0] != 1 {
		t.Error("copy-host-pointer storage should not alias host memory")
	}
}

func TestDriver_VectorAdd(t *testing.T) {
	d, ctx, q := setup(t, WithKernel("vadd", vadd))

	prog, _ := d.CreateProgramWithSource(ctx, []string{vaddSource})
	if err := d.BuildProgram(prog, nil, ""); err != nil {
		t.Fatal(err)
	}
	k, _ := d.CreateKernel(prog, "vadd")

	a, b, c := []byte{1, 2, 3, 4}, []byte{10, 20, 30, 40}, make([]byte, 4)
	ma, _ := d.CreateBuffer(ctx, native.MemReadOnly, 4, nil)
	mb, _ := d.CreateBuffer(ctx, native.MemReadOnly, 4, nil)
	mc, _ := d.CreateBuffer(ctx, native.MemUseHostPtr, 4, c)

	if _, err := d.EnqueueNDRangeKernel(q, k, []int{4}, nil); native.StatusOf(err) != native.StatusInvalidKernelArgs {
		t.Errorf("launch with unset args: %v", err)
	}
	for i, m := range []native.MemID{ma, mb, mc} {
		if err := d.SetKernelArgMem(k, i, m); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := d.EnqueueWriteBuffer(q, ma, false, 0, a); err != nil {
		t.Fatal(err)
	}
	if _, err := d.EnqueueWriteBuffer(q, mb, false, 0, b); err != nil {
		t.Fatal(err)
	}
	ev, err := d.EnqueueNDRangeKernel(q, k, []int{4}, []int{2})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Finish(q); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]byte{11, 22, 33, 44}, c); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if st, _ := d.EventStatus(ev); st != native.ExecComplete {
		t.Errorf("event status = %v", st)
	}

	out := make([]byte, 2)
	if _, err := d.EnqueueReadBuffer(q, mc, true, 2, out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{33, 44}, out); diff != "" {
		t.Errorf("region read mismatch (-want +got):\n%s", diff)
	}
	if _, err := d.EnqueueReadBuffer(q, mc, true, 3, out); native.StatusOf(err) != native.StatusInvalidValue {
		t.Errorf("read past end: %v", err)
	}
}

func TestDriver_NDRangeGeometry(t *testing.T) {
	d, ctx, q := setup(t)
	prog, _ := d.CreateProgramWithSource(ctx, []string{"__kernel void noop(void) {}"})
	if err := d.BuildProgram(prog, nil, ""); err != nil {
		t.Fatal(err)
	}
	k, _ := d.CreateKernel(prog, "noop")

	tests := []struct {
		name   string
		global []int
		local  []int
		status native.Status
	}{
		{"2d", []int{256, 256}, []int{16, 16}, native.StatusSuccess},
		{"no local", []int{7}, nil, native.StatusSuccess},
		{"uneven", []int{256, 256}, []int{17, 16}, native.StatusInvalidWorkGroupSize},
		{"group too large", []int{2048}, []int{2048}, native.StatusInvalidWorkGroupSize},
		{"rank 0", []int{}, nil, native.StatusInvalidWorkDimension},
		{"rank 4", []int{1, 1, 1, 1}, nil, native.StatusInvalidWorkDimension},
		{"rank mismatch", []int{4, 4}, []int{2}, native.StatusInvalidWorkDimension},
		{"empty global", []int{0}, nil, native.StatusInvalidGlobalWorkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.EnqueueNDRangeKernel(q, k, tt.global, tt.local)
			if native.StatusOf(err) != tt.status {
				t.Errorf("EnqueueNDRangeKernel = %v, want %v", err, tt.status)
			}
		})
	}
	d.Finish(q)
}

func TestDriver_WorkItemIDs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []WorkItem
	)
	record := func(it WorkItem, _ [][]byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, it)
		return nil
	}
	d, ctx, q := setup(t, WithKernel("grid", record))
	prog, _ := d.CreateProgramWithSource(ctx, []string{"kernel void grid() {}"})
	d.BuildProgram(prog, nil, "")
	k, _ := d.CreateKernel(prog, "grid")

	if _, err := d.EnqueueNDRangeKernel(q, k, []int{4, 2}, []int{2, 1}); err != nil {
		t.Fatal(err)
	}
	d.Finish(q)

	if len(seen) != 8 {
		t.Fatalf("work items = %d, want 8", len(seen))
	}
	last := seen[7]
	want := WorkItem{
		ID:         [3]int{3, 1, 0},
		Local:      [3]int{1, 0, 0},
		Group:      [3]int{1, 1, 0},
		GlobalSize: [3]int{4, 2, 1},
		LocalSize:  [3]int{2, 1, 1},
		Dims:       2,
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("last work item mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_KernelFailureNotifiesContext(t *testing.T) {
	d := New(WithKernel("boom", func(it WorkItem, _ [][]byte) error {
		if it.ID[0] == 2 {
			panic("device fault")
		}
		return nil
	}))
	p := platforms(t, d)[0]
	devs := devices(t, d, p, native.DeviceTypeGPU)

	var (
		mu      sync.Mutex
		reports []string
	)
	ctx, err := d.CreateContext(p, devs, func(info string) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, info)
	})
	if err != nil {
		t.Fatal(err)
	}
	q, _ := d.CreateCommandQueue(ctx, devs[0], native.QueueOutOfOrderExecMode)
	prog, _ := d.CreateProgramWithSource(ctx, []string{"__kernel void boom() {}"})
	d.BuildProgram(prog, nil, "")
	k, _ := d.CreateKernel(prog, "boom")

	ev, err := d.EnqueueNDRangeKernel(q, k, []int{4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Finish(q); err != nil {
		t.Fatal(err)
	}

	st, _ := d.EventStatus(ev)
	if st != native.ExecStatus(native.StatusOutOfResources) {
		t.Errorf("event status = %v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reports) != 1 || !strings.Contains(reports[0], "device fault") || !strings.Contains(reports[0], "kernel boom") {
		t.Errorf("reports = %q", reports)
	}
}

func TestDriver_ReleaseCounts(t *testing.T) {
	d, ctx, q := setup(t)
	m, _ := d.CreateBuffer(ctx, native.MemReadWrite, 8, nil)
	ev, _ := d.EnqueueWriteBuffer(q, m, true, 0, make([]byte, 8))

	want := Counts{Contexts: 1, Queues: 1, Mems: 1, Events: 1}
	if diff := cmp.Diff(want, d.Live()); diff != "" {
		t.Errorf("live mismatch (-want +got):\n%s", diff)
	}

	if err := d.ReleaseEvent(ev); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseMemObject(m); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseCommandQueue(q); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseContext(ctx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Counts{}, d.Live()); diff != "" {
		t.Errorf("live after release (-want +got):\n%s", diff)
	}

	for _, err := range []error{d.ReleaseEvent(ev), d.ReleaseMemObject(m), d.ReleaseCommandQueue(q), d.ReleaseContext(ctx)} {
		if err == nil {
			t.Error("second release should fail")
		}
	}
	if err := d.Finish(q); native.StatusOf(err) != native.StatusInvalidCommandQueue {
		t.Errorf("finish on released queue: %v", err)
	}
}

func TestRegisteredAsSim(t *testing.T) {
	api, err := native.Open("sim")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := api.(*Driver); !ok {
		t.Errorf("Open(sim) = %T", api)
	}
}
