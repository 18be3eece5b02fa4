package cl

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/native/sim"
	"github.com/panicz/clops/resource"
)

type pipeline struct {
	*fixture
	q *CommandQueue
	k *Kernel
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	f := newFixture(t, sim.WithKernel("vadd", vadd))
	f.context(t)
	q, err := f.s.CreateCommandQueue(f.devices(t, "gpu")[0])
	if err != nil {
		t.Fatal(err)
	}
	prog, _ := f.s.CreateProgram(vaddSource)
	k, err := prog.Kernel("vadd")
	if err != nil {
		t.Fatal(err)
	}
	return &pipeline{fixture: f, q: q, k: k}
}

func TestVectorAdd(t *testing.T) {
	p := newPipeline(t)

	a, _ := p.s.CreateHostBuffer([]byte{1, 2, 3, 4}, "read-only", "copy-host-ptr")
	bh := make([]byte, 4)
	b, _ := p.s.CreateHostBuffer(bh, "read-only", "copy-host-ptr")
	copy(bh, []byte{10, 20, 30, 40})
	out := make([]byte, 4)
	c, _ := p.s.CreateHostBuffer(out, "write-only", "copy-host-ptr")

	if err := p.k.BindArguments(a, b, c); err != nil {
		t.Fatal(err)
	}
	if _, err := p.q.EnqueueWrite(b); err != nil {
		t.Fatal(err)
	}
	if _, err := p.q.EnqueueKernel(p.k, Dims{4}, Dims{2}); err != nil {
		t.Fatal(err)
	}
	ev, err := p.q.EnqueueRead(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.q.Finish(); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]byte{11, 22, 33, 44}, out); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if st, err := ev.Status(); err != nil || st != native.ExecComplete {
		t.Errorf("read event status = %v, %v", st, err)
	}
}

func TestEnqueueRegion(t *testing.T) {
	p := newPipeline(t)

	host := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	b, _ := p.s.CreateHostBuffer(host, "read-write", "copy-host-ptr")

	copy(host, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if _, err := p.q.EnqueueWriteRegion(b, 2, 4); err != nil {
		t.Fatal(err)
	}
	p.q.Finish()

	dev, _ := p.drv.Storage(b.ID())
	if diff := cmp.Diff([]byte{0, 0, 3, 4, 5, 6, 0, 0}, dev); diff != "" {
		t.Errorf("device contents mismatch (-want +got):\n%s", diff)
	}

	for i := range host {
		host[i] = 9
	}
	if _, err := p.q.EnqueueReadRegion(b, 4, 2); err != nil {
		t.Fatal(err)
	}
	p.q.Finish()
	if diff := cmp.Diff([]byte{9, 9, 9, 9, 5, 6, 9, 9}, host); diff != "" {
		t.Errorf("host contents mismatch (-want +got):\n%s", diff)
	}

	for _, r := range []struct{ offset, n int }{
		{6, 4},
		{9, 0},
		{-1, 2},
		{2, -1},
		{math.MaxInt, 1},
		{1, math.MaxInt},
	} {
		if _, err := p.q.EnqueueReadRegion(b, r.offset, r.n); !errors.IsKind(err, errors.KindOutOfBounds) {
			t.Errorf("region (%d, %d) = %v", r.offset, r.n, err)
		}
		if _, err := p.q.EnqueueWriteRegion(b, r.offset, r.n); !errors.IsKind(err, errors.KindOutOfBounds) {
			t.Errorf("write region (%d, %d) = %v", r.offset, r.n, err)
		}
	}
}

func TestEnqueue_BufferWithoutHostMemory(t *testing.T) {
	p := newPipeline(t)
	b, _ := p.s.CreateBuffer(16)

	ev, err := p.q.EnqueueRead(b)
	if ev != nil || native.StatusOf(err) != native.StatusInvalidHostPtr {
		t.Fatalf("EnqueueRead = %v, %v", ev, err)
	}
	entries := p.logs.FilterMessage("buffer transfer failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries", len(entries))
	}
	want := "invalid host pointer (did you forget the copy/use host pointer flag?)"
	if cause := entries[0].ContextMap()["cause"]; cause != want {
		t.Errorf("cause = %v", cause)
	}
}

func TestBindArguments_UnrecognizedArgument(t *testing.T) {
	p := newPipeline(t)
	a, _ := p.s.CreateBuffer(4)

	before := p.drv.Calls("clSetKernelArg")
	err := p.k.BindArguments(a, 42)
	if err != nil {
		t.Fatalf("BindArguments = %v", err)
	}
	if got := p.drv.Calls("clSetKernelArg") - before; got != 2 {
		t.Errorf("clSetKernelArg issued %d times, want 2", got)
	}

	entries := p.logs.FilterMessage("unrecognized argument type").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["index"] != int64(1) || fields["kernel"] != "vadd" || fields["type"] != "int" {
		t.Errorf("warning fields = %v", fields)
	}
}

func TestBindArguments_NilBuffer(t *testing.T) {
	p := newPipeline(t)
	a, _ := p.s.CreateBuffer(4)
	failed, err := p.s.CreateBuffer(0)
	if err == nil || failed != nil {
		t.Fatalf("CreateBuffer(0) = %v, %v", failed, err)
	}

	before := p.drv.Calls("clSetKernelArg")
	if err := p.k.BindArguments(a, failed, 42); err != nil {
		t.Fatalf("BindArguments = %v", err)
	}
	if got := p.drv.Calls("clSetKernelArg") - before; got != 3 {
		t.Errorf("clSetKernelArg issued %d times, want 3", got)
	}

	entries := p.logs.FilterMessage("unrecognized argument type").All()
	if len(entries) != 2 {
		t.Fatalf("got %d warnings, want 2", len(entries))
	}
	if got := entries[0].ContextMap()["type"]; got != "*cl.Buffer" {
		t.Errorf("nil buffer warned as %v", got)
	}

	var img *Image2D
	if err := p.k.BindArguments(img); err != nil {
		t.Errorf("binding a nil image: %v", err)
	}
}

func TestBindArguments_EveryArgumentAttempted(t *testing.T) {
	p := newPipeline(t)
	a, _ := p.s.CreateBuffer(4)

	// vadd takes three arguments; the fourth and fifth fail natively.
	err := p.k.BindArguments(a, a, a, a, "x")
	if native.StatusOf(err) != native.StatusInvalidArgIndex {
		t.Fatalf("BindArguments = %v", err)
	}
	if got := p.logs.FilterMessage("binding argument failed").Len(); got != 2 {
		t.Errorf("binding failures logged %d times, want 2", got)
	}
	if got := p.drv.Calls("clSetKernelArg"); got != 5 {
		t.Errorf("clSetKernelArg issued %d times, want 5", got)
	}
}

func TestBindArguments_AdoptedMemObjects(t *testing.T) {
	p := newPipeline(t)
	ctx, _ := p.s.CurrentContext()

	// The simulator has no image API; adopt plain memory objects.
	var ids [3]native.MemID
	for i := range ids {
		id, err := p.drv.CreateBuffer(ctx.ID(), native.MemReadWrite, 4, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}
	smp := p.s.AdoptSampler(ids[0])
	img2 := p.s.AdoptImage2D(ids[1])
	img3 := p.s.AdoptImage3D(ids[2])

	if err := p.k.BindArguments(smp, img2, img3); err != nil {
		t.Fatal(err)
	}
	if p.logs.FilterMessage("unrecognized argument type").Len() != 0 {
		t.Error("samplers and images bind as memory objects")
	}
	if smp.Kind() != KindSampler || img2.Kind() != KindImage2D || img3.Kind() != KindImage3D {
		t.Error("adopted objects carry their kinds")
	}
	if s := img2.String(); s != fmt.Sprintf("#<OpenCL 2D image %x>", uintptr(ids[1])) {
		t.Errorf("image renders %q", s)
	}

	img3.Release()
	if err := p.k.BindArguments(smp, img2, img3); !errors.IsKind(err, errors.KindReleased) {
		t.Errorf("binding a released image = %v", err)
	}
	if p.drv.Live().Mems != 2 {
		t.Errorf("live mems = %d", p.drv.Live().Mems)
	}
}

func TestEnqueueKernel_Dims(t *testing.T) {
	f := newFixture(t)
	f.context(t)
	q, _ := f.s.CreateCommandQueue(f.devices(t, "gpu")[0])
	prog, _ := f.s.CreateProgram("__kernel void noop(void) {}")
	k, _ := prog.Kernel("noop")

	tests := []struct {
		name   string
		global Dims
		local  Dims
		ok     bool
	}{
		{"accepted", Dims{256, 256}, Dims{16, 16}, true},
		{"no local", Dims{256, 256}, nil, true},
		{"rank 3", Dims{8, 8, 8}, Dims{2, 2, 2}, true},
		{"uneven local", Dims{256, 256}, Dims{17, 16}, false},
		{"local exceeds global", Dims{8}, Dims{16}, false},
		{"rank mismatch", Dims{256, 256}, Dims{16}, false},
		{"rank 0", Dims{}, nil, false},
		{"rank 4", Dims{1, 1, 1, 1}, nil, false},
		{"zero extent", Dims{0}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := f.drv.Calls("clEnqueueNDRangeKernel")
			ev, err := q.EnqueueKernel(k, tt.global, tt.local)
			if tt.ok {
				if err != nil || ev == nil {
					t.Fatalf("EnqueueKernel = %v, %v", ev, err)
				}
				return
			}
			if !errors.IsKind(err, errors.KindPrecondition) {
				t.Fatalf("EnqueueKernel = %v, want precondition", err)
			}
			if f.drv.Calls("clEnqueueNDRangeKernel") != calls {
				t.Error("native enqueue must not be issued")
			}
		})
	}
	q.Finish()
}

func TestEnqueueKernel_NativeFailure(t *testing.T) {
	p := newPipeline(t)

	ev, err := p.q.EnqueueKernel(p.k, Dims{4}, nil)
	if ev != nil || native.StatusOf(err) != native.StatusInvalidKernelArgs {
		t.Fatalf("EnqueueKernel with unbound args = %v, %v", ev, err)
	}
	entries := p.logs.FilterMessage("failed to enqueue kernel").All()
	if len(entries) != 1 || entries[0].ContextMap()["kernel"] != "vadd" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestReleasedQueue(t *testing.T) {
	p := newPipeline(t)
	p.q.Release()

	if err := p.q.Finish(); !errors.IsKind(err, errors.KindReleased) {
		t.Errorf("Finish on released queue = %v", err)
	}
	if _, err := p.q.EnqueueKernel(p.k, Dims{1}, nil); !errors.IsKind(err, errors.KindReleased) {
		t.Errorf("EnqueueKernel on released queue = %v", err)
	}
	if p.drv.Calls("clFinish") != 0 {
		t.Error("no native call after release")
	}
}

func TestHandleTable(t *testing.T) {
	p := newPipeline(t)
	b, _ := p.s.CreateBuffer(8)

	table := resource.NewTable()
	h := table.Wrap(b)
	k := table.Wrap(p.k)

	if got, _ := resource.As[*Buffer](table, KindBuffer, h); got != b {
		t.Fatal("buffer handle resolves to a different object")
	}
	if _, err := resource.As[*Buffer](table, KindBuffer, k); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("kernel handle as buffer = %v", err)
	}
	if got := table.Render(k); got != "#<OpenCL kernel vadd>" {
		t.Errorf("Render = %q", got)
	}

	if err := table.Destroy(h); err != nil {
		t.Fatal(err)
	}
	if !b.Released() || p.drv.Calls("clReleaseMemObject") != 1 {
		t.Error("destroying the handle releases the buffer")
	}
	if err := table.Destroy(h); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("second Destroy = %v", err)
	}
	if err := b.Release(); err != nil || p.drv.Calls("clReleaseMemObject") != 1 {
		t.Error("release after destroy is a no-op")
	}

	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if p.k.Name() != "" || p.drv.Live().Kernels != 0 {
		t.Error("closing the table releases the kernel")
	}
}
