package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/panicz/clops/cl"
	"github.com/panicz/clops/host"
	"github.com/panicz/clops/native"
	_ "github.com/panicz/clops/native/opencl"
	"github.com/panicz/clops/native/sim"
	"github.com/panicz/clops/options"
	"github.com/panicz/clops/resource"
)

const demoSource = `
__kernel void vadd(__global const uchar *a, __global const uchar *b, __global uchar *c)
{
	int i = get_global_id(0);
	c[i] = a[i] + b[i];
}
`

func main() {
	var (
		driver      = flag.String("driver", "sim", "Native driver ("+strings.Join(native.Drivers(), ", ")+")")
		types       = flag.String("types", "", "Device type selector, e.g. \"gpu cpu\" (default all)")
		demo        = flag.Bool("demo", false, "Run a vector-add round trip on the first selected device")
		wasmFile    = flag.String("wasm", "", "Run the guest module's run export against the clops host module")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log debug messages")
	)
	flag.Parse()

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	cl.SetLogger(log.Named("cl"))
	options.SetLogger(log.Named("options"))
	host.SetLogger(log.Named("host"))

	session, err := openSession(*driver, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	selector := options.Split(*types)

	switch {
	case *interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		err = runInteractive(session, *driver, selector)
	case *wasmFile != "":
		err = runGuest(session, *wasmFile)
	case *demo:
		err = runDemo(session, selector)
	default:
		err = list(session, selector)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// openSession opens the named driver. The simulated driver gets the demo
// kernel registered so the vector add computes a result.
func openSession(driver string, log *zap.Logger) (*cl.Session, error) {
	if driver == "sim" {
		return cl.NewSession(sim.New(sim.WithKernel("vadd", simVadd)), cl.WithLogger(log.Named("cl"))), nil
	}
	return cl.Open(driver, cl.WithLogger(log.Named("cl")))
}

func simVadd(it sim.WorkItem, args [][]byte) error {
	i := it.ID[0]
	args[2][i] = args[0][i] + args[1][i]
	return nil
}

// list prints every platform and its selected devices, rendered through a
// handle table the way guests see them.
func list(s *cl.Session, selector []string) error {
	platforms, err := s.Platforms()
	if err != nil {
		return fmt.Errorf("platforms: %w", err)
	}
	table := resource.NewTable()
	defer table.Close()

	if len(platforms) == 0 {
		fmt.Println("No platforms found.")
		return nil
	}
	for _, p := range platforms {
		h := table.Wrap(p)
		fmt.Printf("%3d %s\n", h, table.Render(h))
		if v, ok := native.ParseVersion(p.Version()); ok {
			fmt.Printf("      version %s\n", v)
		}
		devices, err := p.Devices(selector...)
		if err != nil {
			fmt.Printf("      devices: %v\n", err)
			continue
		}
		for _, d := range devices {
			h := table.Wrap(d)
			fmt.Printf("  %3d %s\n", h, table.Render(h))
		}
	}
	return nil
}

func firstDevice(s *cl.Session, selector []string) (*cl.Device, error) {
	platforms, err := s.Platforms()
	if err != nil {
		return nil, err
	}
	for _, p := range platforms {
		devices, err := p.Devices(selector...)
		if err == nil && len(devices) > 0 {
			return devices[0], nil
		}
	}
	return nil, fmt.Errorf("no device matches %q", strings.Join(selector, " "))
}

func runDemo(s *cl.Session, selector []string) error {
	dev, err := firstDevice(s, selector)
	if err != nil {
		return err
	}
	ctx, err := s.CreateContext(dev)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	defer ctx.Release()

	return s.WithContext(ctx, func() error {
		q, err := s.CreateCommandQueue(dev)
		if err != nil {
			return err
		}
		defer q.Release()

		prog, err := s.CreateProgram(demoSource)
		if err != nil {
			return err
		}
		defer prog.Release()
		if !prog.Built() {
			return fmt.Errorf("build failed:\n%s", prog.BuildLog())
		}
		k, err := prog.Kernel("vadd")
		if err != nil {
			return err
		}
		defer k.Release()

		const n = 16
		a, b, c := make([]byte, n), make([]byte, n), make([]byte, n)
		for i := range n {
			a[i], b[i] = byte(i), byte(10*i)
		}
		bufs := make([]*cl.Buffer, 3)
		for i, spec := range []struct {
			host  []byte
			flags []string
		}{
			{a, []string{"read-only", "copy-host-ptr"}},
			{b, []string{"read-only", "copy-host-ptr"}},
			{c, []string{"write-only", "copy-host-ptr"}},
		} {
			if bufs[i], err = s.CreateHostBuffer(spec.host, spec.flags...); err != nil {
				return err
			}
			defer bufs[i].Release()
		}

		if err := k.BindArguments(bufs[0], bufs[1], bufs[2]); err != nil {
			return err
		}
		if _, err := q.EnqueueKernel(k, cl.Dims{n}, nil); err != nil {
			return err
		}
		if _, err := q.EnqueueRead(bufs[2]); err != nil {
			return err
		}
		if err := q.Finish(); err != nil {
			return err
		}

		fmt.Printf("device %s\n", dev.Name())
		fmt.Printf("a     %v\nb     %v\na+b   %v\n", a, b, c)
		for i := range n {
			if c[i] != a[i]+b[i] {
				return fmt.Errorf("mismatch at %d: %d + %d != %d", i, a[i], b[i], c[i])
			}
		}
		fmt.Println("ok")
		return nil
	})
}

func runGuest(s *cl.Session, path string) error {
	ctx := context.Background()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	m := host.New(host.WithSession(s))
	defer m.Close()
	if _, err := m.Instantiate(ctx, r); err != nil {
		return fmt.Errorf("instantiate host: %w", err)
	}
	guest, err := r.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate guest: %w", err)
	}
	defer guest.Close(ctx)

	run := guest.ExportedFunction("run")
	if run == nil {
		return fmt.Errorf("%s exports no run function", path)
	}
	results, err := run.Call(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if len(results) > 0 {
		fmt.Printf("run returned %d\n", int32(results[0]))
	}
	fmt.Printf("%d handles still held by the guest\n", m.Table().Len())
	return nil
}
