package host

import (
	"context"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/panicz/clops/cl"
	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/resource"
)

// ModuleName is the import module name guests use.
const ModuleName = "clops"

// Module is the state behind one instantiated "clops" host module.
type Module struct {
	session *cl.Session
	table   *resource.Table
	name    string
	log     *zap.Logger

	mu      sync.Mutex
	pending map[resource.Handle][]resource.Handle
	guards  []*guard

	// one handle per enumerated platform or device, keyed by native ID
	enumerated map[any]resource.Handle
}

// Option configures a Module.
type Option func(*Module)

// WithSession sets the session the guest operates on.
func WithSession(s *cl.Session) Option {
	return func(m *Module) { m.session = s }
}

// WithTable sets the handle table. By default each module owns a fresh
// table.
func WithTable(t *resource.Table) Option {
	return func(m *Module) { m.table = t }
}

// WithName overrides the import module name.
func WithName(name string) Option {
	return func(m *Module) { m.name = name }
}

// WithLogger sets the logger for handle lifecycle messages.
func WithLogger(l *zap.Logger) Option {
	return func(m *Module) { m.log = l }
}

// New creates a module. A session must be supplied with WithSession
// before Instantiate.
func New(opts ...Option) *Module {
	m := &Module{
		name:       ModuleName,
		pending:    make(map[resource.Handle][]resource.Handle),
		enumerated: make(map[any]resource.Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.table == nil {
		m.table = resource.NewTable()
	}
	if m.log == nil {
		m.log = Logger()
	}
	return m
}

// Session returns the session behind the module.
func (m *Module) Session() *cl.Session { return m.session }

// Table returns the handle table shared with the guest.
func (m *Module) Table() *resource.Table { return m.table }

// funcDef defines one exported host function.
type funcDef struct {
	name    string
	fn      api.GoModuleFunc
	params  []api.ValueType
	results []api.ValueType
}

// Instantiate registers the host module in r.
func (m *Module) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	if m.session == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "host module needs a session")
	}
	builder := r.NewHostModuleBuilder(m.name)
	for _, f := range m.functions() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			WithName(f.name).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(errors.PhaseHost, m.name, "", err)
	}
	m.log.Debug("host module instantiated", zap.String("module", m.name))
	return mod, nil
}

// Close drops every handle still held by the guest, releasing the native
// objects behind them. Open guards are unwound newest first, so a shared
// session gets back the context and build options it had before the
// guest entered them.
func (m *Module) Close() error {
	m.mu.Lock()
	m.pending = make(map[resource.Handle][]resource.Handle)
	guards := m.guards
	m.guards = nil
	m.mu.Unlock()
	for i := len(guards) - 1; i >= 0; i-- {
		guards[i].g.Unwind()
	}
	return m.table.Close()
}

// enter wraps a guard and records its entry order for Close.
func (m *Module) enter(g *guard) uint64 {
	m.mu.Lock()
	m.guards = append(m.guards, g)
	m.mu.Unlock()
	return m.wrap(g)
}

// forget removes a left guard from the entry order.
func (m *Module) forget(g *guard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.guards, g); i >= 0 {
		m.guards = slices.Delete(m.guards, i, i+1)
	}
}

// borrow records that buf is in use by a transfer on queue.
func (m *Module) borrow(queue, buf resource.Handle) {
	if err := m.table.Borrow(buf); err != nil {
		panic(err)
	}
	m.mu.Lock()
	m.pending[queue] = append(m.pending[queue], buf)
	m.mu.Unlock()
}

// settle returns every borrow taken by transfers on queue.
func (m *Module) settle(queue resource.Handle) {
	m.mu.Lock()
	bufs := m.pending[queue]
	delete(m.pending, queue)
	m.mu.Unlock()
	for _, b := range bufs {
		if err := m.table.ReturnBorrow(b); err != nil {
			m.log.Warn("returning buffer borrow failed", zap.Uint32("handle", uint32(b)), zap.Error(err))
		}
	}
}

func (m *Module) hasPending(queue resource.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[queue]) > 0
}
