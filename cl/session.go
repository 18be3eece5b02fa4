package cl

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/panicz/clops/errors"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/scope"
)

// Session binds a native driver to the dynamic state the factories
// consult: the current context stack and the current build options.
type Session struct {
	api      native.API
	log      *zap.Logger
	contexts scope.Stack[*Context]
	options  *scope.Var[string]
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger receiving native failure reports and
// asynchronous context errors.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// NewSession creates a session over api with an empty context stack and
// empty build options.
func NewSession(api native.API, opts ...Option) *Session {
	s := &Session{
		api:     api,
		options: scope.NewVar(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = Logger()
	}
	return s
}

// Open creates a session over the driver registered under name.
func Open(driver string, opts ...Option) (*Session, error) {
	api, err := native.Open(driver)
	if err != nil {
		return nil, err
	}
	return NewSession(api, opts...), nil
}

// API returns the native driver.
func (s *Session) API() native.API { return s.api }

// Logger returns the session's logger.
func (s *Session) Logger() *zap.Logger { return s.log }

// WithContext runs body with ctx as the current context. The previous
// current context is restored when body returns or panics.
func (s *Session) WithContext(ctx *Context, body func() error) error {
	g, err := s.EnterContext(ctx)
	if err != nil {
		return err
	}
	defer g.Unwind()
	return body()
}

// EnterContext pushes ctx as the current context until the returned
// guard is released. Guards must be released innermost first.
func (s *Session) EnterContext(ctx *Context) (*scope.Guard, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.contexts.Push(ctx), nil
}

// SetCurrentContext replaces the current context without growing the
// stack. On an empty stack it installs ctx as the outermost context.
func (s *Session) SetCurrentContext(ctx *Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.contexts.SetTop(ctx)
	return nil
}

// CurrentContext returns the innermost current context.
func (s *Session) CurrentContext() (*Context, error) {
	ctx, ok := s.contexts.Top()
	if !ok {
		return nil, errors.NoCurrentContext(errors.PhaseScope)
	}
	return ctx, nil
}

// ContextDepth returns the depth of the context stack.
func (s *Session) ContextDepth() int { return s.contexts.Depth() }

func checkContext(ctx *Context) error {
	if ctx == nil {
		return errors.TypeMismatch(errors.PhaseScope, KindContext.String(), "nil")
	}
	return ctx.live(errors.PhaseScope)
}

// WithBuildOptions runs body with options as the current build options
// and restores the previous options afterwards, including on panic.
func (s *Session) WithBuildOptions(options string, body func() error) error {
	return scope.WithValue(s.options, options, body)
}

// EnterBuildOptions installs options until the returned guard is released.
func (s *Session) EnterBuildOptions(options string) *scope.Guard {
	return s.options.Override(options)
}

// BuildOptions returns the current build options.
func (s *Session) BuildOptions() string { return s.options.Get() }

// current returns the context for a factory call.
func (s *Session) current(phase errors.Phase) (*Context, error) {
	ctx, ok := s.contexts.Top()
	if !ok {
		return nil, errors.NoCurrentContext(phase)
	}
	if err := ctx.live(phase); err != nil {
		return nil, err
	}
	return ctx, nil
}

// fail logs a native failure and returns it unchanged.
func (s *Session) fail(msg string, err error, fields ...zap.Field) error {
	status := native.StatusOf(err)
	fields = append(fields,
		zap.Stringer("status", status),
		zap.String("cause", status.Message()),
		zap.Error(err))
	s.log.Warn(msg, fields...)
	return err
}

// IsNativeFailure reports whether err is a failure reported by the
// native driver, as opposed to misuse of the binding.
func IsNativeFailure(err error) bool {
	var ne *native.Error
	return stderrors.As(err, &ne)
}
