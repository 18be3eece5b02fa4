package host

import (
	"github.com/panicz/clops/resource"
	"github.com/panicz/clops/scope"
)

// KindGuard tags the tokens returned by enter-context and
// enter-build-options.
var KindGuard = resource.RegisterKind("clops scope guard")

// guard is a scope override held by the guest. Guards must be left in
// reverse order of entry; dropping one unwinds every guard entered after
// it.
type guard struct {
	g    *scope.Guard
	what string
}

func (g *guard) Kind() resource.Kind { return KindGuard }

func (g *guard) String() string { return "#<clops scope guard " + g.what + ">" }

func (g *guard) Drop() error {
	g.g.Unwind()
	return nil
}
