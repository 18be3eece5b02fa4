// Package options translates symbolic configuration into native flag bits.
//
// Each call site has its own closed grammar: a fixed set of recognized
// symbols, matched case-insensitively, each naming one flag bit. Parsing
// ORs the bits of the recognized symbols together. Unknown symbols are
// logged as warnings and skipped; parsing never fails.
package options

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/panicz/clops/native"
)

// Grammar maps case-folded symbols to flag bits.
type Grammar[T ~uint64] struct {
	name    string
	symbols map[string]T
}

func newGrammar[T ~uint64](name string, entries map[T][]string) *Grammar[T] {
	g := &Grammar[T]{name: name, symbols: make(map[string]T)}
	for bit, names := range entries {
		for _, n := range names {
			g.symbols[fold(n)] = bit
		}
	}
	return g
}

func fold(s string) string {
	// Casers carry state; one per call.
	return cases.Fold().String(s)
}

// Name identifies the grammar in log messages.
func (g *Grammar[T]) Name() string { return g.name }

// Lookup returns the bit for a single symbol.
func (g *Grammar[T]) Lookup(symbol string) (T, bool) {
	bit, ok := g.symbols[fold(symbol)]
	return bit, ok
}

// Parse ORs together the bits of the recognized symbols.
func (g *Grammar[T]) Parse(symbols ...string) T {
	var mask T
	for _, s := range symbols {
		bit, ok := g.Lookup(s)
		if !ok {
			Logger().Warn("unsupported option",
				zap.String("grammar", g.name),
				zap.String("symbol", s))
			continue
		}
		mask |= bit
	}
	return mask
}

// Symbols returns the recognized spellings in sorted order.
func (g *Grammar[T]) Symbols() []string {
	out := make([]string, 0, len(g.symbols))
	for s := range g.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

var (
	deviceTypes = newGrammar("device type", map[native.DeviceType][]string{
		native.DeviceTypeGPU:         {"gpu"},
		native.DeviceTypeCPU:         {"cpu"},
		native.DeviceTypeAccelerator: {"accelerator"},
		native.DeviceTypeDefault:     {"default"},
		native.DeviceTypeCustom:      {"custom"},
		native.DeviceTypeAll:         {"all"},
	})

	queueProperties = newGrammar("command queue property", map[native.QueueProperties][]string{
		native.QueueOutOfOrderExecMode: {"out-of-order-execution-mode", "out_of_order_execution_mode", "out-of-order"},
		native.QueueProfiling:          {"profiling"},
	})

	memFlags = newGrammar("memory flag", map[native.MemFlags][]string{
		native.MemReadWrite:    {"read-write", "read_write", "read/write"},
		native.MemReadOnly:     {"read-only", "read_only"},
		native.MemWriteOnly:    {"write-only", "write_only"},
		native.MemUseHostPtr:   {"use-host-pointer", "use_host_pointer", "use-host-ptr", "use_host_ptr"},
		native.MemAllocHostPtr: {"allocate-host-pointer", "allocate_host_pointer", "alloc-host-ptr", "alloc_host_ptr"},
		native.MemCopyHostPtr:  {"copy-host-pointer", "copy_host_pointer", "copy-host-ptr", "copy_host_ptr"},
	})
)

// DeviceTypeGrammar returns the device type grammar.
func DeviceTypeGrammar() *Grammar[native.DeviceType] { return deviceTypes }

// QueuePropertyGrammar returns the command queue property grammar.
func QueuePropertyGrammar() *Grammar[native.QueueProperties] { return queueProperties }

// MemFlagGrammar returns the memory flag grammar.
func MemFlagGrammar() *Grammar[native.MemFlags] { return memFlags }

// DeviceTypes parses a device type selector. No symbols selects all
// device types.
func DeviceTypes(symbols ...string) native.DeviceType {
	if len(symbols) == 0 {
		return native.DeviceTypeAll
	}
	return deviceTypes.Parse(symbols...)
}

// QueueProperties parses command queue properties. No symbols yields an
// in-order queue without profiling.
func QueueProperties(symbols ...string) native.QueueProperties {
	return queueProperties.Parse(symbols...)
}

// MemFlags parses memory flags without applying the default policy.
func MemFlags(symbols ...string) native.MemFlags {
	return memFlags.Parse(symbols...)
}

// ResolveMemFlags applies the default policy to a parsed mask: an empty
// mask means use-host-pointer when host memory is supplied and
// read-write otherwise.
func ResolveMemFlags(mask native.MemFlags, hasHost bool) native.MemFlags {
	if mask != 0 {
		return mask
	}
	if hasHost {
		return native.MemUseHostPtr
	}
	return native.MemReadWrite
}

// Split tokenizes a symbol list written as "gpu cpu", "gpu,cpu" or
// "(gpu cpu)". Empty text yields no symbols.
func Split(text string) []string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
