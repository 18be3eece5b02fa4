package host

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	"github.com/panicz/clops/errors"
)

// maxList bounds the element count of a guest list so that its byte size
// fits in a u32.
const maxList = 1 << 28

func memory(mod api.Module, fn string) api.Memory {
	mem := mod.Memory()
	if mem == nil {
		panic(errors.Precondition(errors.PhaseHost, []string{fn}, "caller exports no memory"))
	}
	return mem
}

// view returns n bytes of guest memory at ptr. The slice aliases the
// memory until the guest grows it.
func view(mod api.Module, fn string, ptr, n uint32) []byte {
	if n == 0 {
		return []byte{}
	}
	mem := memory(mod, fn)
	b, ok := mem.Read(ptr, n)
	if !ok {
		panic(errors.OutOfBounds(errors.PhaseHost, []string{fn}, int(ptr)+int(n), int(mem.Size())))
	}
	return b
}

func readString(mod api.Module, fn string, ptr, n uint32) string {
	if n == 0 {
		return ""
	}
	return string(view(mod, fn, ptr, n))
}

func readU32s(mod api.Module, fn string, ptr, n uint32) []uint32 {
	if n > maxList {
		panic(errors.Precondition(errors.PhaseHost, []string{fn}, "list of %d elements is too long", n))
	}
	b := view(mod, fn, ptr, n*4)
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func writeU32s(mod api.Module, fn string, ptr uint32, vals []uint32) {
	if len(vals) == 0 {
		return
	}
	b := view(mod, fn, ptr, uint32(len(vals))*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
}

func writeBytes(mod api.Module, fn string, ptr uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	mem := memory(mod, fn)
	if !mem.Write(ptr, data) {
		panic(errors.OutOfBounds(errors.PhaseHost, []string{fn}, int(ptr)+len(data), int(mem.Size())))
	}
}
