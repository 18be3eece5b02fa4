//go:build opencl && cgo

package opencl

/*
#include <stddef.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/panicz/clops/native"
)

//export clopsContextNotify
func clopsContextNotify(errinfo *C.char, _ unsafe.Pointer, _ C.size_t, user unsafe.Pointer) {
	h := cgo.Handle(uintptr(user))
	if fn, ok := h.Value().(native.ContextNotify); ok && fn != nil {
		fn(C.GoString(errinfo))
	}
}
