package host

// guestModule encodes a wasm module that exports one page-aligned memory
// and, for every host function, an export of the same name that forwards
// its parameters to the import. Calling the export runs the host function
// with the guest as caller, so guest memory is visible to it.
func guestModule(module string, funcs []funcDef) []byte {
	const (
		typeI32  = 0x7f
		opGet    = 0x20
		opCall   = 0x10
		opEnd    = 0x0b
		kindFunc = 0x00
		kindMem  = 0x02
	)
	n := len(funcs)

	var types, imports, decls, exports, code [][]byte
	for i, f := range funcs {
		t := []byte{0x60}
		t = append(t, uleb(uint32(len(f.params)))...)
		for range f.params {
			t = append(t, typeI32)
		}
		t = append(t, uleb(uint32(len(f.results)))...)
		for range f.results {
			t = append(t, typeI32)
		}
		types = append(types, t)

		imp := append(name(module), name(f.name)...)
		imports = append(imports, append(append(imp, kindFunc), uleb(uint32(i))...))

		decls = append(decls, uleb(uint32(i)))

		exp := append(name(f.name), kindFunc)
		exports = append(exports, append(exp, uleb(uint32(n+i))...))

		body := []byte{0x00}
		for p := range f.params {
			body = append(body, opGet)
			body = append(body, uleb(uint32(p))...)
		}
		body = append(body, opCall)
		body = append(body, uleb(uint32(i))...)
		body = append(body, opEnd)
		code = append(code, append(uleb(uint32(len(body))), body...))
	}
	exports = append(exports, append(name("memory"), kindMem, 0x00))

	out := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	out = append(out, section(2, imports)...)
	out = append(out, section(3, decls)...)
	out = append(out, section(5, [][]byte{{0x00, 0x02}})...)
	out = append(out, section(7, exports)...)
	out = append(out, section(10, code)...)
	return out
}

func uleb(v uint32) []byte {
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func section(id byte, items [][]byte) []byte {
	body := uleb(uint32(len(items)))
	for _, it := range items {
		body = append(body, it...)
	}
	return append(append([]byte{id}, uleb(uint32(len(body)))...), body...)
}
