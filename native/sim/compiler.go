package sim

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	kernelDecl   = regexp.MustCompile(`(?:__)?kernel\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	errorPragma  = regexp.MustCompile(`(?m)^\s*#\s*error\b(.*)$`)
	errNoKernels = errors.New("no kernel functions defined")
)

// signature is a kernel entry point found in program source.
type signature struct {
	name   string
	params int
}

// compile scans OpenCL C source for kernel declarations. It does not
// check the kernel bodies beyond brace balance and #error directives.
func compile(src string) ([]signature, error) {
	if m := errorPragma.FindStringSubmatchIndex(src); m != nil {
		line := 1 + strings.Count(src[:m[0]], "\n")
		msg := strings.TrimSpace(src[m[2]:m[3]])
		return nil, errors.Errorf("line %d: error: %s", line, msg)
	}
	if err := checkBraces(src); err != nil {
		return nil, err
	}

	var sigs []signature
	seen := make(map[string]bool)
	for _, m := range kernelDecl.FindAllStringSubmatch(src, -1) {
		name := m[1]
		if seen[name] {
			return nil, errors.Errorf("error: redefinition of kernel '%s'", name)
		}
		seen[name] = true
		sigs = append(sigs, signature{name: name, params: countParams(m[2])})
	}
	if len(sigs) == 0 && strings.Contains(src, "kernel") {
		return nil, errors.Wrap(errNoKernels, "malformed kernel declaration")
	}
	return sigs, nil
}

func checkBraces(src string) error {
	depth, line := 0, 1
	for _, r := range src {
		switch r {
		case '\n':
			line++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return errors.Errorf("line %d: error: extraneous closing brace ('}')", line)
			}
		}
	}
	if depth != 0 {
		return errors.Errorf("line %d: error: expected '}'", line)
	}
	return nil
}

func countParams(list string) int {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return 0
	}
	return strings.Count(list, ",") + 1
}

// checkOptions validates a compiler option string. Every option must
// begin with '-'; -D and -I take a value, either attached or as the next
// word.
func checkOptions(options string) error {
	words := strings.Fields(options)
	for i := 0; i < len(words); i++ {
		w := words[i]
		if !strings.HasPrefix(w, "-") || w == "-" {
			return errors.Errorf("unrecognized option %q", w)
		}
		if w == "-D" || w == "-I" {
			if i+1 >= len(words) {
				return errors.Errorf("missing argument to %q", w)
			}
			i++
		}
	}
	return nil
}
