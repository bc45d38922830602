package renderer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
)

type condFrame struct {
	parentActive bool
	taken        bool
	active       bool
	sawElse      bool
}

/**
 * @brief Resolves #define, #undef, #ifdef, #ifndef, #else and #endif in source.
 * Inactive lines and consumed directives become empty lines so line numbers
 * survive. Unknown directives pass through. Macro values are recorded but
 * never substituted.
 * @param source The shader source.
 * @param predefined Symbols defined before the first line.
 * @returns The resolved code and the sorted set of symbols defined at the end.
 */
func Preprocess(source string, predefined []string) (string, []string, error) {
	defines := make(map[string]string, len(predefined))
	for _, d := range predefined {
		if d = strings.TrimSpace(d); d != "" {
			defines[d] = ""
		}
	}

	var stack []condFrame
	active := true
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for n, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active {
				out = append(out, line)
			} else {
				out = append(out, "")
			}
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(trimmed, "#"))
		if len(fields) == 0 {
			out = append(out, "")
			continue
		}
		directive, args := fields[0], fields[1:]

		switch directive {
		case "define":
			if len(args) == 0 {
				return "", nil, fmt.Errorf("line %d: #define without a name: %w", n+1, core.ErrShaderCompile)
			}
			if active {
				defines[args[0]] = strings.Join(args[1:], " ")
			}
		case "undef":
			if len(args) == 0 {
				return "", nil, fmt.Errorf("line %d: #undef without a name: %w", n+1, core.ErrShaderCompile)
			}
			if active {
				delete(defines, args[0])
			}
		case "ifdef", "ifndef":
			if len(args) == 0 {
				return "", nil, fmt.Errorf("line %d: #%s without a name: %w", n+1, directive, core.ErrShaderCompile)
			}
			_, defined := defines[args[0]]
			cond := defined == (directive == "ifdef")
			stack = append(stack, condFrame{parentActive: active, taken: cond, active: active && cond})
			active = active && cond
		case "else":
			if len(stack) == 0 {
				return "", nil, fmt.Errorf("line %d: #else without #ifdef: %w", n+1, core.ErrShaderCompile)
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return "", nil, fmt.Errorf("line %d: duplicate #else: %w", n+1, core.ErrShaderCompile)
			}
			top.sawElse = true
			top.active = top.parentActive && !top.taken
			active = top.active
		case "endif":
			if len(stack) == 0 {
				return "", nil, fmt.Errorf("line %d: #endif without #ifdef: %w", n+1, core.ErrShaderCompile)
			}
			active = stack[len(stack)-1].parentActive
			stack = stack[:len(stack)-1]
		default:
			if active {
				out = append(out, line)
			} else {
				out = append(out, "")
			}
			continue
		}
		out = append(out, "")
	}

	if len(stack) != 0 {
		return "", nil, fmt.Errorf("%d unterminated conditional block(s): %w", len(stack), core.ErrShaderCompile)
	}

	names := make([]string, 0, len(defines))
	for k := range defines {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(out, "\n"), names, nil
}

// DefinesHeader renders defines as #define lines, one per symbol.
func DefinesHeader(defines ...string) string {
	var b strings.Builder
	for _, d := range defines {
		b.WriteString("#define ")
		b.WriteString(d)
		b.WriteByte('\n')
	}
	return b.String()
}
