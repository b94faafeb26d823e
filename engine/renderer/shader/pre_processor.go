// pre_processor.go resolves shader-def directives in WGSL source. WGSL has no preprocessor of
// its own, so shader variants are expressed with C-style line directives:
//
//	#define NAME
//	#ifdef NAME / #ifndef NAME
//	#else
//	#endif
//
// Directive lines and lines inside inactive blocks are replaced with empty lines so that line
// numbers reported by the backend compiler still match the original source.
package shader

import (
	"fmt"
	"strings"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct{}

// PreProcessor resolves shader-def directives for one specialization of a shader.
type PreProcessor interface {
	// Process evaluates the directives in source against the given defines and returns
	// the resulting WGSL source. #define directives inside active blocks extend the set of
	// defines for the remainder of the source.
	//
	// Parameters:
	//   - source: the raw WGSL source containing directives
	//   - defs: the shader defines active for this specialization
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error naming the offending line for unknown or unbalanced directives
	Process(source string, defs []string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a shader-def preprocessor.
//
// Returns:
//   - PreProcessor: a ready-to-use preprocessor
func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

// conditional tracks one open #ifdef/#ifndef block.
type conditional struct {
	line   int
	parent bool // enclosing block is active
	taken  bool // condition held
	inElse bool
}

func (c conditional) active() bool {
	if !c.parent {
		return false
	}
	return c.taken != c.inElse
}

func (p *preProcessor) Process(source string, defs []string) (string, error) {
	defined := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		defined[d] = struct{}{}
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	var stack []conditional

	active := func() bool {
		if len(stack) == 0 {
			return true
		}
		return stack[len(stack)-1].active()
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				out = append(out, line)
			} else {
				out = append(out, "")
			}
			continue
		}

		directive, arg, _ := strings.Cut(trimmed[1:], " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case "ifdef", "ifndef":
			if arg == "" {
				return "", fmt.Errorf("line %d: #%s requires a name", i+1, directive)
			}
			_, ok := defined[arg]
			stack = append(stack, conditional{
				line:   i + 1,
				parent: active(),
				taken:  ok == (directive == "ifdef"),
			})
		case "else":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #else without #ifdef", i+1)
			}
			top := &stack[len(stack)-1]
			if top.inElse {
				return "", fmt.Errorf("line %d: duplicate #else for block opened at line %d", i+1, top.line)
			}
			top.inElse = true
		case "endif":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #endif without #ifdef", i+1)
			}
			stack = stack[:len(stack)-1]
		case "define":
			if arg == "" {
				return "", fmt.Errorf("line %d: #define requires a name", i+1)
			}
			if active() {
				defined[arg] = struct{}{}
			}
		default:
			return "", fmt.Errorf("line %d: unknown directive %q", i+1, "#"+directive)
		}
		out = append(out, "")
	}

	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: unterminated conditional block", stack[len(stack)-1].line)
	}
	return strings.Join(out, "\n"), nil
}
