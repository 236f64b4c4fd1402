// Package steps provides the built-in step implementations: model-call,
// tool-call, memory-op, human-input, and condition-router, plus the Env
// factory that builds them from declarative config.
package steps

import (
	"fmt"
	"regexp"

	"github.com/dashworks/graphflow/graph"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// render substitutes {{key}} placeholders with values from the state.
// Unknown keys render as empty strings; non-string values use their
// default formatting.
func render(template string, state graph.State) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := state[key]
		if !ok || v == nil {
			return ""
		}
		if s, isStr := v.(string); isStr {
			return s
		}
		return fmt.Sprintf("%v", v)
	})
}

// renderInput applies render to every string value of a config map,
// leaving other value types untouched. Nested maps are rendered
// recursively.
func renderInput(input map[string]any, state graph.State) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		switch tv := v.(type) {
		case string:
			out[k] = render(tv, state)
		case map[string]any:
			out[k] = renderInput(tv, state)
		default:
			out[k] = v
		}
	}
	return out
}
