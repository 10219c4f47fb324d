package notify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render replaces every {{key}} in tmpl whose key is in vars with the value's text.
// Placeholders for absent keys are left untouched. Replacement is a single pass,
// so a value that itself contains a placeholder is not expanded again.
func Render(tmpl string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", stringify(vars[k]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// stringify prints numbers in plain decimal form. JSON numbers arrive as
// float64, and fmt would print 1000000 as 1e+06.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
