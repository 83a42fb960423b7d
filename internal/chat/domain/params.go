package domain

import (
	"strconv"
	"strings"
)

// Params are the slot values extracted by the NLU agent. Values arrive as
// strings, numbers or lists depending on the entity configuration, so the
// accessors normalize them.
type Params map[string]any

// String returns the slot as text. Lists yield their first element and
// numbers are printed without trailing zeros.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	return strings.TrimSpace(scalarString(v))
}

// Strings returns every value of a list slot as text, skipping blanks.
func (p Params) Strings(key string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := strings.TrimSpace(scalarString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Numbers returns every numeric value of a slot; text that does not parse
// is skipped.
func (p Params) Numbers(key string) []float64 {
	var out []float64
	for _, s := range p.Strings(key) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		// Composite entities such as @sys.address or @sys.person.
		for _, k := range []string{"name", "street-address", "business-name", "city"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
