package sampler

import (
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

// relabel returns data with every deferred-mapper placeholder, in keys and
// in string values, replaced by its committed pseudonym. Nodes are copied so
// the fragment a collector returned is left untouched.
func relabel(data any, names map[string]string) any {
	if len(names) == 0 {
		return data
	}

	switch v := data.(type) {
	case *report.Node:
		out := report.NewNode()

		v.Each(func(key string, value any) {
			out.Set(rename(key, names), relabel(value, names))
		})

		return out
	case []string:
		out := make([]string, len(v))
		for idx, s := range v {
			out[idx] = rename(s, names)
		}

		return out
	case string:
		return rename(v, names)
	default:
		return data
	}
}

func rename(s string, names map[string]string) string {
	if !mapping.IsPlaceholder(s) {
		return s
	}

	if name, ok := names[s]; ok {
		return name
	}

	return s
}
