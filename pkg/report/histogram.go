package report

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Histogram maps a per-entity count to the number of entities having it.
// Only observed counts are present.
type Histogram map[int]int

// HistogramOf buckets a list of per-entity counts.
func HistogramOf(counts []int) Histogram {
	hist := make(Histogram, len(counts))

	for _, c := range counts {
		hist[c]++
	}

	return hist
}

// Buckets returns the bucket keys in ascending order.
func (h Histogram) Buckets() []int {
	keys := make([]int, 0, len(h))

	for k := range h {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// Total returns the number of entities counted.
func (h Histogram) Total() int {
	total := 0

	for _, freq := range h {
		total += freq
	}

	return total
}

// MarshalJSON emits the buckets as an object with string keys in ascending
// numeric order.
func (h Histogram) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for idx, bucket := range h.Buckets() {
		if idx > 0 {
			buf.WriteByte(',')
		}

		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(bucket))
		buf.WriteString(`":`)
		buf.WriteString(strconv.Itoa(h[bucket]))
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form produced by MarshalJSON.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	var raw map[string]int

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	out := make(Histogram, len(raw))

	for key, freq := range raw {
		bucket, convErr := strconv.Atoi(key)
		if convErr != nil {
			return convErr
		}

		out[bucket] = freq
	}

	*h = out

	return nil
}

// MarshalYAML emits the buckets in ascending numeric order.
func (h Histogram) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, bucket := range h.Buckets() {
		out.Content = append(out.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(bucket)},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(h[bucket])},
		)
	}

	return out, nil
}
