package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ErrMalformedReport is returned when a saved report cannot be decoded.
var ErrMalformedReport = errors.New("malformed report")

// Parse decodes a JSON report keeping the key order of every object.
// Histograms become Histogram values, other objects *Node values, integral
// numbers int and arrays of strings []string.
func Parse(data []byte) (*Report, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := decodeValue(dec, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}

	root, ok := value.(*Node)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedReport)
	}

	_, trailingErr := dec.Token()
	if !errors.Is(trailingErr, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedReport)
	}

	return &Report{root: root}, nil
}

func decodeValue(dec *json.Decoder, path []string) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			node, err := decodeObject(dec, path)
			if err != nil || !histogramPath(path) {
				return node, err
			}

			return toHistogram(path, node)
		case '[':
			return decodeArray(dec, path)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", v)
		}
	case json.Number:
		if i, intErr := v.Int64(); intErr == nil {
			return int(i), nil
		}

		return v.Float64()
	default:
		return v, nil
	}
}

func decodeObject(dec *json.Decoder, path []string) (*Node, error) {
	node := NewNode()

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key %v is not a string", tok)
		}

		value, err := decodeValue(dec, append(slices.Clone(path), key))
		if err != nil {
			return nil, err
		}

		node.Set(key, value)
	}

	_, err := dec.Token()
	if err != nil {
		return nil, err
	}

	return node, nil
}

func decodeArray(dec *json.Decoder, path []string) (any, error) {
	var items []any

	for dec.More() {
		value, err := decodeValue(dec, path)
		if err != nil {
			return nil, err
		}

		items = append(items, value)
	}

	_, err := dec.Token()
	if err != nil {
		return nil, err
	}

	strs := make([]string, 0, len(items))

	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return items, nil
		}

		strs = append(strs, s)
	}

	return strs, nil
}

// histogramPath tells whether the object at path is a histogram: either a
// named histogram under an entity type's histogram key, or the histogram of
// a field record.
func histogramPath(path []string) bool {
	n := len(path)

	switch {
	case n == 3 && path[1] == KeyHistogram:
		return true
	case n >= 5 && path[n-1] == KeyHistogram && path[n-3] == KeyFields:
		return true
	default:
		return false
	}
}

func toHistogram(path []string, node *Node) (Histogram, error) {
	hist := make(Histogram, node.Len())

	var err error

	node.Each(func(key string, value any) {
		if err != nil {
			return
		}

		bucket, convErr := strconv.Atoi(key)
		count, ok := value.(int)

		if convErr != nil || !ok {
			err = fmt.Errorf("histogram %s: bucket %q", strings.Join(path, "."), key)

			return
		}

		hist[bucket] = count
	})

	if err != nil {
		return nil, err
	}

	return hist, nil
}
