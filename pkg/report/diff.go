package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffResult is a line diff of two reports.
type DiffResult struct {
	Text    string
	Added   int
	Removed int
}

// Changed reports whether the two inputs differ.
func (d DiffResult) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// Canonical re-renders a JSON report with sorted keys so that two reports
// that differ only in key order compare equal.
func Canonical(data []byte) ([]byte, error) {
	var doc any

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	return append(out, '\n'), nil
}

// Diff compares two JSON reports line by line after canonicalizing them.
func Diff(before, after []byte) (DiffResult, error) {
	left, err := Canonical(before)
	if err != nil {
		return DiffResult{}, err
	}

	right, err := Canonical(after)
	if err != nil {
		return DiffResult{}, err
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(left), string(right))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		sb  strings.Builder
		res DiffResult
	)

	for _, d := range diffs {
		prefix := "  "

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			switch d.Type {
			case diffmatchpatch.DiffInsert:
				res.Added++
			case diffmatchpatch.DiffDelete:
				res.Removed++
			case diffmatchpatch.DiffEqual:
			}

			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}

	res.Text = sb.String()

	return res, nil
}
