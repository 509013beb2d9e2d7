package report

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
	FormatPlot = "plot"
)

// ErrUnsupportedFormat is returned for an unknown output format name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatText, FormatPlot}
}

// ValidateFormat checks that format is one of Formats.
func ValidateFormat(format string) error {
	if !slices.Contains(Formats(), format) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return nil
}

// Encode renders r in the requested format.
func Encode(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatJSON, "":
		data, err := r.JSON()
		if err != nil {
			return err
		}

		_, writeErr := w.Write(append(data, '\n'))
		if writeErr != nil {
			return fmt.Errorf("write json: %w", writeErr)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(len(jsonIndent))

		encodeErr := enc.Encode(r)
		if encodeErr != nil {
			return fmt.Errorf("encode yaml: %w", encodeErr)
		}

		return enc.Close()
	case FormatText:
		return renderText(w, r)
	case FormatPlot:
		return renderPlot(w, r)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
