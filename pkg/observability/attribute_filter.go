package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	attrTable     = "db.sql.table"
	redactedValue = "[redacted]"
)

// allowedPrefixes are attribute key prefixes that pass through the filter.
var allowedPrefixes = []string{
	"sampler.",
	"db.system",
	attrTable,
	"error",
	"exception.",
}

// blockedKeys never reach the exporter.
var blockedKeys = map[string]bool{
	"db.statement":         true,
	"db.connection_string": true,
}

// attributeFilter is a SpanProcessor that drops unknown attributes and
// optionally masks table names before forwarding to a delegate processor.
type attributeFilter struct {
	delegate     sdktrace.SpanProcessor
	redactTables bool
}

// NewAttributeFilter returns a SpanProcessor that filters span attributes.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, redactTables bool) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, redactTables: redactTables}
}

// OnStart delegates to the wrapped processor.
func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd filters attributes, then delegates to the wrapped processor.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

// Shutdown delegates to the wrapped processor.
func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

// ForceFlush delegates to the wrapped processor.
func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) isAllowed(key string) bool {
	if blockedKeys[key] {
		return false
	}

	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// filteredSpan wraps a ReadOnlySpan and returns only allowed attributes.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

// Attributes returns the allowed attributes, masking table names when
// redaction is on.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	filtered := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if !s.filter.isAllowed(string(kv.Key)) {
			continue
		}

		if s.filter.redactTables && kv.Key == attrTable {
			kv = attribute.String(attrTable, redactedValue)
		}

		filtered = append(filtered, kv)
	}

	return filtered
}
