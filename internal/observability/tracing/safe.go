package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

var allowedSpanKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"org_id":                  {},
}

// SafeAttributes keeps only low-cardinality, non-sensitive span attributes.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError strips error detail down to the outermost message so that
// bound SQL values never reach the trace backend.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(errorKind(err))
}

func errorKind(err error) string {
	msg := err.Error()
	const max = 120
	if len(msg) > max {
		msg = msg[:max]
	}
	return msg
}
