package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// The gateway is inconsistent across API versions: older webhooks POST flat
// form fields (Barcode1..Barcode3 at the top level), newer ones POST JSON
// with the segments nested under a PaymentInfo object. This adapter folds both
// shapes into one internal view before anything else sees them.

// segmentFields are probed in order; position gaps are dropped.
var segmentFields = [3]string{"Barcode1", "Barcode2", "Barcode3"}

// SegmentsFromParams reads barcode segments from a flat parameter map.
func SegmentsFromParams(params map[string]string) []string {
	var segments []string
	for _, field := range segmentFields {
		if v := strings.TrimSpace(params[field]); v != "" {
			segments = append(segments, v)
		}
	}
	return segments
}

// SegmentsFromPayload reads barcode segments from a decoded JSON payload,
// preferring the nested PaymentInfo object and falling back to flat top-level
// fields.
func SegmentsFromPayload(payload map[string]interface{}) []string {
	if nested, ok := payload["PaymentInfo"].(map[string]interface{}); ok {
		if segments := SegmentsFromParams(stringifyValues(nested)); len(segments) > 0 {
			return segments
		}
	}
	return SegmentsFromParams(stringifyValues(payload))
}

// TopLevelParams extracts the scalar top-level fields of a JSON payload as
// strings, the form the signature codec verifies against. Nested objects are
// excluded: the gateway signs only the flat fields.
func TopLevelParams(payload map[string]interface{}) map[string]string {
	params := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			params[k] = val
		case float64:
			params[k] = formatNumber(val)
		case bool:
			params[k] = strconv.FormatBool(val)
		case nil:
			// skip
		default:
			// nested objects and arrays are not part of the signed set
		}
	}
	return params
}

func stringifyValues(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = formatNumber(val)
		}
	}
	return out
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// JoinSegments renders segments in their display form, e.g.
// "12345-67890-ABCDE".
func JoinSegments(segments []string) string {
	return strings.Join(segments, "-")
}

// SplitSegments is the inverse of JoinSegments for stored payment codes.
func SplitSegments(code string) []string {
	if code == "" {
		return nil
	}
	return strings.Split(code, "-")
}

// parseRtnCode tolerates both "1" and 1 on the wire.
func parseRtnCode(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("gateway: missing RtnCode")
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("gateway: malformed RtnCode %q: %w", raw, err)
	}
	return code, nil
}
