package metrics

import (
	"context"
	"fmt"
)

// RecordEvent records a custom event with a set of attributes. Errors and
// fmt.Stringers are recorded as their string form, and nil values are
// dropped, since New Relic only accepts strings, numbers and booleans.
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr, ok := applicationFromContext(ctx); ok {
		nr.RecordCustomEvent(eventName, eventAttributes(kvPairs))
	}
}

func eventAttributes(kvPairs map[string]interface{}) map[string]interface{} {
	attributes := make(map[string]interface{}, len(kvPairs))
	for k, v := range kvPairs {
		switch t := v.(type) {
		case nil:
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			attributes[k] = t
		case error:
			attributes[k] = t.Error()
		case fmt.Stringer:
			attributes[k] = t.String()
		default:
			attributes[k] = fmt.Sprint(t)
		}
	}
	return attributes
}
