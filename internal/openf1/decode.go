package openf1

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/apexf1/pitwall/pkg/logger"
)

// decodeRecords normalizes the payload shapes the API produces: a JSON
// array of objects, an object wrapping a list under some key, or a bare
// single object.
func decodeRecords(body []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("unrecognized payload shape: %w", err)
	}
	for _, v := range wrapper {
		var nested []json.RawMessage
		if err := json.Unmarshal(v, &nested); err == nil {
			return nested, nil
		}
	}

	// A single object becomes a one-element list
	return []json.RawMessage{json.RawMessage(body)}, nil
}

// decodeList unmarshals raw records into typed values, skipping records
// that do not fit the expected shape
func decodeList[T any](records []json.RawMessage, log *logger.Logger) []T {
	out := make([]T, 0, len(records))
	for _, raw := range records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			log.Warn("Skipping malformed record", logger.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}
