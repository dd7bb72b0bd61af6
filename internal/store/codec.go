package store

import (
	"encoding/json"
	"fmt"
)

func encode(value any) (json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

func decode(data json.RawMessage, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// decodeList unmarshals a set of raw records into out, a pointer to a
// slice of the caller's record type.
func decodeList(records []json.RawMessage, out any) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode record list: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode record list: %w", err)
	}
	return nil
}

// mergeFields applies a partial update on top of an existing raw record.
func mergeFields(current json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var record map[string]any
	if err := json.Unmarshal(current, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record for update: %w", err)
	}
	for k, v := range fields {
		record[k] = v
	}
	return encode(record)
}
