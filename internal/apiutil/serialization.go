package apiutil

import (
	"encoding/json"
	"fmt"
)

// SerializeModel converts any model to JSON bytes, used for Redis-cached
// snapshots such as the Dynamic Pool Manager's previous active set.
func SerializeModel[T any](model T) ([]byte, error) {
	data, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

// DeserializeModel is the inverse of SerializeModel.
func DeserializeModel[T any](data []byte, target *T) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot deserialize empty data")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
