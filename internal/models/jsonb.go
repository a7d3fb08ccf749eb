package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form JSONB column.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("JSONMap: Scan failed, expected []byte but got %T", value)
	}
	return json.Unmarshal(b, j)
}

// JSONValue is a typed JSONB column, generalizing JSONMap's Value/Scan pair
// to the structured breakdown types (ScoreBreakdown, DRPolicyRecord,
// ConflictSummary) that dashboards depend on staying stable and versioned.
type JSONValue[T any] struct {
	V T
}

func (j JSONValue[T]) Value() (driver.Value, error) {
	return json.Marshal(j.V)
}

func (j *JSONValue[T]) Scan(value any) error {
	if value == nil {
		var zero T
		j.V = zero
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("JSONValue: Scan failed, expected []byte but got %T", value)
	}
	return json.Unmarshal(b, &j.V)
}

func (j JSONValue[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

func (j *JSONValue[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.V)
}
