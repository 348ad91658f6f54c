package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB хранит вложенные документы (требования, историю, ответы) в jsonb-колонке.
type JSONB[T any] struct {
	V T
}

func NewJSONB[T any](v T) JSONB[T] {
	return JSONB[T]{V: v}
}

func (j JSONB[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(b), nil
}

func (j *JSONB[T]) Scan(src any) error {
	var zero T
	switch s := src.(type) {
	case nil:
		j.V = zero
		return nil
	case []byte:
		if len(s) == 0 {
			j.V = zero
			return nil
		}
		return json.Unmarshal(s, &j.V)
	case string:
		if s == "" {
			j.V = zero
			return nil
		}
		return json.Unmarshal([]byte(s), &j.V)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
