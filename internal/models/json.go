package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), s)
}

// JSON is a custom type for storing arbitrary JSON data
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), j)
}

// SecretMap stores flat key/value secret material as JSON
type SecretMap map[string]string

func (m SecretMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *SecretMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), m)
}

// IntMap stores per-platform integer settings as JSON
type IntMap map[string]int

func (m IntMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *IntMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), m)
}

// KeywordMap stores per-platform keyword overrides as JSON
type KeywordMap map[string][]string

func (m KeywordMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *KeywordMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), m)
}

func asBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
