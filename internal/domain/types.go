package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// StringSlice persists a list of strings as a JSON array column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported StringSlice source %T", value)
	}

	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}

	return json.Unmarshal(data, (*[]string)(s))
}

// Float64 returns a pointer to v, for optional numeric columns.
func Float64(v float64) *float64 {
	return &v
}
