package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString decodes a JSON value that upstreams send inconsistently as a
// string, a list of strings, a number or null. Lists are joined with ", ".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case '[':
		var items []FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(string(item)); s != "" {
				parts = append(parts, s)
			}
		}
		*f = FlexString(strings.Join(parts, ", "))
	default:
		// Numbers, booleans and objects keep their literal JSON text.
		*f = FlexString(data)
	}
	return nil
}

// String returns the value with surrounding whitespace removed.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}
