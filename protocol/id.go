package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC request identifier. It holds either a string or an
// integer and keeps that distinction across encoding, so "1" and 1 are
// different ids. ID values are comparable and may be used as map keys.
// The zero ID represents an absent or null id.
type ID struct {
	str   string
	num   int64
	isNum bool
	isSet bool
}

// StringID returns a string id.
func StringID(s string) ID {
	return ID{str: s, isSet: true}
}

// IntID returns a numeric id.
func IntID(n int64) ID {
	return ID{num: n, isNum: true, isSet: true}
}

// IsZero reports whether the id is absent or null.
func (id ID) IsZero() bool {
	return !id.isSet
}

// IsNumber reports whether the id is numeric.
func (id ID) IsNumber() bool {
	return id.isSet && id.isNum
}

// Int returns the numeric value and whether the id is numeric.
func (id ID) Int() (int64, bool) {
	return id.num, id.IsNumber()
}

// String returns the id in display form. Numeric ids are formatted in
// base 10 and the zero id renders as "null".
func (id ID) String() string {
	switch {
	case !id.isSet:
		return "null"
	case id.isNum:
		return strconv.FormatInt(id.num, 10)
	default:
		return id.str
	}
}

// MarshalJSON encodes the id as a JSON string, number, or null.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case !id.isSet:
		return []byte("null"), nil
	case id.isNum:
		return strconv.AppendInt(nil, id.num, 10), nil
	default:
		return json.Marshal(id.str)
	}
}

// UnmarshalJSON decodes a JSON string, integer, or null. Fractional and
// exponent numbers are rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty id")
	}

	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("invalid id %s", data)
		}
		*id = ID{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid string id: %w", err)
		}
		*id = StringID(s)
		return nil
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("id must be a string or integer, got %s", data)
		}
		*id = IntID(n)
		return nil
	}
}
