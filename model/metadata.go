package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fingraph/fingraph/helper"
)

// Metadata carries free-form extraction context on mentions, relations and
// events: pattern names, parsed amount values, model labels. It is persisted
// as JSONB, so values round-trip as JSON types and numbers come back as
// float64.
type Metadata map[string]interface{}

// Value implements driver.Valuer for the JSONB column
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements sql.Scanner for the JSONB column
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal encodes the metadata as JSON
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes JSON bytes or an existing Metadata value into m.
// A nil source yields an empty map.
func (m *Metadata) Unmarshal(value interface{}) error {
	switch source := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = source
		return nil
	case []byte:
		return json.Unmarshal(source, m)
	default:
		return helper.NewError("decode metadata", fmt.Errorf("type assertion failed for source %T", value))
	}
}
