package person

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Address carries the location fields of a raw upstream record.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
	Zipcode string `json:"zipcode"`
}

// RawPerson is an upstream record decoded at the transport boundary. It is
// never persisted.
type RawPerson struct {
	Firstname string  `json:"firstname"`
	Lastname  string  `json:"lastname"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Gender    string  `json:"gender"`
	Birthday  string  `json:"birthday"`
	Address   Address `json:"address"`
}

// AnonymizedPerson is the persisted shape. PII fields hold the masking
// sentinel, the email is reduced to its provider, and the birthday is
// reduced to a decade bucket.
type AnonymizedPerson struct {
	Firstname      string
	Lastname       string
	EmailProvider  string
	Phone          string
	AgeGroup       string
	Gender         string
	Country        string
	City           string
	Street         string
	Zipcode        string
	LocationMasked bool
}

// MalformedFieldError reports an input field that could not be interpreted.
type MalformedFieldError struct {
	Field string
	Value string
	Err   error
}

func (e *MalformedFieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed field %q (value %q): %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("malformed field %q (value %q)", e.Field, e.Value)
}

func (e *MalformedFieldError) Unwrap() error { return e.Err }

// DecodeRaw parses one upstream record object into a RawPerson. Shape
// mismatches surface as a MalformedFieldError rather than propagating
// untyped data into the pipeline.
func DecodeRaw(data json.RawMessage) (RawPerson, error) {
	var raw RawPerson
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawPerson{}, &MalformedFieldError{Field: "record", Value: snippet(data), Err: err}
	}
	return raw, nil
}

func snippet(data []byte) string {
	const limit = 80
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
