package storage

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldChecker is implemented by connections whose column type constrains
// keys and values beyond Go's string type. Sessions in debug mode call it
// before every write.
type FieldChecker interface {
	CheckFields(fields map[string]string) error
}

// InvalidFieldError reports a key or value the backend cannot store.
type InvalidFieldError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("key %q: %s", e.Key, e.Reason)
	}

	return fmt.Sprintf("value %q for key %q: %s", e.Value, e.Key, e.Reason)
}

// CheckText rejects keys and values that are not valid UTF-8 or contain a
// NUL byte, which text-typed columns cannot hold.
func CheckText(fields map[string]string) error {
	for k, v := range fields {
		if err := checkString(k); err != "" {
			return &InvalidFieldError{Key: k, Reason: err}
		}

		if err := checkString(v); err != "" {
			return &InvalidFieldError{Key: k, Value: v, Reason: err}
		}
	}

	return nil
}

// CheckUTF8 rejects keys and values that are not valid UTF-8.
func CheckUTF8(fields map[string]string) error {
	for k, v := range fields {
		if !utf8.ValidString(k) {
			return &InvalidFieldError{Key: k, Reason: "is not valid UTF-8"}
		}

		if !utf8.ValidString(v) {
			return &InvalidFieldError{Key: k, Value: v, Reason: "is not valid UTF-8"}
		}
	}

	return nil
}

func checkString(s string) string {
	if !utf8.ValidString(s) {
		return "is not valid UTF-8"
	}

	if strings.IndexByte(s, 0) >= 0 {
		return "contains a NUL byte"
	}

	return ""
}
