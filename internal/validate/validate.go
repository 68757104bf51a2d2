// Package validate collects request validation issues into a single error.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Issue is one validation failure
type Issue struct {
	Code    string   `json:"code"`
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// Error is returned when a request failed validation
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, strings.Join(is.Path, ".")+": "+is.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Issues returns the issue list of err when it is a validation error
func Issues(err error) ([]Issue, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Issues, true
	}
	return nil, false
}

// Checker accumulates issues
type Checker struct {
	issues []Issue
}

// New returns an empty checker
func New() *Checker { return &Checker{} }

// Add records an issue at path
func (c *Checker) Add(path, code, message string) {
	c.issues = append(c.issues, Issue{Code: code, Path: strings.Split(path, "."), Message: message})
}

// Required records an issue when value is empty
func (c *Checker) Required(path, value string) {
	if value == "" {
		c.Add(path, "invalid_type", "Required")
	}
}

// OneOf records an issue when value is set and not in allowed
func (c *Checker) OneOf(path, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	c.Add(path, "invalid_enum_value",
		fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", quoteJoin(allowed), value))
}

// Err returns the collected issues as *Error, or nil
func (c *Checker) Err() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &Error{Issues: c.issues}
}

// DecodeJSON decodes one JSON value from r into dst. Malformed input yields *Error.
func DecodeJSON(r io.Reader, dst interface{}) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &Error{Issues: []Issue{{
				Code:    "invalid_type",
				Path:    strings.Split(typeErr.Field, "."),
				Message: fmt.Sprintf("Expected %s, received %s", typeErr.Type, typeErr.Value),
			}}}
		}
		return &Error{Issues: []Issue{{Code: "invalid_json", Path: []string{}, Message: err.Error()}}}
	}
	return nil
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, " | ")
}
