package http

import (
	"errors"
	"strings"
)

// Error is returned by Client for every failed call. Response is nil when
// the request never produced one (transport failure, hook error, bad URL).
type Error struct {
	Message    string
	Method     string
	URL        string
	StatusCode int
	Response   *Response
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// ResponsePayload returns the decoded payload of the failed response.
func (e *Error) ResponsePayload() (any, bool) {
	if e == nil || e.Response == nil {
		return nil, false
	}
	return e.Response.Data, true
}

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsHTTPStatus reports whether err is an *Error with the given status.
func IsHTTPStatus(err error, code int) bool {
	he, ok := AsError(err)
	return ok && he.StatusCode == code
}
