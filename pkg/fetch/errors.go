package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType tells where a normalized error came from.
type ErrorType int

const (
	// ErrorTypeUnexpected marks failures whose shape was not recognized.
	ErrorTypeUnexpected ErrorType = iota + 1
	// ErrorTypeThirdPartyLib marks failures reported by the HTTP client.
	ErrorTypeThirdPartyLib
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeUnexpected:
		return "UnexpectedError"
	case ErrorTypeThirdPartyLib:
		return "ThirdPartyLibError"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// ErrorSubType tells which payload shape a ThirdPartyLib error was built from.
type ErrorSubType int

const (
	ErrorSubTypeNone ErrorSubType = iota
	// ErrorSubTypeStructuredPayload: the payload carried a status or message field.
	ErrorSubTypeStructuredPayload
	// ErrorSubTypeUnstructuredPayload: the payload was empty, a bare string, or
	// some other value that had to be serialized into the message.
	ErrorSubTypeUnstructuredPayload
)

func (s ErrorSubType) String() string {
	switch s {
	case ErrorSubTypeNone:
		return "None"
	case ErrorSubTypeStructuredPayload:
		return "StructuredPayload"
	case ErrorSubTypeUnstructuredPayload:
		return "UnstructuredPayload"
	default:
		return fmt.Sprintf("ErrorSubType(%d)", int(s))
	}
}

// Error is the single error shape returned by every Fetch call.
type Error struct {
	Message      string       `json:"message"`
	Status       int          `json:"status"`
	ErrorType    ErrorType    `json:"errorType"`
	ErrorSubType ErrorSubType `json:"errorSubType"`
	// Response is the decoded payload of the failed response, if any.
	Response any `json:"response,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Status != 0 {
		return fmt.Sprintf("restfetch: %s (status %d): %s", e.ErrorType, e.Status, e.Message)
	}
	return fmt.Sprintf("restfetch: %s: %s", e.ErrorType, e.Message)
}

// Unwrap returns the error the record was built from.
func (e *Error) Unwrap() error { return e.cause }

// IsError reports whether err is, or wraps, a normalized *Error.
func IsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a normalized 401.
func IsUnauthorized(err error) bool {
	fe, ok := IsError(err)
	return ok && fe.Status == http.StatusUnauthorized
}
