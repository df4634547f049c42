package fetch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	fhttp "github.com/milan604/restfetch/pkg/http"
)

// Responder is implemented by errors that carry the payload of a failed
// response. *fhttp.Error implements it; other clients may too.
type Responder interface {
	ResponsePayload() (payload any, ok bool)
}

const (
	msgNilError       = "unexpected condition: error is nil"
	msgEmptyPayload   = "unexpected condition: response payload is empty"
	msgNotSimple      = "unexpected condition: error is not a simple object"
	msgRESTAPIErrorAt = "REST API error: "
)

// Normalize turns any failure into a *Error. The one exception is an error
// from an unknown client whose payload looks structured: there is nothing
// to classify it by, so it is returned unchanged.
func Normalize(err error) error {
	if err == nil {
		return newError(msgNilError, 0, ErrorTypeUnexpected, ErrorSubTypeNone, nil, nil)
	}
	if fe, ok := IsError(err); ok {
		return fe
	}

	libErr, isLib := fhttp.AsError(err)
	status := StatusCode(err)

	payload, hasResponse := responsePayload(err)
	if !hasResponse {
		return newError(fmt.Sprintf("unexpected condition: error is %q", err.Error()),
			status, ErrorTypeUnexpected, ErrorSubTypeNone, nil, err)
	}

	if isEmpty(payload) {
		if !isLib {
			return newError(msgEmptyPayload, status, ErrorTypeUnexpected, ErrorSubTypeNone, nil, err)
		}
		return newError(libErr.Message, status, ErrorTypeThirdPartyLib, ErrorSubTypeUnstructuredPayload, nil, err)
	}

	if fields, ok := asFields(payload); ok && (truthy(fields["status"]) || truthy(fields["message"])) {
		if !isLib {
			return err
		}
		msg := cast.ToString(fields["message"])
		if msg == "" {
			msg = libErr.Message
		}
		return newError(msg, status, ErrorTypeThirdPartyLib, ErrorSubTypeStructuredPayload, payload, err)
	}

	msg := unstructuredMessage(payload)
	if !isLib {
		return newError(msg, status, ErrorTypeUnexpected, ErrorSubTypeNone, payload, err)
	}
	return newError(msg, status, ErrorTypeThirdPartyLib, ErrorSubTypeUnstructuredPayload, payload, err)
}

func newError(msg string, status int, t ErrorType, st ErrorSubType, payload any, cause error) *Error {
	return &Error{
		Message:      msg,
		Status:       status,
		ErrorType:    t,
		ErrorSubType: st,
		Response:     payload,
		cause:        cause,
	}
}

func responsePayload(err error) (any, bool) {
	var r Responder
	if !errors.As(err, &r) {
		return nil, false
	}
	return r.ResponsePayload()
}

// unstructuredMessage uses a string payload verbatim and serializes anything else.
func unstructuredMessage(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return msgNotSimple
	}
	return msgRESTAPIErrorAt + string(data)
}

// asFields views a payload as a JSON object. Structs are round-tripped
// through encoding/json; strings and scalars are not objects.
func asFields(payload any) (map[string]any, bool) {
	switch p := payload.(type) {
	case map[string]any:
		return p, true
	case string, []byte, bool, float64, int, int64, json.Number:
		return nil, false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func isEmpty(payload any) bool {
	switch p := payload.(type) {
	case nil:
		return true
	case string:
		return p == ""
	case []byte:
		return len(p) == 0
	}
	return false
}

// truthy treats nil, zero numbers, empty strings and false as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f != 0
	}
	return true
}
