package fetch

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	fhttp "github.com/milan604/restfetch/pkg/http"
)

// StatusCode extracts the HTTP status from err. The client's status wins;
// otherwise a "status" field in the response payload is coerced from a
// number or numeric string. Anything that does not coerce yields 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	if libErr, ok := fhttp.AsError(err); ok && libErr.StatusCode != 0 {
		return libErr.StatusCode
	}
	payload, ok := responsePayload(err)
	if !ok {
		return 0
	}
	fields, ok := asFields(payload)
	if !ok {
		return 0
	}
	return coerceStatus(fields["status"])
}

func coerceStatus(v any) int {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return int(f)
	}
	status, err := cast.ToIntE(v)
	if err != nil {
		return 0
	}
	return status
}
