package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Request describes a single call. Body is JSON encoded unless it is an
// io.Reader, []byte or string.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body holds the raw bytes.
	Body []byte
	// Data is the decoded payload: JSON content decodes to maps, slices and
	// float64s, other content is the body as a string, an empty body is nil.
	Data any
}

func readResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		Data:       decodePayload(resp.Header.Get("Content-Type"), body),
	}, nil
}

func decodePayload(contentType string, body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if isJSONContent(contentType) || (contentType == "" && json.Valid(trimmed)) {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			return v
		}
	}
	return string(body)
}

func isJSONContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
