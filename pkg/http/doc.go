// Package http is the transport underneath the fetch wrapper. It sends JSON
// requests, reads and decodes whole responses, and reports every failure as
// *Error so callers can tell a non-2xx answer (Response set) from a request
// that never got one.
package http
