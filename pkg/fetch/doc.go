// Package fetch is a thin wrapper around an HTTP client for JSON REST APIs.
//
// A Fetch holds default headers and a cache/format header policy, issues
// GET/PUT/POST/PATCH/DELETE calls through a fhttp.Doer, and reports every
// failure as a single *Error record. When a call fails with 401 and an
// AuthFailureHandler is registered, the handler gets one chance to refresh
// credentials (typically by calling SetDefaultHeader("Authorization", ...))
// and the call is re-issued exactly once.
//
//	f := fetch.New(fetch.WithAuthFailureHandler(refresher))
//	f.SetDefaultHeader("Authorization", "Bearer "+token)
//
//	toggles, err := fetch.Read[[]Toggle](ctx, f, "https://api.example.com/users/--self--/feature-toggles")
//	if fe, ok := fetch.IsError(err); ok {
//		log.Printf("%s: %s", fe.ErrorType, fe.Message)
//	}
package fetch
