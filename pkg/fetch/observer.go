package fetch

import (
	"context"

	fhttp "github.com/milan604/restfetch/pkg/http"
)

// CallInfo identifies one attempt of a call. Attempt is 2 for the retry
// that follows a successful re-authentication.
type CallInfo struct {
	Method  string
	URI     string
	Attempt int
}

// AuthRetryOutcome is what happened when a call hit 401.
type AuthRetryOutcome string

const (
	AuthRetryRefreshed    AuthRetryOutcome = "refreshed"
	AuthRetryDeclined     AuthRetryOutcome = "declined"
	AuthRetryNoHandler    AuthRetryOutcome = "no_handler"
	AuthRetryHandlerError AuthRetryOutcome = "handler_error"
)

// Observer receives call lifecycle events. StartCall may return a derived
// context (for tracing) and must return a finish func. AuthRetry runs after
// the rejected attempt has finished, with the caller's context.
type Observer interface {
	StartCall(ctx context.Context, info CallInfo) (context.Context, func(status int, err error))
	AuthRetry(ctx context.Context, info CallInfo, outcome AuthRetryOutcome)
}

func (f *Fetch) startCall(ctx context.Context, info CallInfo) (context.Context, func(*fhttp.Response, error)) {
	f.logger.DebugFCtx(ctx, "%s %s (attempt %d)", info.Method, info.URI, info.Attempt)
	if len(f.observers) == 0 {
		return ctx, func(*fhttp.Response, error) {}
	}

	finishers := make([]func(int, error), 0, len(f.observers))
	for _, o := range f.observers {
		var done func(int, error)
		ctx, done = o.StartCall(ctx, info)
		finishers = append(finishers, done)
	}
	return ctx, func(resp *fhttp.Response, err error) {
		status := StatusCode(err)
		if resp != nil {
			status = resp.StatusCode
		}
		for i := len(finishers) - 1; i >= 0; i-- {
			if finishers[i] != nil {
				finishers[i](status, err)
			}
		}
	}
}

func (f *Fetch) notifyAuthRetry(ctx context.Context, info CallInfo, outcome AuthRetryOutcome) {
	for _, o := range f.observers {
		o.AuthRetry(ctx, info, outcome)
	}
}
