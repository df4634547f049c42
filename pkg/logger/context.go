package logger

import (
	"context"
	"sync"
)

var (
	registryMu         sync.RWMutex
	contextKeyRegistry = map[any]string{
		RequestIDKey: "request_id",
		CallIDKey:    "call_id",
	}
)

// RegisterContextKey makes the *FCtx methods log ctx.Value(ctxKey) under logField.
func RegisterContextKey(ctxKey any, logField string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	contextKeyRegistry[ctxKey] = logField
}

func UnregisterContextKey(ctxKey any) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(contextKeyRegistry, ctxKey)
}

// WithRequestID stores id under RequestIDKey.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the id stored by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func fieldsFromContext(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	fields := make([]any, 0, len(contextKeyRegistry)*2)
	for key, fieldName := range contextKeyRegistry {
		if val := ctx.Value(key); val != nil {
			fields = append(fields, fieldName, val)
		}
	}
	return fields
}
