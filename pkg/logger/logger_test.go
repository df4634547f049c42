package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	l, err := NewLogger(LoggerOptions{Level: "chatty", Encoding: "json"})
	require.NoError(t, err)

	impl, ok := l.(*logger)
	require.True(t, ok)
	assert.Equal(t, "info", impl.atomicLevel.String())

	require.NoError(t, l.SetLogLevel("debug"))
	assert.Equal(t, "debug", impl.atomicLevel.String())
	assert.Error(t, l.SetLogLevel("loud"))
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))

	fields := fieldsFromContext(ctx)
	assert.Contains(t, fields, "request_id")
	assert.Contains(t, fields, "req-1")
}

func TestRegisterContextKey(t *testing.T) {
	type tenantKey struct{}
	RegisterContextKey(tenantKey{}, "tenant")
	defer UnregisterContextKey(tenantKey{})

	ctx := context.WithValue(context.Background(), tenantKey{}, "acme")
	assert.Contains(t, fieldsFromContext(ctx), "tenant")
}

func TestNopLogger(t *testing.T) {
	l := Nop().Named("fetch").With("k", "v")
	l.InfoFCtx(context.Background(), "hello %s", "world")
	assert.NoError(t, l.SetLogLevel("warn"))
}
