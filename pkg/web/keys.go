package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries a caller supplied request id, and echoes the one in use.
const RequestIDHeader = "X-Request-Id"

const maxRequestIDLen = 128

// WithRequestID stores id under chi's request id key, so middleware.GetReqID sees it too.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, middleware.RequestIDKey, id)
}

// GetRequestID returns the request id and whether one was set.
func GetRequestID(ctx context.Context) (string, bool) {
	id := middleware.GetReqID(ctx)
	return id, id != ""
}

// requestID keeps a usable incoming id and otherwise mints a UUID.
func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	return id
}
