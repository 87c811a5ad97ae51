// Package auth identifies browsers and gates dashboard pages behind login.
//
// Each browser carries a signed cookie holding an opaque browser key. The key
// addresses that browser's entry in the session.Store; the cookie itself never
// contains tokens. Middleware places the key and client IP on the request
// context for downstream handlers and the audit log.
//
// Example usage in a handler:
//
//	func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
//	    key := auth.BrowserKeyFromContext(r.Context())
//	    sess, err := h.store.Read(r.Context(), key)
//	    // ...
//	}
package auth

import (
	"context"
)

type contextKey string

const requestInfoKey contextKey = "request_info"

// RequestInfo identifies the browser behind a request.
type RequestInfo struct {
	BrowserKey string
	ClientIP   string
}

// WithRequestInfo returns a context carrying info.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

// RequestInfoFromContext returns the request info, or the zero value when absent.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey).(RequestInfo)
	return info
}

// BrowserKeyFromContext returns the browser key, or "" when the request was
// not routed through Middleware.IdentifyBrowser.
func BrowserKeyFromContext(ctx context.Context) string {
	return RequestInfoFromContext(ctx).BrowserKey
}
