package auth

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// Middleware provides HTTP authentication middleware.
type Middleware struct {
	browsers *BrowserSessions
	store    session.Store
	logger   *zap.Logger
}

// NewMiddleware creates auth middleware over the browser cookie and the token store.
func NewMiddleware(browsers *BrowserSessions, store session.Store, logger *zap.Logger) *Middleware {
	return &Middleware{
		browsers: browsers,
		store:    store,
		logger:   logger.Named("auth"),
	}
}

// IdentifyBrowser ensures the browser has a key and places it, with the client
// IP, on the request context. Apply it to every dashboard route and to nothing
// else, so health checks, metrics scrapes and static assets are never issued a cookie.
func (m *Middleware) IdentifyBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := m.browsers.BrowserKey(w, r)
		if err != nil {
			m.logger.Error("Failed to issue browser key", zap.Error(err))
			http.Error(w, "Unable to establish a session", http.StatusInternalServerError)
			return
		}

		ctx := WithRequestInfo(r.Context(), RequestInfo{
			BrowserKey: key,
			ClientIP:   clientIP(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin redirects to the login page unless the browser holds an access token.
// Must run inside IdentifyBrowser.
func (m *Middleware) RequireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := BrowserKeyFromContext(r.Context())
		if key == "" {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}

		ok, err := m.store.IsAuthenticated(r.Context(), key)
		if err != nil {
			m.logger.Error("Failed to check session",
				zap.String("error", logging.SanitizeError(err)))
			http.Error(w, "Session storage unavailable", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}

		next(w, r)
	}
}

// Protect identifies the browser and then requires it to be logged in.
func (m *Middleware) Protect(next http.HandlerFunc) http.Handler {
	return m.IdentifyBrowser(m.RequireLogin(next))
}

// clientIP returns the host part of RemoteAddr. Proxy headers are not trusted here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
