package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// contentSecurityPolicy allows the dashboard's own stylesheet and forms plus
// remote product images. No script runs on any page.
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https: data:; style-src 'self'; " +
	"script-src 'none'; frame-ancestors 'none'; form-action 'self'"

// SecureOptions returns secure.Options for the dashboard's security headers.
// HSTS is only sent outside development and only over TLS.
func SecureOptions(isDevelopment bool) secure.Options {
	return secure.Options{
		IsDevelopment:         isDevelopment,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: contentSecurityPolicy,
		ReferrerPolicy:        "same-origin",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
	}
}

// NewSecure returns a middleware that adds security headers.
func NewSecure(opts secure.Options) func(next http.Handler) http.Handler {
	return secure.New(opts).Handler
}
