package auth

import (
	"net/url"
)

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Secure indicates whether the cookie should only be sent over HTTPS.
	Secure bool
	// Domain is the cookie domain scope. Empty means host-only.
	Domain string
}

// DeriveCookieSettings determines cookie settings from the dashboard's base URL.
//   - http://localhost:3444 → Secure: false, Domain: ""
//   - https://admin.example.com → Secure: true, Domain: ""
//
// The browser cookie is host-only unless configCookieDomain says otherwise;
// an admin session has no reason to follow the operator across subdomains.
func DeriveCookieSettings(baseURL string, configCookieDomain string) CookieSettings {
	return CookieSettings{
		Secure: isHTTPS(baseURL),
		Domain: configCookieDomain,
	}
}

// isHTTPS determines if the given base URL uses HTTPS protocol.
// Returns true for HTTPS, false for HTTP, true for empty/invalid URLs (safe default).
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return true
	}

	return parsedURL.Scheme != "http"
}
