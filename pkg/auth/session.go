package auth

import (
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// SessionName is the name of the browser cookie.
const SessionName = "admin-session"

// Session value keys.
const (
	sessionKeyBrowser = "browser_key"
)

// FlashKind distinguishes success notices from errors.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Kind    FlashKind
	Message string
}

func init() {
	gob.Register(Flash{})
}

// BrowserSessions manages the signed browser cookie: the browser key plus flashes.
type BrowserSessions struct {
	store *sessions.CookieStore
}

// NewBrowserSessions creates the cookie store.
//
// The secret parameter is used to sign cookies. It can be any passphrase; it
// is SHA-256 hashed to derive a 32-byte key. The secret must be consistent
// across restarts and replicas, or every browser is signed out.
//
// Security settings:
// - HttpOnly: true (inaccessible to JavaScript)
// - Secure: from settings (HTTPS only outside localhost)
// - SameSite: Lax (the post-login redirect is a top-level navigation)
func NewBrowserSessions(secret string, settings CookieSettings, maxAge time.Duration) *BrowserSessions {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &BrowserSessions{store: store}
}

func (b *BrowserSessions) get(r *http.Request) *sessions.Session {
	// A tampered or stale cookie yields an error and a fresh session; a fresh
	// session simply means a new, unauthenticated browser.
	s, _ := b.store.Get(r, SessionName)
	return s
}

// BrowserKey returns the browser's key, issuing and persisting a new one if the
// cookie is missing or invalid.
func (b *BrowserSessions) BrowserKey(w http.ResponseWriter, r *http.Request) (string, error) {
	s := b.get(r)
	if key, ok := s.Values[sessionKeyBrowser].(string); ok && key != "" {
		return key, nil
	}

	key := uuid.NewString()
	s.Values[sessionKeyBrowser] = key
	if err := s.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save browser cookie: %w", err)
	}
	return key, nil
}

// Rotate replaces the browser key. Called on logout so the old key can never
// address a session again.
func (b *BrowserSessions) Rotate(w http.ResponseWriter, r *http.Request) (string, error) {
	s := b.get(r)
	key := uuid.NewString()
	s.Values[sessionKeyBrowser] = key
	if err := s.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save browser cookie: %w", err)
	}
	return key, nil
}

// AddFlash queues a notice for the next page render.
func (b *BrowserSessions) AddFlash(w http.ResponseWriter, r *http.Request, f Flash) error {
	s := b.get(r)
	s.AddFlash(f)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// Flashes pops all queued notices.
func (b *BrowserSessions) Flashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	s := b.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}

	flashes := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	if err := s.Save(r, w); err != nil {
		return flashes, fmt.Errorf("failed to save browser cookie: %w", err)
	}
	return flashes, nil
}
