package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCookies copies the response cookies onto a new request, like a browser would.
func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	seen := map[string]bool{}
	cookies := rec.Result().Cookies()
	// Last Set-Cookie for a name wins
	for i := len(cookies) - 1; i >= 0; i-- {
		if seen[cookies[i].Name] {
			continue
		}
		seen[cookies[i].Name] = true
		req.AddCookie(cookies[i])
	}
	return req
}

func TestBrowserSessions_CookieAttributes(t *testing.T) {
	b := NewBrowserSessions("secret", CookieSettings{Secure: true, Domain: ".example.com"}, time.Hour)

	rec := httptest.NewRecorder()
	_, err := b.BrowserKey(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	c := cookies[0]
	assert.Equal(t, SessionName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestBrowserSessions_TamperedCookieGetsFreshKey(t *testing.T) {
	b := NewBrowserSessions("secret", CookieSettings{}, time.Hour)

	rec := httptest.NewRecorder()
	key, err := b.BrowserKey(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	other := NewBrowserSessions("different-secret", CookieSettings{}, time.Hour)
	key2, err := other.BrowserKey(httptest.NewRecorder(), withCookies(rec))
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}

func TestBrowserSessions_Rotate(t *testing.T) {
	b := NewBrowserSessions("secret", CookieSettings{}, time.Hour)

	rec := httptest.NewRecorder()
	key, err := b.BrowserKey(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	rotateRec := httptest.NewRecorder()
	rotated, err := b.Rotate(rotateRec, withCookies(rec))
	require.NoError(t, err)
	assert.NotEqual(t, key, rotated)

	after, err := b.BrowserKey(httptest.NewRecorder(), withCookies(rotateRec))
	require.NoError(t, err)
	assert.Equal(t, rotated, after)
}

func TestBrowserSessions_FlashesAreOneShot(t *testing.T) {
	b := NewBrowserSessions("secret", CookieSettings{}, time.Hour)

	rec := httptest.NewRecorder()
	require.NoError(t, b.AddFlash(rec, httptest.NewRequest(http.MethodGet, "/", nil), Flash{Kind: FlashSuccess, Message: "Done"}))

	popRec := httptest.NewRecorder()
	flashes, err := b.Flashes(popRec, withCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, []Flash{{Kind: FlashSuccess, Message: "Done"}}, flashes)

	again, err := b.Flashes(httptest.NewRecorder(), withCookies(popRec))
	require.NoError(t, err)
	assert.Empty(t, again)
}
