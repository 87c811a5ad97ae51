// Package session holds the token store: the bearer/refresh token pair each
// browser obtained at login. Entries are addressed by an opaque browser key
// (see auth.BrowserKey) and persisted under the field names "token" and
// "refreshToken".
//
// The store performs no validation. A present access token is treated as
// authenticated regardless of its expiry; the remote API is the authority.
package session

import (
	"context"
	"errors"
)

// Persisted field names. These match the keys the remote API hands out and
// must not change, or existing sessions become unreadable.
const (
	FieldToken        = "token"
	FieldRefreshToken = "refreshToken"
)

// ErrEmptyKey is returned when a store operation is called without a browser key.
var ErrEmptyKey = errors.New("session key is empty")

// Session is the token pair held for one browser. Empty strings mean absent.
type Session struct {
	AccessToken  string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// IsAuthenticated reports whether an access token is present.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// Store persists sessions keyed by browser key.
//
// Save overwrites both values (an empty value clears that field). Read returns
// the zero Session when nothing is stored. Clear is idempotent.
type Store interface {
	Save(ctx context.Context, key string, s Session) error
	Read(ctx context.Context, key string) (Session, error)
	Clear(ctx context.Context, key string) error
	IsAuthenticated(ctx context.Context, key string) (bool, error)
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
