package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStore_Generate_ReturnsUniqueNonces(t *testing.T) {
	store := NewNonceStore(0)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		nonce := store.Generate(ActionApprove, "browser-1", "u-alpha")
		require.Len(t, nonce, 64)
		require.False(t, seen[nonce], "duplicate nonce generated")
		seen[nonce] = true
	}
}

func TestNonceStore_Validate(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		browserKey string
		target     string
		want       bool
	}{
		{"matching tuple", ActionApprove, "browser-1", "u-alpha", true},
		{"wrong action", ActionDecline, "browser-1", "u-alpha", false},
		{"other browser", ActionApprove, "browser-2", "u-alpha", false},
		{"other product", ActionApprove, "browser-1", "u-beta", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewNonceStore(0)
			nonce := store.Generate(ActionApprove, "browser-1", "u-alpha")

			assert.Equal(t, tt.want, store.Validate(nonce, tt.action, tt.browserKey, tt.target))
		})
	}
}

func TestNonceStore_Validate_MismatchDoesNotConsume(t *testing.T) {
	store := NewNonceStore(0)
	nonce := store.Generate(ActionApprove, "browser-1", "u-alpha")

	assert.False(t, store.Validate(nonce, ActionApprove, "browser-2", "u-alpha"))
	assert.True(t, store.Validate(nonce, ActionApprove, "browser-1", "u-alpha"))
}

func TestNonceStore_Validate_SingleUse(t *testing.T) {
	store := NewNonceStore(0)
	nonce := store.Generate(ActionDecline, "browser-1", "u-alpha")

	ok := store.Validate(nonce, ActionDecline, "browser-1", "u-alpha")
	assert.True(t, ok, "first validation should succeed")

	ok = store.Validate(nonce, ActionDecline, "browser-1", "u-alpha")
	assert.False(t, ok, "second validation should fail (single-use)")
}

func TestNonceStore_Validate_UnknownNonce(t *testing.T) {
	store := NewNonceStore(0)

	ok := store.Validate("nonexistent-nonce", ActionApprove, "browser-1", "u-alpha")
	assert.False(t, ok)
}

func TestNonceStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewNonceStore(time.Minute).(*nonceStore)
	store.now = func() time.Time { return now }

	expired := store.Generate(ActionApprove, "browser-1", "u-alpha")
	now = now.Add(time.Minute)

	assert.False(t, store.Validate(expired, ActionApprove, "browser-1", "u-alpha"))

	// Generating prunes anything else that has expired.
	stale := store.Generate(ActionDecline, "browser-1", "u-alpha")
	now = now.Add(2 * time.Minute)
	store.Generate(ActionDecline, "browser-1", "u-beta")

	store.mu.Lock()
	_, stillThere := store.nonces[stale]
	count := len(store.nonces)
	store.mu.Unlock()
	assert.False(t, stillThere)
	assert.Equal(t, 1, count)
}
