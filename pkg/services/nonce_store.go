package services

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultNonceTTL bounds how long a rendered form stays submittable.
const DefaultNonceTTL = time.Hour

// Form actions that carry a nonce.
const (
	ActionApprove = "approve"
	ActionDecline = "decline"
)

// NonceStore manages single-use form nonces.
// Nonces are tied to a specific (action, browserKey, target) tuple, so a nonce
// rendered for approving one product cannot be replayed to decline another or
// be used from a different browser.
type NonceStore interface {
	// Generate creates a new nonce tied to the given action, browser, and target.
	Generate(action, browserKey, target string) string
	// Validate checks if the nonce is valid for the given action, browser, and target.
	// Returns true and deletes the nonce if valid (single-use).
	Validate(nonce, action, browserKey, target string) bool
}

type nonceEntry struct {
	action     string
	browserKey string
	target     string
	expiresAt  time.Time
}

type nonceStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	nonces map[string]nonceEntry
}

// NewNonceStore creates a new in-memory nonce store. ttl <= 0 uses DefaultNonceTTL.
func NewNonceStore(ttl time.Duration) NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &nonceStore{
		ttl:    ttl,
		now:    time.Now,
		nonces: make(map[string]nonceEntry),
	}
}

func (s *nonceStore) Generate(action, browserKey, target string) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate random nonce: " + err.Error())
	}
	nonce := hex.EncodeToString(b)

	s.mu.Lock()
	now := s.now()
	s.pruneLocked(now)
	s.nonces[nonce] = nonceEntry{
		action:     action,
		browserKey: browserKey,
		target:     target,
		expiresAt:  now.Add(s.ttl),
	}
	s.mu.Unlock()

	return nonce
}

func (s *nonceStore) Validate(nonce, action, browserKey, target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.nonces[nonce]
	if !ok {
		return false
	}

	if !s.now().Before(entry.expiresAt) {
		delete(s.nonces, nonce)
		return false
	}

	if entry.action != action || entry.browserKey != browserKey || entry.target != target {
		return false
	}

	// Single-use: delete on successful validation
	delete(s.nonces, nonce)
	return true
}

func (s *nonceStore) pruneLocked(now time.Time) {
	for k, e := range s.nonces {
		if !now.Before(e.expiresAt) {
			delete(s.nonces, k)
		}
	}
}

var _ NonceStore = (*nonceStore)(nil)
