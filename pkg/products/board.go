package products

import (
	"sync"
	"time"

	"github.com/ekaya-inc/ekaya-admin/pkg/metrics"
	"github.com/ekaya-inc/ekaya-admin/pkg/models"
)

// Board holds the most recent product listing applied for each browser.
//
// Every fetch draws a sequence number before it is sent. When the response
// arrives it is applied only if no fetch with a higher number has already
// been applied, so a slow response can never overwrite a fresher one.
//
// Listings untouched for longer than the board's TTL are dropped, so browsers
// that never log out do not hold their listing forever.
type Board struct {
	mu     sync.Mutex
	next   uint64
	ttl    time.Duration
	now    func() time.Time
	boards map[string]*snapshot
}

type snapshot struct {
	seq       uint64
	listing   Listing
	touchedAt time.Time
}

// DefaultBoardTTL matches the default session TTL.
const DefaultBoardTTL = 7 * 24 * time.Hour

// NewBoard creates an empty Board. ttl <= 0 uses DefaultBoardTTL.
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = DefaultBoardTTL
	}
	return &Board{
		ttl:    ttl,
		now:    time.Now,
		boards: make(map[string]*snapshot),
	}
}

// Begin reserves the sequence number for a fetch about to be issued.
// Numbers are unique across all browsers.
func (b *Board) Begin() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	return b.next
}

// Apply records listing for key if seq is newer than what is held.
// It returns the listing now current for key and whether it was applied.
func (b *Board) Apply(key string, seq uint64, listing Listing) (Listing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.pruneLocked(now)

	cur, ok := b.boards[key]
	if ok && cur.seq >= seq {
		metrics.RecordStaleListing()
		cur.touchedAt = now
		return cur.listing, false
	}

	listing.Seq = seq
	b.boards[key] = &snapshot{seq: seq, listing: listing, touchedAt: now}
	return listing, true
}

// Current returns the applied listing for key, if any.
func (b *Board) Current(key string) (Listing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	cur, ok := b.boards[key]
	if !ok || b.expired(cur, now) {
		delete(b.boards, key)
		return Listing{}, false
	}
	cur.touchedAt = now
	return cur.listing, true
}

func (b *Board) expired(s *snapshot, now time.Time) bool {
	return now.Sub(s.touchedAt) > b.ttl
}

// pruneLocked drops expired listings. Caller must hold b.mu.
func (b *Board) pruneLocked(now time.Time) {
	for key, s := range b.boards {
		if b.expired(s, now) {
			delete(b.boards, key)
		}
	}
}

// Forget drops key's listing. Called on logout.
func (b *Board) Forget(key string) {
	b.mu.Lock()
	delete(b.boards, key)
	b.mu.Unlock()
}

// Len returns the number of browsers with a listing.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.boards)
}
