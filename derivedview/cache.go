package derivedview

import (
	lru "github.com/hashicorp/golang-lru"
)

// Cache memoizes the last Result computed per bill. Entries are never
// authoritative: a miss or a stale hit just triggers Recompute
// (spec.md §4.6) — the cache only saves repeated work.
type Cache struct {
	inner *lru.Cache
}

// NewCache allocates a cache holding up to size entries.
func NewCache(size int) (*Cache, error) {
	inner, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get returns the cached Result for billID iff its latest block id
// matches currentLatestBlockID and no deadline between its computed
// timestamp and now has elapsed.
func (c *Cache) Get(billID string, currentLatestBlockID uint64, now int64) (*Result, bool) {
	v, ok := c.inner.Get(billID)
	if !ok {
		return nil, false
	}
	cached := v.(*Result)
	if cached.LatestBlockID != currentLatestBlockID {
		return nil, false
	}
	if deadlineCrossedSince(cached, now) {
		return nil, false
	}
	return cached, true
}

// Put overwrites the cached Result for billID.
func (c *Cache) Put(billID string, result *Result) {
	c.inner.Add(billID, result)
}

// Invalidate drops any cached Result for billID, forcing the next Get
// to miss.
func (c *Cache) Invalidate(billID string) {
	c.inner.Remove(billID)
}

// deadlineCrossedSince reports whether the bill has an open wait (an
// active waiting state, or an acceptance or payment request not yet
// resolved or timed out) and time has moved on since it was computed.
// Conservative: any advance while a wait is open forces a recompute
// rather than tracking each wait's exact deadline timestamp separately.
func deadlineCrossedSince(cached *Result, now int64) bool {
	if now <= cached.ComputedAt {
		return false
	}
	if cached.CurrentWaitingState != nil {
		return true
	}
	a, p := cached.Acceptance, cached.Payment
	return (a.Requested && !a.Accepted && !a.Rejected && !a.TimedOut) ||
		(p.Requested && !p.Paid && !p.Rejected && !p.TimedOut)
}
