package auth

import (
	"sync"
	"time"
)

// AuthCache holds verified clients keyed by API key, with a second index
// from client ID to the keys that resolved to it so an admin change to one
// client can evict every key it owns.
//
// Expired entries are still served (stale-while-revalidate); exactly one
// reader per stale entry is told to refresh it.
type AuthCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	byKey    map[string]*cacheEntry
	byClient map[string]map[string]struct{}
	now      func() time.Time
}

type cacheEntry struct {
	client     *ClientContext
	expiresAt  time.Time
	refreshing bool
}

// NewAuthCache creates a cache with the given TTL.
func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{
		ttl:      ttl,
		byKey:    make(map[string]*cacheEntry),
		byClient: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// GetResult holds the result of a cache lookup.
type GetResult struct {
	Client       *ClientContext
	Hit          bool // fresh or stale value found
	NeedsRefresh bool // stale, and this caller owns the refresh
}

// Get looks up apiKey. A miss returns the zero GetResult.
func (c *AuthCache) Get(apiKey string) GetResult {
	c.mu.RLock()
	entry, ok := c.byKey[apiKey]
	fresh := ok && c.now().Before(entry.expiresAt)
	c.mu.RUnlock()

	if !ok {
		return GetResult{}
	}
	if fresh {
		return GetResult{Client: entry.client, Hit: true}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The entry may have been replaced or evicted since the read lock.
	entry, ok = c.byKey[apiKey]
	if !ok {
		return GetResult{}
	}
	if c.now().Before(entry.expiresAt) {
		return GetResult{Client: entry.client, Hit: true}
	}
	needsRefresh := !entry.refreshing
	entry.refreshing = true
	return GetResult{Client: entry.client, Hit: true, NeedsRefresh: needsRefresh}
}

// Set stores client under apiKey with a fresh TTL.
func (c *AuthCache) Set(apiKey string, client *ClientContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unindexLocked(apiKey)
	c.byKey[apiKey] = &cacheEntry{client: client, expiresAt: c.now().Add(c.ttl)}
	keys := c.byClient[client.ClientID]
	if keys == nil {
		keys = make(map[string]struct{})
		c.byClient[client.ClientID] = keys
	}
	keys[apiKey] = struct{}{}
}

// Delete evicts one API key.
func (c *AuthCache) Delete(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unindexLocked(apiKey)
	delete(c.byKey, apiKey)
}

// InvalidateClient evicts every key cached for clientID and returns how
// many were removed. The next request with any of them re-verifies against
// the store and picks up the current mode and policy.
func (c *AuthCache) InvalidateClient(clientID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byClient[clientID]
	for k := range keys {
		delete(c.byKey, k)
	}
	delete(c.byClient, clientID)
	return len(keys)
}

// Len returns the number of cached keys.
func (c *AuthCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}

func (c *AuthCache) unindexLocked(apiKey string) {
	old, ok := c.byKey[apiKey]
	if !ok {
		return
	}
	id := old.client.ClientID
	delete(c.byClient[id], apiKey)
	if len(c.byClient[id]) == 0 {
		delete(c.byClient, id)
	}
}
