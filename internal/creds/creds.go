// Package creds obtains and caches ephemeral session credentials for
// storage nodes that use a secure-token exchange. Tokens live only in
// process memory, carry an expiry, and are renewed with a safety margin
// so a request never starts with a token about to lapse.
package creds

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/wsio/wsio/internal/store"
)

// Session is an ephemeral credential triple obtained from a token exchange.
type Session struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Expiry       time.Time
}

// Valid reports whether the session is usable at instant now, leaving
// margin before the actual expiry.
func (s *Session) Valid(now time.Time, margin time.Duration) bool {
	return s != nil && now.Add(margin).Before(s.Expiry)
}

// Exchanger performs one secure-token exchange for a node.
type Exchanger interface {
	Exchange(ctx context.Context, node *store.Node) (*Session, error)
}

// Cache hands out valid sessions, exchanging only when the cached one is
// missing or inside the renewal margin. Safe for concurrent use.
type Cache struct {
	exchanger Exchanger
	margin    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

// DefaultRenewMargin is how long before expiry a session is renewed.
const DefaultRenewMargin = 2 * time.Minute

// NewCache creates a Cache around the given exchanger.
func NewCache(exchanger Exchanger) *Cache {
	return &Cache{
		exchanger: exchanger,
		margin:    DefaultRenewMargin,
		sessions:  make(map[string]*Session),
		now:       time.Now,
	}
}

// Get returns a valid session for node, reusing the cached one when possible.
func (c *Cache) Get(ctx context.Context, node *store.Node) (*Session, error) {
	key := cacheKey(node)

	c.mu.Lock()
	cached := c.sessions[key]
	c.mu.Unlock()

	if cached.Valid(c.now(), c.margin) {
		return cached, nil
	}

	session, err := c.exchanger.Exchange(ctx, node)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[key] = session
	c.mu.Unlock()

	return session, nil
}

// Invalidate drops the cached session for node so the next Get performs a
// fresh exchange. Called when a backend rejects a token before its expiry.
func (c *Cache) Invalidate(node *store.Node) {
	c.mu.Lock()
	delete(c.sessions, cacheKey(node))
	c.mu.Unlock()
}

// cacheKey derives the cache primary key from the node's connection
// identity: two nodes with the same endpoint and static credentials
// share one session.
func cacheKey(node *store.Node) string {
	raw := strings.ToLower(
		string(node.Kind) + node.Region + node.Endpoint + node.STSEndpoint +
			node.AccessKey + node.SecretKey + node.AssumeRoleARN,
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
