package cache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/bbernstein/baroalt/backend-go/internal/config"
	"github.com/bbernstein/baroalt/backend-go/pkg/http/client"
	"github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// LRUCacheEntry wraps the cached response with metadata
type LRUCacheEntry struct {
	Data      *client.Response
	ExpiresAt time.Time
}

// ArchiveStore is a persistent tier for downloaded archives.
type ArchiveStore interface {
	GetArchive(ctx context.Context, url string) ([]byte, error)
	SaveArchive(ctx context.Context, url string, body []byte) error
}

// CachingClient fronts an upstream client with an in-memory LRU and an optional
// persistent archive tier. Only successful responses are cached.
type CachingClient struct {
	upstream client.Interface
	lru      *lru.Cache[string, *LRUCacheEntry]
	archives ArchiveStore
	ttl      time.Duration
	clock    clock.Clock

	lruHits       atomic.Uint64
	lruMisses     atomic.Uint64
	archiveHits   atomic.Uint64
	archiveMisses atomic.Uint64
}

type Option func(*CachingClient)

// WithArchiveStore adds a persistent tier consulted for archive downloads.
func WithArchiveStore(s ArchiveStore) Option {
	return func(c *CachingClient) {
		c.archives = s
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *CachingClient) {
		c.clock = clk
	}
}

// NewCachingClient creates a caching client sized and timed by cfg
func NewCachingClient(upstream client.Interface, cfg *config.CacheConfig, opts ...Option) (*CachingClient, error) {
	if cfg == nil {
		cfg = config.GetCacheConfig()
	}

	lruCache, err := lru.New[string, *LRUCacheEntry](cfg.ResponseLRUSize)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	c := &CachingClient{
		upstream: upstream,
		lru:      lruCache,
		ttl:      cfg.GetResponseTTL(),
		clock:    clock.System{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get serves url from the LRU, then the archive tier, then upstream
func (c *CachingClient) Get(ctx context.Context, url string) (*client.Response, error) {
	if entry, ok := c.lru.Get(url); ok {
		if c.clock.Now().Before(entry.ExpiresAt) {
			c.lruHits.Add(1)
			return entry.Data, nil
		}
		// Entry expired, remove it
		c.lru.Remove(url)
	}
	c.lruMisses.Add(1)

	archive := c.archives != nil && isArchive(url)
	if archive {
		body, err := c.archives.GetArchive(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Reading archive cache failed")
		}
		if body != nil {
			c.archiveHits.Add(1)
			resp := &client.Response{StatusCode: 200, Body: body}
			c.add(url, resp)
			return resp, nil
		}
		c.archiveMisses.Add(1)
	}

	resp, err := c.upstream.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, nil
	}

	c.add(url, resp)
	if archive {
		if err := c.archives.SaveArchive(ctx, url, resp.Body); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Saving archive to cache failed")
		}
	}

	return resp, nil
}

func (c *CachingClient) add(url string, resp *client.Response) {
	c.lru.Add(url, &LRUCacheEntry{
		Data:      resp,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	})
}

func isArchive(url string) bool {
	return strings.HasSuffix(url, ".zip")
}

// GetCacheStats returns statistics about cache hits and misses
func (c *CachingClient) GetCacheStats() map[string]uint64 {
	return map[string]uint64{
		"lru_hits":       c.lruHits.Load(),
		"lru_misses":     c.lruMisses.Load(),
		"archive_hits":   c.archiveHits.Load(),
		"archive_misses": c.archiveMisses.Load(),
	}
}

// Clear removes all entries from the LRU cache
func (c *CachingClient) Clear() {
	c.lru.Purge()
}
