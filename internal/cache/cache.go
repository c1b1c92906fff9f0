// Package cache holds synonym dictionaries in memory and refreshes them on a
// time-to-live policy. One Cache is built at startup, shared by every rewrite,
// and closed on shutdown.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// Cache configuration defaults.
const (
	// DefaultTTL is used when a caller passes a zero refresh interval.
	DefaultTTL = time.Hour

	// DefaultMaxEntries bounds the number of distinct refresh intervals kept.
	DefaultMaxEntries = 16

	// DefaultRefreshTimeout bounds a single background refresh.
	DefaultRefreshTimeout = 30 * time.Second
)

// ErrClosed is returned by Synonyms after Close.
var ErrClosed = errors.New("synonym cache is closed")

// snapshot is an immutable, fully loaded dictionary.
type snapshot struct {
	dict       synonym.Dictionary
	loadedAt   time.Time
	generation uint64
}

// entry is the cache slot for one refresh interval.
type entry struct {
	ttl        time.Duration
	snap       atomic.Pointer[snapshot]
	refreshing atomic.Bool
}

// Cache is a synonym.Provider backed by a Loader. Readers always get a
// complete snapshot; a stale snapshot is served while a single background
// refresh replaces it.
type Cache struct {
	loader         synonym.Loader
	defaultTTL     time.Duration
	maxEntries     int
	refreshTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	entries    *lru.Cache[time.Duration, *entry]
	group      singleflight.Group
	generation atomic.Uint64

	mu     sync.Mutex // guards entry creation, closed and wg.Add
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL sets the TTL used for a zero refresh interval.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithMaxEntries bounds how many refresh intervals are cached at once.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithRefreshTimeout bounds each background refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger for refresh failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache in front of loader.
func New(loader synonym.Loader, opts ...Option) *Cache {
	c := &Cache{
		loader:         loader,
		defaultTTL:     DefaultTTL,
		maxEntries:     DefaultMaxEntries,
		refreshTimeout: DefaultRefreshTimeout,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Size is always positive here, so New cannot fail.
	c.entries, _ = lru.New[time.Duration, *entry](c.maxEntries)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Synonyms implements synonym.Provider. The first call for a refresh
// interval blocks until the loader returns and propagates its error. Later
// calls return the current snapshot, starting a background refresh when it
// is older than refresh (or DefaultTTL for zero) or has been invalidated.
//
// The returned dictionary is shared; callers must not modify it.
func (c *Cache) Synonyms(ctx context.Context, refresh time.Duration) (synonym.Dictionary, error) {
	ttl := refresh
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	e, err := c.entry(ttl)
	if err != nil {
		return nil, err
	}

	s := e.snap.Load()
	if s == nil {
		return c.firstLoad(ctx, e)
	}
	if c.stale(e, s) {
		c.refreshAsync(e)
	}
	return s.dict, nil
}

// Invalidate marks every cached snapshot stale. Readers keep getting the old
// dictionary until the background refresh triggered by their next read lands.
func (c *Cache) Invalidate() {
	gen := c.generation.Add(1)
	c.logger.Debug("synonym_cache_invalidated", slog.Uint64("generation", gen))
}

// Close stops background refreshes and drops all snapshots.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.entries.Purge()
	return nil
}

// Len returns the number of cached refresh intervals.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) entry(ttl time.Duration) (*entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if e, ok := c.entries.Get(ttl); ok {
		return e, nil
	}
	e := &entry{ttl: ttl}
	c.entries.Add(ttl, e)
	return e, nil
}

func (c *Cache) stale(e *entry, s *snapshot) bool {
	return s.generation < c.generation.Load() || c.now().Sub(s.loadedAt) >= e.ttl
}

// firstLoad waits for the shared load of e. The load itself runs on the
// cache's lifetime context so one caller giving up does not fail the others.
func (c *Cache) firstLoad(ctx context.Context, e *entry) (synonym.Dictionary, error) {
	ch := c.group.DoChan(groupKey(e.ttl), func() (any, error) {
		if s := e.snap.Load(); s != nil {
			return s, nil
		}
		return c.load(c.ctx, e)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot).dict, nil
	}
}

func (c *Cache) refreshAsync(e *entry) {
	if !e.refreshing.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		e.refreshing.Store(false)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer e.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(c.ctx, c.refreshTimeout)
		defer cancel()

		_, err, _ := c.group.Do(groupKey(e.ttl), func() (any, error) {
			return c.load(ctx, e)
		})
		if err != nil {
			args := append([]any{slog.Duration("ttl", e.ttl)}, synerrors.LogArgs(err)...)
			c.logger.Warn("synonym_cache_refresh_failed", args...)
		}
	}()
}

func (c *Cache) load(ctx context.Context, e *entry) (*snapshot, error) {
	gen := c.generation.Load()
	start := c.now()

	dict, err := c.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load synonyms: %w", err)
	}
	if dict == nil {
		dict = synonym.Dictionary{}
	}

	s := &snapshot{dict: dict, loadedAt: c.now(), generation: gen}
	e.snap.Store(s)

	c.logger.Debug("synonym_cache_loaded",
		slog.Duration("ttl", e.ttl),
		slog.Int("phrases", len(dict)),
		slog.Duration("took", s.loadedAt.Sub(start)))
	return s, nil
}

func groupKey(ttl time.Duration) string {
	return strconv.FormatInt(int64(ttl), 10)
}
