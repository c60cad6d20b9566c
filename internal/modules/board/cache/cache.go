// Package cache holds the boards a device has fetched. Lists are kept
// newest first; locally created items sit at the front until the next
// reload replaces the whole list with what the server returns.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/metrics"
	"anoa.com/classboard/pkg/kvstore"
	"golang.org/x/sync/singleflight"
)

const (
	snapshotPrefix = "snapshot"
	// SnapshotSize is how many gallery items survive a failed cold load.
	SnapshotSize = 50
	// coldLoadTimeout bounds a shared cold load, which no single caller
	// can cancel.
	coldLoadTimeout = 30 * time.Second
)

type Fetcher interface {
	List(ctx context.Context, category entity.Category) ([]entity.BoardItem, error)
}

// LoadedHook runs after every successful fetch, outside the cache lock.
type LoadedHook func(category entity.Category, items []entity.BoardItem)

// State is a copy of one board.
type State struct {
	Items []entity.BoardItem
	// Loaded is false until a fetch has succeeded.
	Loaded bool
	// Failed is set by the latest failed fetch and cleared by the next
	// successful one.
	Failed bool
	// Stale marks items restored from the local snapshot.
	Stale bool
}

type board struct {
	items  []entity.BoardItem
	loaded bool
	failed bool
	stale  bool
}

type Cache struct {
	fetcher   Fetcher
	snapshots kvstore.Store
	onLoaded  LoadedHook

	group singleflight.Group

	mu     sync.RWMutex
	boards map[entity.Category]*board
}

// New creates an empty cache. snapshots may be nil, in which case the
// gallery snapshot is skipped.
func New(fetcher Fetcher, snapshots kvstore.Store, onLoaded LoadedHook) *Cache {
	return &Cache{
		fetcher:   fetcher,
		snapshots: snapshots,
		onLoaded:  onLoaded,
		boards:    make(map[entity.Category]*board),
	}
}

// EnsureLoaded fetches a board that has never loaded. Concurrent callers
// for the same cold board share one fetch, which keeps running when the
// caller that started it goes away. A caller whose ctx ends returns early
// with ctx.Err(). Optimistic items inserted before the first load stay
// at the front of the loaded list.
func (c *Cache) EnsureLoaded(ctx context.Context, category entity.Category) error {
	if c.State(category).Loaded {
		return nil
	}

	ch := c.group.DoChan(category.String(), func() (any, error) {
		if c.State(category).Loaded {
			return nil, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), coldLoadTimeout)
		defer cancel()

		err := c.fetch(shared, category, true)
		if err != nil {
			c.restoreSnapshot(shared, category)
		}
		return nil, err
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload fetches unconditionally and replaces the board. The last reload
// to complete wins. On failure the existing items stay.
func (c *Cache) Reload(ctx context.Context, category entity.Category) error {
	return c.fetch(ctx, category, false)
}

// InsertOptimistic puts a locally created item at the front of the board
// and returns the stored copy.
func (c *Cache) InsertOptimistic(category entity.Category, item entity.BoardItem) entity.BoardItem {
	item.Category = category
	item.Fresh = true
	if item.ID == "" {
		item.ID = item.DeriveID()
	}

	c.mu.Lock()
	b := c.boardLocked(category)
	items := make([]entity.BoardItem, 0, len(b.items)+1)
	items = append(items, item)
	b.items = append(items, b.items...)
	c.mu.Unlock()

	return item
}

func (c *Cache) State(category entity.Category) State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.boards[category]
	if !ok {
		return State{}
	}
	items := make([]entity.BoardItem, len(b.items))
	copy(items, b.items)
	return State{Items: items, Loaded: b.loaded, Failed: b.failed, Stale: b.stale}
}

func (c *Cache) Items(category entity.Category) []entity.BoardItem {
	return c.State(category).Items
}

func (c *Cache) fetch(ctx context.Context, category entity.Category, keepFresh bool) error {
	items, err := c.fetcher.List(ctx, category)
	metrics.CacheFetches.WithLabelValues(category.String(), metrics.Outcome(err)).Inc()
	if err != nil {
		c.mu.Lock()
		c.boardLocked(category).failed = true
		c.mu.Unlock()
		log.Printf("[cache] fetch %s failed: %v", category, err)
		return err
	}
	if items == nil {
		items = []entity.BoardItem{}
	}

	c.mu.Lock()
	b := c.boardLocked(category)
	if keepFresh {
		b.items = withPending(b.items, items)
	} else {
		b.items = items
	}
	b.loaded = true
	b.failed = false
	b.stale = false
	c.mu.Unlock()

	if category == entity.CategoryGallery {
		c.saveSnapshot(ctx, items)
	}
	if c.onLoaded != nil {
		c.onLoaded(category, items)
	}
	return nil
}

// withPending puts the optimistic items of local that fetched does not
// already contain in front of fetched.
func withPending(local, fetched []entity.BoardItem) []entity.BoardItem {
	seen := make(map[string]bool, len(fetched))
	for _, it := range fetched {
		seen[it.ID] = true
	}
	var pending []entity.BoardItem
	for _, it := range local {
		if it.Fresh && !seen[it.ID] {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return fetched
	}
	return append(pending, fetched...)
}

func (c *Cache) boardLocked(category entity.Category) *board {
	b, ok := c.boards[category]
	if !ok {
		b = &board{}
		c.boards[category] = b
	}
	return b
}

func (c *Cache) saveSnapshot(ctx context.Context, items []entity.BoardItem) {
	if c.snapshots == nil {
		return
	}
	if len(items) > SnapshotSize {
		items = items[:SnapshotSize]
	}
	raw, err := json.Marshal(items)
	if err != nil {
		log.Printf("[cache] encode gallery snapshot: %v", err)
		return
	}
	if err := c.snapshots.Set(ctx, entity.CategoryGallery.StorageKey(snapshotPrefix), string(raw)); err != nil {
		log.Printf("[cache] save gallery snapshot: %v", err)
	}
}

// restoreSnapshot fills an empty gallery from the last saved snapshot so
// a failed cold load still shows something.
func (c *Cache) restoreSnapshot(ctx context.Context, category entity.Category) {
	if category != entity.CategoryGallery || c.snapshots == nil {
		return
	}
	if len(c.Items(category)) > 0 {
		return
	}

	raw, err := c.snapshots.Get(ctx, category.StorageKey(snapshotPrefix))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("[cache] read gallery snapshot: %v", err)
		}
		return
	}
	var items []entity.BoardItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("[cache] decode gallery snapshot: %v", err)
		return
	}

	c.mu.Lock()
	b := c.boardLocked(category)
	if len(b.items) == 0 {
		b.items = items
		b.stale = true
	}
	c.mu.Unlock()
}
