/*
 *
 * shadowfold - a self-hiding layered resource resolver
 * Copyright (C) 2026 The shadowfold Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package listing caches the entry listings of archive files. Opening an
// archive just to learn what is inside it is the most expensive operation the
// resolver performs, so a listing is computed at most once per distinct
// archive path and shared between every resolver instance that asks for it.
// Cache entries are reference counted; once the last Handle that adopted an
// entry is closed, the entry is evicted and a later resolver starts fresh.
package listing

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/foldlib/shadowfold/lib/fsext"
)

// entry is the cached listing of a single archive, keyed in the cache by the
// archive's canonical path. names stays nil until the first computation; a
// failed or empty archive is recorded as an empty (non-nil) set, which makes
// the failure permanent for as long as the entry stays referenced.
type entry struct {
	path string
	refs int // guarded by the owning Cache's mutex

	mu    sync.Mutex
	names map[string]struct{}
}

// Cache is a process-wide registry of archive listings. The zero value is not
// usable, use NewCache. All resolver instances of a process normally share
// the Default cache; tests create their own to observe eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Default is the cache shared by all resolver instances in the process.
//
//nolint:gochecknoglobals
var Default = NewCache()

// NewCache returns an empty listing cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// NewHandle returns this resolver instance's view of the cache. Listings are
// computed against the given filesystem. The handle must be closed when the
// resolver instance is disposed of, otherwise its cache entries stay pinned
// forever.
func (c *Cache) NewHandle(fs fsext.Fs, logger logrus.FieldLogger) *Handle {
	return &Handle{
		cache:   c,
		fs:      fs,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// size reports how many archive paths currently have a live cache entry.
func (c *Cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// adopt returns the entry for path, taking a reference on it. An entry
// created by another handle is reused; this is what makes the cache shared
// rather than per-instance.
func (c *Cache) adopt(path string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		e = &entry{path: path}
		c.entries[path] = e
	}
	e.refs++
	return e
}

// release drops one reference from each given entry and evicts the ones that
// reach zero.
func (c *Cache) release(entries map[string]*entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, e := range entries {
		e.refs--
		if e.refs <= 0 {
			delete(c.entries, path)
		}
	}
}

// Handle is a single resolver instance's set of references into a Cache.
// Handles are safe for concurrent use by multiple goroutines.
type Handle struct {
	cache  *Cache
	fs     fsext.Fs
	logger logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// Listing returns the set of non-directory entry names inside the archive at
// the given canonical path. An unreadable or malformed archive yields an
// empty set; callers cannot and must not distinguish that from a genuinely
// empty archive. The returned map is shared, callers must not mutate it.
func (h *Handle) Listing(path string) map[string]struct{} {
	e := h.entryFor(path)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.names == nil {
		names, err := enumerate(h.fs, path)
		if err != nil {
			h.logger.WithError(err).WithField("archive", path).Debug("Archive could not be listed, caching it as empty")
			names = make(map[string]struct{})
		}
		e.names = names
	}
	return e.names
}

// Contains reports whether the archive at path contains the named entry.
func (h *Handle) Contains(path, name string) bool {
	_, ok := h.Listing(path)[name]
	return ok
}

// Entries returns the sorted entry names of the archive at path.
func (h *Handle) Entries(path string) []string {
	set := h.Listing(path)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entryFor returns this handle's entry for path, adopting one from the cache
// on first use. Returns nil once the handle is closed.
func (h *Handle) entryFor(path string) *entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if e, ok := h.entries[path]; ok {
		return e
	}
	e := h.cache.adopt(path)
	h.entries[path] = e
	return e
}

// Close releases every cache entry this handle references. It is safe to call
// more than once; calls after the first do nothing.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.cache.release(h.entries)
	h.entries = nil
	return nil
}
