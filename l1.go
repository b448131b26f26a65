package querycache

import (
	"container/list"
	"sync"
	"time"
)

// l1Entry is owned exclusively by the L1 map; replaced wholesale on update,
// never partially mutated.
type l1Entry struct {
	key        string
	value      any
	size       int64 // serialized payload estimate, for memory accounting
	expiresAt  time.Time
	lastAccess time.Time
}

// l1Cache is the bounded in-process tier: map for O(1) lookup, doubly-linked
// list for O(1) LRU eviction. Critical sections are short and never do I/O.
type l1Cache struct {
	mu      sync.Mutex
	maxSize int
	bytes   int64
	ll      *list.List // front = most recently used
	items   map[string]*list.Element
}

func newL1(maxSize int) *l1Cache {
	return &l1Cache{
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[string]*list.Element, maxSize),
	}
}

// Get returns the entry only while unexpired. Expired entries are deleted
// and treated as absent.
func (c *l1Cache) Get(key string) (any, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*l1Entry)
	if now.After(e.expiresAt) {
		c.removeElement(el)
		return nil, false
	}
	e.lastAccess = now
	c.ll.MoveToFront(el)
	return e.value, true
}

// Put inserts or replaces, then evicts LRU entries while over capacity.
func (c *l1Cache) Put(key string, value any, size int64, ttl time.Duration) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		old := el.Value.(*l1Entry)
		c.bytes += size - old.size
		el.Value = &l1Entry{
			key: key, value: value, size: size,
			expiresAt: now.Add(ttl), lastAccess: now,
		}
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&l1Entry{
		key: key, value: value, size: size,
		expiresAt: now.Add(ttl), lastAccess: now,
	})
	c.items[key] = el
	c.bytes += size

	for c.maxSize > 0 && c.ll.Len() > c.maxSize {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
	}
}

// Remove reports whether the key was present.
func (c *l1Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

func (c *l1Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *l1Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

func (c *l1Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	return out
}

// EvictIdle drops entries whose last access is older than olderThan,
// independent of TTL. Used by the optimization sweep.
func (c *l1Cache) EvictIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	// walk from the LRU end; stop at the first fresh entry
	for el := c.ll.Back(); el != nil; {
		e := el.Value.(*l1Entry)
		if e.lastAccess.After(cutoff) {
			break
		}
		prev := el.Prev()
		c.removeElement(el)
		el = prev
		removed++
	}
	return removed
}

// removeElement must be called with mu held.
func (c *l1Cache) removeElement(el *list.Element) {
	e := el.Value.(*l1Entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.bytes -= e.size
}
