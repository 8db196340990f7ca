package cache

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Cache is a weighted LRU cache. Items are evicted least recently used first
// once the total weight exceeds the budget.
type Cache[V any] interface {
	// SetVerbose controls eviction logging.
	SetVerbose(verbose bool)

	// GetWeight returns the current total weight of items in the cache.
	GetWeight() int

	// GetBudget returns the weight budget of the cache.
	GetBudget() int

	// Insert adds or replaces an item, marking it most recently used.
	Insert(key string, value V, weight int)

	// Retrieve fetches an item, marking it most recently used.
	Retrieve(key string) (V, bool)

	// Delete removes an item, if present.
	Delete(key string)

	// Clear removes all items.
	Clear()
}

type cacheNode[V any] struct {
	next   *cacheNode[V]
	prev   *cacheNode[V]
	key    string
	value  V
	weight int
}

type cache[V any] struct {
	log *logrus.Entry

	mutex   sync.Mutex
	head    *cacheNode[V]
	tail    *cacheNode[V]
	lookup  map[string]*cacheNode[V]
	weight  int
	budget  int
	verbose bool
}

// NewCache initializes and returns a new cache with a given weight budget.
func NewCache[V any](budget int) Cache[V] {
	return &cache[V]{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		lookup: make(map[string]*cacheNode[V]),
		budget: budget,
	}
}

func (c *cache[V]) SetVerbose(verbose bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.verbose = verbose
}

func (c *cache[V]) GetWeight() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.weight
}

func (c *cache[V]) GetBudget() int {
	return c.budget
}

func (c *cache[V]) Insert(key string, value V, weight int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, found := c.lookup[key]; found {
		c.weight += weight - node.weight
		node.value = value
		node.weight = weight
		c.moveToFront(node)
	} else {
		node := &cacheNode[V]{
			key:    key,
			value:  value,
			weight: weight,
		}
		c.pushFront(node)
		c.lookup[key] = node
		c.weight += weight
	}

	// Evict least recently used items if the cache exceeds its budget
	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		c.weight -= evicted.weight
		delete(c.lookup, evicted.key)

		if c.verbose {
			c.log.WithFields(logrus.Fields{
				"key":          evicted.key,
				"weight":       evicted.weight,
				"spare_weight": c.budget - c.weight,
			}).Debug("cache eviction")
		}
	}
}

func (c *cache[V]) Retrieve(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, found := c.lookup[key]
	if !found {
		var zero V
		return zero, false
	}

	c.moveToFront(node)
	return node.value, true
}

func (c *cache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, found := c.lookup[key]
	if !found {
		return
	}

	c.unlink(node)
	c.weight -= node.weight
	delete(c.lookup, key)
}

func (c *cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*cacheNode[V])
	c.weight = 0
}

func (c *cache[V]) pushFront(node *cacheNode[V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *cache[V]) unlink(node *cacheNode[V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.next = nil
	node.prev = nil
}

func (c *cache[V]) moveToFront(node *cacheNode[V]) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.pushFront(node)
}
